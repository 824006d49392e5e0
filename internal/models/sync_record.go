package models

import (
	"encoding/json"
	"time"
)

// SyncRecord is the server-side row backing the delta-changes feed: current
// state plus tombstone, one row per (entity_type, entity_id). Version is the
// server-owned optimistic-lock counter; ServerUpdatedAt orders the feed.
// Deleted rows are kept as tombstones so clients learn about deletions.
type SyncRecord struct {
	EntityType      string          `gorm:"column:entity_type;primaryKey"`
	EntityID        string          `gorm:"column:entity_id;primaryKey"`
	Version         int64           `gorm:"column:version"`
	Deleted         bool            `gorm:"column:deleted"`
	Payload         json.RawMessage `gorm:"column:payload;type:jsonb"`
	ServerUpdatedAt time.Time       `gorm:"column:server_updated_at;index"`
}

func (SyncRecord) TableName() string {
	return "sync_records"
}
