package models

import "time"

// SyncMetadata holds one row per entity type: the delta watermark, the
// per-type mutual-exclusion flag, and the last pass's outcome.
//
// LastSyncTimestamp only ever advances to the maximum server_updated_at
// actually applied in a download batch, never to wall-clock now. Only one
// pass per entity type may hold SyncInProgress at a time.
type SyncMetadata struct {
	EntityType            string     `gorm:"column:entity_type;primaryKey"`
	LastSyncTimestamp     time.Time  `gorm:"column:last_sync_timestamp"`
	LastFullSyncTimestamp *time.Time `gorm:"column:last_full_sync_timestamp"`
	SyncInProgress        bool       `gorm:"column:sync_in_progress"`
	TotalSynced           int64      `gorm:"column:total_synced"`
	LastSyncError         *string    `gorm:"column:last_sync_error"`
	UpdatedAt             time.Time  `gorm:"column:updated_at"`
}

func (SyncMetadata) TableName() string {
	return "sync_metadata"
}
