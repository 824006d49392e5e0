package models

import (
	"encoding/json"
	"time"
)

type OperationAction string

const (
	ActionCreate OperationAction = "CREATE"
	ActionUpdate OperationAction = "UPDATE"
	ActionDelete OperationAction = "DELETE"
)

// Operation priorities. Deletions jump the queue so a tombstone is never
// stuck behind a backlog of edits.
const (
	PriorityNormal = 0
	PriorityDelete = 10
)

// PendingOperation is one entry in the durable upload queue. Exactly one
// unconsumed operation exists per (entity_type, entity_id): later mutations
// coalesce into it instead of appending. Revision increments on every
// coalesce so a drain in flight can detect that the row changed under it.
type PendingOperation struct {
	ID            string          `gorm:"column:id;primaryKey"`
	EntityType    string          `gorm:"column:entity_type;index:idx_pending_entity"`
	EntityID      string          `gorm:"column:entity_id;index:idx_pending_entity"`
	Action        OperationAction `gorm:"column:action"`
	Payload       json.RawMessage `gorm:"column:payload"`
	Priority      int             `gorm:"column:priority"`
	Revision      int64           `gorm:"column:revision"`
	RetryCount    int             `gorm:"column:retry_count"`
	LastError     *string         `gorm:"column:last_error"`
	LastAttemptAt *time.Time      `gorm:"column:last_attempt_at"`
	NextRetryAt   *time.Time      `gorm:"column:next_retry_at"`
	Exhausted     bool            `gorm:"column:exhausted;index"`
	CreatedAt     time.Time       `gorm:"column:created_at;index"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (PendingOperation) TableName() string {
	return "pending_operations"
}
