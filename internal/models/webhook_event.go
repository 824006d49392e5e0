package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB type for GORM to handle PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// WebhookEvent records a processed payment-provider event. The primary key is
// the provider's stable event id: inserting it is the idempotence gate, so a
// redelivered event is detected before any transition is applied.
type WebhookEvent struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Type        string    `gorm:"column:type"`
	Scope       string    `gorm:"column:scope"`
	Payload     JSONB     `gorm:"column:payload;type:jsonb"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// Payment is a recorded successful charge, individual or tenant-scoped.
// EventID ties it to the webhook event that produced it; the idempotence
// gate guarantees at most one payment row per provider event.
type Payment struct {
	ID           string    `gorm:"column:id;primaryKey"`
	EventID      string    `gorm:"column:event_id;uniqueIndex"`
	UserID       *string   `gorm:"column:user_id;index"`
	ProAccountID *string   `gorm:"column:pro_account_id;index"`
	Amount       float64   `gorm:"column:amount"`
	Currency     string    `gorm:"column:currency"`
	PaidAt       time.Time `gorm:"column:paid_at"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Payment) TableName() string {
	return "payments"
}
