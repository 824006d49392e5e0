package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/motium/motium-sync/internal/models"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Claim inserts the event id as processed. claimed=false means the provider
// redelivered an event that was already applied; the caller must treat the
// delivery as a no-op.
func (r *WebhookEventRepository) Claim(ctx context.Context, eventID, eventType, scope string, payload models.JSONB) (bool, error) {
	row := models.WebhookEvent{
		ID:          eventID,
		Type:        eventType,
		Scope:       scope,
		Payload:     payload,
		ProcessedAt: time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim webhook event %s: %w", eventID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Release removes a claim so the provider's redelivery can retry the event
// after a processing failure.
func (r *WebhookEventRepository) Release(ctx context.Context, eventID string) error {
	result := r.db.WithContext(ctx).Where("id = ?", eventID).Delete(&models.WebhookEvent{})
	if result.Error != nil {
		return fmt.Errorf("failed to release webhook event %s: %w", eventID, result.Error)
	}
	return nil
}
