package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/motium/motium-sync/internal/models"
)

// Retry backoff bounds. The delay doubles per attempt from the base and is
// capped so an op stuck behind a long outage still retries regularly.
const (
	retryBackoffBase = 5 * time.Second
	retryBackoffMax  = 15 * time.Minute
)

// PendingOperationRepository is the durable upload queue over the local store.
type PendingOperationRepository struct {
	db *gorm.DB
}

func NewPendingOperationRepository(db *gorm.DB) *PendingOperationRepository {
	return &PendingOperationRepository{db: db}
}

// Enqueue records a local mutation for upload, coalescing with any
// unconsumed operation for the same entity: a later UPDATE replaces the
// snapshot in place (a pending CREATE stays a CREATE), a DELETE supersedes
// whatever was queued before it, and a write after a pending DELETE becomes
// a CREATE for the re-created row. The read-modify-write runs in
// one transaction so an edit racing a drain in progress is never lost.
func (r *PendingOperationRepository) Enqueue(ctx context.Context, entityType, entityID string, action models.OperationAction, payload json.RawMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return enqueueTx(tx, entityType, entityID, action, payload)
	})
}

// enqueueTx is the coalescing core, shared with the local record store so a
// record write and its queue entry commit in the same transaction.
func enqueueTx(tx *gorm.DB, entityType, entityID string, action models.OperationAction, payload json.RawMessage) error {
	now := time.Now().UTC()

	var existing models.PendingOperation
	result := tx.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Take(&existing)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up pending operation: %w", result.Error)
		}
		op := models.PendingOperation{
			ID:         uuid.NewString(),
			EntityType: entityType,
			EntityID:   entityID,
			Action:     action,
			Payload:    payload,
			Priority:   priorityFor(action),
			Revision:   1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Create(&op).Error; err != nil {
			return fmt.Errorf("failed to enqueue operation: %w", err)
		}
		return nil
	}

	if action == models.ActionDelete {
		existing.Action = models.ActionDelete
		existing.Payload = nil
		existing.Priority = models.PriorityDelete
	} else {
		if existing.Action == models.ActionDelete {
			// The record was re-created locally before its delete uploaded.
			// The remote row must be (re)written, not deleted, or the edit
			// would vanish with the purge that follows a confirmed delete.
			existing.Action = models.ActionCreate
			existing.Priority = models.PriorityNormal
		}
		// CREATE stays CREATE until it round-trips; only the snapshot moves.
		existing.Payload = payload
	}
	existing.Revision++
	existing.RetryCount = 0
	existing.LastError = nil
	existing.NextRetryAt = nil
	existing.Exhausted = false
	existing.UpdatedAt = now

	if err := tx.Save(&existing).Error; err != nil {
		return fmt.Errorf("failed to coalesce operation: %w", err)
	}
	return nil
}

func priorityFor(action models.OperationAction) int {
	if action == models.ActionDelete {
		return models.PriorityDelete
	}
	return models.PriorityNormal
}

// Drain returns up to batchSize operations ready for upload, urgent ones
// first and oldest-first within a priority band. Exhausted operations and
// those still inside their backoff window are excluded.
func (r *PendingOperationRepository) Drain(ctx context.Context, entityType string, batchSize int) ([]models.PendingOperation, error) {
	var ops []models.PendingOperation
	result := r.db.WithContext(ctx).
		Where("entity_type = ? AND exhausted = ?", entityType, false).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", time.Now().UTC()).
		Order("priority DESC, created_at ASC").
		Limit(batchSize).
		Find(&ops)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to drain pending operations: %w", result.Error)
	}
	return ops, nil
}

// MarkFailed records a failed upload attempt with capped exponential backoff.
// It reports whether the operation has exhausted its retry budget; the queue
// row is preserved either way so a manual resync can force a retry.
func (r *PendingOperationRepository) MarkFailed(ctx context.Context, op models.PendingOperation, attemptErr error, maxRetries int) (bool, error) {
	now := time.Now().UTC()
	retryCount := op.RetryCount + 1
	exhausted := retryCount >= maxRetries

	backoff := retryBackoffBase << (retryCount - 1)
	if backoff > retryBackoffMax || backoff <= 0 {
		backoff = retryBackoffMax
	}
	nextRetry := now.Add(backoff)

	msg := attemptErr.Error()
	updates := map[string]interface{}{
		"retry_count":     retryCount,
		"last_error":      &msg,
		"last_attempt_at": &now,
		"next_retry_at":   &nextRetry,
		"exhausted":       exhausted,
		"updated_at":      now,
	}

	result := r.db.WithContext(ctx).Model(&models.PendingOperation{}).
		Where("id = ?", op.ID).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark operation failed: %w", result.Error)
	}
	return exhausted, nil
}

// MarkSucceeded consumes an uploaded operation. The delete is conditioned on
// the revision the drain observed: if an edit coalesced into the row while
// the upload was in flight, the row survives with the newer snapshot and
// MarkSucceeded reports consumed=false.
func (r *PendingOperationRepository) MarkSucceeded(ctx context.Context, opID string, revision int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND revision = ?", opID, revision).
		Delete(&models.PendingOperation{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to consume operation: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ResetExhausted clears the exhausted flag and backoff for an entity type and
// returns the affected entity ids, so the caller can flip their records out
// of ERROR. This is the manual-resync path.
func (r *PendingOperationRepository) ResetExhausted(ctx context.Context, entityType string) ([]string, error) {
	var ops []models.PendingOperation
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND exhausted = ?", entityType, true).
		Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("failed to list exhausted operations: %w", err)
	}
	if len(ops) == 0 {
		return nil, nil
	}

	result := r.db.WithContext(ctx).Model(&models.PendingOperation{}).
		Where("entity_type = ? AND exhausted = ?", entityType, true).
		Updates(map[string]interface{}{
			"exhausted":     false,
			"retry_count":   0,
			"next_retry_at": nil,
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to reset exhausted operations: %w", result.Error)
	}

	ids := make([]string, 0, len(ops))
	for _, op := range ops {
		ids = append(ids, op.EntityID)
	}
	return ids, nil
}

// CountPending returns the number of unconsumed operations for an entity type.
func (r *PendingOperationRepository) CountPending(ctx context.Context, entityType string) (int64, error) {
	var n int64
	result := r.db.WithContext(ctx).Model(&models.PendingOperation{}).
		Where("entity_type = ?", entityType).
		Count(&n)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count pending operations: %w", result.Error)
	}
	return n, nil
}
