package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/motium/motium-sync/internal/models"
)

// GormStore implements Store over the server's sync_records table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetChanges implements Store.GetChanges.
func (s *GormStore) GetChanges(ctx context.Context, entityType string, since time.Time) ([]Change, error) {
	var rows []models.SyncRecord
	result := s.db.WithContext(ctx).
		Where("entity_type = ? AND server_updated_at > ?", entityType, since).
		Order("server_updated_at ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query changes: %w", result.Error)
	}

	changes := make([]Change, 0, len(rows))
	for _, row := range rows {
		changes = append(changes, changeFromRecord(row))
	}
	return changes, nil
}

// Upsert implements Store.Upsert.
func (s *GormStore) Upsert(ctx context.Context, entityType, entityID string, payload json.RawMessage, clientVersion int64) (Change, error) {
	return s.write(ctx, entityType, entityID, payload, clientVersion, false)
}

// Delete implements Store.Delete. The row is kept as a tombstone so the
// delta feed carries the deletion to other devices.
func (s *GormStore) Delete(ctx context.Context, entityType, entityID string, clientVersion int64) (Change, error) {
	return s.write(ctx, entityType, entityID, nil, clientVersion, true)
}

func (s *GormStore) write(ctx context.Context, entityType, entityID string, payload json.RawMessage, clientVersion int64, deleted bool) (Change, error) {
	var out Change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.SyncRecord
		result := tx.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
			Take(&current)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to load current row: %w", result.Error)
			}
			if deleted {
				// Never uploaded: nothing to tombstone.
				out = Change{EntityType: entityType, EntityID: entityID, Action: ActionDelete}
				return nil
			}
			row := models.SyncRecord{
				EntityType:      entityType,
				EntityID:        entityID,
				Version:         clientVersion + 1,
				Payload:         payload,
				ServerUpdatedAt: time.Now().UTC(),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert row: %w", err)
			}
			out = changeFromRecord(row)
			return nil
		}

		if current.Version > clientVersion {
			return &VersionConflictError{Current: changeFromRecord(current)}
		}

		current.Version++
		current.Deleted = deleted
		current.Payload = payload
		current.ServerUpdatedAt = time.Now().UTC()
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("failed to update row: %w", err)
		}
		out = changeFromRecord(current)
		return nil
	})
	if err != nil {
		return Change{}, err
	}
	return out, nil
}

// Publish applies a server-originated write, bypassing the version check:
// the server is authoritative for its own projections (user subscription
// state recomputed after license mutations).
func (s *GormStore) Publish(ctx context.Context, entityType, entityID string, payload json.RawMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.SyncRecord
		result := tx.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
			Take(&current)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to load current row: %w", result.Error)
			}
			row := models.SyncRecord{
				EntityType:      entityType,
				EntityID:        entityID,
				Version:         1,
				Payload:         payload,
				ServerUpdatedAt: time.Now().UTC(),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to insert row: %w", err)
			}
			return nil
		}
		current.Version++
		current.Deleted = false
		current.Payload = payload
		current.ServerUpdatedAt = time.Now().UTC()
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("failed to update row: %w", err)
		}
		return nil
	})
}

func changeFromRecord(row models.SyncRecord) Change {
	action := ActionUpsert
	if row.Deleted {
		action = ActionDelete
	}
	return Change{
		EntityType: row.EntityType,
		EntityID:   row.EntityID,
		Action:     action,
		Payload:    row.Payload,
		Version:    row.Version,
		UpdatedAt:  row.ServerUpdatedAt,
	}
}
