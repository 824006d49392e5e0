package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/motium/motium-sync/internal/models"
)

// watermarkEpoch is the zero watermark: a fresh entity type pulls everything.
var watermarkEpoch = time.Unix(0, 0).UTC()

// SyncMetadataRepository owns the per-entity-type watermark rows and the
// sync_in_progress mutual-exclusion flag.
type SyncMetadataRepository struct {
	db *gorm.DB
}

func NewSyncMetadataRepository(db *gorm.DB) *SyncMetadataRepository {
	return &SyncMetadataRepository{db: db}
}

// EnsureEntities creates missing metadata rows and clears any stale
// in-progress flag left behind by a crash. Called once at startup.
func (r *SyncMetadataRepository) EnsureEntities(ctx context.Context, entities []models.EntityDescriptor) error {
	now := time.Now().UTC()
	for _, ent := range entities {
		row := models.SyncMetadata{
			EntityType:        ent.Name,
			LastSyncTimestamp: watermarkEpoch,
			UpdatedAt:         now,
		}
		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row)
		if result.Error != nil {
			return fmt.Errorf("failed to ensure sync metadata for %s: %w", ent.Name, result.Error)
		}
	}

	result := r.db.WithContext(ctx).Model(&models.SyncMetadata{}).
		Where("sync_in_progress = ?", true).
		Updates(map[string]interface{}{"sync_in_progress": false, "updated_at": now})
	if result.Error != nil {
		return fmt.Errorf("failed to clear stale sync flags: %w", result.Error)
	}
	return nil
}

// Begin tries to acquire the per-type sync guard with a compare-and-set.
// acquired=false means a pass for this entity type is already running and
// the caller must back off rather than queue behind it.
func (r *SyncMetadataRepository) Begin(ctx context.Context, entityType string) (bool, models.SyncMetadata, error) {
	result := r.db.WithContext(ctx).Model(&models.SyncMetadata{}).
		Where("entity_type = ? AND sync_in_progress = ?", entityType, false).
		Updates(map[string]interface{}{
			"sync_in_progress": true,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return false, models.SyncMetadata{}, fmt.Errorf("failed to acquire sync guard: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, models.SyncMetadata{}, nil
	}

	var meta models.SyncMetadata
	if err := r.db.WithContext(ctx).
		Where("entity_type = ?", entityType).
		Take(&meta).Error; err != nil {
		return false, models.SyncMetadata{}, fmt.Errorf("failed to load sync metadata: %w", err)
	}
	return true, meta, nil
}

// Finish releases the guard. The watermark is only advanced when the caller
// passes a non-nil value, i.e. after a fully applied download batch.
func (r *SyncMetadataRepository) Finish(ctx context.Context, entityType string, watermark *time.Time, applied int64, syncErr error) error {
	updates := map[string]interface{}{
		"sync_in_progress": false,
		"updated_at":       time.Now().UTC(),
	}
	if watermark != nil {
		updates["last_sync_timestamp"] = *watermark
	}
	if applied > 0 {
		updates["total_synced"] = gorm.Expr("total_synced + ?", applied)
	}
	if syncErr != nil {
		msg := syncErr.Error()
		updates["last_sync_error"] = &msg
	} else {
		updates["last_sync_error"] = nil
	}

	result := r.db.WithContext(ctx).Model(&models.SyncMetadata{}).
		Where("entity_type = ?", entityType).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to finish sync pass: %w", result.Error)
	}
	return nil
}

// ForceFullSync rewinds the watermark so the next pass re-downloads
// everything for the entity type. Pull-to-refresh repair path.
func (r *SyncMetadataRepository) ForceFullSync(ctx context.Context, entityType string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.SyncMetadata{}).
		Where("entity_type = ?", entityType).
		Updates(map[string]interface{}{
			"last_sync_timestamp":      watermarkEpoch,
			"last_full_sync_timestamp": &now,
			"updated_at":               now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to schedule full sync: %w", result.Error)
	}
	return nil
}

// Get returns the metadata row for an entity type.
func (r *SyncMetadataRepository) Get(ctx context.Context, entityType string) (models.SyncMetadata, error) {
	var meta models.SyncMetadata
	if err := r.db.WithContext(ctx).
		Where("entity_type = ?", entityType).
		Take(&meta).Error; err != nil {
		return models.SyncMetadata{}, fmt.Errorf("failed to load sync metadata: %w", err)
	}
	return meta, nil
}
