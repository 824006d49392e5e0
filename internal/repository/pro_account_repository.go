package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/motium/motium-sync/internal/models"
)

type ProAccountRepository struct {
	db *gorm.DB
}

func NewProAccountRepository(db *gorm.DB) *ProAccountRepository {
	return &ProAccountRepository{db: db}
}

// GetByID retrieves a pro account by id
func (r *ProAccountRepository) GetByID(ctx context.Context, tenantID string) (*models.ProAccount, error) {
	var acc models.ProAccount
	result := r.db.WithContext(ctx).Where("id = ?", tenantID).Take(&acc)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load pro account %s: %w", tenantID, result.Error)
	}
	return &acc, nil
}

// UpdateStatus updates the tenant status
func (r *ProAccountRepository) UpdateStatus(ctx context.Context, tenantID string, status models.ProAccountStatus) error {
	result := r.db.WithContext(ctx).Model(&models.ProAccount{}).
		Where("id = ?", tenantID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update pro account %s: %w", tenantID, result.Error)
	}
	return nil
}
