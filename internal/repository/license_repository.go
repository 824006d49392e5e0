package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/motium/motium-sync/internal/models"
)

type LicenseRepository struct {
	db *gorm.DB
}

func NewLicenseRepository(db *gorm.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

// GetByID retrieves a license by id
func (r *LicenseRepository) GetByID(ctx context.Context, licenseID string) (*models.License, error) {
	var lic models.License
	result := r.db.WithContext(ctx).Where("id = ?", licenseID).Take(&lic)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load license %s: %w", licenseID, result.Error)
	}
	return &lic, nil
}

// GetServingByAccount returns the license currently entitling a collaborator,
// or nil when there is none. Suspended, canceled and unlinked licenses still
// serve until the tenant batch resolves them.
func (r *LicenseRepository) GetServingByAccount(ctx context.Context, accountID string) (*models.License, error) {
	var lic models.License
	result := r.db.WithContext(ctx).
		Where("linked_account_id = ? AND status IN ?", accountID, []models.LicenseStatus{
			models.LicenseActive,
			models.LicenseSuspended,
			models.LicenseCanceled,
			models.LicenseUnlinked,
		}).
		Take(&lic)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load serving license: %w", result.Error)
	}
	return &lic, nil
}

// GetPendingBySubscriptionRef returns the license parked in the two-phase
// assignment handshake for a provider subscription, or nil.
func (r *LicenseRepository) GetPendingBySubscriptionRef(ctx context.Context, ref string) (*models.License, error) {
	var lic models.License
	result := r.db.WithContext(ctx).
		Where("status = ? AND pending_subscription_ref = ?", models.LicensePending, ref).
		Take(&lic)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load pending license: %w", result.Error)
	}
	return &lic, nil
}

// ListByTenant retrieves all licenses pooled under a pro account
func (r *LicenseRepository) ListByTenant(ctx context.Context, tenantID string) ([]models.License, error) {
	var lics []models.License
	result := r.db.WithContext(ctx).
		Where("pro_account_id = ?", tenantID).
		Order("created_at ASC").
		Find(&lics)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list tenant licenses: %w", result.Error)
	}
	return lics, nil
}

// Save persists a license
func (r *LicenseRepository) Save(ctx context.Context, lic *models.License) error {
	if err := r.db.WithContext(ctx).Save(lic).Error; err != nil {
		return fmt.Errorf("failed to save license %s: %w", lic.ID, err)
	}
	return nil
}

// Delete removes a license row outright (monthly license terminated at the
// tenant batch).
func (r *LicenseRepository) Delete(ctx context.Context, licenseID string) error {
	result := r.db.WithContext(ctx).Where("id = ?", licenseID).Delete(&models.License{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete license %s: %w", licenseID, result.Error)
	}
	return nil
}
