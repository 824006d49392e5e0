package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/motium/motium-sync/internal/models"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create records a successful charge
func (r *PaymentRepository) Create(ctx context.Context, payment models.Payment) error {
	if err := r.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

// CountByEvent returns the number of payment rows produced by one provider event
func (r *PaymentRepository) CountByEvent(ctx context.Context, eventID string) (int64, error) {
	var n int64
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("event_id = ?", eventID).
		Count(&n)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count payments: %w", result.Error)
	}
	return n, nil
}
