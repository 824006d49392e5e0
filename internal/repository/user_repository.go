package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/motium/motium-sync/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("id = ?", userID).Take(&user)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, result.Error)
	}
	return &user, nil
}

// GetBySubscriptionRef retrieves the user holding a provider subscription
func (r *UserRepository) GetBySubscriptionRef(ctx context.Context, ref string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).Where("subscription_ref = ?", ref).Take(&user)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load user by subscription ref: %w", result.Error)
	}
	return &user, nil
}

// UpdateSubscription writes the cached subscription projection for a user
func (r *UserRepository) UpdateSubscription(ctx context.Context, userID string, subType models.SubscriptionType, expiresAt *time.Time, subscriptionRef *string) error {
	updates := map[string]interface{}{
		"subscription_type":       subType,
		"subscription_expires_at": expiresAt,
		"updated_at":              time.Now().UTC(),
	}
	if subscriptionRef != nil {
		updates["subscription_ref"] = subscriptionRef
	}
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update subscription for user %s: %w", userID, result.Error)
	}
	return nil
}
