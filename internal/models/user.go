package models

import "time"

type SubscriptionType string

const (
	SubscriptionTrial    SubscriptionType = "TRIAL"
	SubscriptionPremium  SubscriptionType = "PREMIUM"
	SubscriptionLifetime SubscriptionType = "LIFETIME"
	SubscriptionLicensed SubscriptionType = "LICENSED"
	SubscriptionExpired  SubscriptionType = "EXPIRED"
)

// User is the server-authoritative identity row. SubscriptionType is a cached
// projection of the license/subscription state machine, written exclusively by
// server-side logic and mirrored to clients through the delta feed.
type User struct {
	ID                    string           `gorm:"column:id;primaryKey"`
	Email                 string           `gorm:"column:email;uniqueIndex"`
	DisplayName           string           `gorm:"column:display_name"`
	SubscriptionType      SubscriptionType `gorm:"column:subscription_type"`
	SubscriptionExpiresAt *time.Time       `gorm:"column:subscription_expires_at"`
	SubscriptionRef       *string          `gorm:"column:subscription_ref"`
	TrialStartedAt        *time.Time       `gorm:"column:trial_started_at"`
	TrialEndsAt           *time.Time       `gorm:"column:trial_ends_at"`
	CreatedAt             time.Time        `gorm:"column:created_at"`
	UpdatedAt             time.Time        `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}
