package models

import "time"

type ProAccountStatus string

const (
	ProAccountTrial     ProAccountStatus = "trial"
	ProAccountActive    ProAccountStatus = "active"
	ProAccountExpired   ProAccountStatus = "expired"
	ProAccountSuspended ProAccountStatus = "suspended"
)

// ProAccount is an enterprise tenant owning a pool of licenses. All
// grace-period license transitions for the tenant are batch-processed at
// BillingAnchorDay, driven by the provider's recurring invoice events.
type ProAccount struct {
	ID               string           `gorm:"column:id;primaryKey"`
	Name             string           `gorm:"column:name"`
	Status           ProAccountStatus `gorm:"column:status"`
	BillingAnchorDay int              `gorm:"column:billing_anchor_day"`
	SubscriptionRef  *string          `gorm:"column:subscription_ref"`
	TrialEndsAt      *time.Time       `gorm:"column:trial_ends_at"`
	CreatedAt        time.Time        `gorm:"column:created_at"`
	UpdatedAt        time.Time        `gorm:"column:updated_at"`
}

func (ProAccount) TableName() string {
	return "pro_accounts"
}

type LicenseStatus string

const (
	LicenseAvailable LicenseStatus = "available"
	LicensePending   LicenseStatus = "pending"
	LicenseActive    LicenseStatus = "active"
	LicenseSuspended LicenseStatus = "suspended"
	LicenseCanceled  LicenseStatus = "canceled"
	LicenseUnlinked  LicenseStatus = "unlinked"
)

// License is a unit of entitlement pooled under a ProAccount.
//
// Canceled and unlinked licenses keep serving their collaborator until the
// tenant's billing-anchor batch run. At that run a lifetime license returns
// to the pool as available while a monthly license is deleted outright: its
// payment relationship terminated, so there is nothing left to recycle.
type License struct {
	ID                     string        `gorm:"column:id;primaryKey"`
	ProAccountID           string        `gorm:"column:pro_account_id;index"`
	Status                 LicenseStatus `gorm:"column:status;index"`
	IsLifetime             bool          `gorm:"column:is_lifetime"`
	LinkedAccountID        *string       `gorm:"column:linked_account_id;index"`
	PendingSubscriptionRef *string       `gorm:"column:pending_subscription_ref"`
	UnlinkRequestedAt      *time.Time    `gorm:"column:unlink_requested_at"`
	UnlinkEffectiveAt      *time.Time    `gorm:"column:unlink_effective_at"`
	BillingStartsAt        *time.Time    `gorm:"column:billing_starts_at"`
	CreatedAt              time.Time     `gorm:"column:created_at"`
	UpdatedAt              time.Time     `gorm:"column:updated_at"`
}

func (License) TableName() string {
	return "licenses"
}

// Serving reports whether the license currently entitles its linked
// collaborator. Suspended, canceled and unlinked licenses keep serving until
// the tenant's batch run resolves them.
func (l *License) Serving() bool {
	if l.LinkedAccountID == nil {
		return false
	}
	switch l.Status {
	case LicenseActive, LicenseSuspended, LicenseCanceled, LicenseUnlinked:
		return true
	}
	return false
}
