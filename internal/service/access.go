package service

import (
	"time"

	"github.com/motium/motium-sync/internal/models"
)

const (
	ReasonTrialExpired        = "TRIAL_EXPIRED"
	ReasonSubscriptionExpired = "SUBSCRIPTION_EXPIRED"
)

// AccessResult is the answer to a premium-access check.
type AccessResult struct {
	HasAccess bool   `json:"has_access"`
	Reason    string `json:"reason,omitempty"`
}

// EvaluateAccess decides premium access from cached subscription state. It is
// shared by the server's CheckPremiumAccess RPC and the agent's offline gate
// over the locally cached user row.
//
// LICENSED always grants: a suspended, canceled or unlinked license keeps
// serving its collaborator until the tenant's billing-anchor batch flips the
// user to EXPIRED, so the cached type alone is decisive.
func EvaluateAccess(subType models.SubscriptionType, expiresAt, trialEndsAt *time.Time, now time.Time) AccessResult {
	switch subType {
	case models.SubscriptionLifetime, models.SubscriptionLicensed:
		return AccessResult{HasAccess: true}
	case models.SubscriptionPremium:
		if expiresAt == nil || expiresAt.After(now) {
			return AccessResult{HasAccess: true}
		}
		return AccessResult{Reason: ReasonSubscriptionExpired}
	case models.SubscriptionTrial:
		if trialEndsAt == nil || trialEndsAt.After(now) {
			return AccessResult{HasAccess: true}
		}
		return AccessResult{Reason: ReasonTrialExpired}
	default:
		return AccessResult{Reason: ReasonSubscriptionExpired}
	}
}
