package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/motium/motium-sync/internal/models"
)

type RejectReason string

const (
	RejectLicenseNotAvailable     RejectReason = "LICENSE_NOT_AVAILABLE"
	RejectCollaboratorHasLifetime RejectReason = "COLLABORATOR_HAS_LIFETIME"
	RejectAlreadyLicensed         RejectReason = "ALREADY_LICENSED"
)

type AssignmentStatus string

const (
	AssignmentAssigned            AssignmentStatus = "assigned"
	AssignmentPendingCancellation AssignmentStatus = "pending_cancellation"
	AssignmentRejected            AssignmentStatus = "rejected"
)

// AssignmentResult is the typed outcome of an assignment request. Business
// rejections are values the caller branches on, not errors; PendingCancellation
// carries the provider subscription that must be canceled before the
// assignment can be finalized.
type AssignmentResult struct {
	Status          AssignmentStatus `json:"status"`
	Reason          RejectReason     `json:"reason,omitempty"`
	SubscriptionRef string           `json:"subscription_ref,omitempty"`
}

func rejected(reason RejectReason) AssignmentResult {
	return AssignmentResult{Status: AssignmentRejected, Reason: reason}
}

type userStore interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, userID string, subType models.SubscriptionType, expiresAt *time.Time, subscriptionRef *string) error
}

type licenseStore interface {
	GetByID(ctx context.Context, licenseID string) (*models.License, error)
	GetServingByAccount(ctx context.Context, accountID string) (*models.License, error)
	GetPendingBySubscriptionRef(ctx context.Context, ref string) (*models.License, error)
	ListByTenant(ctx context.Context, tenantID string) ([]models.License, error)
	Save(ctx context.Context, lic *models.License) error
	Delete(ctx context.Context, licenseID string) error
}

type tenantStore interface {
	GetByID(ctx context.Context, tenantID string) (*models.ProAccount, error)
	UpdateStatus(ctx context.Context, tenantID string, status models.ProAccountStatus) error
}

// projectionPublisher pushes server-authoritative rows into the delta feed
// so clients pick them up on their next download pass.
type projectionPublisher interface {
	Publish(ctx context.Context, entityType, entityID string, payload json.RawMessage) error
}

// LicenseService is the license/subscription state machine. Every transition
// ends by recomputing the affected user's cached subscription type and
// publishing it as an explicit step instead of a database trigger.
type LicenseService struct {
	users     userStore
	licenses  licenseStore
	tenants   tenantStore
	publisher projectionPublisher
	logger    *log.Logger
}

func NewLicenseService(users userStore, licenses licenseStore, tenants tenantStore, publisher projectionPublisher, logger *log.Logger) *LicenseService {
	if logger == nil {
		logger = log.Default()
	}
	return &LicenseService{
		users:     users,
		licenses:  licenses,
		tenants:   tenants,
		publisher: publisher,
		logger:    logger,
	}
}

// AssignLicense assigns an available license to a collaborator.
//
// A PREMIUM collaborator cannot be assigned directly: overriding an active
// paid subscription would double-charge or orphan the provider subscription.
// The license is parked in pending and the caller receives the subscription
// to cancel; FinalizeLicenseAssignment completes the handshake once the
// provider confirms the cancellation.
func (s *LicenseService) AssignLicense(ctx context.Context, licenseID, collaboratorID, tenantID string) (AssignmentResult, error) {
	lic, err := s.licenses.GetByID(ctx, licenseID)
	if err != nil {
		return AssignmentResult{}, err
	}
	if lic.ProAccountID != tenantID {
		return AssignmentResult{}, fmt.Errorf("license %s does not belong to tenant %s", licenseID, tenantID)
	}
	if lic.Status != models.LicenseAvailable {
		return rejected(RejectLicenseNotAvailable), nil
	}

	user, err := s.users.GetByID(ctx, collaboratorID)
	if err != nil {
		return AssignmentResult{}, err
	}
	if user.SubscriptionType == models.SubscriptionLifetime {
		return rejected(RejectCollaboratorHasLifetime), nil
	}
	if user.SubscriptionType == models.SubscriptionLicensed {
		return rejected(RejectAlreadyLicensed), nil
	}
	serving, err := s.licenses.GetServingByAccount(ctx, collaboratorID)
	if err != nil {
		return AssignmentResult{}, err
	}
	if serving != nil {
		return rejected(RejectAlreadyLicensed), nil
	}

	now := time.Now().UTC()

	if user.SubscriptionType == models.SubscriptionPremium {
		ref := ""
		if user.SubscriptionRef != nil {
			ref = *user.SubscriptionRef
		}
		lic.Status = models.LicensePending
		lic.LinkedAccountID = &collaboratorID
		lic.PendingSubscriptionRef = &ref
		lic.UpdatedAt = now
		if err := s.licenses.Save(ctx, lic); err != nil {
			return AssignmentResult{}, err
		}
		s.logger.Printf("License %s pending for %s until subscription %s cancels", licenseID, collaboratorID, ref)
		return AssignmentResult{Status: AssignmentPendingCancellation, SubscriptionRef: ref}, nil
	}

	lic.Status = models.LicenseActive
	lic.LinkedAccountID = &collaboratorID
	lic.BillingStartsAt = &now
	lic.UpdatedAt = now
	if err := s.licenses.Save(ctx, lic); err != nil {
		return AssignmentResult{}, err
	}
	if err := s.RecomputeSubscriptionType(ctx, collaboratorID); err != nil {
		return AssignmentResult{}, err
	}
	s.logger.Printf("License %s assigned to %s", licenseID, collaboratorID)
	return AssignmentResult{Status: AssignmentAssigned}, nil
}

// FinalizeLicenseAssignment completes the two-phase handshake after the
// collaborator's recurring subscription was confirmed canceled.
func (s *LicenseService) FinalizeLicenseAssignment(ctx context.Context, licenseID, collaboratorID string) error {
	lic, err := s.licenses.GetByID(ctx, licenseID)
	if err != nil {
		return err
	}
	if lic.Status != models.LicensePending || lic.LinkedAccountID == nil || *lic.LinkedAccountID != collaboratorID {
		return fmt.Errorf("license %s has no pending assignment for %s", licenseID, collaboratorID)
	}

	now := time.Now().UTC()
	lic.Status = models.LicenseActive
	lic.PendingSubscriptionRef = nil
	lic.BillingStartsAt = &now
	lic.UpdatedAt = now
	if err := s.licenses.Save(ctx, lic); err != nil {
		return err
	}
	s.logger.Printf("License %s assignment finalized for %s", licenseID, collaboratorID)
	return s.RecomputeSubscriptionType(ctx, collaboratorID)
}

// CancelLicense marks a license canceled. An assigned license keeps serving
// its collaborator until the tenant's billing-anchor batch; a license still
// in the pending handshake is voided straight back to the pool.
func (s *LicenseService) CancelLicense(ctx context.Context, licenseID, tenantID string) error {
	lic, err := s.licenses.GetByID(ctx, licenseID)
	if err != nil {
		return err
	}
	if lic.ProAccountID != tenantID {
		return fmt.Errorf("license %s does not belong to tenant %s", licenseID, tenantID)
	}

	now := time.Now().UTC()
	wasAssigned := lic.LinkedAccountID != nil
	switch lic.Status {
	case models.LicensePending:
		lic.Status = models.LicenseAvailable
		lic.LinkedAccountID = nil
		lic.PendingSubscriptionRef = nil
	case models.LicenseActive, models.LicenseSuspended:
		lic.Status = models.LicenseCanceled
	case models.LicenseAvailable:
		lic.Status = models.LicenseCanceled
	default:
		return fmt.Errorf("license %s cannot be canceled from status %s", licenseID, lic.Status)
	}
	lic.UpdatedAt = now
	if err := s.licenses.Save(ctx, lic); err != nil {
		return err
	}
	s.logger.Printf("License %s canceled (was assigned: %v)", licenseID, wasAssigned)
	return nil
}

// UnlinkCollaborator detaches a collaborator from a license at the next
// billing-anchor date. The collaborator keeps the entitlement through the
// grace period.
func (s *LicenseService) UnlinkCollaborator(ctx context.Context, licenseID, tenantID string) error {
	lic, err := s.licenses.GetByID(ctx, licenseID)
	if err != nil {
		return err
	}
	if lic.ProAccountID != tenantID {
		return fmt.Errorf("license %s does not belong to tenant %s", licenseID, tenantID)
	}
	if lic.Status != models.LicenseActive || lic.LinkedAccountID == nil {
		return fmt.Errorf("license %s is not actively assigned", licenseID)
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	effective := nextAnchorDate(tenant.BillingAnchorDay, now)
	lic.Status = models.LicenseUnlinked
	lic.UnlinkRequestedAt = &now
	lic.UnlinkEffectiveAt = &effective
	lic.UpdatedAt = now
	if err := s.licenses.Save(ctx, lic); err != nil {
		return err
	}
	s.logger.Printf("License %s unlinked, effective %s", licenseID, effective.Format(time.RFC3339))
	return nil
}

// ProcessRenewalBatch runs the tenant's billing-anchor batch, driven by the
// provider's recurring invoice event.
//
// On success every canceled or unlinked license is terminated per the
// lifetime/monthly asymmetry: lifetime licenses return to the pool as
// available, monthly licenses are deleted outright. Stale pending handshakes
// are voided and suspended licenses reactivate. On failure every monthly
// license is suspended; lifetime licenses were paid in full and are left
// untouched.
func (s *LicenseService) ProcessRenewalBatch(ctx context.Context, tenantID string, paid bool) error {
	lics, err := s.licenses.ListByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	if !paid {
		for i := range lics {
			lic := &lics[i]
			if lic.IsLifetime {
				continue
			}
			switch lic.Status {
			case models.LicenseActive, models.LicenseAvailable:
				lic.Status = models.LicenseSuspended
				lic.UpdatedAt = now
				if err := s.licenses.Save(ctx, lic); err != nil {
					return err
				}
			}
		}
		s.logger.Printf("Tenant %s renewal failed: monthly licenses suspended", tenantID)
		return s.tenants.UpdateStatus(ctx, tenantID, models.ProAccountSuspended)
	}

	for i := range lics {
		lic := &lics[i]
		switch lic.Status {
		case models.LicenseCanceled, models.LicenseUnlinked:
			linked := lic.LinkedAccountID
			if lic.IsLifetime {
				lic.Status = models.LicenseAvailable
				lic.LinkedAccountID = nil
				lic.PendingSubscriptionRef = nil
				lic.UnlinkRequestedAt = nil
				lic.UnlinkEffectiveAt = nil
				lic.UpdatedAt = now
				if err := s.licenses.Save(ctx, lic); err != nil {
					return err
				}
			} else {
				if err := s.licenses.Delete(ctx, lic.ID); err != nil {
					return err
				}
			}
			if linked != nil {
				if err := s.RecomputeSubscriptionType(ctx, *linked); err != nil {
					return err
				}
			}
		case models.LicensePending:
			// Handshake never finalized before the anchor date: void it.
			lic.Status = models.LicenseAvailable
			lic.LinkedAccountID = nil
			lic.PendingSubscriptionRef = nil
			lic.UpdatedAt = now
			if err := s.licenses.Save(ctx, lic); err != nil {
				return err
			}
		case models.LicenseSuspended:
			if lic.LinkedAccountID != nil {
				lic.Status = models.LicenseActive
			} else {
				lic.Status = models.LicenseAvailable
			}
			lic.UpdatedAt = now
			if err := s.licenses.Save(ctx, lic); err != nil {
				return err
			}
		}
	}

	s.logger.Printf("Tenant %s renewal batch processed", tenantID)
	return s.tenants.UpdateStatus(ctx, tenantID, models.ProAccountActive)
}

// RegularizePayment is the manual remediation path after a failed tenant
// renewal: suspended licenses reactivate and the tenant returns to active,
// with no license data lost.
func (s *LicenseService) RegularizePayment(ctx context.Context, tenantID string) error {
	lics, err := s.licenses.ListByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range lics {
		lic := &lics[i]
		if lic.Status != models.LicenseSuspended {
			continue
		}
		if lic.LinkedAccountID != nil {
			lic.Status = models.LicenseActive
		} else {
			lic.Status = models.LicenseAvailable
		}
		lic.UpdatedAt = now
		if err := s.licenses.Save(ctx, lic); err != nil {
			return err
		}
	}
	s.logger.Printf("Tenant %s payment regularized", tenantID)
	return s.tenants.UpdateStatus(ctx, tenantID, models.ProAccountActive)
}

// RecomputeSubscriptionType derives the user's cached subscription type from
// license state and publishes the projection into the delta feed. LICENSED is
// entered only while a license serves the user and exits only to EXPIRED.
func (s *LicenseService) RecomputeSubscriptionType(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	serving, err := s.licenses.GetServingByAccount(ctx, userID)
	if err != nil {
		return err
	}

	switch {
	case serving != nil && user.SubscriptionType != models.SubscriptionLicensed:
		user.SubscriptionType = models.SubscriptionLicensed
		if err := s.users.UpdateSubscription(ctx, userID, models.SubscriptionLicensed, nil, nil); err != nil {
			return err
		}
	case serving == nil && user.SubscriptionType == models.SubscriptionLicensed:
		user.SubscriptionType = models.SubscriptionExpired
		user.SubscriptionExpiresAt = nil
		if err := s.users.UpdateSubscription(ctx, userID, models.SubscriptionExpired, nil, nil); err != nil {
			return err
		}
	}

	return s.publishUser(ctx, user)
}

// publishUser mirrors the authoritative user row into the changes feed.
func (s *LicenseService) publishUser(ctx context.Context, user *models.User) error {
	projection := map[string]interface{}{
		"id":                      user.ID,
		"email":                   user.Email,
		"display_name":            user.DisplayName,
		"subscription_type":       string(user.SubscriptionType),
		"subscription_expires_at": user.SubscriptionExpiresAt,
		"trial_started_at":        user.TrialStartedAt,
		"trial_ends_at":           user.TrialEndsAt,
	}
	payload, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("failed to encode user projection: %w", err)
	}
	return s.publisher.Publish(ctx, "users", user.ID, payload)
}

// PublishUserProjection re-reads a user and mirrors the current row into the
// changes feed. Used by the webhook processor after individual subscription
// transitions that bypass license state.
func (s *LicenseService) PublishUserProjection(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.publishUser(ctx, user)
}

// CheckPremiumAccess reports whether a user currently has premium access.
func (s *LicenseService) CheckPremiumAccess(ctx context.Context, userID string) (AccessResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return AccessResult{}, err
	}
	return EvaluateAccess(user.SubscriptionType, user.SubscriptionExpiresAt, user.TrialEndsAt, time.Now().UTC()), nil
}

// nextAnchorDate returns the next occurrence of the tenant's billing anchor
// day strictly after from, clamped to the target month's length.
func nextAnchorDate(anchorDay int, from time.Time) time.Time {
	if anchorDay < 1 {
		anchorDay = 1
	}
	year, month, _ := from.Date()
	candidate := anchoredDay(year, month, anchorDay, from.Location())
	if !candidate.After(from) {
		month++
		if month > time.December {
			month = time.January
			year++
		}
		candidate = anchoredDay(year, month, anchorDay, from.Location())
	}
	return candidate
}

func anchoredDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
