// Package webhook processes payment-provider events. The provider owns
// retry/redelivery; the processor owns idempotence, deduplicating on the
// provider's stable event id before any transition is applied.
package webhook

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/motium/motium-sync/internal/models"
)

// Provider event types.
const (
	EventCheckoutCompleted = "checkout.completed"
	EventInvoicePaid       = "invoice.paid"
	EventPaymentFailed     = "invoice.payment_failed"
	EventSubUpdated        = "subscription.updated"
	EventSubDeleted        = "subscription.deleted"
)

// Event scopes: whether the event concerns an individual subscription or a
// pooled-license tenant.
const (
	ScopeIndividual = "individual"
	ScopeTenant     = "tenant"
)

// Plans on individual checkouts.
const (
	PlanPremium  = "premium"
	PlanLifetime = "lifetime"
)

// Event is a payment-provider webhook delivery.
type Event struct {
	ID   string    `json:"id" binding:"required"`
	Type string    `json:"type" binding:"required"`
	Data EventData `json:"data"`
}

type EventData struct {
	Scope           string     `json:"scope"`
	UserID          string     `json:"user_id,omitempty"`
	TenantID        string     `json:"tenant_id,omitempty"`
	Plan            string     `json:"plan,omitempty"`
	SubscriptionRef string     `json:"subscription_ref,omitempty"`
	PeriodEnd       *time.Time `json:"period_end,omitempty"`
	Amount          float64    `json:"amount,omitempty"`
	Currency        string     `json:"currency,omitempty"`
}

type eventStore interface {
	Claim(ctx context.Context, eventID, eventType, scope string, payload models.JSONB) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type paymentStore interface {
	Create(ctx context.Context, payment models.Payment) error
}

type userStore interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	UpdateSubscription(ctx context.Context, userID string, subType models.SubscriptionType, expiresAt *time.Time, subscriptionRef *string) error
}

type tenantStore interface {
	UpdateStatus(ctx context.Context, tenantID string, status models.ProAccountStatus) error
}

type pendingLicenseStore interface {
	GetPendingBySubscriptionRef(ctx context.Context, ref string) (*models.License, error)
}

// licenseMachine is the slice of the license state machine the processor drives.
type licenseMachine interface {
	ProcessRenewalBatch(ctx context.Context, tenantID string, paid bool) error
	FinalizeLicenseAssignment(ctx context.Context, licenseID, collaboratorID string) error
	PublishUserProjection(ctx context.Context, userID string) error
}

type Processor struct {
	events   eventStore
	payments paymentStore
	users    userStore
	tenants  tenantStore
	licenses pendingLicenseStore
	machine  licenseMachine
	logger   *log.Logger
}

func New(events eventStore, payments paymentStore, users userStore, tenants tenantStore, licenses pendingLicenseStore, machine licenseMachine, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{
		events:   events,
		payments: payments,
		users:    users,
		tenants:  tenants,
		licenses: licenses,
		machine:  machine,
		logger:   logger,
	}
}

// Process applies one provider event. A redelivered event id is a no-op. On
// a processing failure the claim is released so the provider's own
// redelivery retries it; the processor keeps no retry queue of its own.
func (p *Processor) Process(ctx context.Context, ev Event) error {
	claimed, err := p.events.Claim(ctx, ev.ID, ev.Type, ev.Data.Scope, models.JSONB{
		"user_id":   ev.Data.UserID,
		"tenant_id": ev.Data.TenantID,
		"plan":      ev.Data.Plan,
	})
	if err != nil {
		return err
	}
	if !claimed {
		p.logger.Printf("Duplicate delivery of event %s, ignoring", ev.ID)
		return nil
	}

	if err := p.apply(ctx, ev); err != nil {
		if relErr := p.events.Release(ctx, ev.ID); relErr != nil {
			p.logger.Printf("Failed to release claim on event %s: %v", ev.ID, relErr)
		}
		return fmt.Errorf("failed to process event %s (%s): %w", ev.ID, ev.Type, err)
	}
	return nil
}

func (p *Processor) apply(ctx context.Context, ev Event) error {
	switch ev.Data.Scope {
	case ScopeTenant:
		return p.applyTenant(ctx, ev)
	case ScopeIndividual:
		return p.applyIndividual(ctx, ev)
	default:
		return fmt.Errorf("unknown event scope %q", ev.Data.Scope)
	}
}

func (p *Processor) applyIndividual(ctx context.Context, ev Event) error {
	userID := ev.Data.UserID
	if userID == "" {
		return fmt.Errorf("individual event %s missing user id", ev.ID)
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		ref := ev.Data.SubscriptionRef
		if ev.Data.Plan == PlanLifetime {
			if err := p.users.UpdateSubscription(ctx, userID, models.SubscriptionLifetime, nil, nil); err != nil {
				return err
			}
		} else {
			if err := p.users.UpdateSubscription(ctx, userID, models.SubscriptionPremium, ev.Data.PeriodEnd, &ref); err != nil {
				return err
			}
		}
		if err := p.recordPayment(ctx, ev, &userID, nil); err != nil {
			return err
		}
		return p.machine.PublishUserProjection(ctx, userID)

	case EventInvoicePaid:
		user, err := p.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		// LIFETIME is absorbing; a stray renewal invoice changes nothing.
		if user.SubscriptionType != models.SubscriptionLifetime {
			if err := p.users.UpdateSubscription(ctx, userID, models.SubscriptionPremium, ev.Data.PeriodEnd, nil); err != nil {
				return err
			}
		}
		if err := p.recordPayment(ctx, ev, &userID, nil); err != nil {
			return err
		}
		return p.machine.PublishUserProjection(ctx, userID)

	case EventPaymentFailed:
		// No grace period on individual plans: straight to EXPIRED.
		if err := p.users.UpdateSubscription(ctx, userID, models.SubscriptionExpired, nil, nil); err != nil {
			return err
		}
		return p.machine.PublishUserProjection(ctx, userID)

	case EventSubUpdated:
		user, err := p.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := p.users.UpdateSubscription(ctx, userID, user.SubscriptionType, ev.Data.PeriodEnd, nil); err != nil {
			return err
		}
		return p.machine.PublishUserProjection(ctx, userID)

	case EventSubDeleted:
		// A cancellation may be the second leg of the two-phase license
		// assignment handshake.
		if ev.Data.SubscriptionRef != "" {
			lic, err := p.licenses.GetPendingBySubscriptionRef(ctx, ev.Data.SubscriptionRef)
			if err != nil {
				return err
			}
			if lic != nil && lic.LinkedAccountID != nil {
				return p.machine.FinalizeLicenseAssignment(ctx, lic.ID, *lic.LinkedAccountID)
			}
		}
		if err := p.users.UpdateSubscription(ctx, userID, models.SubscriptionExpired, nil, nil); err != nil {
			return err
		}
		return p.machine.PublishUserProjection(ctx, userID)

	default:
		p.logger.Printf("Ignoring unhandled individual event type %s", ev.Type)
		return nil
	}
}

func (p *Processor) applyTenant(ctx context.Context, ev Event) error {
	tenantID := ev.Data.TenantID
	if tenantID == "" {
		return fmt.Errorf("tenant event %s missing tenant id", ev.ID)
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		if err := p.tenants.UpdateStatus(ctx, tenantID, models.ProAccountActive); err != nil {
			return err
		}
		return p.recordPayment(ctx, ev, nil, &tenantID)

	case EventInvoicePaid:
		if err := p.machine.ProcessRenewalBatch(ctx, tenantID, true); err != nil {
			return err
		}
		return p.recordPayment(ctx, ev, nil, &tenantID)

	case EventPaymentFailed:
		return p.machine.ProcessRenewalBatch(ctx, tenantID, false)

	case EventSubDeleted:
		return p.tenants.UpdateStatus(ctx, tenantID, models.ProAccountExpired)

	default:
		p.logger.Printf("Ignoring unhandled tenant event type %s", ev.Type)
		return nil
	}
}

func (p *Processor) recordPayment(ctx context.Context, ev Event, userID, tenantID *string) error {
	return p.payments.Create(ctx, models.Payment{
		ID:           uuid.NewString(),
		EventID:      ev.ID,
		UserID:       userID,
		ProAccountID: tenantID,
		Amount:       ev.Data.Amount,
		Currency:     ev.Data.Currency,
		PaidAt:       time.Now().UTC(),
	})
}
