package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/billing"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/notifications"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/restaurants"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/config"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// restaurantActivator flips the restaurant access flag. WithTx binds the
// flip to the reconciler's transaction so the flag and the subscription
// state commit or roll back together.
type restaurantActivator interface {
	SetSubscriptionActive(ctx context.Context, id uuid.UUID, active bool) error
	WithTx(tx *gorm.DB) restaurants.Repository
}

type notifier interface {
	Notify(ctx context.Context, event notifications.Event)
}

// Service settles provider payments into subscription state.
type Service interface {
	// ConfirmPayment marks the payment succeeded, activates or extends the
	// subscription, records the invoice and flips the restaurant's access.
	// Confirming an already-succeeded payment is a no-op returning the
	// current state.
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*ConfirmResult, error)

	// MarkPaymentFailed records the failure without punishing a still-valid
	// subscription: access is only revoked when no other subscription
	// covers the restaurant inside the grace window.
	MarkPaymentFailed(ctx context.Context, providerSessionID, reason string) error

	// ExpirePending sweeps stale pending subscriptions and flips expired
	// active ones. It returns how many rows were touched.
	ExpirePending(ctx context.Context) (int, error)
}

// ConfirmPaymentInput identifies the provider session to settle.
type ConfirmPaymentInput struct {
	ProviderSessionID string
	ProviderInvoiceID string
	AmountPaidCents   int64
	PaymentMethod     string
	PaidAt            time.Time
}

// ConfirmResult reports what the confirmation did.
type ConfirmResult struct {
	Payment      *models.Payment
	Subscription *models.Subscription
	Renewed      bool
	Replayed     bool
}

type service struct {
	repo        billing.Repository
	tx          txRunner
	restaurants restaurantActivator
	sink        notifier
	metrics     *metrics.LoyaltyMetrics
	cfg         config.BillingConfig
	now         func() time.Time
}

// NewService wires the payment reconciler.
func NewService(
	repo billing.Repository,
	tx txRunner,
	restaurants restaurantActivator,
	sink notifier,
	m *metrics.LoyaltyMetrics,
	cfg config.BillingConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if restaurants == nil {
		return nil, fmt.Errorf("restaurant activator required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		restaurants: restaurants,
		sink:        sink,
		metrics:     m,
		cfg:         cfg,
		now:         time.Now,
	}, nil
}

func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*ConfirmResult, error) {
	sessionID := strings.TrimSpace(input.ProviderSessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider session id required")
	}

	started := s.now()

	payment, err := s.repo.FindPaymentByProviderSessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Replayed confirmations must not touch anything.
	if payment.Status == enums.PaymentStatusSucceeded {
		subscription, err := s.repo.FindSubscriptionByPaymentID(ctx, payment.ID)
		if err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
		return &ConfirmResult{Payment: payment, Subscription: subscription, Replayed: true}, nil
	}
	if payment.Status == enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already failed")
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	result := &ConfirmResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// The guarded transition locks the payment row and linearizes
		// concurrent deliveries of the same session: exactly one caller
		// flips created to succeeded, everyone else lands on the replay
		// path below.
		claimed, err := repo.TransitionPaymentStatus(ctx, payment.ID, enums.PaymentStatusCreated, enums.PaymentStatusSucceeded)
		if err != nil {
			return err
		}
		if !claimed {
			settled, err := repo.FindPaymentByID(ctx, payment.ID)
			if err != nil {
				return err
			}
			if settled.Status == enums.PaymentStatusFailed {
				return pkgerrors.New(pkgerrors.CodeConflict, "payment already failed")
			}
			subscription, err := repo.FindSubscriptionByPaymentID(ctx, settled.ID)
			if err != nil && !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return err
			}
			result.Payment = settled
			result.Subscription = subscription
			result.Replayed = true
			return nil
		}
		payment.Status = enums.PaymentStatusSucceeded
		result.Payment = payment

		pending, err := repo.FindSubscriptionByPaymentID(ctx, payment.ID)
		if err != nil {
			return err
		}

		plan, err := repo.FindPlanByID(ctx, pending.PlanID)
		if err != nil {
			return err
		}

		target, renewed, err := s.settleSubscription(ctx, repo, pending, plan, paidAt, input.PaymentMethod)
		if err != nil {
			return err
		}
		result.Subscription = target
		result.Renewed = renewed

		invoiceID := strings.TrimSpace(input.ProviderInvoiceID)
		if invoiceID == "" {
			// Cash and session-only providers have no invoice object; key a
			// synthetic one on the payment so the upsert stays idempotent.
			invoiceID = "manual_" + payment.ID.String()
		}
		amountPaid := input.AmountPaidCents
		if amountPaid <= 0 {
			amountPaid = payment.AmountCents
		}
		invoice := &models.Invoice{
			RestaurantID:      payment.RestaurantID,
			SubscriptionID:    target.ID,
			ProviderInvoiceID: invoiceID,
			AmountDueCents:    payment.AmountCents,
			AmountPaidCents:   amountPaid,
			Status:            enums.InvoiceStatusPaid,
			PeriodStart:       target.StartDate,
			PeriodEnd:         target.EndDate,
		}
		if err := repo.UpsertInvoiceByProviderID(ctx, invoice); err != nil {
			return err
		}

		return s.restaurants.WithTx(tx).SetSubscriptionActive(ctx, payment.RestaurantID, true)
	})
	if err != nil {
		return nil, err
	}
	if result.Replayed {
		return result, nil
	}

	s.metrics.ObserveConfirmDuration(string(payment.Provider), s.now().Sub(started))

	if s.sink != nil {
		restaurantID := payment.RestaurantID
		payload, _ := json.Marshal(map[string]any{
			"subscription_id": result.Subscription.ID,
			"payment_id":      payment.ID,
			"renewed":         result.Renewed,
		})
		s.sink.Notify(ctx, notifications.Event{
			RestaurantID: &restaurantID,
			Kind:         enums.NotificationKindSubscriptionActivated,
			Title:        "Subscription activated",
			Payload:      payload,
		})
	}

	return result, nil
}

// settleSubscription either activates the pending subscription or, when the
// restaurant already holds an active subscription on the same plan, extends
// that one and collapses the pending row into it.
func (s *service) settleSubscription(
	ctx context.Context,
	repo billing.Repository,
	pending *models.Subscription,
	plan *models.Plan,
	paidAt time.Time,
	paymentMethod string,
) (*models.Subscription, bool, error) {
	active, err := repo.ListSubscriptionsByRestaurantPlanStatus(
		ctx, pending.RestaurantID, pending.PlanID, enums.SubscriptionStatusActive,
	)
	if err != nil {
		return nil, false, err
	}

	var current *models.Subscription
	for i := range active {
		candidate := &active[i]
		// The pending row itself can already be active when a duplicate
		// delivery settled it first; extending and then deleting it would
		// drop the subscription entirely.
		if candidate.ID == pending.ID {
			continue
		}
		if candidate.EndDate != nil && candidate.EndDate.After(paidAt) {
			current = candidate
			break
		}
	}

	if current != nil {
		end := current.EndDate.Add(plan.Duration())
		current.EndDate = &end
		current.PaymentStatus = enums.InvoiceStatusPaid
		if paymentMethod != "" {
			current.PaymentMethod = &paymentMethod
		}
		if err := repo.UpdateSubscription(ctx, current); err != nil {
			return nil, false, err
		}
		// The pending row was only a placeholder for this renewal.
		if err := repo.DeleteSubscription(ctx, pending.ID); err != nil {
			return nil, false, err
		}
		return current, true, nil
	}

	start := paidAt
	end := paidAt.Add(plan.Duration())
	pending.StartDate = &start
	pending.EndDate = &end
	pending.Status = enums.SubscriptionStatusActive
	pending.PaymentStatus = enums.InvoiceStatusPaid
	if paymentMethod != "" {
		pending.PaymentMethod = &paymentMethod
	}
	if err := repo.UpdateSubscription(ctx, pending); err != nil {
		return nil, false, err
	}
	return pending, false, nil
}

func (s *service) MarkPaymentFailed(ctx context.Context, providerSessionID, reason string) error {
	sessionID := strings.TrimSpace(providerSessionID)
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider session id required")
	}

	payment, err := s.repo.FindPaymentByProviderSessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if payment.Status == enums.PaymentStatusFailed {
		return nil
	}
	if payment.Status == enums.PaymentStatusSucceeded {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment already succeeded")
	}

	now := s.now()
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		claimed, err := repo.TransitionPaymentStatus(ctx, payment.ID, enums.PaymentStatusCreated, enums.PaymentStatusFailed)
		if err != nil {
			return err
		}
		if !claimed {
			settled, err := repo.FindPaymentByID(ctx, payment.ID)
			if err != nil {
				return err
			}
			if settled.Status == enums.PaymentStatusFailed {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "payment already succeeded")
		}
		payment.Status = enums.PaymentStatusFailed

		pending, err := repo.FindSubscriptionByPaymentID(ctx, payment.ID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return nil
			}
			return err
		}
		pending.Status = enums.SubscriptionStatusCancelled
		pending.PaymentStatus = enums.InvoiceStatusFailed
		if err := repo.UpdateSubscription(ctx, pending); err != nil {
			return err
		}

		// The failure leaves an invoice trail too, keyed the same way as a
		// successful settle so a later retry of the session stays idempotent.
		invoice := &models.Invoice{
			RestaurantID:      payment.RestaurantID,
			SubscriptionID:    pending.ID,
			ProviderInvoiceID: "manual_" + payment.ID.String(),
			AmountDueCents:    payment.AmountCents,
			AmountPaidCents:   0,
			Status:            enums.InvoiceStatusFailed,
		}
		if err := repo.UpsertInvoiceByProviderID(ctx, invoice); err != nil {
			return err
		}

		// A failed renewal must not cut off a restaurant that still holds a
		// valid subscription, and an expiring one keeps access through the
		// grace window.
		covered, err := s.hasCoverage(ctx, repo, payment.RestaurantID, now)
		if err != nil {
			return err
		}
		if !covered {
			return s.restaurants.WithTx(tx).SetSubscriptionActive(ctx, payment.RestaurantID, false)
		}
		return nil
	})
}

func (s *service) hasCoverage(ctx context.Context, repo billing.Repository, restaurantID uuid.UUID, at time.Time) (bool, error) {
	subs, err := repo.ListSubscriptionsByRestaurant(ctx, restaurantID)
	if err != nil {
		return false, err
	}
	horizon := at.Add(-s.cfg.RenewalGraceWindow)
	for _, sub := range subs {
		if sub.Status != enums.SubscriptionStatusActive || sub.EndDate == nil {
			continue
		}
		if sub.EndDate.After(horizon) {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) ExpirePending(ctx context.Context) (int, error) {
	now := s.now()
	touched := 0
	var errs error

	if s.cfg.PendingSubscriptionTTL > 0 {
		cutoff := now.Add(-s.cfg.PendingSubscriptionTTL)
		stale, err := s.repo.ListPendingSubscriptionsOlderThan(ctx, cutoff, 0)
		if err != nil {
			return 0, err
		}
		for i := range stale {
			sub := &stale[i]
			sub.Status = enums.SubscriptionStatusExpired
			if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire pending subscription %s: %w", sub.ID, err))
				continue
			}
			touched++
		}
	}

	// Active subscriptions keep granting access through the grace window
	// after their end date, then get flipped here.
	cutoff := now.Add(-s.cfg.RenewalGraceWindow)
	ended, err := s.repo.ListActiveSubscriptionsEndedBefore(ctx, cutoff, 0)
	if err != nil {
		return touched, multierr.Append(errs, err)
	}
	for i := range ended {
		sub := &ended[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			sub.Status = enums.SubscriptionStatusExpired
			if err := repo.UpdateSubscription(ctx, sub); err != nil {
				return err
			}
			covered, err := s.hasCoverage(ctx, repo, sub.RestaurantID, now)
			if err != nil {
				return err
			}
			if !covered {
				return s.restaurants.WithTx(tx).SetSubscriptionActive(ctx, sub.RestaurantID, false)
			}
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire ended subscription %s: %w", sub.ID, err))
			continue
		}
		touched++
	}

	return touched, errs
}
