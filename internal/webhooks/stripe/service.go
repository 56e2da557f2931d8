package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/reconcile"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/metrics"
)

type reconciler interface {
	ConfirmPayment(ctx context.Context, input reconcile.ConfirmPaymentInput) (*reconcile.ConfirmResult, error)
	MarkPaymentFailed(ctx context.Context, providerSessionID, reason string) error
}

type ServiceParams struct {
	Reconciler reconciler
	Metrics    *metrics.LoyaltyMetrics
}

// Service translates Stripe checkout lifecycle events into reconciler calls.
type Service struct {
	reconciler reconciler
	metrics    *metrics.LoyaltyMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	return &Service{
		reconciler: params.Reconciler,
		metrics:    params.Metrics,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		session, err := decodeCheckoutSession(event)
		if err != nil {
			return err
		}
		input := reconcile.ConfirmPaymentInput{
			ProviderSessionID: session.ID,
			AmountPaidCents:   session.AmountTotal,
			PaymentMethod:     "card",
			PaidAt:            time.Unix(event.Created, 0).UTC(),
		}
		if session.Invoice != nil {
			input.ProviderInvoiceID = session.Invoice.ID
		}
		if _, err := s.reconciler.ConfirmPayment(ctx, input); err != nil {
			s.metrics.IncWebhookEvent("stripe", "failed")
			return err
		}
		s.metrics.IncWebhookEvent("stripe", "confirmed")
		return nil
	case stripe.EventTypeCheckoutSessionExpired,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		session, err := decodeCheckoutSession(event)
		if err != nil {
			return err
		}
		if err := s.reconciler.MarkPaymentFailed(ctx, session.ID, string(event.Type)); err != nil {
			s.metrics.IncWebhookEvent("stripe", "failed")
			return err
		}
		s.metrics.IncWebhookEvent("stripe", "payment_failed")
		return nil
	default:
		s.metrics.IncWebhookEvent("stripe", "ignored")
		return nil
	}
}

func decodeCheckoutSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
	}
	if session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return &session, nil
}
