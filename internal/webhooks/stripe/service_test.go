package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/reconcile"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
)

type stubReconciler struct {
	confirmed []reconcile.ConfirmPaymentInput
	failed    []string
	err       error
}

func (r *stubReconciler) ConfirmPayment(_ context.Context, input reconcile.ConfirmPaymentInput) (*reconcile.ConfirmResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.confirmed = append(r.confirmed, input)
	return &reconcile.ConfirmResult{}, nil
}

func (r *stubReconciler) MarkPaymentFailed(_ context.Context, providerSessionID, _ string) error {
	if r.err != nil {
		return r.err
	}
	r.failed = append(r.failed, providerSessionID)
	return nil
}

func checkoutEvent(t *testing.T, eventType stripe.EventType, session *stripe.CheckoutSession) *stripe.Event {
	t.Helper()

	raw, err := json.Marshal(session)
	require.NoError(t, err)
	return &stripe.Event{
		ID:      "evt_1",
		Type:    eventType,
		Created: 1767000000,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventCheckoutCompleted(t *testing.T) {
	rec := &stubReconciler{}
	svc, err := NewService(ServiceParams{Reconciler: rec})
	require.NoError(t, err)

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:          "cs_test_99",
		AmountTotal: 2999,
		Invoice:     &stripe.Invoice{ID: "in_55"},
	})
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	require.Len(t, rec.confirmed, 1)
	input := rec.confirmed[0]
	assert.Equal(t, "cs_test_99", input.ProviderSessionID)
	assert.Equal(t, "in_55", input.ProviderInvoiceID)
	assert.Equal(t, int64(2999), input.AmountPaidCents)
	assert.Equal(t, int64(1767000000), input.PaidAt.Unix())
}

func TestHandleEventCheckoutExpired(t *testing.T) {
	rec := &stubReconciler{}
	svc, err := NewService(ServiceParams{Reconciler: rec})
	require.NoError(t, err)

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionExpired, &stripe.CheckoutSession{ID: "cs_gone"})
	require.NoError(t, svc.HandleEvent(context.Background(), event))

	assert.Empty(t, rec.confirmed)
	assert.Equal(t, []string{"cs_gone"}, rec.failed)
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	rec := &stubReconciler{}
	svc, err := NewService(ServiceParams{Reconciler: rec})
	require.NoError(t, err)

	event := checkoutEvent(t, "customer.created", &stripe.CheckoutSession{ID: "cs_x"})
	require.NoError(t, svc.HandleEvent(context.Background(), event))
	assert.Empty(t, rec.confirmed)
	assert.Empty(t, rec.failed)
}

func TestHandleEventRejectsMissingSessionID(t *testing.T) {
	rec := &stubReconciler{}
	svc, err := NewService(ServiceParams{Reconciler: rec})
	require.NoError(t, err)

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{})
	err = svc.HandleEvent(context.Background(), event)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestHandleEventNilEvent(t *testing.T) {
	svc, err := NewService(ServiceParams{Reconciler: &stubReconciler{}})
	require.NoError(t, err)

	err = svc.HandleEvent(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
