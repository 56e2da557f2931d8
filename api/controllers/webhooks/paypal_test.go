package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	paypalwebhook "github.com/Ali-hasan-sss/nux-loyalty-backend/internal/webhooks/paypal"
	stripewebhook "github.com/Ali-hasan-sss/nux-loyalty-backend/internal/webhooks/stripe"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/paypal"
)

const paypalEventBody = `{
	"id": "WH-58D329510W468432D-8HN650336L201105X",
	"event_type": "PAYMENT.CAPTURE.COMPLETED",
	"resource": {
		"id": "8FB12345AB123456C",
		"custom_id": "sess-1",
		"status": "COMPLETED"
	}
}`

func TestPayPalWebhook_SuccessAndIdempotent(t *testing.T) {
	service := &fakePayPalWebhookService{}
	store := newInMemoryStore()
	guard, err := stripewebhook.NewIdempotencyGuard(store, time.Minute, "paypal-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := PayPalWebhook(service, &fakePayPalVerifier{}, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", bytes.NewReader([]byte(paypalEventBody)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if service.lastEvent == nil || service.lastEvent.EventType != "PAYMENT.CAPTURE.COMPLETED" {
		t.Fatalf("unexpected event: %+v", service.lastEvent)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", bytes.NewReader([]byte(paypalEventBody)))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestPayPalWebhook_InvalidSignature(t *testing.T) {
	service := &fakePayPalWebhookService{}
	store := newInMemoryStore()
	guard, err := stripewebhook.NewIdempotencyGuard(store, time.Minute, "paypal-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	verifier := &fakePayPalVerifier{
		err: pkgerrors.New(pkgerrors.CodeSignature, "paypal signature verification failed"),
	}
	handler := PayPalWebhook(service, verifier, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", bytes.NewReader([]byte(paypalEventBody)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestPayPalWebhook_MalformedEvent(t *testing.T) {
	service := &fakePayPalWebhookService{}
	store := newInMemoryStore()
	guard, err := stripewebhook.NewIdempotencyGuard(store, time.Minute, "paypal-webhook")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	handler := PayPalWebhook(service, &fakePayPalVerifier{}, guard, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", bytes.NewReader([]byte(`{"id":""}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed event, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on malformed event")
	}
}

type fakePayPalWebhookService struct {
	calls     int
	lastEvent *paypalwebhook.Event
	err       error
}

func (f *fakePayPalWebhookService) HandleEvent(ctx context.Context, event *paypalwebhook.Event) error {
	f.calls++
	f.lastEvent = event
	return f.err
}

type fakePayPalVerifier struct {
	err error
}

func (v *fakePayPalVerifier) VerifyWebhookSignature(ctx context.Context, sig paypal.WebhookSignature, rawBody []byte) error {
	return v.err
}
