package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/responses"
	paypalwebhook "github.com/Ali-hasan-sss/nux-loyalty-backend/internal/webhooks/paypal"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/paypal"
)

type PayPalWebhookService interface {
	HandleEvent(ctx context.Context, event *paypalwebhook.Event) error
}

type paypalVerifier interface {
	VerifyWebhookSignature(ctx context.Context, sig paypal.WebhookSignature, rawBody []byte) error
}

// PayPalWebhook verifies and dispatches PayPal order and capture events.
func PayPalWebhook(svc PayPalWebhookService, client paypalVerifier, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paypal client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sig := paypal.SignatureFromHeader(r.Header)
		if err := client.VerifyWebhookSignature(ctx, sig, payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		event, err := paypalwebhook.ParseEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, event); err != nil {
			_ = guard.Delete(ctx, event.ID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("paypal event %s processed", event.ID))
		}
		responses.WriteSuccess(w, nil)
	}
}
