package subscriptions

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/middleware"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/responses"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/validators"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/billing"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/reconcile"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
)

// ListPlans returns the purchasable plan catalogue.
func ListPlans(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		plans, err := svc.ListPlans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plans)
	}
}

// CreatePlan registers a new plan. Admin only, enforced by the router.
func CreatePlan(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		var input billing.CreatePlanInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := svc.CreatePlan(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, plan)
	}
}

type checkoutRequest struct {
	PlanID     string `json:"plan_id" validate:"required,uuid4"`
	Provider   string `json:"provider" validate:"required"`
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

type checkoutResponse struct {
	PaymentID      uuid.UUID `json:"payment_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	RedirectURL    string    `json:"redirect_url"`
}

// Checkout opens a hosted payment session for the caller's restaurant.
func Checkout(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		restaurantID, err := operatedRestaurant(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		planID, err := uuid.Parse(req.PlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan id"))
			return
		}
		provider, err := enums.ParsePaymentProvider(req.Provider)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment provider"))
			return
		}

		session, err := svc.StartCheckout(r.Context(), billing.StartCheckoutInput{
			RestaurantID: restaurantID,
			PlanID:       planID,
			Provider:     provider,
			SuccessURL:   req.SuccessURL,
			CancelURL:    req.CancelURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			PaymentID:      session.Payment.ID,
			SubscriptionID: session.Subscription.ID,
			RedirectURL:    session.RedirectURL,
		})
	}
}

type confirmRequest struct {
	SessionID       string `json:"session_id" validate:"required"`
	InvoiceID       string `json:"invoice_id"`
	AmountPaidCents int64  `json:"amount_paid_cents" validate:"gte=0"`
	PaymentMethod   string `json:"payment_method"`
}

type confirmResponse struct {
	PaymentID      uuid.UUID `json:"payment_id"`
	SubscriptionID uuid.UUID `json:"subscription_id,omitempty"`
	Renewed        bool      `json:"renewed"`
	Replayed       bool      `json:"replayed"`
}

// Confirm settles a payment the caller completed out of band, typically a
// manual bank transfer or a cash receipt recorded by staff. Webhook-driven
// confirmations take the same path through the reconciler.
func Confirm(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var req confirmRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmPayment(r.Context(), reconcile.ConfirmPaymentInput{
			ProviderSessionID: req.SessionID,
			ProviderInvoiceID: req.InvoiceID,
			AmountPaidCents:   req.AmountPaidCents,
			PaymentMethod:     req.PaymentMethod,
			PaidAt:            time.Now().UTC(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := confirmResponse{
			PaymentID: result.Payment.ID,
			Renewed:   result.Renewed,
			Replayed:  result.Replayed,
		}
		if result.Subscription != nil {
			resp.SubscriptionID = result.Subscription.ID
		}
		responses.WriteSuccess(w, resp)
	}
}

// List returns the caller restaurant's subscriptions, newest first.
func List(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		restaurantID, err := operatedRestaurant(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListSubscriptions(r.Context(), restaurantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// ListInvoices returns the caller restaurant's invoices.
func ListInvoices(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		restaurantID, err := operatedRestaurant(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListInvoices(r.Context(), restaurantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func operatedRestaurant(r *http.Request) (uuid.UUID, error) {
	raw := middleware.RestaurantIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "no restaurant attached to this account")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid restaurant id")
	}
	return id, nil
}
