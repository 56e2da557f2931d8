package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes plan management and subscription checkout.
type Service interface {
	CreatePlan(ctx context.Context, input CreatePlanInput) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)

	// StartCheckout books a payment attempt and its pending subscription,
	// then opens a hosted checkout at the selected provider.
	StartCheckout(ctx context.Context, input StartCheckoutInput) (*CheckoutSession, error)

	ListSubscriptions(ctx context.Context, restaurantID uuid.UUID) ([]models.Subscription, error)
	ListInvoices(ctx context.Context, restaurantID uuid.UUID) ([]models.Invoice, error)
}

// CreatePlanInput captures a new purchasable plan.
type CreatePlanInput struct {
	Name         string `json:"name" validate:"required"`
	PriceCents   int64  `json:"price_cents" validate:"gte=0"`
	Currency     string `json:"currency"`
	DurationDays int    `json:"duration_days" validate:"gt=0"`
}

// StartCheckoutInput selects the plan and provider for a purchase.
type StartCheckoutInput struct {
	RestaurantID uuid.UUID
	PlanID       uuid.UUID
	Provider     enums.PaymentProvider
	SuccessURL   string
	CancelURL    string
}

// CheckoutSession is the result handed back to the caller to finish payment.
type CheckoutSession struct {
	Payment      *models.Payment
	Subscription *models.Subscription
	RedirectURL  string
}

type service struct {
	repo      Repository
	tx        txRunner
	providers map[enums.PaymentProvider]CheckoutProvider
}

// NewService wires the billing service. Providers may be nil when a
// processor is not configured for the deployment.
func NewService(repo Repository, tx txRunner, providers map[enums.PaymentProvider]CheckoutProvider) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if providers == nil {
		providers = map[enums.PaymentProvider]CheckoutProvider{}
	}
	return &service{repo: repo, tx: tx, providers: providers}, nil
}

func (s *service) CreatePlan(ctx context.Context, input CreatePlanInput) (*models.Plan, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan name required")
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan price cannot be negative")
	}
	if input.DurationDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan duration must be positive")
	}

	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "usd"
	}

	plan := &models.Plan{
		Name:         name,
		PriceCents:   input.PriceCents,
		Currency:     currency,
		DurationDays: input.DurationDays,
		IsActive:     true,
	}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	return s.repo.ListActivePlans(ctx)
}

func (s *service) StartCheckout(ctx context.Context, input StartCheckoutInput) (*CheckoutSession, error) {
	if input.RestaurantID == uuid.Nil || input.PlanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id and plan id required")
	}
	if !input.Provider.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment provider %q", input.Provider))
	}

	plan, err := s.repo.FindPlanByID(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan is no longer offered")
	}

	payment := &models.Payment{
		ID:           uuid.New(),
		RestaurantID: input.RestaurantID,
		Provider:     input.Provider,
		Status:       enums.PaymentStatusCreated,
		AmountCents:  plan.PriceCents,
		Currency:     plan.Currency,
	}

	redirectURL := ""
	if input.Provider == enums.PaymentProviderCash {
		// Cash is settled out of band; the session id is synthesized so
		// the reconciler can still key on it.
		payment.ProviderSessionID = "cash_" + payment.ID.String()
	} else {
		provider, ok := s.providers[input.Provider]
		if !ok || provider == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("payment provider %q not configured", input.Provider))
		}
		session, err := provider.CreateCheckout(ctx, ProviderCheckoutRequest{
			ReferenceID: payment.ID.String(),
			PlanName:    plan.Name,
			AmountCents: plan.PriceCents,
			Currency:    plan.Currency,
			SuccessURL:  input.SuccessURL,
			CancelURL:   input.CancelURL,
		})
		if err != nil {
			return nil, err
		}
		payment.ProviderSessionID = session.SessionID
		redirectURL = session.RedirectURL
	}

	var subscription *models.Subscription
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}
		paymentID := payment.ID
		subscription = &models.Subscription{
			ID:            uuid.New(),
			RestaurantID:  input.RestaurantID,
			PlanID:        plan.ID,
			Status:        enums.SubscriptionStatusPending,
			PaymentID:     &paymentID,
			PaymentStatus: enums.InvoiceStatusPending,
		}
		return repo.CreateSubscription(ctx, subscription)
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		Payment:      payment,
		Subscription: subscription,
		RedirectURL:  redirectURL,
	}, nil
}

func (s *service) ListSubscriptions(ctx context.Context, restaurantID uuid.UUID) ([]models.Subscription, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}
	return s.repo.ListSubscriptionsByRestaurant(ctx, restaurantID)
}

func (s *service) ListInvoices(ctx context.Context, restaurantID uuid.UUID) ([]models.Invoice, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}
	return s.repo.ListInvoicesByRestaurant(ctx, restaurantID)
}
