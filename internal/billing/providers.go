package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/paypal"
	pkgstripe "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/stripe"
)

// ProviderCheckoutRequest describes the hosted checkout to create.
type ProviderCheckoutRequest struct {
	ReferenceID string
	PlanName    string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// ProviderCheckoutSession is the provider-side handle for one checkout.
type ProviderCheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// CheckoutProvider creates a hosted checkout session at a payment provider.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, req ProviderCheckoutRequest) (*ProviderCheckoutSession, error)
}

type stripeCheckout struct{}

// NewStripeCheckout wraps the initialized Stripe client as a CheckoutProvider.
func NewStripeCheckout(api *pkgstripe.Client) CheckoutProvider {
	if api == nil {
		return nil
	}
	return &stripeCheckout{}
}

func (stripeCheckout) CreateCheckout(ctx context.Context, req ProviderCheckoutRequest) (*ProviderCheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.ReferenceID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.PlanName),
					},
				},
			},
		},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe checkout session: %w", err)
	}
	return &ProviderCheckoutSession{
		SessionID:   sess.ID,
		RedirectURL: sess.URL,
	}, nil
}

type paypalCheckout struct {
	client *paypal.Client
}

// NewPayPalCheckout wraps the PayPal client as a CheckoutProvider.
func NewPayPalCheckout(client *paypal.Client) CheckoutProvider {
	if client == nil {
		return nil
	}
	return &paypalCheckout{client: client}
}

func (p *paypalCheckout) CreateCheckout(ctx context.Context, req ProviderCheckoutRequest) (*ProviderCheckoutSession, error) {
	order, err := p.client.CreateOrder(ctx, paypal.CreateOrderRequest{
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		ReferenceID: req.ReferenceID,
		Description: req.PlanName,
		ReturnURL:   req.SuccessURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		return nil, err
	}
	return &ProviderCheckoutSession{
		SessionID:   order.ID,
		RedirectURL: order.ApproveURL(),
	}, nil
}
