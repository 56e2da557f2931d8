package paypalwebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/reconcile"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/metrics"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/paypal"
)

const (
	eventOrderApproved   = "CHECKOUT.ORDER.APPROVED"
	eventCaptureComplete = "PAYMENT.CAPTURE.COMPLETED"
	eventCaptureDenied   = "PAYMENT.CAPTURE.DENIED"

	orderStatusCompleted = "COMPLETED"
)

// Event is the decoded PayPal webhook envelope.
type Event struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// ParseEvent decodes the raw webhook body into an Event.
func ParseEvent(raw []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode paypal event")
	}
	if event.ID == "" || event.EventType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal event id and type required")
	}
	return &event, nil
}

type reconciler interface {
	ConfirmPayment(ctx context.Context, input reconcile.ConfirmPaymentInput) (*reconcile.ConfirmResult, error)
	MarkPaymentFailed(ctx context.Context, providerSessionID, reason string) error
}

type orderCapturer interface {
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Order, error)
}

type ServiceParams struct {
	Reconciler reconciler
	Orders     orderCapturer
	Metrics    *metrics.LoyaltyMetrics
}

// Service translates PayPal order and capture events into reconciler calls.
// The order id doubles as the provider session id recorded at checkout.
type Service struct {
	reconciler reconciler
	orders     orderCapturer
	metrics    *metrics.LoyaltyMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order capturer required")
	}
	return &Service{
		reconciler: params.Reconciler,
		orders:     params.Orders,
		metrics:    params.Metrics,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "paypal event required")
	}

	switch event.EventType {
	case eventOrderApproved:
		orderID, err := orderIDFromResource(event.Resource)
		if err != nil {
			return err
		}
		// Approval only authorizes; the money moves on capture.
		order, err := s.orders.CaptureOrder(ctx, orderID)
		if err != nil {
			s.metrics.IncWebhookEvent("paypal", "failed")
			return err
		}
		if !strings.EqualFold(order.Status, orderStatusCompleted) {
			s.metrics.IncWebhookEvent("paypal", "capture_pending")
			return nil
		}
		return s.confirm(ctx, orderID)
	case eventCaptureComplete:
		orderID, err := orderIDFromCapture(event.Resource)
		if err != nil {
			return err
		}
		return s.confirm(ctx, orderID)
	case eventCaptureDenied:
		orderID, err := orderIDFromCapture(event.Resource)
		if err != nil {
			return err
		}
		if err := s.reconciler.MarkPaymentFailed(ctx, orderID, event.EventType); err != nil {
			s.metrics.IncWebhookEvent("paypal", "failed")
			return err
		}
		s.metrics.IncWebhookEvent("paypal", "payment_failed")
		return nil
	default:
		s.metrics.IncWebhookEvent("paypal", "ignored")
		return nil
	}
}

func (s *Service) confirm(ctx context.Context, orderID string) error {
	input := reconcile.ConfirmPaymentInput{
		ProviderSessionID: orderID,
		PaymentMethod:     "paypal",
	}
	if _, err := s.reconciler.ConfirmPayment(ctx, input); err != nil {
		s.metrics.IncWebhookEvent("paypal", "failed")
		return err
	}
	s.metrics.IncWebhookEvent("paypal", "confirmed")
	return nil
}

func orderIDFromResource(raw json.RawMessage) (string, error) {
	var resource struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &resource); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode order resource")
	}
	if resource.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id missing")
	}
	return resource.ID, nil
}

// orderIDFromCapture digs the order id out of a capture resource, which only
// references its order through supplementary data.
func orderIDFromCapture(raw json.RawMessage) (string, error) {
	var resource struct {
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	}
	if err := json.Unmarshal(raw, &resource); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode capture resource")
	}
	if resource.SupplementaryData.RelatedIDs.OrderID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id missing from capture")
	}
	return resource.SupplementaryData.RelatedIDs.OrderID, nil
}
