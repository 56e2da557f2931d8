package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
)

// Event is one notification handed to the sink.
type Event struct {
	UserID       *uuid.UUID
	RestaurantID *uuid.UUID
	Kind         enums.NotificationKind
	Title        string
	Body         string
	Payload      json.RawMessage
}

// EventPublisher pushes serialized events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, kind string, payload []byte) error
}

// TopicPublisher adapts a Pub/Sub publisher to the EventPublisher interface.
type TopicPublisher struct {
	publisher *gcppubsub.Publisher
}

// NewTopicPublisher wraps the given Pub/Sub publisher handle.
func NewTopicPublisher(publisher *gcppubsub.Publisher) *TopicPublisher {
	return &TopicPublisher{publisher: publisher}
}

func (p *TopicPublisher) Publish(ctx context.Context, kind string, payload []byte) error {
	if p == nil || p.publisher == nil {
		return fmt.Errorf("pubsub publisher not configured")
	}
	result := p.publisher.Publish(ctx, &gcppubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"kind": kind},
	})
	_, err := result.Get(ctx)
	return err
}

// Service is the notification sink plus user-facing inbox reads.
type Service interface {
	// Notify persists the event and pushes it to the bus. It is
	// best-effort: failures are logged, never propagated, so a dropped
	// notification can never roll back the ledger write that caused it.
	Notify(ctx context.Context, event Event)

	List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

type service struct {
	repo      Repository
	publisher EventPublisher
	logg      *logger.Logger
}

// NewService wires the notification sink.
func NewService(repo Repository, publisher EventPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notification repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, publisher: publisher, logg: logg}, nil
}

func (s *service) Notify(ctx context.Context, event Event) {
	if !event.Kind.IsValid() {
		s.logg.Warn(ctx, fmt.Sprintf("dropping notification with invalid kind %q", event.Kind))
		return
	}

	row := &models.Notification{
		UserID:       event.UserID,
		RestaurantID: event.RestaurantID,
		Kind:         event.Kind,
		Title:        event.Title,
		Body:         event.Body,
		Payload:      event.Payload,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logg.Error(ctx, "persisting notification", err)
	}

	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"id":            row.ID,
		"user_id":       event.UserID,
		"restaurant_id": event.RestaurantID,
		"kind":          event.Kind,
		"title":         event.Title,
		"body":          event.Body,
		"payload":       event.Payload,
	})
	if err != nil {
		s.logg.Error(ctx, "serializing notification event", err)
		return
	}
	if err := s.publisher.Publish(ctx, string(event.Kind), payload); err != nil {
		s.logg.Error(ctx, "publishing notification event", err)
	}
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	if id == uuid.Nil || userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id and user id required")
	}
	return s.repo.MarkRead(ctx, id, userID)
}
