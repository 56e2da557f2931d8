package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
)

// Notification is the durable copy of an event handed to the sink.
type Notification struct {
	ID           uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       *uuid.UUID             `gorm:"column:user_id;type:uuid;index"`
	RestaurantID *uuid.UUID             `gorm:"column:restaurant_id;type:uuid;index"`
	Kind         enums.NotificationKind `gorm:"column:kind;type:notification_kind;not null"`
	Title        string                 `gorm:"column:title;not null"`
	Body         string                 `gorm:"column:body"`
	Payload      json.RawMessage        `gorm:"column:payload;type:jsonb"`
	ReadAt       *time.Time             `gorm:"column:read_at"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}
