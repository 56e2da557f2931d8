package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
)

// Payment is one attempt to pay for a subscription. The provider session id
// is the idempotency handle the reconciler keys lookups on.
type Payment struct {
	ID                uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID      uuid.UUID             `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Provider          enums.PaymentProvider `gorm:"column:provider;type:payment_provider;not null"`
	ProviderSessionID string                `gorm:"column:provider_session_id;not null;unique"`
	Status            enums.PaymentStatus   `gorm:"column:status;type:payment_status;not null;default:'created'"`
	AmountCents       int64                 `gorm:"column:amount_cents;not null"`
	Currency          string                `gorm:"column:currency;not null;default:'usd'"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
