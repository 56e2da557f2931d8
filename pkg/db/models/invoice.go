package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
)

// Invoice is the billing record derived from one subscription period. Rows
// are upserted keyed on the provider invoice id so duplicate webhook delivery
// never creates a second invoice.
type Invoice struct {
	ID                uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID      uuid.UUID           `gorm:"column:restaurant_id;type:uuid;not null;index"`
	SubscriptionID    uuid.UUID           `gorm:"column:subscription_id;type:uuid;not null;index"`
	ProviderInvoiceID string              `gorm:"column:provider_invoice_id;not null;unique"`
	AmountDueCents    int64               `gorm:"column:amount_due_cents;not null"`
	AmountPaidCents   int64               `gorm:"column:amount_paid_cents;not null;default:0"`
	Status            enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'pending'"`
	PeriodStart       *time.Time          `gorm:"column:period_start"`
	PeriodEnd         *time.Time          `gorm:"column:period_end"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
