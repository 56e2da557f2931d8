package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
)

// Subscription is one restaurant's entitlement to one plan for a time window.
// At most one subscription per (restaurant, plan) may be active with an end
// date in the future; the reconciler collapses duplicates into renewals.
type Subscription struct {
	ID            uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID  uuid.UUID                `gorm:"column:restaurant_id;type:uuid;not null;index"`
	PlanID        uuid.UUID                `gorm:"column:plan_id;type:uuid;not null;index"`
	StartDate     *time.Time               `gorm:"column:start_date"`
	EndDate       *time.Time               `gorm:"column:end_date"`
	Status        enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'pending'"`
	PaymentID     *uuid.UUID               `gorm:"column:payment_id;type:uuid;unique"`
	PaymentStatus enums.InvoiceStatus      `gorm:"column:payment_status;type:invoice_status;not null;default:'pending'"`
	PaymentMethod *string                  `gorm:"column:payment_method"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveAt reports whether the subscription grants access at the given time.
func (s Subscription) ActiveAt(at time.Time) bool {
	if s.Status != enums.SubscriptionStatusActive {
		return false
	}
	return s.EndDate != nil && !s.EndDate.Before(at)
}
