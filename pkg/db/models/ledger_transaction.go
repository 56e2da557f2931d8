package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
)

// LedgerTransaction is the immutable record of one balance mutation. Rows are
// append-only; the sum of deltas per (user, restaurant) must equal the
// current AccountBalance fields at all times.
type LedgerTransaction struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index:idx_ledger_user_restaurant"`
	RestaurantID    uuid.UUID             `gorm:"column:restaurant_id;type:uuid;not null;index:idx_ledger_user_restaurant"`
	Kind            enums.LedgerEntryKind `gorm:"column:kind;type:ledger_entry_kind;not null"`
	BalanceDelta    decimal.Decimal       `gorm:"column:balance_delta;type:numeric(15,2);not null;default:0"`
	StarsMealDelta  int                   `gorm:"column:stars_meal_delta;not null;default:0"`
	StarsDrinkDelta int                   `gorm:"column:stars_drink_delta;not null;default:0"`
	IdempotencyKey  *string               `gorm:"column:idempotency_key;unique"`
	Metadata        json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}
