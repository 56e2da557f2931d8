package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountBalance holds one user's stored value at one restaurant. The three
// value columns never go negative; every mutation appends a LedgerTransaction.
type AccountBalance struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_balance_user_restaurant"`
	RestaurantID uuid.UUID       `gorm:"column:restaurant_id;type:uuid;not null;uniqueIndex:uq_balance_user_restaurant"`
	Balance      decimal.Decimal `gorm:"column:balance;type:numeric(15,2);not null;default:0"`
	StarsMeal    int             `gorm:"column:stars_meal;not null;default:0"`
	StarsDrink   int             `gorm:"column:stars_drink;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
