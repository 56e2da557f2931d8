package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan defines one purchasable subscription tier.
type Plan struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	PriceCents   int64     `gorm:"column:price_cents;not null"`
	Currency     string    `gorm:"column:currency;not null;default:'usd'"`
	DurationDays int       `gorm:"column:duration_days;not null"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Duration converts the configured day count to a time.Duration.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}
