package models

import (
	"time"

	"github.com/google/uuid"
)

// RestaurantGroup pools sibling restaurants under one owning restaurant so
// balances accrued at any member can be spent across the group.
type RestaurantGroup struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string    `gorm:"column:name;not null"`
	OwnerRestaurantID uuid.UUID `gorm:"column:owner_restaurant_id;type:uuid;not null;unique"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
