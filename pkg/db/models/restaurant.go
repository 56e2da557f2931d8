package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/types"
)

// Restaurant is one tenant of the loyalty platform.
type Restaurant struct {
	ID                 uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID        uuid.UUID            `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Name               string               `gorm:"column:name;not null"`
	Location           types.GeographyPoint `gorm:"column:location;type:geography(Point,4326)"`
	QRCodeMeal         string               `gorm:"column:qr_code_meal;not null;unique"`
	QRCodeDrink        string               `gorm:"column:qr_code_drink;not null;unique"`
	MealRewardStars    int                  `gorm:"column:meal_reward_stars;not null;default:1"`
	DrinkRewardStars   int                  `gorm:"column:drink_reward_stars;not null;default:1"`
	SubscriptionActive bool                 `gorm:"column:subscription_active;not null;default:false"`
	GroupID            *uuid.UUID           `gorm:"column:group_id;type:uuid;index"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
