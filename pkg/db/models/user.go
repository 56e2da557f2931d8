package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
)

// User is an end user who accrues and spends loyalty balance.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string         `gorm:"column:email;not null;unique"`
	Name      string         `gorm:"column:name;not null"`
	QRCode    string         `gorm:"column:qr_code;not null;unique"`
	Role      enums.UserRole `gorm:"column:role;type:user_role;not null;default:'user'"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
