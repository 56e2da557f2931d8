package restaurants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
)

// Repository manages persistence for restaurants and restaurant groups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, restaurant *models.Restaurant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	FindByScanQRCode(ctx context.Context, qrCode string) (*models.Restaurant, ScanQRKind, error)
	ListByGroupID(ctx context.Context, groupID uuid.UUID) ([]models.Restaurant, error)
	SetSubscriptionActive(ctx context.Context, id uuid.UUID, active bool) error

	CreateGroup(ctx context.Context, group *models.RestaurantGroup) error
	FindGroupByID(ctx context.Context, id uuid.UUID) (*models.RestaurantGroup, error)
	SetGroupID(ctx context.Context, restaurantID uuid.UUID, groupID *uuid.UUID) error
}

// ScanQRKind reports which of the restaurant's two scan codes matched.
type ScanQRKind string

const (
	ScanQRMeal  ScanQRKind = "meal"
	ScanQRDrink ScanQRKind = "drink"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a restaurant repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, restaurant *models.Restaurant) error {
	return r.db.WithContext(ctx).Create(restaurant).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).First(&restaurant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
		}
		return nil, err
	}
	return &restaurant, nil
}

func (r *repository) FindByScanQRCode(ctx context.Context, qrCode string) (*models.Restaurant, ScanQRKind, error) {
	var restaurant models.Restaurant
	err := r.db.WithContext(ctx).
		Where("qr_code_meal = ? OR qr_code_drink = ?", qrCode, qrCode).
		First(&restaurant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found for qr code")
		}
		return nil, "", err
	}
	kind := ScanQRMeal
	if restaurant.QRCodeDrink == qrCode {
		kind = ScanQRDrink
	}
	return &restaurant, kind, nil
}

func (r *repository) ListByGroupID(ctx context.Context, groupID uuid.UUID) ([]models.Restaurant, error) {
	var restaurants []models.Restaurant
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&restaurants).Error; err != nil {
		return nil, err
	}
	return restaurants, nil
}

func (r *repository) SetSubscriptionActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Restaurant{}).
		Where("id = ?", id).
		Update("subscription_active", active).Error
}

func (r *repository) CreateGroup(ctx context.Context, group *models.RestaurantGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *repository) FindGroupByID(ctx context.Context, id uuid.UUID) (*models.RestaurantGroup, error) {
	var group models.RestaurantGroup
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant group not found")
		}
		return nil, err
	}
	return &group, nil
}

func (r *repository) SetGroupID(ctx context.Context, restaurantID uuid.UUID, groupID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Restaurant{}).
		Where("id = ?", restaurantID).
		Update("group_id", groupID).Error
}
