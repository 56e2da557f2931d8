package restaurants

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/types"
)

// Service exposes restaurant and group management operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Restaurant, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)

	// ResolveScanCode maps a scanned QR code to its restaurant and reports
	// whether it was the meal or the drink code.
	ResolveScanCode(ctx context.Context, qrCode string) (*models.Restaurant, ScanQRKind, error)

	CreateGroup(ctx context.Context, ownerRestaurantID uuid.UUID, name string) (*models.RestaurantGroup, error)
	AddToGroup(ctx context.Context, groupID, restaurantID uuid.UUID) error
	RemoveFromGroup(ctx context.Context, restaurantID uuid.UUID) error

	// SpendScope resolves the restaurants whose balances may fund a payment
	// at the target. For a grouped restaurant that is every member of the
	// group; otherwise it is the target alone.
	SpendScope(ctx context.Context, restaurantID uuid.UUID) ([]models.Restaurant, error)

	// CreditAnchor resolves where a credit at the given restaurant should
	// land: the group's owning restaurant for grouped restaurants, the
	// restaurant itself otherwise.
	CreditAnchor(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error)
}

// CreateInput captures the data required to register a restaurant.
type CreateInput struct {
	OwnerUserID      uuid.UUID
	Name             string `json:"name" validate:"required"`
	Lat              float64
	Lng              float64
	MealRewardStars  int
	DrinkRewardStars int
}

type service struct {
	repo Repository
}

// NewService wires a restaurant service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("restaurant repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Restaurant, error) {
	if input.OwnerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner user id required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant name required")
	}

	mealStars := input.MealRewardStars
	if mealStars <= 0 {
		mealStars = 1
	}
	drinkStars := input.DrinkRewardStars
	if drinkStars <= 0 {
		drinkStars = 1
	}

	restaurant := &models.Restaurant{
		OwnerUserID:      input.OwnerUserID,
		Name:             name,
		Location:         types.GeographyPoint{Lat: input.Lat, Lng: input.Lng},
		QRCodeMeal:       uuid.NewString(),
		QRCodeDrink:      uuid.NewString(),
		MealRewardStars:  mealStars,
		DrinkRewardStars: drinkStars,
	}
	if err := s.repo.Create(ctx, restaurant); err != nil {
		return nil, err
	}
	return restaurant, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) ResolveScanCode(ctx context.Context, qrCode string) (*models.Restaurant, ScanQRKind, error) {
	trimmed := strings.TrimSpace(qrCode)
	if trimmed == "" {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "qr code required")
	}
	return s.repo.FindByScanQRCode(ctx, trimmed)
}

func (s *service) CreateGroup(ctx context.Context, ownerRestaurantID uuid.UUID, name string) (*models.RestaurantGroup, error) {
	if ownerRestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner restaurant id required")
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group name required")
	}

	owner, err := s.repo.FindByID(ctx, ownerRestaurantID)
	if err != nil {
		return nil, err
	}
	// A restaurant already pooled under a group cannot start another one.
	if owner.GroupID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "restaurant already belongs to a group")
	}

	group := &models.RestaurantGroup{
		ID:                uuid.New(),
		Name:              trimmed,
		OwnerRestaurantID: ownerRestaurantID,
	}
	if err := s.repo.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	if err := s.repo.SetGroupID(ctx, ownerRestaurantID, &group.ID); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *service) AddToGroup(ctx context.Context, groupID, restaurantID uuid.UUID) error {
	if groupID == uuid.Nil || restaurantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group id and restaurant id required")
	}

	group, err := s.repo.FindGroupByID(ctx, groupID)
	if err != nil {
		return err
	}

	restaurant, err := s.repo.FindByID(ctx, restaurantID)
	if err != nil {
		return err
	}
	if restaurant.GroupID != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "restaurant already belongs to a group")
	}

	return s.repo.SetGroupID(ctx, restaurantID, &group.ID)
}

func (s *service) RemoveFromGroup(ctx context.Context, restaurantID uuid.UUID) error {
	if restaurantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}

	restaurant, err := s.repo.FindByID(ctx, restaurantID)
	if err != nil {
		return err
	}
	if restaurant.GroupID == nil {
		return nil
	}

	group, err := s.repo.FindGroupByID(ctx, *restaurant.GroupID)
	if err != nil {
		return err
	}
	// The owning restaurant anchors the group and cannot leave it.
	if group.OwnerRestaurantID == restaurantID {
		return pkgerrors.New(pkgerrors.CodeConflict, "group owner cannot leave its own group")
	}

	return s.repo.SetGroupID(ctx, restaurantID, nil)
}

func (s *service) SpendScope(ctx context.Context, restaurantID uuid.UUID) ([]models.Restaurant, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}

	restaurant, err := s.repo.FindByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant.GroupID == nil {
		return []models.Restaurant{*restaurant}, nil
	}

	members, err := s.repo.ListByGroupID(ctx, *restaurant.GroupID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []models.Restaurant{*restaurant}, nil
	}
	return members, nil
}

func (s *service) CreditAnchor(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	restaurant, err := s.GetByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if restaurant.GroupID == nil {
		return restaurant, nil
	}

	group, err := s.repo.FindGroupByID(ctx, *restaurant.GroupID)
	if err != nil {
		return nil, err
	}
	if group.OwnerRestaurantID == restaurant.ID {
		return restaurant, nil
	}
	return s.repo.FindByID(ctx, group.OwnerRestaurantID)
}
