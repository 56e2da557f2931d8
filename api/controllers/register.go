package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/middleware"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/responses"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/validators"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/restaurants"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/users"
	pkgauth "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/auth"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/config"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
)

type registerUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
}

type registerUserResponse struct {
	UserID      uuid.UUID `json:"user_id"`
	QRCode      string    `json:"qr_code"`
	AccessToken string    `json:"access_token"`
}

// RegisterUser creates an end user and hands back a bearer token.
func RegisterUser(svc users.Service, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var req registerUserRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Register(r.Context(), users.RegisterInput{
			Email: req.Email,
			Name:  validators.SanitizeString(req.Name, 120),
			Role:  enums.UserRoleUser,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		token, err := pkgauth.MintAccessToken(jwtCfg, time.Now(), pkgauth.AccessTokenPayload{
			UserID: user.ID,
			Role:   user.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, registerUserResponse{
			UserID:      user.ID,
			QRCode:      user.QRCode,
			AccessToken: token,
		})
	}
}

type registerRestaurantRequest struct {
	Name             string  `json:"name" validate:"required"`
	Lat              float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng              float64 `json:"lng" validate:"gte=-180,lte=180"`
	MealRewardStars  int     `json:"meal_reward_stars" validate:"gte=0"`
	DrinkRewardStars int     `json:"drink_reward_stars" validate:"gte=0"`
}

type registerRestaurantResponse struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	QRCodeMeal   string    `json:"qr_code_meal"`
	QRCodeDrink  string    `json:"qr_code_drink"`
	AccessToken  string    `json:"access_token"`
}

// RegisterRestaurant creates a restaurant for the authenticated user and
// issues an owner token scoped to it.
func RegisterRestaurant(svc restaurants.Service, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "restaurant service unavailable"))
			return
		}

		ownerID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req registerRestaurantRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		restaurant, err := svc.Create(r.Context(), restaurants.CreateInput{
			OwnerUserID:      ownerID,
			Name:             validators.SanitizeString(req.Name, 120),
			Lat:              req.Lat,
			Lng:              req.Lng,
			MealRewardStars:  req.MealRewardStars,
			DrinkRewardStars: req.DrinkRewardStars,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		restaurantID := restaurant.ID
		token, err := pkgauth.MintAccessToken(jwtCfg, time.Now(), pkgauth.AccessTokenPayload{
			UserID:       ownerID,
			RestaurantID: &restaurantID,
			Role:         enums.UserRoleOwner,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, registerRestaurantResponse{
			RestaurantID: restaurant.ID,
			QRCodeMeal:   restaurant.QRCodeMeal,
			QRCodeDrink:  restaurant.QRCodeDrink,
			AccessToken:  token,
		})
	}
}

func actorUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
