package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/middleware"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/responses"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/validators"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/restaurants"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
)

type createGroupRequest struct {
	Name string `json:"name" validate:"required,min=2,max=120"`
}

// CreateGroup opens a restaurant group anchored at the caller's restaurant.
func CreateGroup(svc restaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "restaurants service unavailable"))
			return
		}

		restaurantID, err := operatedRestaurantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createGroupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := svc.CreateGroup(r.Context(), restaurantID, validators.SanitizeString(req.Name, 120))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, group)
	}
}

type addToGroupRequest struct {
	RestaurantID string `json:"restaurant_id" validate:"required,uuid4"`
}

// AddToGroup attaches another restaurant to the group.
func AddToGroup(svc restaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "restaurants service unavailable"))
			return
		}

		groupID, err := uuid.Parse(chi.URLParam(r, "groupId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid group id"))
			return
		}

		var req addToGroupRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		memberID, err := uuid.Parse(req.RestaurantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restaurant id"))
			return
		}

		if err := svc.AddToGroup(r.Context(), groupID, memberID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "added"})
	}
}

// LeaveGroup detaches the caller's restaurant from its group.
func LeaveGroup(svc restaurants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "restaurants service unavailable"))
			return
		}

		restaurantID, err := operatedRestaurantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveFromGroup(r.Context(), restaurantID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

func operatedRestaurantID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.RestaurantIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "no restaurant attached to this account")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid restaurant id")
	}
	return id, nil
}
