package balances

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/middleware"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/responses"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/validators"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/ledger"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
)

// Get returns the caller's balance at one restaurant, zero-valued when the
// user has never transacted there.
func Get(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		restaurantID, err := uuid.Parse(chi.URLParam(r, "restaurantId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restaurant id"))
			return
		}

		balance, err := svc.GetBalance(r.Context(), userID, restaurantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

// List returns every balance the caller holds.
func List(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListBalances(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

type transactionsResponse struct {
	Transactions any    `json:"transactions"`
	NextCursor   string `json:"next_cursor,omitempty"`
}

// Transactions returns the caller's cursor-paginated ledger history at one
// restaurant.
func Transactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		restaurantID, err := uuid.Parse(chi.URLParam(r, "restaurantId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restaurant id"))
			return
		}

		input := ledger.ListTransactionsInput{
			UserID:       userID,
			RestaurantID: &restaurantID,
			Cursor:       strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.Limit = limit

		page, err := svc.ListTransactions(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionsResponse{
			Transactions: page.Transactions,
			NextCursor:   page.NextCursor,
		})
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
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
