package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/responses"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/api/validators"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/restaurants"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/transfer"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/logger"
)

type scanRequest struct {
	QRCode   string  `json:"qr_code" validate:"required"`
	ScanType string  `json:"scan_type" validate:"required,oneof=meal drink"`
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng      float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// RecordScan credits loyalty stars for a QR scan at a restaurant.
func RecordScan(svc transfer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transfer service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req scanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.RecordScan(r.Context(), transfer.ScanInput{
			UserID:   userID,
			QRCode:   req.QRCode,
			ScanType: restaurants.ScanQRKind(req.ScanType),
			Lat:      req.Lat,
			Lng:      req.Lng,
			At:       time.Now(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

type payRequest struct {
	RestaurantID uuid.UUID       `json:"restaurant_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
}

// Pay debits the caller's balance at a restaurant, pooling group balances
// when the target belongs to one.
func Pay(svc transfer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transfer service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req payRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Pay(r.Context(), transfer.PayInput{
			UserID:       userID,
			RestaurantID: req.RestaurantID,
			Amount:       req.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type giftRequest struct {
	RecipientQRCode string          `json:"recipient_qr_code" validate:"required"`
	RestaurantID    uuid.UUID       `json:"restaurant_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
}

// Gift moves balance from the caller to the user behind the QR code.
func Gift(svc transfer.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transfer service unavailable"))
			return
		}

		userID, err := actorUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req giftRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Gift(r.Context(), transfer.GiftInput{
			SenderUserID:    userID,
			RecipientQRCode: req.RecipientQRCode,
			RestaurantID:    req.RestaurantID,
			Amount:          req.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
