package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/ledger"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/notifications"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/restaurants"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/config"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/geo"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, event notifications.Event)
}

type userResolver interface {
	ResolveByQRCode(ctx context.Context, qrCode string) (*models.User, error)
}

// Service composes ledger deltas into the scan, pay and gift flows.
type Service interface {
	RecordScan(ctx context.Context, input ScanInput) (*models.LedgerTransaction, error)
	Pay(ctx context.Context, input PayInput) (*PayResult, error)
	Gift(ctx context.Context, input GiftInput) (*GiftResult, error)
}

// ScanInput is one QR scan performed by a user at a restaurant. ScanType is
// the kind the client claims to be scanning; when set, a code of the other
// kind is rejected instead of silently accruing the wrong stars.
type ScanInput struct {
	UserID   uuid.UUID
	QRCode   string `json:"qr_code" validate:"required"`
	ScanType restaurants.ScanQRKind
	Lat      float64
	Lng      float64
	At       time.Time
}

// PayInput debits a user's stored balance at a restaurant.
type PayInput struct {
	UserID       uuid.UUID
	RestaurantID uuid.UUID
	Amount       decimal.Decimal
}

// PayResult reports how the payment split across balances.
type PayResult struct {
	Transactions []models.LedgerTransaction
}

// GiftInput moves balance from one user to another. The recipient is
// addressed by personal QR code.
type GiftInput struct {
	SenderUserID    uuid.UUID
	RecipientQRCode string `json:"recipient_qr_code" validate:"required"`
	RestaurantID    uuid.UUID
	Amount          decimal.Decimal
}

// GiftResult carries both legs of a completed gift. Debits may span several
// group members when the sender's balance is pooled.
type GiftResult struct {
	Debits []models.LedgerTransaction
	Credit *models.LedgerTransaction
}

type service struct {
	tx            txRunner
	ledgerSvc     ledger.Service
	restaurantSvc restaurants.Service
	users         userResolver
	sink          notifier
	cfg           config.LoyaltyConfig
	now           func() time.Time
}

// NewService wires the transfer engine.
func NewService(
	tx txRunner,
	ledgerSvc ledger.Service,
	restaurantSvc restaurants.Service,
	users userResolver,
	sink notifier,
	cfg config.LoyaltyConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if restaurantSvc == nil {
		return nil, fmt.Errorf("restaurant service required")
	}
	if users == nil {
		return nil, fmt.Errorf("user resolver required")
	}
	return &service{
		tx:            tx,
		ledgerSvc:     ledgerSvc,
		restaurantSvc: restaurantSvc,
		users:         users,
		sink:          sink,
		cfg:           cfg,
		now:           time.Now,
	}, nil
}

func (s *service) RecordScan(ctx context.Context, input ScanInput) (*models.LedgerTransaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	restaurant, kind, err := s.restaurantSvc.ResolveScanCode(ctx, input.QRCode)
	if err != nil {
		return nil, err
	}
	if input.ScanType != "" && input.ScanType != kind {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("qr code is a %s code, not %s", kind, input.ScanType))
	}
	if !restaurant.SubscriptionActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant subscription is not active")
	}

	if s.cfg.ScanRadiusMeters > 0 {
		scanPoint := types.GeographyPoint{Lat: input.Lat, Lng: input.Lng}
		if !geo.WithinRadius(scanPoint, restaurant.Location, s.cfg.ScanRadiusMeters) {
			return nil, pkgerrors.New(pkgerrors.CodeLocationMismatch, "scan location is outside the restaurant radius")
		}
	}

	at := input.At
	if at.IsZero() {
		at = s.now()
	}

	stars := restaurant.MealRewardStars
	mealDelta, drinkDelta := stars, 0
	if kind == restaurants.ScanQRDrink {
		stars = restaurant.DrinkRewardStars
		mealDelta, drinkDelta = 0, stars
	}

	// One accrual per user per code per replay window.
	key := scanIdempotencyKey(input.QRCode, input.UserID, at, s.cfg.ScanReplayWindow)
	metadata, _ := json.Marshal(map[string]any{
		"qr_code":   input.QRCode,
		"scan_kind": string(kind),
	})

	row, err := s.ledgerSvc.ApplyDelta(ctx, ledger.ApplyDeltaInput{
		UserID:          input.UserID,
		RestaurantID:    restaurant.ID,
		Kind:            enums.LedgerEntryKindScanAccrual,
		StarsMealDelta:  mealDelta,
		StarsDrinkDelta: drinkDelta,
		IdempotencyKey:  &key,
		Metadata:        metadata,
	})
	if err != nil {
		return nil, err
	}

	s.notifyBalanceChanged(ctx, input.UserID, restaurant.ID, "Stars earned")
	return row, nil
}

func (s *service) Pay(ctx context.Context, input PayInput) (*PayResult, error) {
	if input.UserID == uuid.Nil || input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and restaurant id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	sources, err := s.spendSources(ctx, input.UserID, input.RestaurantID, input.Amount)
	if err != nil {
		return nil, err
	}

	paymentID := uuid.New()
	metadata, _ := json.Marshal(map[string]any{
		"payment_id":        paymentID,
		"target_restaurant": input.RestaurantID,
	})

	var result PayResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.debitSources(ctx, tx, input.UserID, sources, input.Amount, enums.LedgerEntryKindPaymentDebit, metadata)
		if err != nil {
			return err
		}
		result.Transactions = rows
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyBalanceChanged(ctx, input.UserID, input.RestaurantID, "Payment completed")
	return &result, nil
}

type fundedSource struct {
	restaurantID uuid.UUID
	available    decimal.Decimal
}

// spendSources lists the user's funded balances across the target's spend
// scope, largest first, and rejects amounts the pool cannot cover.
func (s *service) spendSources(ctx context.Context, userID, restaurantID uuid.UUID, amount decimal.Decimal) ([]fundedSource, error) {
	scope, err := s.restaurantSvc.SpendScope(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	var sources []fundedSource
	total := decimal.Zero
	for _, member := range scope {
		balance, err := s.ledgerSvc.GetBalance(ctx, userID, member.ID)
		if err != nil {
			return nil, err
		}
		if balance.Balance.IsPositive() {
			sources = append(sources, fundedSource{restaurantID: member.ID, available: balance.Balance})
			total = total.Add(balance.Balance)
		}
	}
	if total.LessThan(amount) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "combined balance cannot cover the amount")
	}

	// Drain the largest balance first so the split touches as few rows as
	// possible.
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].available.GreaterThan(sources[j].available)
	})
	return sources, nil
}

// debitSources applies the largest-first split inside the caller's
// transaction, one ledger row per touched balance.
func (s *service) debitSources(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
	sources []fundedSource,
	amount decimal.Decimal,
	kind enums.LedgerEntryKind,
	metadata json.RawMessage,
) ([]models.LedgerTransaction, error) {
	remaining := amount
	var rows []models.LedgerTransaction
	for _, source := range sources {
		if !remaining.IsPositive() {
			break
		}
		debit := decimal.Min(source.available, remaining)
		row, err := s.ledgerSvc.ApplyDeltaInTx(ctx, tx, ledger.ApplyDeltaInput{
			UserID:       userID,
			RestaurantID: source.restaurantID,
			Kind:         kind,
			BalanceDelta: debit.Neg(),
			Metadata:     metadata,
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, *row)
		remaining = remaining.Sub(debit)
	}
	if remaining.IsPositive() {
		// A concurrent spender drained a source between the read and the
		// guarded update.
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "combined balance cannot cover the amount")
	}
	return rows, nil
}

func (s *service) Gift(ctx context.Context, input GiftInput) (*GiftResult, error) {
	if input.SenderUserID == uuid.Nil || input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender user id and restaurant id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift amount must be positive")
	}

	recipient, err := s.users.ResolveByQRCode(ctx, input.RecipientQRCode)
	if err != nil {
		return nil, err
	}
	if recipient.ID == input.SenderUserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot gift to yourself")
	}

	// Credits at grouped restaurants land on the group's owning restaurant.
	anchor, err := s.restaurantSvc.CreditAnchor(ctx, input.RestaurantID)
	if err != nil {
		return nil, err
	}

	// The debit pools group balances exactly like a payment would, so a
	// sender can gift anything they could spend at the target.
	sources, err := s.spendSources(ctx, input.SenderUserID, input.RestaurantID, input.Amount)
	if err != nil {
		return nil, err
	}

	giftID := uuid.New()
	metadata, _ := json.Marshal(map[string]any{
		"gift_id":   giftID,
		"sender":    input.SenderUserID,
		"recipient": recipient.ID,
	})

	var result GiftResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		debits, err := s.debitSources(ctx, tx, input.SenderUserID, sources, input.Amount, enums.LedgerEntryKindGiftSend, metadata)
		if err != nil {
			return err
		}

		credit, err := s.ledgerSvc.ApplyDeltaInTx(ctx, tx, ledger.ApplyDeltaInput{
			UserID:       recipient.ID,
			RestaurantID: anchor.ID,
			Kind:         enums.LedgerEntryKindGiftReceive,
			BalanceDelta: input.Amount,
			Metadata:     metadata,
		})
		if err != nil {
			return err
		}

		result.Debits = debits
		result.Credit = credit
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.sink != nil {
		recipientID := recipient.ID
		anchorID := anchor.ID
		s.sink.Notify(ctx, notifications.Event{
			UserID:       &recipientID,
			RestaurantID: &anchorID,
			Kind:         enums.NotificationKindGiftReceived,
			Title:        "You received a gift",
			Payload:      metadata,
		})
	}
	return &result, nil
}

func (s *service) notifyBalanceChanged(ctx context.Context, userID, restaurantID uuid.UUID, title string) {
	if s.sink == nil {
		return
	}
	uid, rid := userID, restaurantID
	s.sink.Notify(ctx, notifications.Event{
		UserID:       &uid,
		RestaurantID: &rid,
		Kind:         enums.NotificationKindBalanceChanged,
		Title:        title,
	})
}

func scanIdempotencyKey(qrCode string, userID uuid.UUID, at time.Time, window time.Duration) string {
	if window <= 0 {
		window = time.Minute
	}
	bucket := at.UTC().Truncate(window).Unix()
	return fmt.Sprintf("scan:%s:%s:%d", qrCode, userID, bucket)
}
