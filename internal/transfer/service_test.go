package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/ledger"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/notifications"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/restaurants"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/internal/users"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/config"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/types"
)

func setupTransferTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  qr_code TEXT NOT NULL UNIQUE,
  role TEXT NOT NULL DEFAULT 'user',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS restaurants (
  id TEXT PRIMARY KEY,
  owner_user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  location TEXT,
  qr_code_meal TEXT NOT NULL UNIQUE,
  qr_code_drink TEXT NOT NULL UNIQUE,
  meal_reward_stars INTEGER NOT NULL DEFAULT 1,
  drink_reward_stars INTEGER NOT NULL DEFAULT 1,
  subscription_active INTEGER NOT NULL DEFAULT 0,
  group_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS restaurant_groups (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  owner_restaurant_id TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS account_balances (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  restaurant_id TEXT NOT NULL,
  balance NUMERIC NOT NULL DEFAULT 0,
  stars_meal INTEGER NOT NULL DEFAULT 0,
  stars_drink INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, restaurant_id)
);`, `
CREATE TABLE IF NOT EXISTS ledger_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  restaurant_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  balance_delta NUMERIC NOT NULL DEFAULT 0,
  stars_meal_delta INTEGER NOT NULL DEFAULT 0,
  stars_drink_delta INTEGER NOT NULL DEFAULT 0,
  idempotency_key TEXT UNIQUE,
  metadata TEXT,
  created_at DATETIME
);`}
	for _, schema := range schemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	return db
}

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingSink struct {
	events []notifications.Event
}

func (s *recordingSink) Notify(_ context.Context, event notifications.Event) {
	s.events = append(s.events, event)
}

type transferFixture struct {
	db        *gorm.DB
	svc       Service
	ledgerSvc ledger.Service
	restoSvc  restaurants.Service
	sink      *recordingSink
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()

	db := setupTransferTestDB(t)
	runner := sqliteTxRunner{db: db}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db), runner, nil)
	require.NoError(t, err)
	restoSvc, err := restaurants.NewService(restaurants.NewRepository(db))
	require.NoError(t, err)

	sink := &recordingSink{}
	userSvc, err := users.NewService(users.NewRepository(db))
	require.NoError(t, err)
	svc, err := NewService(runner, ledgerSvc, restoSvc, userSvc, sink, config.LoyaltyConfig{
		ScanRadiusMeters: 150,
		ScanReplayWindow: time.Minute,
	})
	require.NoError(t, err)

	return &transferFixture{db: db, svc: svc, ledgerSvc: ledgerSvc, restoSvc: restoSvc, sink: sink}
}

func (f *transferFixture) newUser(t *testing.T) *models.User {
	t.Helper()

	user := &models.User{
		ID:     uuid.New(),
		Email:  uuid.NewString() + "@example.com",
		Name:   "Test User",
		QRCode: uuid.NewString(),
		Role:   enums.UserRoleUser,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *transferFixture) newRestaurant(t *testing.T, active bool) *models.Restaurant {
	t.Helper()

	restaurant := &models.Restaurant{
		ID:                 uuid.New(),
		OwnerUserID:        uuid.New(),
		Name:               "Test Restaurant",
		Location:           types.GeographyPoint{Lat: 48.8566, Lng: 2.3522},
		QRCodeMeal:         uuid.NewString(),
		QRCodeDrink:        uuid.NewString(),
		MealRewardStars:    2,
		DrinkRewardStars:   1,
		SubscriptionActive: active,
	}
	require.NoError(t, f.db.Create(restaurant).Error)
	return restaurant
}

func (f *transferFixture) topUp(t *testing.T, userID, restaurantID uuid.UUID, amount string) {
	t.Helper()

	_, err := f.ledgerSvc.ApplyDelta(context.Background(), ledger.ApplyDeltaInput{
		UserID:       userID,
		RestaurantID: restaurantID,
		Kind:         enums.LedgerEntryKindTopup,
		BalanceDelta: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
}

func (f *transferFixture) balance(t *testing.T, userID, restaurantID uuid.UUID) decimal.Decimal {
	t.Helper()

	balance, err := f.ledgerSvc.GetBalance(context.Background(), userID, restaurantID)
	require.NoError(t, err)
	return balance.Balance
}

func TestRecordScanAccruesStars(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	user := f.newUser(t)
	restaurant := f.newRestaurant(t, true)

	row, err := f.svc.RecordScan(ctx, ScanInput{
		UserID: user.ID,
		QRCode: restaurant.QRCodeMeal,
		Lat:    48.8566,
		Lng:    2.3522,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.LedgerEntryKindScanAccrual, row.Kind)
	assert.Equal(t, 2, row.StarsMealDelta)

	balance, err := f.ledgerSvc.GetBalance(ctx, user.ID, restaurant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance.StarsMeal)
	assert.Equal(t, 0, balance.StarsDrink)
}

func TestRecordScanDrinkCodeAccruesDrinkStars(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	user := f.newUser(t)
	restaurant := f.newRestaurant(t, true)

	row, err := f.svc.RecordScan(ctx, ScanInput{
		UserID: user.ID,
		QRCode: restaurant.QRCodeDrink,
		Lat:    48.8566,
		Lng:    2.3522,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, row.StarsMealDelta)
	assert.Equal(t, 1, row.StarsDrinkDelta)
}

func TestRecordScanIsIdempotentWithinWindow(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	user := f.newUser(t)
	restaurant := f.newRestaurant(t, true)
	at := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

	input := ScanInput{
		UserID: user.ID,
		QRCode: restaurant.QRCodeMeal,
		Lat:    48.8566,
		Lng:    2.3522,
		At:     at,
	}
	first, err := f.svc.RecordScan(ctx, input)
	require.NoError(t, err)

	input.At = at.Add(20 * time.Second)
	second, err := f.svc.RecordScan(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same window must replay the original accrual")

	input.At = at.Add(2 * time.Minute)
	third, err := f.svc.RecordScan(ctx, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	balance, err := f.ledgerSvc.GetBalance(ctx, user.ID, restaurant.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, balance.StarsMeal)
}

func TestRecordScanRejectsMismatchedType(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	user := f.newUser(t)
	restaurant := f.newRestaurant(t, true)

	_, err := f.svc.RecordScan(ctx, ScanInput{
		UserID:   user.ID,
		QRCode:   restaurant.QRCodeMeal,
		ScanType: restaurants.ScanQRDrink,
		Lat:      48.8566,
		Lng:      2.3522,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	balance, err := f.ledgerSvc.GetBalance(ctx, user.ID, restaurant.ID)
	require.NoError(t, err)
	assert.Zero(t, balance.StarsMeal, "a mismatched scan must not accrue")
}

func TestRecordScanAcceptsMatchingType(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	user := f.newUser(t)
	restaurant := f.newRestaurant(t, true)

	row, err := f.svc.RecordScan(ctx, ScanInput{
		UserID:   user.ID,
		QRCode:   restaurant.QRCodeDrink,
		ScanType: restaurants.ScanQRDrink,
		Lat:      48.8566,
		Lng:      2.3522,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, row.StarsDrinkDelta)
}

func TestRecordScanRejectsDistantLocation(t *testing.T) {
	f := newTransferFixture(t)

	user := f.newUser(t)
	restaurant := f.newRestaurant(t, true)

	_, err := f.svc.RecordScan(context.Background(), ScanInput{
		UserID: user.ID,
		QRCode: restaurant.QRCodeMeal,
		Lat:    48.8666, // roughly 1.1km north
		Lng:    2.3522,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeLocationMismatch), "got %v", err)
}

func TestRecordScanRequiresActiveSubscription(t *testing.T) {
	f := newTransferFixture(t)

	user := f.newUser(t)
	restaurant := f.newRestaurant(t, false)

	_, err := f.svc.RecordScan(context.Background(), ScanInput{
		UserID: user.ID,
		QRCode: restaurant.QRCodeMeal,
		Lat:    48.8566,
		Lng:    2.3522,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden), "got %v", err)
}

func TestPaySingleRestaurant(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	user := f.newUser(t)
	restaurant := f.newRestaurant(t, true)
	f.topUp(t, user.ID, restaurant.ID, "30.00")

	result, err := f.svc.Pay(ctx, PayInput{
		UserID:       user.ID,
		RestaurantID: restaurant.ID,
		Amount:       decimal.RequireFromString("12.50"),
	})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)

	assert.True(t, f.balance(t, user.ID, restaurant.ID).Equal(decimal.RequireFromString("17.50")))
}

func TestPaySplitsAcrossGroupLargestFirst(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	user := f.newUser(t)
	r1 := f.newRestaurant(t, true)
	r2 := f.newRestaurant(t, true)

	group, err := f.restoSvc.CreateGroup(ctx, r1.ID, "Group")
	require.NoError(t, err)
	require.NoError(t, f.restoSvc.AddToGroup(ctx, group.ID, r2.ID))

	f.topUp(t, user.ID, r1.ID, "30.00")
	f.topUp(t, user.ID, r2.ID, "25.00")

	result, err := f.svc.Pay(ctx, PayInput{
		UserID:       user.ID,
		RestaurantID: r2.ID,
		Amount:       decimal.RequireFromString("40.00"),
	})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)

	// Largest balance drains first: 30 from r1, the remaining 10 from r2.
	assert.True(t, f.balance(t, user.ID, r1.ID).IsZero(), "r1 = %s", f.balance(t, user.ID, r1.ID))
	assert.True(t, f.balance(t, user.ID, r2.ID).Equal(decimal.RequireFromString("15.00")), "r2 = %s", f.balance(t, user.ID, r2.ID))
}

func TestPayRejectsWhenScopeCannotCover(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	user := f.newUser(t)
	restaurant := f.newRestaurant(t, true)
	f.topUp(t, user.ID, restaurant.ID, "10.00")

	_, err := f.svc.Pay(ctx, PayInput{
		UserID:       user.ID,
		RestaurantID: restaurant.ID,
		Amount:       decimal.RequireFromString("10.01"),
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds), "got %v", err)

	// Nothing may be debited on a rejected payment.
	assert.True(t, f.balance(t, user.ID, restaurant.ID).Equal(decimal.RequireFromString("10.00")))
}

func TestGiftMovesBalanceAtomically(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	sender := f.newUser(t)
	recipient := f.newUser(t)
	restaurant := f.newRestaurant(t, true)
	f.topUp(t, sender.ID, restaurant.ID, "20.00")

	result, err := f.svc.Gift(ctx, GiftInput{
		SenderUserID:    sender.ID,
		RecipientQRCode: recipient.QRCode,
		RestaurantID:    restaurant.ID,
		Amount:          decimal.RequireFromString("7.00"),
	})
	require.NoError(t, err)
	require.Len(t, result.Debits, 1)
	assert.Equal(t, enums.LedgerEntryKindGiftSend, result.Debits[0].Kind)
	assert.Equal(t, enums.LedgerEntryKindGiftReceive, result.Credit.Kind)

	assert.True(t, f.balance(t, sender.ID, restaurant.ID).Equal(decimal.RequireFromString("13.00")))
	assert.True(t, f.balance(t, recipient.ID, restaurant.ID).Equal(decimal.RequireFromString("7.00")))

	require.NotEmpty(t, f.sink.events)
	last := f.sink.events[len(f.sink.events)-1]
	assert.Equal(t, enums.NotificationKindGiftReceived, last.Kind)
	require.NotNil(t, last.UserID)
	assert.Equal(t, recipient.ID, *last.UserID)
}

func TestGiftRollsBackWhenSenderCannotFund(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	sender := f.newUser(t)
	recipient := f.newUser(t)
	restaurant := f.newRestaurant(t, true)
	f.topUp(t, sender.ID, restaurant.ID, "5.00")

	_, err := f.svc.Gift(ctx, GiftInput{
		SenderUserID:    sender.ID,
		RecipientQRCode: recipient.QRCode,
		RestaurantID:    restaurant.ID,
		Amount:          decimal.RequireFromString("9.00"),
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds), "got %v", err)

	// Neither leg may survive.
	assert.True(t, f.balance(t, sender.ID, restaurant.ID).Equal(decimal.RequireFromString("5.00")))
	assert.True(t, f.balance(t, recipient.ID, restaurant.ID).IsZero())

	var rows int64
	require.NoError(t, f.db.Table("ledger_transactions").
		Where("kind IN ?", []string{string(enums.LedgerEntryKindGiftSend), string(enums.LedgerEntryKindGiftReceive)}).
		Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestGiftAtGroupedRestaurantCreditsOwnerAnchor(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	sender := f.newUser(t)
	recipient := f.newUser(t)
	owner := f.newRestaurant(t, true)
	member := f.newRestaurant(t, true)

	group, err := f.restoSvc.CreateGroup(ctx, owner.ID, "Group")
	require.NoError(t, err)
	require.NoError(t, f.restoSvc.AddToGroup(ctx, group.ID, member.ID))

	f.topUp(t, sender.ID, member.ID, "10.00")

	result, err := f.svc.Gift(ctx, GiftInput{
		SenderUserID:    sender.ID,
		RecipientQRCode: recipient.QRCode,
		RestaurantID:    member.ID,
		Amount:          decimal.RequireFromString("4.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, result.Credit.RestaurantID)
	assert.True(t, f.balance(t, recipient.ID, owner.ID).Equal(decimal.RequireFromString("4.00")))
}

func TestGiftPoolsGroupBalancesLikePayment(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	sender := f.newUser(t)
	recipient := f.newUser(t)
	owner := f.newRestaurant(t, true)
	member := f.newRestaurant(t, true)

	group, err := f.restoSvc.CreateGroup(ctx, owner.ID, "Group")
	require.NoError(t, err)
	require.NoError(t, f.restoSvc.AddToGroup(ctx, group.ID, member.ID))

	// Most of the sender's balance sits at the sibling restaurant.
	f.topUp(t, sender.ID, owner.ID, "5.00")
	f.topUp(t, sender.ID, member.ID, "3.00")

	result, err := f.svc.Gift(ctx, GiftInput{
		SenderUserID:    sender.ID,
		RecipientQRCode: recipient.QRCode,
		RestaurantID:    member.ID,
		Amount:          decimal.RequireFromString("7.00"),
	})
	require.NoError(t, err)
	require.Len(t, result.Debits, 2, "the debit must split across the group like a payment")

	// Largest balance drains first: 5 from the owner, 2 from the member.
	assert.True(t, f.balance(t, sender.ID, owner.ID).IsZero())
	assert.True(t, f.balance(t, sender.ID, member.ID).Equal(decimal.RequireFromString("1.00")))
	assert.True(t, f.balance(t, recipient.ID, owner.ID).Equal(decimal.RequireFromString("7.00")))
}

func TestGiftRejectsSelf(t *testing.T) {
	f := newTransferFixture(t)

	sender := f.newUser(t)
	restaurant := f.newRestaurant(t, true)

	_, err := f.svc.Gift(context.Background(), GiftInput{
		SenderUserID:    sender.ID,
		RecipientQRCode: sender.QRCode,
		RestaurantID:    restaurant.ID,
		Amount:          decimal.NewFromInt(1),
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
