package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
)

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newLedgerService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	db := setupLedgerTestDB(t)
	svc, err := NewService(NewRepository(db), sqliteTxRunner{db: db}, nil)
	require.NoError(t, err)
	return svc, db
}

func TestGetBalanceReturnsZeroValuedWhenMissing(t *testing.T) {
	svc, _ := newLedgerService(t)

	balance, err := svc.GetBalance(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.True(t, balance.Balance.IsZero())
	assert.Equal(t, 0, balance.StarsMeal)
	assert.Equal(t, 0, balance.StarsDrink)
}

func TestApplyDeltaCreatesBalanceAndLedgerRow(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	userID, restaurantID := uuid.New(), uuid.New()
	row, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID:       userID,
		RestaurantID: restaurantID,
		Kind:         enums.LedgerEntryKindTopup,
		BalanceDelta: decimal.RequireFromString("20.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.LedgerEntryKindTopup, row.Kind)

	balance, err := svc.GetBalance(ctx, userID, restaurantID)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("20.00")))

	require.NoError(t, svc.VerifyBalance(ctx, userID, restaurantID))
}

func TestApplyDeltaRejectsOverdrawAndRollsBack(t *testing.T) {
	svc, db := newLedgerService(t)
	ctx := context.Background()

	userID, restaurantID := uuid.New(), uuid.New()
	_, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID:       userID,
		RestaurantID: restaurantID,
		Kind:         enums.LedgerEntryKindTopup,
		BalanceDelta: decimal.RequireFromString("5.00"),
	})
	require.NoError(t, err)

	_, err = svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID:       userID,
		RestaurantID: restaurantID,
		Kind:         enums.LedgerEntryKindPaymentDebit,
		BalanceDelta: decimal.RequireFromString("-6.00"),
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds), "got %v", err)

	// The rejected attempt must leave no ledger row behind.
	var count int64
	require.NoError(t, db.Table("ledger_transactions").
		Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, svc.VerifyBalance(ctx, userID, restaurantID))
}

func TestApplyDeltaReplaysIdempotencyKey(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	userID, restaurantID := uuid.New(), uuid.New()
	key := "scan:user:window"

	first, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID:         userID,
		RestaurantID:   restaurantID,
		Kind:           enums.LedgerEntryKindScanAccrual,
		StarsMealDelta: 1,
		IdempotencyKey: &key,
	})
	require.NoError(t, err)

	second, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID:         userID,
		RestaurantID:   restaurantID,
		Kind:           enums.LedgerEntryKindScanAccrual,
		StarsMealDelta: 1,
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	balance, err := svc.GetBalance(ctx, userID, restaurantID)
	require.NoError(t, err)
	assert.Equal(t, 1, balance.StarsMeal, "replay must not accrue twice")
}

func TestApplyDeltaValidation(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
		RestaurantID: uuid.New(),
		Kind:         enums.LedgerEntryKindTopup,
		BalanceDelta: decimal.NewFromInt(1),
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID:       uuid.New(),
		RestaurantID: uuid.New(),
		Kind:         enums.LedgerEntryKind("bogus"),
		BalanceDelta: decimal.NewFromInt(1),
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.ApplyDelta(ctx, ApplyDeltaInput{
		UserID:       uuid.New(),
		RestaurantID: uuid.New(),
		Kind:         enums.LedgerEntryKindTopup,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestListTransactionsPaginates(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	userID, restaurantID := uuid.New(), uuid.New()
	for i := 0; i < 5; i++ {
		_, err := svc.ApplyDelta(ctx, ApplyDeltaInput{
			UserID:       userID,
			RestaurantID: restaurantID,
			Kind:         enums.LedgerEntryKindTopup,
			BalanceDelta: decimal.NewFromInt(1),
		})
		require.NoError(t, err)
	}

	page, err := svc.ListTransactions(ctx, ListTransactionsInput{
		UserID: userID,
		Limit:  3,
	})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 3)
	require.NotEmpty(t, page.NextCursor)

	rest, err := svc.ListTransactions(ctx, ListTransactionsInput{
		UserID: userID,
		Limit:  3,
		Cursor: page.NextCursor,
	})
	require.NoError(t, err)
	assert.Len(t, rest.Transactions, 2)
	assert.Empty(t, rest.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, row := range append(page.Transactions, rest.Transactions...) {
		assert.False(t, seen[row.ID], "duplicate row %s across pages", row.ID)
		seen[row.ID] = true
	}
}
