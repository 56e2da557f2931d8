package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/pagination"
)

// Repository manages persistence for account balances and ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindBalance(ctx context.Context, userID, restaurantID uuid.UUID) (*models.AccountBalance, error)
	ListBalancesByUser(ctx context.Context, userID uuid.UUID) ([]models.AccountBalance, error)
	EnsureBalanceRow(ctx context.Context, userID, restaurantID uuid.UUID) error
	ApplyBalanceDelta(ctx context.Context, delta BalanceDelta) error

	CreateTransaction(ctx context.Context, row *models.LedgerTransaction) error
	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.LedgerTransaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.LedgerTransaction, error)
	SumTransactionDeltas(ctx context.Context, userID, restaurantID uuid.UUID) (*DeltaSums, error)
}

// BalanceDelta describes one guarded balance mutation.
type BalanceDelta struct {
	UserID          uuid.UUID
	RestaurantID    uuid.UUID
	BalanceDelta    decimal.Decimal
	StarsMealDelta  int
	StarsDrinkDelta int
}

// TransactionFilter narrows ledger listing to one user and optionally one restaurant.
type TransactionFilter struct {
	UserID       uuid.UUID
	RestaurantID *uuid.UUID
	Cursor       *pagination.Cursor
	Limit        int
}

// DeltaSums aggregates ledger deltas for one (user, restaurant) pair.
type DeltaSums struct {
	Balance    decimal.Decimal
	StarsMeal  int
	StarsDrink int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBalance(ctx context.Context, userID, restaurantID uuid.UUID) (*models.AccountBalance, error) {
	var balance models.AccountBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND restaurant_id = ?", userID, restaurantID).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "balance not found")
		}
		return nil, err
	}
	return &balance, nil
}

func (r *repository) ListBalancesByUser(ctx context.Context, userID uuid.UUID) ([]models.AccountBalance, error) {
	var balances []models.AccountBalance
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&balances).Error; err != nil {
		return nil, err
	}
	return balances, nil
}

func (r *repository) EnsureBalanceRow(ctx context.Context, userID, restaurantID uuid.UUID) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AccountBalance{}).
		Where("user_id = ? AND restaurant_id = ?", userID, restaurantID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	row := &models.AccountBalance{
		ID:           uuid.New(),
		UserID:       userID,
		RestaurantID: restaurantID,
		Balance:      decimal.Zero,
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// ApplyBalanceDelta mutates the balance row with a single guarded UPDATE. The
// WHERE clause refuses any mutation that would push a value below zero, so
// concurrent spenders cannot overdraw regardless of interleaving.
func (r *repository) ApplyBalanceDelta(ctx context.Context, delta BalanceDelta) error {
	res := r.db.WithContext(ctx).
		Model(&models.AccountBalance{}).
		Where("user_id = ? AND restaurant_id = ?", delta.UserID, delta.RestaurantID).
		Where("balance + ? >= 0", delta.BalanceDelta).
		Where("stars_meal + ? >= 0", delta.StarsMealDelta).
		Where("stars_drink + ? >= 0", delta.StarsDrinkDelta).
		Updates(map[string]any{
			"balance":     gorm.Expr("balance + ?", delta.BalanceDelta),
			"stars_meal":  gorm.Expr("stars_meal + ?", delta.StarsMealDelta),
			"stars_drink": gorm.Expr("stars_drink + ?", delta.StarsDrinkDelta),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient balance for requested delta")
	}
	return nil
}

func (r *repository) CreateTransaction(ctx context.Context, row *models.LedgerTransaction) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*models.LedgerTransaction, error) {
	var row models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger transaction not found")
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.LedgerTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", filter.UserID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit))

	if filter.RestaurantID != nil {
		query = query.Where("restaurant_id = ?", *filter.RestaurantID)
	}
	if filter.Cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID,
		)
	}

	var rows []models.LedgerTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SumTransactionDeltas(ctx context.Context, userID, restaurantID uuid.UUID) (*DeltaSums, error) {
	var row struct {
		Balance    decimal.Decimal
		StarsMeal  int
		StarsDrink int
	}
	err := r.db.WithContext(ctx).
		Model(&models.LedgerTransaction{}).
		Select(
			"COALESCE(SUM(balance_delta), 0) AS balance",
			"COALESCE(SUM(stars_meal_delta), 0) AS stars_meal",
			"COALESCE(SUM(stars_drink_delta), 0) AS stars_drink",
		).
		Where("user_id = ? AND restaurant_id = ?", userID, restaurantID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &DeltaSums{
		Balance:    row.Balance,
		StarsMeal:  row.StarsMeal,
		StarsDrink: row.StarsDrink,
	}, nil
}
