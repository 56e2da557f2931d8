package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/metrics"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the append-only account ledger.
type Service interface {
	// GetBalance returns the stored balance, or a zero-valued one when the
	// user has never transacted at the restaurant.
	GetBalance(ctx context.Context, userID, restaurantID uuid.UUID) (*models.AccountBalance, error)
	ListBalances(ctx context.Context, userID uuid.UUID) ([]models.AccountBalance, error)

	// ApplyDelta mutates one balance and appends the matching ledger row in
	// a single transaction.
	ApplyDelta(ctx context.Context, input ApplyDeltaInput) (*models.LedgerTransaction, error)
	// ApplyDeltaInTx is ApplyDelta running inside a caller-owned transaction,
	// so multi-leg transfers commit or roll back as one unit.
	ApplyDeltaInTx(ctx context.Context, tx *gorm.DB, input ApplyDeltaInput) (*models.LedgerTransaction, error)

	ListTransactions(ctx context.Context, input ListTransactionsInput) (*TransactionPage, error)
	// VerifyBalance recomputes the ledger sums and compares them to the
	// stored balance row.
	VerifyBalance(ctx context.Context, userID, restaurantID uuid.UUID) error
}

// ApplyDeltaInput captures one balance mutation and its ledger row.
type ApplyDeltaInput struct {
	UserID          uuid.UUID
	RestaurantID    uuid.UUID
	Kind            enums.LedgerEntryKind
	BalanceDelta    decimal.Decimal
	StarsMealDelta  int
	StarsDrinkDelta int
	IdempotencyKey  *string
	Metadata        json.RawMessage
}

// ListTransactionsInput narrows and paginates ledger history.
type ListTransactionsInput struct {
	UserID       uuid.UUID
	RestaurantID *uuid.UUID
	Limit        int
	Cursor       string
}

// TransactionPage is one page of ledger history plus the next cursor.
type TransactionPage struct {
	Transactions []models.LedgerTransaction
	NextCursor   string
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.LoyaltyMetrics
}

// NewService wires a ledger service with its repository and tx runner.
func NewService(repo Repository, tx txRunner, m *metrics.LoyaltyMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, tx: tx, metrics: m}, nil
}

func (s *service) GetBalance(ctx context.Context, userID, restaurantID uuid.UUID) (*models.AccountBalance, error) {
	if userID == uuid.Nil || restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and restaurant id required")
	}

	balance, err := s.repo.FindBalance(ctx, userID, restaurantID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return &models.AccountBalance{
				UserID:       userID,
				RestaurantID: restaurantID,
				Balance:      decimal.Zero,
			}, nil
		}
		return nil, err
	}
	return balance, nil
}

func (s *service) ListBalances(ctx context.Context, userID uuid.UUID) ([]models.AccountBalance, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.ListBalancesByUser(ctx, userID)
}

func (s *service) ApplyDelta(ctx context.Context, input ApplyDeltaInput) (*models.LedgerTransaction, error) {
	var result *models.LedgerTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := s.applyDelta(ctx, s.repo.WithTx(tx), input)
		if err != nil {
			return err
		}
		result = row
		return nil
	})
	if err != nil {
		// A concurrent writer can slip the same idempotency key in between
		// the in-tx lookup and the insert. The unique index turns that into
		// a duplicate-key failure, which is the replay case.
		if errors.Is(err, gorm.ErrDuplicatedKey) && input.IdempotencyKey != nil && *input.IdempotencyKey != "" {
			return s.repo.FindTransactionByIdempotencyKey(ctx, *input.IdempotencyKey)
		}
		return nil, err
	}
	return result, nil
}

func (s *service) ApplyDeltaInTx(ctx context.Context, tx *gorm.DB, input ApplyDeltaInput) (*models.LedgerTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction handle required")
	}
	return s.applyDelta(ctx, s.repo.WithTx(tx), input)
}

func (s *service) applyDelta(ctx context.Context, repo Repository, input ApplyDeltaInput) (*models.LedgerTransaction, error) {
	if input.UserID == uuid.Nil || input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and restaurant id required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry kind %q", input.Kind))
	}
	if input.BalanceDelta.IsZero() && input.StarsMealDelta == 0 && input.StarsDrinkDelta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must mutate at least one value")
	}

	// Replayed idempotency keys return the original row untouched. The
	// lookup runs on the same transaction as the insert so the guard and
	// the append cannot be split across connections.
	if input.IdempotencyKey != nil && *input.IdempotencyKey != "" {
		existing, err := repo.FindTransactionByIdempotencyKey(ctx, *input.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, err
		}
	}

	if err := repo.EnsureBalanceRow(ctx, input.UserID, input.RestaurantID); err != nil {
		return nil, err
	}

	if err := repo.ApplyBalanceDelta(ctx, BalanceDelta{
		UserID:          input.UserID,
		RestaurantID:    input.RestaurantID,
		BalanceDelta:    input.BalanceDelta,
		StarsMealDelta:  input.StarsMealDelta,
		StarsDrinkDelta: input.StarsDrinkDelta,
	}); err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds) {
			s.metrics.IncLedgerRejected("insufficient_funds")
		}
		return nil, err
	}

	row := &models.LedgerTransaction{
		ID:              uuid.New(),
		UserID:          input.UserID,
		RestaurantID:    input.RestaurantID,
		Kind:            input.Kind,
		BalanceDelta:    input.BalanceDelta,
		StarsMealDelta:  input.StarsMealDelta,
		StarsDrinkDelta: input.StarsDrinkDelta,
		IdempotencyKey:  input.IdempotencyKey,
		Metadata:        input.Metadata,
	}
	if err := repo.CreateTransaction(ctx, row); err != nil {
		return nil, err
	}

	s.metrics.IncLedgerEntry(string(input.Kind))
	return row, nil
}

func (s *service) ListTransactions(ctx context.Context, input ListTransactionsInput) (*TransactionPage, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.ListTransactions(ctx, TransactionFilter{
		UserID:       input.UserID,
		RestaurantID: input.RestaurantID,
		Cursor:       cursor,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}

	page := &TransactionPage{Transactions: rows}
	if len(rows) > limit {
		page.Transactions = rows[:limit]
		last := page.Transactions[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) VerifyBalance(ctx context.Context, userID, restaurantID uuid.UUID) error {
	balance, err := s.GetBalance(ctx, userID, restaurantID)
	if err != nil {
		return err
	}

	sums, err := s.repo.SumTransactionDeltas(ctx, userID, restaurantID)
	if err != nil {
		return err
	}

	if !sums.Balance.Equal(balance.Balance) || sums.StarsMeal != balance.StarsMeal || sums.StarsDrink != balance.StarsDrink {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf(
			"ledger drift for user %s at restaurant %s: stored (%s, %d, %d) vs summed (%s, %d, %d)",
			userID, restaurantID,
			balance.Balance, balance.StarsMeal, balance.StarsDrink,
			sums.Balance, sums.StarsMeal, sums.StarsDrink,
		))
	}
	return nil
}
