package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
)

func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{`
CREATE TABLE IF NOT EXISTS plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  duration_days INTEGER NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  provider_session_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'created',
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  start_date DATETIME,
  end_date DATETIME,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_id TEXT UNIQUE,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  subscription_id TEXT NOT NULL,
  provider_invoice_id TEXT NOT NULL UNIQUE,
  amount_due_cents INTEGER NOT NULL,
  amount_paid_cents INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  period_start DATETIME,
  period_end DATETIME,
  created_at DATETIME,
  updated_at DATETIME
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

type stubCheckoutProvider struct {
	session *ProviderCheckoutSession
	err     error
	lastReq ProviderCheckoutRequest
}

func (p *stubCheckoutProvider) CreateCheckout(_ context.Context, req ProviderCheckoutRequest) (*ProviderCheckoutSession, error) {
	p.lastReq = req
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

func newBillingService(t *testing.T, providers map[enums.PaymentProvider]CheckoutProvider) (Service, Repository, *gorm.DB) {
	t.Helper()

	db := setupBillingTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, sqliteTxRunner{db: db}, providers)
	require.NoError(t, err)
	return svc, repo, db
}

func seedPlan(t *testing.T, repo Repository, priceCents int64, days int) *models.Plan {
	t.Helper()

	plan := &models.Plan{
		Name:         "Monthly",
		PriceCents:   priceCents,
		Currency:     "eur",
		DurationDays: days,
		IsActive:     true,
	}
	require.NoError(t, repo.CreatePlan(context.Background(), plan))
	return plan
}

func TestStartCheckoutCreatesPaymentAndPendingSubscription(t *testing.T) {
	provider := &stubCheckoutProvider{
		session: &ProviderCheckoutSession{SessionID: "cs_123", RedirectURL: "https://pay.test/cs_123"},
	}
	svc, repo, _ := newBillingService(t, map[enums.PaymentProvider]CheckoutProvider{
		enums.PaymentProviderStripe: provider,
	})
	ctx := context.Background()

	plan := seedPlan(t, repo, 2999, 30)
	restaurantID := uuid.New()

	session, err := svc.StartCheckout(ctx, StartCheckoutInput{
		RestaurantID: restaurantID,
		PlanID:       plan.ID,
		Provider:     enums.PaymentProviderStripe,
		SuccessURL:   "https://app.test/success",
		CancelURL:    "https://app.test/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://pay.test/cs_123", session.RedirectURL)
	assert.Equal(t, "cs_123", session.Payment.ProviderSessionID)
	assert.Equal(t, int64(2999), provider.lastReq.AmountCents)
	assert.Equal(t, "eur", provider.lastReq.Currency)

	payment, err := repo.FindPaymentByProviderSessionID(ctx, "cs_123")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCreated, payment.Status)

	subscription, err := repo.FindSubscriptionByPaymentID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusPending, subscription.Status)
	assert.Nil(t, subscription.StartDate)
	assert.Nil(t, subscription.EndDate)
}

func TestStartCheckoutCashSynthesizesSession(t *testing.T) {
	svc, repo, _ := newBillingService(t, nil)
	ctx := context.Background()

	plan := seedPlan(t, repo, 1000, 30)
	session, err := svc.StartCheckout(ctx, StartCheckoutInput{
		RestaurantID: uuid.New(),
		PlanID:       plan.ID,
		Provider:     enums.PaymentProviderCash,
	})
	require.NoError(t, err)
	assert.Empty(t, session.RedirectURL)
	assert.Contains(t, session.Payment.ProviderSessionID, "cash_")
}

func TestStartCheckoutUnconfiguredProvider(t *testing.T) {
	svc, repo, _ := newBillingService(t, nil)

	plan := seedPlan(t, repo, 1000, 30)
	_, err := svc.StartCheckout(context.Background(), StartCheckoutInput{
		RestaurantID: uuid.New(),
		PlanID:       plan.ID,
		Provider:     enums.PaymentProviderPayPal,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency), "got %v", err)
}

func TestStartCheckoutRejectsInactivePlan(t *testing.T) {
	svc, repo, db := newBillingService(t, nil)

	plan := seedPlan(t, repo, 1000, 30)
	require.NoError(t, db.Model(&models.Plan{}).Where("id = ?", plan.ID).Update("is_active", false).Error)

	_, err := svc.StartCheckout(context.Background(), StartCheckoutInput{
		RestaurantID: uuid.New(),
		PlanID:       plan.ID,
		Provider:     enums.PaymentProviderCash,
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestUpsertInvoiceByProviderIDCollapsesDuplicates(t *testing.T) {
	_, repo, db := newBillingService(t, nil)
	ctx := context.Background()

	subscriptionID, restaurantID := uuid.New(), uuid.New()
	first := &models.Invoice{
		RestaurantID:      restaurantID,
		SubscriptionID:    subscriptionID,
		ProviderInvoiceID: "in_123",
		AmountDueCents:    2999,
		Status:            enums.InvoiceStatusPending,
	}
	require.NoError(t, repo.UpsertInvoiceByProviderID(ctx, first))

	second := &models.Invoice{
		RestaurantID:      restaurantID,
		SubscriptionID:    subscriptionID,
		ProviderInvoiceID: "in_123",
		AmountDueCents:    2999,
		AmountPaidCents:   2999,
		Status:            enums.InvoiceStatusPaid,
	}
	require.NoError(t, repo.UpsertInvoiceByProviderID(ctx, second))

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	invoices, err := repo.ListInvoicesByRestaurant(ctx, restaurantID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, enums.InvoiceStatusPaid, invoices[0].Status)
	assert.Equal(t, int64(2999), invoices[0].AmountPaidCents)
}

func TestListPendingSubscriptionsOlderThan(t *testing.T) {
	_, repo, db := newBillingService(t, nil)
	ctx := context.Background()

	old := &models.Subscription{
		ID:           uuid.New(),
		RestaurantID: uuid.New(),
		PlanID:       uuid.New(),
		Status:       enums.SubscriptionStatusPending,
	}
	require.NoError(t, repo.CreateSubscription(ctx, old))
	require.NoError(t, db.Model(&models.Subscription{}).
		Where("id = ?", old.ID).
		Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	fresh := &models.Subscription{
		ID:           uuid.New(),
		RestaurantID: uuid.New(),
		PlanID:       uuid.New(),
		Status:       enums.SubscriptionStatusPending,
	}
	require.NoError(t, repo.CreateSubscription(ctx, fresh))

	stale, err := repo.ListPendingSubscriptionsOlderThan(ctx, time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}
