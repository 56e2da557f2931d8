package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/db/models"
	"github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/enums"
	pkgerrors "github.com/Ali-hasan-sss/nux-loyalty-backend/pkg/errors"
)

// Repository handles billing persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePlan(ctx context.Context, plan *models.Plan) error
	FindPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	ListActivePlans(ctx context.Context) ([]models.Plan, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	// TransitionPaymentStatus flips the payment status only when it still
	// holds from, reporting whether this caller won the transition. Losing
	// callers see the row already settled by a concurrent delivery.
	TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus) (bool, error)
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindPaymentByProviderSessionID(ctx context.Context, sessionID string) (*models.Payment, error)

	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	UpdateSubscription(ctx context.Context, subscription *models.Subscription) error
	DeleteSubscription(ctx context.Context, id uuid.UUID) error
	FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindSubscriptionByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Subscription, error)
	ListSubscriptionsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]models.Subscription, error)
	ListSubscriptionsByRestaurantPlanStatus(ctx context.Context, restaurantID, planID uuid.UUID, status enums.SubscriptionStatus) ([]models.Subscription, error)
	ListPendingSubscriptionsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error)
	ListActiveSubscriptionsEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error)

	UpsertInvoiceByProviderID(ctx context.Context, invoice *models.Invoice) error
	ListInvoicesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]models.Invoice, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePlan(ctx context.Context, plan *models.Plan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) FindPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListActivePlans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("price_cents ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindPaymentByProviderSessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "provider_session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *repository) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Subscription{}, "id = ?", id).Error
}

func (r *repository) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := r.db.WithContext(ctx).First(&subscription, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) FindSubscriptionByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := r.db.WithContext(ctx).First(&subscription, "payment_id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, err
	}
	return &subscription, nil
}

func (r *repository) ListSubscriptionsByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListSubscriptionsByRestaurantPlanStatus(ctx context.Context, restaurantID, planID uuid.UUID, status enums.SubscriptionStatus) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND plan_id = ? AND status = ?", restaurantID, planID, status).
		Order("created_at ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListPendingSubscriptionsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 250
	}
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.SubscriptionStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListActiveSubscriptionsEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 250
	}
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", enums.SubscriptionStatusActive, cutoff).
		Order("end_date ASC").
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

// UpsertInvoiceByProviderID inserts the invoice or, when the provider invoice
// id already exists, refreshes its amounts, status and period. Duplicate
// webhook deliveries therefore collapse into one row.
func (r *repository) UpsertInvoiceByProviderID(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_invoice_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"amount_due_cents", "amount_paid_cents", "status", "period_start", "period_end", "updated_at",
			}),
		}).
		Create(invoice).Error
}

func (r *repository) ListInvoicesByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("created_at DESC").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}
