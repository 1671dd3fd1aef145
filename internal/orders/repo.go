package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Extras").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Extras").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) FindPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) AppendPayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(updates).Error
}

// UpdateVersioned applies updates guarded by the order's version column and
// bumps the version. Zero matched rows means a concurrent writer won.
func (r *repository) UpdateVersioned(ctx context.Context, order *models.Order, updates map[string]any) error {
	payload := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		payload[k] = v
	}
	payload["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodePersistenceConflict, "order was modified concurrently").
			WithDetails(map[string]any{"order_id": order.ID.String(), "version": order.Version})
	}
	order.Version++
	return nil
}

func (r *repository) UpsertExtra(ctx context.Context, extra *models.OrderExtra) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}, {Name: "extra_product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"quantity", "unit_price_cents", "line_total_cents", "updated_at",
			}),
		}).
		Create(extra).Error
}

func (r *repository) DeleteExtra(ctx context.Context, orderID, extraProductID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("order_id = ? AND extra_product_id = ?", orderID, extraProductID).
		Delete(&models.OrderExtra{}).Error
}

func (r *repository) CreateAdminNote(ctx context.Context, note *models.AdminNote) (*models.AdminNote, error) {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return nil, err
	}
	return note, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Extras")
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.ProductLine != nil {
		q = q.Where("product_line = ?", *filters.ProductLine)
	}
	if filters.WindowID != nil {
		q = q.Where("delivery_window_id = ?", *filters.WindowID)
	}
	if filters.DateFrom != nil {
		q = q.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		q = q.Where("created_at < ?", *filters.DateTo)
	}
	if filters.Query != "" {
		like := "%" + filters.Query + "%"
		q = q.Where("order_number ILIKE ? OR customer_email ILIKE ? OR recipient_name ILIKE ?", like, like, like)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindRemaindersDueBefore(ctx context.Context, cutoff time.Time, statuses []enums.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Extras").
		Where("remainder_due_date IS NOT NULL AND remainder_due_date < ?", cutoff).
		Where("status IN ?", statuses).
		Order("remainder_due_date ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
