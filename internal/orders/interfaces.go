package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	FindPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error)
	AppendPayment(ctx context.Context, payment *models.Payment) error
	UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error
	UpdateVersioned(ctx context.Context, order *models.Order, updates map[string]any) error
	UpsertExtra(ctx context.Context, extra *models.OrderExtra) error
	DeleteExtra(ctx context.Context, orderID, extraProductID uuid.UUID) error
	CreateAdminNote(ctx context.Context, note *models.AdminNote) (*models.AdminNote, error)
	List(ctx context.Context, filters ListFilters) ([]models.Order, error)
	FindRemaindersDueBefore(ctx context.Context, cutoff time.Time, statuses []enums.OrderStatus) ([]models.Order, error)
}
