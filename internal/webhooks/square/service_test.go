package squarewebhook

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
)

type stubRepo struct {
	order    *models.Order
	payments []models.Payment

	appended       []models.Payment
	paymentUpdates map[uuid.UUID]map[string]any
}

func (r *stubRepo) WithTx(tx *gorm.DB) orders.Repository { return r }

func (r *stubRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (r *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if r.order == nil || r.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.order, nil
}

func (r *stubRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	if r.order == nil || r.order.OrderNumber != orderNumber {
		return nil, gorm.ErrRecordNotFound
	}
	return r.order, nil
}

func (r *stubRepo) FindPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	return r.payments, nil
}

func (r *stubRepo) FindPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	for i := range r.payments {
		if r.payments[i].ProviderPaymentID != nil && *r.payments[i].ProviderPaymentID == providerPaymentID {
			return &r.payments[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) AppendPayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	r.payments = append(r.payments, *payment)
	r.appended = append(r.appended, *payment)
	return nil
}

func (r *stubRepo) UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error {
	if r.paymentUpdates == nil {
		r.paymentUpdates = map[uuid.UUID]map[string]any{}
	}
	r.paymentUpdates[paymentID] = updates
	return nil
}

func (r *stubRepo) UpdateVersioned(ctx context.Context, order *models.Order, updates map[string]any) error {
	return nil
}

func (r *stubRepo) UpsertExtra(ctx context.Context, extra *models.OrderExtra) error { return nil }

func (r *stubRepo) DeleteExtra(ctx context.Context, orderID, extraProductID uuid.UUID) error {
	return nil
}

func (r *stubRepo) CreateAdminNote(ctx context.Context, note *models.AdminNote) (*models.AdminNote, error) {
	return note, nil
}

func (r *stubRepo) List(ctx context.Context, filters orders.ListFilters) ([]models.Order, error) {
	return nil, nil
}

func (r *stubRepo) FindRemaindersDueBefore(ctx context.Context, cutoff time.Time, statuses []enums.OrderStatus) ([]models.Order, error) {
	return nil, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubTransitioner struct {
	calls []orders.TransitionInput
}

func (s *stubTransitioner) ApplyTransition(ctx context.Context, input orders.TransitionInput) (*orders.TransitionResult, error) {
	s.calls = append(s.calls, input)
	return &orders.TransitionResult{}, nil
}

func newTestService(t *testing.T, repo *stubRepo) (*Service, *stubTransitioner) {
	t.Helper()
	transitioner := &stubTransitioner{}
	svc, err := NewService(ServiceParams{
		OrdersRepo:        repo,
		Orders:            transitioner,
		TransactionRunner: stubTx{},
		Logger:            logger.New(logger.Options{ServiceName: "webhook-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, transitioner
}

func seedOrder(repo *stubRepo) *models.Order {
	order := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    "FB-2026-ABCD1234",
		Status:         enums.OrderStatusDraft,
		DepositCents:   5000,
		RemainderCents: 5000,
		TotalCents:     10000,
	}
	repo.order = order
	return order
}

func paymentEvent(id, status, reference string, amount int64) *WebhookEvent {
	return &WebhookEvent{
		EventID: "evt-" + id,
		Type:    "payment.updated",
		Data: WebhookData{
			Object: WebhookObject{
				Payment: &PaymentObject{
					ID:          id,
					Status:      status,
					ReferenceID: reference,
					AmountMoney: &MoneyObject{Amount: amount, Currency: "NOK"},
				},
			},
		},
	}
}

func TestHandleEvent_CompletedPaymentAppendsDeposit(t *testing.T) {
	repo := &stubRepo{}
	order := seedOrder(repo)
	svc, transitioner := newTestService(t, repo)

	err := svc.HandleEvent(context.Background(), paymentEvent("sq-1", "COMPLETED", order.OrderNumber, 5000))
	require.NoError(t, err)

	require.Len(t, repo.appended, 1)
	assert.Equal(t, enums.PaymentTypeDeposit, repo.appended[0].Type)
	assert.Equal(t, enums.PaymentStatusCompleted, repo.appended[0].Status)
	assert.Equal(t, 5000, repo.appended[0].AmountCents)
	require.NotNil(t, repo.appended[0].ProviderPaymentID)
	assert.Equal(t, "sq-1", *repo.appended[0].ProviderPaymentID)

	require.Len(t, transitioner.calls, 1)
	assert.Equal(t, enums.ActionSyncStatus, transitioner.calls[0].Action)
	assert.Equal(t, order.ID, transitioner.calls[0].OrderID)
}

func TestHandleEvent_SecondChargePaysRemainder(t *testing.T) {
	repo := &stubRepo{}
	order := seedOrder(repo)
	svc, _ := newTestService(t, repo)

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent("sq-1", "COMPLETED", order.OrderNumber, 5000)))
	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent("sq-2", "COMPLETED", order.OrderNumber, 5000)))

	require.Len(t, repo.appended, 2)
	assert.Equal(t, enums.PaymentTypeDeposit, repo.appended[0].Type)
	assert.Equal(t, enums.PaymentTypeRemainder, repo.appended[1].Type)
}

func TestHandleEvent_RedeliveredStatusIsNoop(t *testing.T) {
	repo := &stubRepo{}
	order := seedOrder(repo)
	providerID := "sq-1"
	repo.payments = []models.Payment{{
		ID:                uuid.New(),
		OrderID:           order.ID,
		Type:              enums.PaymentTypeDeposit,
		Status:            enums.PaymentStatusCompleted,
		AmountCents:       5000,
		ProviderPaymentID: &providerID,
	}}
	svc, _ := newTestService(t, repo)

	err := svc.HandleEvent(context.Background(), paymentEvent(providerID, "COMPLETED", order.OrderNumber, 5000))
	require.NoError(t, err)
	assert.Empty(t, repo.appended)
	assert.Empty(t, repo.paymentUpdates)
}

func TestHandleEvent_FailedPaymentUpdatesRow(t *testing.T) {
	repo := &stubRepo{}
	order := seedOrder(repo)
	providerID := "sq-1"
	paymentID := uuid.New()
	repo.payments = []models.Payment{{
		ID:                paymentID,
		OrderID:           order.ID,
		Type:              enums.PaymentTypeDeposit,
		Status:            enums.PaymentStatusPending,
		AmountCents:       5000,
		ProviderPaymentID: &providerID,
	}}
	svc, _ := newTestService(t, repo)

	err := svc.HandleEvent(context.Background(), paymentEvent(providerID, "FAILED", order.OrderNumber, 5000))
	require.NoError(t, err)

	updates := repo.paymentUpdates[paymentID]
	require.NotNil(t, updates)
	assert.Equal(t, enums.PaymentStatusFailed, updates["status"])
	assert.Equal(t, "payment failed", updates["failure_reason"])
}

func TestHandleEvent_TerminalRowIsImmutable(t *testing.T) {
	repo := &stubRepo{}
	order := seedOrder(repo)
	providerID := "sq-1"
	repo.payments = []models.Payment{{
		ID:                uuid.New(),
		OrderID:           order.ID,
		Type:              enums.PaymentTypeDeposit,
		Status:            enums.PaymentStatusCompleted,
		AmountCents:       5000,
		ProviderPaymentID: &providerID,
	}}
	svc, _ := newTestService(t, repo)

	// A stray late FAILED event must not rewrite a settled charge.
	err := svc.HandleEvent(context.Background(), paymentEvent(providerID, "FAILED", order.OrderNumber, 5000))
	require.NoError(t, err)
	assert.Empty(t, repo.paymentUpdates)
	assert.Empty(t, repo.appended)
}

func TestHandleEvent_PendingStatusIsIgnored(t *testing.T) {
	repo := &stubRepo{}
	order := seedOrder(repo)
	svc, transitioner := newTestService(t, repo)

	err := svc.HandleEvent(context.Background(), paymentEvent("sq-1", "PENDING", order.OrderNumber, 5000))
	require.NoError(t, err)
	assert.Empty(t, repo.appended)
	assert.Empty(t, transitioner.calls)
}

func TestHandleEvent_FullRefundAppendsRow(t *testing.T) {
	repo := &stubRepo{}
	order := seedOrder(repo)
	providerID := "sq-1"
	paymentID := uuid.New()
	repo.payments = []models.Payment{{
		ID:                paymentID,
		OrderID:           order.ID,
		Type:              enums.PaymentTypeDeposit,
		Status:            enums.PaymentStatusCompleted,
		AmountCents:       5000,
		ProviderPaymentID: &providerID,
	}}
	svc, transitioner := newTestService(t, repo)

	err := svc.HandleEvent(context.Background(), &WebhookEvent{
		EventID: "evt-refund",
		Type:    "refund.updated",
		Data: WebhookData{Object: WebhookObject{Refund: &RefundObject{
			ID:          "rf-1",
			Status:      "COMPLETED",
			PaymentID:   providerID,
			AmountMoney: &MoneyObject{Amount: 5000, Currency: "NOK"},
		}}},
	})
	require.NoError(t, err)

	// The original completed charge stays in the ledger untouched; the
	// refund is its own row.
	assert.Empty(t, repo.paymentUpdates)
	require.Len(t, repo.appended, 1)
	assert.Equal(t, enums.PaymentTypeDeposit, repo.appended[0].Type)
	assert.Equal(t, enums.PaymentStatusRefunded, repo.appended[0].Status)
	assert.Equal(t, 5000, repo.appended[0].AmountCents)
	require.NotNil(t, repo.appended[0].ProviderPaymentID)
	assert.Equal(t, "rf-1", *repo.appended[0].ProviderPaymentID)
	require.Len(t, transitioner.calls, 1)
}

func TestHandleEvent_RedeliveredRefundAppendsOnce(t *testing.T) {
	repo := &stubRepo{}
	order := seedOrder(repo)
	providerID := "sq-1"
	repo.payments = []models.Payment{{
		ID:                uuid.New(),
		OrderID:           order.ID,
		Type:              enums.PaymentTypeDeposit,
		Status:            enums.PaymentStatusCompleted,
		AmountCents:       5000,
		ProviderPaymentID: &providerID,
	}}
	svc, _ := newTestService(t, repo)

	refundEvent := func(eventID string) *WebhookEvent {
		return &WebhookEvent{
			EventID: eventID,
			Type:    "refund.updated",
			Data: WebhookData{Object: WebhookObject{Refund: &RefundObject{
				ID:          "rf-1",
				Status:      "COMPLETED",
				PaymentID:   providerID,
				AmountMoney: &MoneyObject{Amount: 5000, Currency: "NOK"},
			}}},
		}
	}

	require.NoError(t, svc.HandleEvent(context.Background(), refundEvent("evt-refund-1")))
	require.NoError(t, svc.HandleEvent(context.Background(), refundEvent("evt-refund-2")))

	require.Len(t, repo.appended, 1)
}

func TestHandleEvent_PartialRefundAppendsRow(t *testing.T) {
	repo := &stubRepo{}
	order := seedOrder(repo)
	providerID := "sq-1"
	repo.payments = []models.Payment{{
		ID:                uuid.New(),
		OrderID:           order.ID,
		Type:              enums.PaymentTypeRemainder,
		Status:            enums.PaymentStatusCompleted,
		AmountCents:       5000,
		ProviderPaymentID: &providerID,
	}}
	svc, _ := newTestService(t, repo)

	err := svc.HandleEvent(context.Background(), &WebhookEvent{
		EventID: "evt-refund",
		Type:    "refund.created",
		Data: WebhookData{Object: WebhookObject{Refund: &RefundObject{
			ID:          "rf-1",
			Status:      "COMPLETED",
			PaymentID:   providerID,
			AmountMoney: &MoneyObject{Amount: 2000, Currency: "NOK"},
		}}},
	})
	require.NoError(t, err)

	require.Len(t, repo.appended, 1)
	assert.Equal(t, enums.PaymentStatusRefunded, repo.appended[0].Status)
	assert.Equal(t, 2000, repo.appended[0].AmountCents)
}

func TestHandleEvent_UnknownTypeIsAcknowledged(t *testing.T) {
	repo := &stubRepo{}
	svc, transitioner := newTestService(t, repo)

	err := svc.HandleEvent(context.Background(), &WebhookEvent{EventID: "evt-x", Type: "dispute.created"})
	require.NoError(t, err)
	assert.Empty(t, transitioner.calls)
}

type stubIdemStore struct {
	seen map[string]bool
}

func (s *stubIdemStore) Get(ctx context.Context, key string) (string, error) { return "", nil }

func (s *stubIdemStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *stubIdemStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (s *stubIdemStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.seen, key)
	}
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	guard, err := NewIdempotencyGuard(&stubIdemStore{}, time.Hour, "square")
	require.NoError(t, err)

	seen, err := guard.CheckAndMark(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Deleting the mark lets the provider's retry through.
	require.NoError(t, guard.Delete(context.Background(), "evt-1"))
	seen, err = guard.CheckAndMark(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
