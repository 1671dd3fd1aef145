package bulk

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
	"github.com/gaardshagen/farmbox-backend/pkg/metrics"
)

type stubOrders struct {
	errs  map[uuid.UUID]error
	calls []orders.TransitionInput
}

func (s *stubOrders) Create(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderView, error) {
	return nil, nil
}

func (s *stubOrders) Get(ctx context.Context, id uuid.UUID) (*orders.OrderView, error) {
	return nil, nil
}

func (s *stubOrders) GetByOrderNumber(ctx context.Context, orderNumber string) (*orders.OrderView, error) {
	return nil, nil
}

func (s *stubOrders) List(ctx context.Context, filters orders.ListFilters) ([]orders.OrderView, error) {
	return nil, nil
}

func (s *stubOrders) ApplyTransition(ctx context.Context, input orders.TransitionInput) (*orders.TransitionResult, error) {
	s.calls = append(s.calls, input)
	if err, ok := s.errs[input.OrderID]; ok {
		return nil, err
	}
	return &orders.TransitionResult{}, nil
}

func newTestRunner(t *testing.T, ordersSvc orders.Service) Runner {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "bulk-test", Output: io.Discard})
	bulkMetrics := metrics.NewBulkOperationMetrics(prometheus.NewRegistry())
	runner, err := NewRunner(ordersSvc, logg, bulkMetrics)
	require.NoError(t, err)
	return runner
}

func TestRun_PartialSuccess(t *testing.T) {
	ok1 := uuid.New()
	locked := uuid.New()
	ok2 := uuid.New()

	svc := &stubOrders{errs: map[uuid.UUID]error{
		locked: pkgerrors.New(pkgerrors.CodeOrderLocked, "order is locked for production"),
	}}
	runner := newTestRunner(t, svc)

	result, err := runner.Run(context.Background(), Input{
		OrderIDs: []uuid.UUID{ok1, locked, ok2},
		Action:   enums.ActionMoveWindow,
		Actor:    "astrid",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Affected)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, locked, result.Failures[0].OrderID)
	assert.Equal(t, string(pkgerrors.CodeOrderLocked), result.Failures[0].Code)

	// The failed order must not stop the ones after it.
	require.Len(t, svc.calls, 3)
	assert.Equal(t, ok2, svc.calls[2].OrderID)
}

func TestRun_DuplicateIDsRunOnce(t *testing.T) {
	id := uuid.New()
	svc := &stubOrders{}
	runner := newTestRunner(t, svc)

	result, err := runner.Run(context.Background(), Input{
		OrderIDs: []uuid.UUID{id, id, id},
		Action:   enums.ActionCancelOrder,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Affected)
	assert.Len(t, svc.calls, 1)
}

func TestRun_ValidatesInput(t *testing.T) {
	runner := newTestRunner(t, &stubOrders{})

	_, err := runner.Run(context.Background(), Input{Action: enums.ActionCancelOrder})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = runner.Run(context.Background(), Input{
		OrderIDs: []uuid.UUID{uuid.New()},
		Action:   enums.OrderAction("shred_order"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestRun_BatchSizeCap(t *testing.T) {
	ids := make([]uuid.UUID, maxBatchSize+1)
	for i := range ids {
		ids[i] = uuid.New()
	}
	runner := newTestRunner(t, &stubOrders{})

	_, err := runner.Run(context.Background(), Input{OrderIDs: ids, Action: enums.ActionCancelOrder})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
