package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
	"github.com/gaardshagen/farmbox-backend/pkg/metrics"
)

const maxBatchSize = 200

// Input is one admin batch request: the same transition applied to every
// listed order.
type Input struct {
	OrderIDs         []uuid.UUID
	Action           enums.OrderAction
	Data             orders.TransitionData
	Actor            string
	Reason           string
	Override         bool
	ReleaseInventory bool
}

// Failure records one order the batch could not transition.
type Failure struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
	Code    string    `json:"code"`
}

// Result summarises one batch run. A failed order never aborts the batch;
// the remaining orders still run in their own transactions.
type Result struct {
	Affected int       `json:"affected"`
	Failures []Failure `json:"failures"`
}

// Runner executes admin batch operations order by order.
type Runner interface {
	Run(ctx context.Context, input Input) (*Result, error)
}

type runner struct {
	orders  orders.Service
	logg    *logger.Logger
	metrics *metrics.BulkOperationMetrics
	now     func() time.Time
}

func NewRunner(ordersSvc orders.Service, logg *logger.Logger, bulkMetrics *metrics.BulkOperationMetrics) (Runner, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &runner{
		orders:  ordersSvc,
		logg:    logg,
		metrics: bulkMetrics,
		now:     time.Now,
	}, nil
}

// Run applies the transition to each order in its own transaction. Partial
// success is the expected outcome; callers read Failures to see what was
// skipped and why.
func (r *runner) Run(ctx context.Context, input Input) (*Result, error) {
	if len(input.OrderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order id is required")
	}
	if len(input.OrderIDs) > maxBatchSize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("batch exceeds %d orders", maxBatchSize)).
			WithDetails(map[string]any{"count": len(input.OrderIDs)})
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown action %q", input.Action))
	}

	started := r.now()
	result := &Result{Failures: []Failure{}}
	var failed error

	seen := make(map[uuid.UUID]struct{}, len(input.OrderIDs))
	for _, orderID := range input.OrderIDs {
		if _, dup := seen[orderID]; dup {
			continue
		}
		seen[orderID] = struct{}{}

		_, err := r.orders.ApplyTransition(ctx, orders.TransitionInput{
			OrderID:          orderID,
			Action:           input.Action,
			Data:             input.Data,
			Actor:            input.Actor,
			Reason:           input.Reason,
			Override:         input.Override,
			ReleaseInventory: input.ReleaseInventory,
		})
		if err != nil {
			failed = multierr.Append(failed, fmt.Errorf("order %s: %w", orderID, err))
			failure := Failure{OrderID: orderID, Reason: err.Error()}
			if typed := pkgerrors.As(err); typed != nil {
				failure.Code = string(typed.Code())
				failure.Reason = typed.Message()
			}
			result.Failures = append(result.Failures, failure)
			if r.metrics != nil {
				r.metrics.IncProcessed(string(input.Action), "failure")
			}
			continue
		}
		result.Affected++
		if r.metrics != nil {
			r.metrics.IncProcessed(string(input.Action), "success")
		}
	}

	if r.metrics != nil {
		r.metrics.ObserveRun(string(input.Action), r.now().Sub(started))
	}

	logCtx := r.logg.WithFields(ctx, map[string]any{
		"action":   input.Action,
		"actor":    input.Actor,
		"affected": result.Affected,
		"failed":   len(result.Failures),
	})
	if failed != nil {
		r.logg.Error(logCtx, "bulk operation finished with failures", failed)
	} else {
		r.logg.Info(logCtx, "bulk operation finished")
	}

	return result, nil
}
