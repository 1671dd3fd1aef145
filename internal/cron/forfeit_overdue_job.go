package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
)

const defaultForfeitGrace = 7 * 24 * time.Hour

type overdueFinder interface {
	FindRemaindersDueBefore(ctx context.Context, cutoff time.Time, statuses []enums.OrderStatus) ([]models.Order, error)
}

type orderTransitioner interface {
	ApplyTransition(ctx context.Context, input orders.TransitionInput) (*orders.TransitionResult, error)
}

type ForfeitOverdueJobParams struct {
	Logger *logger.Logger
	Repo   overdueFinder
	Orders orderTransitioner
	Grace  time.Duration
	Now    func() time.Time
}

// forfeitOverdueJob forfeits orders whose remainder is unpaid well past its
// due date. The grace period sits on top of the due date so a customer who
// is a day late is never forfeited automatically.
type forfeitOverdueJob struct {
	logg   *logger.Logger
	repo   overdueFinder
	orders orderTransitioner
	grace  time.Duration
	now    func() time.Time
}

func NewForfeitOverdueJob(params ForfeitOverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultForfeitGrace
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &forfeitOverdueJob{
		logg:   params.Logger,
		repo:   params.Repo,
		orders: params.Orders,
		grace:  grace,
		now:    now,
	}, nil
}

func (j *forfeitOverdueJob) Name() string { return "forfeit_overdue_orders" }

func (j *forfeitOverdueJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.grace)
	overdue, err := j.repo.FindRemaindersDueBefore(ctx, cutoff, []enums.OrderStatus{
		enums.OrderStatusDepositPaid,
	})
	if err != nil {
		return fmt.Errorf("find overdue remainders: %w", err)
	}
	if len(overdue) == 0 {
		return nil
	}

	var failed error
	forfeited := 0
	for i := range overdue {
		if err := j.forfeit(ctx, overdue[i].ID); err != nil {
			failed = multierr.Append(failed, fmt.Errorf("order %s: %w", overdue[i].OrderNumber, err))
			continue
		}
		forfeited++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"overdue":   len(overdue),
		"forfeited": forfeited,
	})
	j.logg.Info(logCtx, "overdue remainder sweep complete")
	return failed
}

func (j *forfeitOverdueJob) forfeit(ctx context.Context, orderID uuid.UUID) error {
	_, err := j.orders.ApplyTransition(ctx, orders.TransitionInput{
		OrderID:          orderID,
		Action:           enums.ActionForfeitOrder,
		Actor:            "cron",
		Reason:           "remainder unpaid past due date",
		ReleaseInventory: true,
	})
	return err
}
