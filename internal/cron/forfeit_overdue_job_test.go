package cron

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaardshagen/farmbox-backend/internal/orders"
	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/logger"
)

type fakeOverdueFinder struct {
	cutoff   time.Time
	statuses []enums.OrderStatus
	rows     []models.Order
}

func (f *fakeOverdueFinder) FindRemaindersDueBefore(ctx context.Context, cutoff time.Time, statuses []enums.OrderStatus) ([]models.Order, error) {
	f.cutoff = cutoff
	f.statuses = statuses
	return f.rows, nil
}

type fakeTransitioner struct {
	calls []orders.TransitionInput
	errs  map[uuid.UUID]error
}

func (f *fakeTransitioner) ApplyTransition(ctx context.Context, input orders.TransitionInput) (*orders.TransitionResult, error) {
	f.calls = append(f.calls, input)
	if err, ok := f.errs[input.OrderID]; ok {
		return nil, err
	}
	return &orders.TransitionResult{}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestForfeitOverdueJob_ForfeitsPastGrace(t *testing.T) {
	now := time.Date(2026, time.November, 20, 6, 0, 0, 0, time.UTC)
	overdue := models.Order{ID: uuid.New(), OrderNumber: "FB-2026-AAAA0001", Status: enums.OrderStatusDepositPaid}

	finder := &fakeOverdueFinder{rows: []models.Order{overdue}}
	transitioner := &fakeTransitioner{}
	job, err := NewForfeitOverdueJob(ForfeitOverdueJobParams{
		Logger: testLogger(),
		Repo:   finder,
		Orders: transitioner,
		Grace:  7 * 24 * time.Hour,
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, now.Add(-7*24*time.Hour), finder.cutoff)
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusDepositPaid}, finder.statuses)

	require.Len(t, transitioner.calls, 1)
	call := transitioner.calls[0]
	assert.Equal(t, overdue.ID, call.OrderID)
	assert.Equal(t, enums.ActionForfeitOrder, call.Action)
	assert.Equal(t, "cron", call.Actor)
	assert.True(t, call.ReleaseInventory)
}

func TestForfeitOverdueJob_OneFailureDoesNotStopSweep(t *testing.T) {
	bad := models.Order{ID: uuid.New(), OrderNumber: "FB-2026-BBBB0001"}
	good := models.Order{ID: uuid.New(), OrderNumber: "FB-2026-BBBB0002"}

	finder := &fakeOverdueFinder{rows: []models.Order{bad, good}}
	transitioner := &fakeTransitioner{errs: map[uuid.UUID]error{
		bad.ID: pkgerrors.New(pkgerrors.CodePersistenceConflict, "concurrent modification detected"),
	}}
	job, err := NewForfeitOverdueJob(ForfeitOverdueJobParams{
		Logger: testLogger(),
		Repo:   finder,
		Orders: transitioner,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, transitioner.calls, 2)
}

func TestForfeitOverdueJob_NoOverdueOrders(t *testing.T) {
	transitioner := &fakeTransitioner{}
	job, err := NewForfeitOverdueJob(ForfeitOverdueJobParams{
		Logger: testLogger(),
		Repo:   &fakeOverdueFinder{},
		Orders: transitioner,
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, transitioner.calls)
}

type fakeRetentionRepo struct {
	cutoff  time.Time
	deleted int64
}

func (f *fakeRetentionRepo) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, nil
}

func TestOutboxRetentionJob_UsesRetentionCutoff(t *testing.T) {
	now := time.Date(2026, time.November, 20, 6, 0, 0, 0, time.UTC)
	repo := &fakeRetentionRepo{deleted: 12}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		Repository: repo,
		Retention:  14,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.AddDate(0, 0, -14), repo.cutoff)
}
