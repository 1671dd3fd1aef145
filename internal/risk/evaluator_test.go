package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestIsAtRisk(t *testing.T) {
	today := time.Date(2026, 6, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		order models.Order
		state enums.PaymentState
		want  bool
	}{
		{
			name:  "due within threshold",
			order: models.Order{Status: enums.OrderStatusDepositPaid, RemainderDueDate: datePtr(2026, 6, 12)},
			state: enums.PaymentStateRemainderDue,
			want:  true,
		},
		{
			name:  "overdue",
			order: models.Order{Status: enums.OrderStatusDepositPaid, RemainderDueDate: datePtr(2026, 6, 1)},
			state: enums.PaymentStateRemainderDue,
			want:  true,
		},
		{
			name:  "due beyond threshold",
			order: models.Order{Status: enums.OrderStatusDepositPaid, RemainderDueDate: datePtr(2026, 6, 13)},
			state: enums.PaymentStateRemainderDue,
			want:  false,
		},
		{
			name:  "no due date set",
			order: models.Order{Status: enums.OrderStatusDepositPaid},
			state: enums.PaymentStateRemainderDue,
			want:  false,
		},
		{
			name:  "deposit not paid",
			order: models.Order{Status: enums.OrderStatusDraft, RemainderDueDate: datePtr(2026, 6, 1)},
			state: enums.PaymentStateDepositPending,
			want:  false,
		},
		{
			name:  "fully paid",
			order: models.Order{Status: enums.OrderStatusPaid, RemainderDueDate: datePtr(2026, 6, 1)},
			state: enums.PaymentStateFullyPaid,
			want:  false,
		},
		{
			name:  "cancelled order overdue is not at risk",
			order: models.Order{Status: enums.OrderStatusCancelled, RemainderDueDate: datePtr(2026, 6, 1)},
			state: enums.PaymentStateRemainderDue,
			want:  false,
		},
		{
			name:  "forfeited order overdue is not at risk",
			order: models.Order{Status: enums.OrderStatusForfeited, RemainderDueDate: datePtr(2026, 6, 1)},
			state: enums.PaymentStateRemainderDue,
			want:  false,
		},
		{
			name: "delivered order is not at risk",
			order: models.Order{
				Status:           enums.OrderStatusReadyForPickup,
				RemainderDueDate: datePtr(2026, 6, 1),
				DeliveredAt:      datePtr(2026, 6, 5),
			},
			state: enums.PaymentStateRemainderDue,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAtRisk(&tt.order, tt.state, today))
		})
	}
}

func TestDaysUntilDue_DayGranularity(t *testing.T) {
	// 23:59 today vs 00:01 two days out is still two whole days.
	today := time.Date(2026, 6, 10, 23, 59, 0, 0, time.UTC)
	due := time.Date(2026, 6, 12, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysUntilDue(due, today))

	assert.Equal(t, 0, DaysUntilDue(today, today))
	assert.Equal(t, -3, DaysUntilDue(time.Date(2026, 6, 7, 8, 0, 0, 0, time.UTC), today))
}

func TestEnsureModifiable(t *testing.T) {
	lockedAt := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	locked := models.Order{OrderNumber: "FB-2026-0042", LockedAt: &lockedAt}
	open := models.Order{OrderNumber: "FB-2026-0043"}

	assert.NoError(t, EnsureModifiable(&open, false))
	assert.NoError(t, EnsureModifiable(&locked, true))

	err := EnsureModifiable(&locked, false)
	assert.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOrderLocked))
}

func strPtr(v string) *string { return &v }

func TestShippingIncomplete(t *testing.T) {
	complete := models.Order{
		DeliveryMethod: enums.DeliveryMethodPostal,
		RecipientName:  strPtr("Kari Nordmann"),
		RecipientPhone: strPtr("+47 912 34 567"),
		StreetAddress:  strPtr("Storgata 1"),
		PostalCode:     strPtr("0155"),
		City:           strPtr("Oslo"),
	}
	assert.False(t, ShippingIncomplete(&complete))

	missingCity := complete
	missingCity.City = strPtr("  ")
	assert.True(t, ShippingIncomplete(&missingCity))

	nilCity := complete
	nilCity.City = nil
	assert.True(t, ShippingIncomplete(&nilCity))

	pickup := models.Order{DeliveryMethod: enums.DeliveryMethodPickup}
	assert.False(t, ShippingIncomplete(&pickup))

	homeDelivery := models.Order{DeliveryMethod: enums.DeliveryMethodHomeDelivery}
	assert.False(t, ShippingIncomplete(&homeDelivery))
}
