package risk

import (
	"strings"
	"time"

	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
)

// RiskThresholdDays is how close to the remainder due date an order may get
// before the admin tooling flags it.
const RiskThresholdDays = 2

// IsAtRisk reports whether an order's remainder is due soon or overdue.
//
// The caller supplies today explicitly so evaluations are deterministic;
// both dates are truncated to day granularity before comparing, which keeps
// the flag stable across time zones and times of day. Terminal and already
// delivered orders are never at risk, whatever their due date says.
func IsAtRisk(order *models.Order, state enums.PaymentState, today time.Time) bool {
	if state != enums.PaymentStateRemainderDue {
		return false
	}
	if order.Status.IsTerminal() || order.DeliveredAt != nil {
		return false
	}
	if order.RemainderDueDate == nil {
		return false
	}
	return DaysUntilDue(*order.RemainderDueDate, today) <= RiskThresholdDays
}

// DaysUntilDue returns the whole days between today and the due date, both
// truncated to dates. Negative means overdue.
func DaysUntilDue(dueDate, today time.Time) int {
	due := truncateToDate(dueDate)
	now := truncateToDate(today)
	return int(due.Sub(now).Hours() / 24)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EnsureModifiable rejects customer-path mutation of a locked order. Admin
// override passes, the lifecycle controller records the audited note for it.
func EnsureModifiable(order *models.Order, override bool) error {
	if order.IsLocked() && !override {
		return pkgerrors.New(pkgerrors.CodeOrderLocked, "order is locked for fulfillment").
			WithDetails(map[string]any{"order_number": order.OrderNumber, "locked_at": order.LockedAt})
	}
	return nil
}

// ShippingIncomplete flags postal orders missing any shipping detail. Used
// for admin triage only, never to block a payment.
func ShippingIncomplete(order *models.Order) bool {
	if !order.DeliveryMethod.RequiresShippingDetails() {
		return false
	}
	fields := []*string{
		order.RecipientName,
		order.RecipientPhone,
		order.StreetAddress,
		order.PostalCode,
		order.City,
	}
	for _, f := range fields {
		if f == nil || strings.TrimSpace(*f) == "" {
			return true
		}
	}
	return false
}
