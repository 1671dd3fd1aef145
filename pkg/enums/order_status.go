package enums

import "fmt"

// OrderStatus tracks the lifecycle of a box order. The stored value is a
// display cache reconciled from the payment ledger, never the source of
// truth for transition decisions.
type OrderStatus string

const (
	OrderStatusDraft          OrderStatus = "draft"
	OrderStatusDepositPaid    OrderStatus = "deposit_paid"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusForfeited      OrderStatus = "forfeited"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusDepositPaid,
	OrderStatusPaid,
	OrderStatusReadyForPickup,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusForfeited,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusForfeited:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
