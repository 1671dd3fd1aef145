package enums

import "fmt"

// OrderAction names a lifecycle transition requested against one order.
type OrderAction string

const (
	ActionMarkDepositPaid   OrderAction = "mark_deposit_paid"
	ActionMarkRemainderPaid OrderAction = "mark_remainder_paid"
	ActionSyncStatus        OrderAction = "sync_status"
	ActionCancelOrder       OrderAction = "cancel_order"
	ActionCancelAndRefund   OrderAction = "cancel_and_refund"
	ActionRefundDeposit     OrderAction = "refund_deposit"
	ActionMoveWindow        OrderAction = "move_window"
	ActionUpdateDelivery    OrderAction = "update_delivery"
	ActionSetStatus         OrderAction = "set_status"
	ActionAddExtra          OrderAction = "add_extra"
	ActionAdjustExtra       OrderAction = "adjust_extra"
	ActionApplyDiscount     OrderAction = "apply_discount"
	ActionClearDiscount     OrderAction = "clear_discount"
	ActionLockOrder         OrderAction = "lock_order"
	ActionMarkDelivered     OrderAction = "mark_delivered"
	ActionForfeitOrder      OrderAction = "forfeit_order"
)

var validOrderActions = []OrderAction{
	ActionMarkDepositPaid,
	ActionMarkRemainderPaid,
	ActionSyncStatus,
	ActionCancelOrder,
	ActionCancelAndRefund,
	ActionRefundDeposit,
	ActionMoveWindow,
	ActionUpdateDelivery,
	ActionSetStatus,
	ActionAddExtra,
	ActionAdjustExtra,
	ActionApplyDiscount,
	ActionClearDiscount,
	ActionLockOrder,
	ActionMarkDelivered,
	ActionForfeitOrder,
}

// String implements fmt.Stringer.
func (a OrderAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known OrderAction.
func (a OrderAction) IsValid() bool {
	for _, candidate := range validOrderActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// MutatesCustomerSelection reports whether the action changes the product
// selection an order locks in once production starts. Locked orders reject
// these through the customer path.
func (a OrderAction) MutatesCustomerSelection() bool {
	switch a {
	case ActionAddExtra, ActionAdjustExtra, ActionUpdateDelivery,
		ActionMoveWindow, ActionCancelOrder, ActionApplyDiscount, ActionClearDiscount:
		return true
	default:
		return false
	}
}

// ParseOrderAction converts raw input into an OrderAction.
func ParseOrderAction(value string) (OrderAction, error) {
	for _, candidate := range validOrderActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order action %q", value)
}
