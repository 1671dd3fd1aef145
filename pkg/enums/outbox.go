package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder          OutboxAggregateType = "order"
	AggregatePayment        OutboxAggregateType = "payment"
	AggregateDeliveryWindow OutboxAggregateType = "delivery_window"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
	AggregateDeliveryWindow,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderStateChanged OutboxEventType = "order_state_changed"
	EventOrderCancelled    OutboxEventType = "order_cancelled"
	EventOrderForfeited    OutboxEventType = "order_forfeited"
	EventOrderLocked       OutboxEventType = "order_locked"
	EventOrderDelivered    OutboxEventType = "order_delivered"
	EventOrderWindowMoved  OutboxEventType = "order_window_moved"
	EventOrderRepriced     OutboxEventType = "order_repriced"
	EventPaymentRecorded   OutboxEventType = "payment_recorded"
	EventPaymentRefunded   OutboxEventType = "payment_refunded"
	EventCapacityReleased  OutboxEventType = "capacity_released"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderStateChanged,
	EventOrderCancelled,
	EventOrderForfeited,
	EventOrderLocked,
	EventOrderDelivered,
	EventOrderWindowMoved,
	EventOrderRepriced,
	EventPaymentRecorded,
	EventPaymentRefunded,
	EventCapacityReleased,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
