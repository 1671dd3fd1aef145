package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gaardshagen/farmbox-backend/pkg/db/models"
	"github.com/gaardshagen/farmbox-backend/pkg/enums"
)

// ListFilters describe the inputs supported by the admin order list.
type ListFilters struct {
	Status      *enums.OrderStatus
	ProductLine *enums.ProductLine
	WindowID    *uuid.UUID
	DateFrom    *time.Time
	DateTo      *time.Time
	Query       string
}

// CreateOrderInput carries a new storefront reservation.
type CreateOrderInput struct {
	ProductLine    enums.ProductLine
	BoxPresetID    uuid.UUID
	Variant        string
	DeliveryMethod enums.DeliveryMethod
	RushDelivery   bool
	WindowID       *uuid.UUID
	CustomerEmail  string
	RecipientName  string
	RecipientPhone string
	StreetAddress  string
	PostalCode     string
	City           string
	Extras         []CreateExtraInput
	DiscountCode   string
}

// CreateExtraInput is one add-on line at reservation time.
type CreateExtraInput struct {
	ExtraProductID uuid.UUID
	Quantity       decimal.Decimal
}

// TransitionData carries the action-specific payload for a transition.
type TransitionData struct {
	// Payment actions
	AmountCents       int
	ProviderPaymentID string
	FailureReason     string

	// Window / delivery actions
	WindowID       *uuid.UUID
	DeliveryMethod *enums.DeliveryMethod
	RushDelivery   *bool
	RecipientName  *string
	RecipientPhone *string
	StreetAddress  *string
	PostalCode     *string
	City           *string

	// Extras actions
	ExtraProductID uuid.UUID
	Quantity       decimal.Decimal

	// Discount actions
	DiscountCode string

	// set_status
	TargetStatus enums.OrderStatus
}

// TransitionInput is one requested lifecycle transition.
type TransitionInput struct {
	OrderID uuid.UUID
	Action  enums.OrderAction
	Data    TransitionData

	// Actor is empty for customer self-service; admin actions carry the
	// admin handle and are recorded as audit notes.
	Actor            string
	Reason           string
	Override         bool
	ReleaseInventory bool
}

// TransitionResult returns the re-read order plus the state derived inside
// the transaction.
type TransitionResult struct {
	Order        *OrderView
	AuditNoteID  *uuid.UUID
	StatusBefore enums.OrderStatus
}

// OrderView pairs an order with its derived, non-persisted view state.
type OrderView struct {
	Order              *models.Order      `json:"order"`
	PaymentState       enums.PaymentState `json:"payment_state"`
	AtRisk             bool               `json:"at_risk"`
	ShippingIncomplete bool               `json:"shipping_incomplete"`
	DaysUntilDue       *int               `json:"days_until_due,omitempty"`
}

// OrderStateChangedEvent is emitted whenever a transition commits.
type OrderStateChangedEvent struct {
	OrderID      uuid.UUID          `json:"order_id"`
	OrderNumber  string             `json:"order_number"`
	Action       enums.OrderAction  `json:"action"`
	StatusBefore enums.OrderStatus  `json:"status_before"`
	StatusAfter  enums.OrderStatus  `json:"status_after"`
	PaymentState enums.PaymentState `json:"payment_state"`
}

// PaymentRecordedEvent is emitted when a ledger row is appended.
type PaymentRecordedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	PaymentID   uuid.UUID           `json:"payment_id"`
	Type        enums.PaymentType   `json:"type"`
	Status      enums.PaymentStatus `json:"status"`
	AmountCents int                 `json:"amount_cents"`
}

// OrderRepricedEvent is emitted when the money snapshot changes.
type OrderRepricedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	DepositCents   int       `json:"deposit_cents"`
	RemainderCents int       `json:"remainder_cents"`
	TotalCents     int       `json:"total_cents"`
}

// WindowMovedEvent is emitted when an order changes delivery window.
type WindowMovedEvent struct {
	OrderID     uuid.UUID  `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	FromWindow  *uuid.UUID `json:"from_window,omitempty"`
	ToWindow    uuid.UUID  `json:"to_window"`
}

// CapacityReleasedEvent is emitted when a cancellation or forfeiture hands
// window capacity back.
type CapacityReleasedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	WindowID    uuid.UUID `json:"window_id"`
	Quantity    int       `json:"quantity"`
}
