package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	"github.com/gaardshagen/farmbox-backend/pkg/types"
)

// Order is one customer reservation of a seasonal box. The money columns are
// a snapshot computed at mutation time; they are never re-derived from the
// live catalog on read.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber string            `gorm:"column:order_number;not null;uniqueIndex"`
	ProductLine enums.ProductLine `gorm:"column:product_line;type:product_line;not null"`

	BoxPresetID uuid.UUID `gorm:"column:box_preset_id;type:uuid;not null"`
	BoxName     string    `gorm:"column:box_name;not null"`
	Variant     *string   `gorm:"column:variant"`

	Status enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'draft'"`

	BoxPriceCents    int `gorm:"column:box_price_cents;not null"`
	DepositCents     int `gorm:"column:deposit_cents;not null"`
	RemainderCents   int `gorm:"column:remainder_cents;not null"`
	DeliveryFeeCents int `gorm:"column:delivery_fee_cents;not null;default:0"`
	RushFeeCents     int `gorm:"column:rush_fee_cents;not null;default:0"`
	TotalCents       int `gorm:"column:total_cents;not null"`

	Discount *types.DiscountSnapshot `gorm:"column:discount;type:jsonb;serializer:json"`

	DeliveryMethod   enums.DeliveryMethod `gorm:"column:delivery_method;type:delivery_method;not null;default:'pickup'"`
	RushDelivery     bool                 `gorm:"column:rush_delivery;not null;default:false"`
	DeliveryWindowID uuid.UUID            `gorm:"column:delivery_window_id;type:uuid;not null"`

	RecipientName  *string `gorm:"column:recipient_name"`
	RecipientPhone *string `gorm:"column:recipient_phone"`
	StreetAddress  *string `gorm:"column:street_address"`
	PostalCode     *string `gorm:"column:postal_code"`
	City           *string `gorm:"column:city"`

	CustomerEmail string  `gorm:"column:customer_email;not null"`
	Notes         *string `gorm:"column:notes"`

	RemainderDueDate *time.Time `gorm:"column:remainder_due_date;type:date"`
	LockedAt         *time.Time `gorm:"column:locked_at"`
	DeliveredAt      *time.Time `gorm:"column:delivered_at"`
	CancelledAt      *time.Time `gorm:"column:cancelled_at"`

	// Version guards the read-validate-write cycle; every update must match
	// the version it read or fail with a persistence conflict.
	Version int `gorm:"column:version;not null;default:1"`

	Extras   []OrderExtra `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments []Payment    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLocked reports whether production has started for this order.
func (o *Order) IsLocked() bool {
	return o != nil && o.LockedAt != nil
}
