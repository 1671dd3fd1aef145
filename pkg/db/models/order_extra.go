package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gaardshagen/farmbox-backend/pkg/enums"
)

// OrderExtra is one add-on line on an order. Unit price is snapshotted at
// order time; catalog changes never reprice existing lines.
type OrderExtra struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ExtraProductID uuid.UUID         `gorm:"column:extra_product_id;type:uuid;not null"`
	Name           string            `gorm:"column:name;not null"`
	PricingMode    enums.PricingMode `gorm:"column:pricing_mode;type:pricing_mode;not null"`
	UnitPriceCents int               `gorm:"column:unit_price_cents;not null"`
	Quantity       decimal.Decimal   `gorm:"column:quantity;type:numeric(8,1);not null"`
	LineTotalCents int               `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
