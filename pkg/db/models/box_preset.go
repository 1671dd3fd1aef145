package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gaardshagen/farmbox-backend/pkg/enums"
)

// BoxPreset is a catalog entry for one reservable box size. Orders snapshot
// its price; editing a preset never reprices existing orders.
type BoxPreset struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductLine enums.ProductLine `gorm:"column:product_line;type:product_line;not null"`
	Name        string            `gorm:"column:name;not null"`
	Description string            `gorm:"column:description;not null;default:''"`
	PriceCents  int               `gorm:"column:price_cents;not null"`
	// Variants are customer-facing cut options (e.g. halvgris, kvartgris).
	// The chosen variant is snapshotted onto the order as a plain string.
	Variants []string `gorm:"column:variants;type:jsonb;serializer:json"`
	Active   bool     `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// ExtraProduct is a catalog entry for an optional add-on, priced per unit or
// per kilogram.
type ExtraProduct struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductLine    enums.ProductLine `gorm:"column:product_line;type:product_line;not null"`
	Name           string            `gorm:"column:name;not null"`
	PricingMode    enums.PricingMode `gorm:"column:pricing_mode;type:pricing_mode;not null"`
	UnitPriceCents int               `gorm:"column:unit_price_cents;not null"`
	Active         bool              `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
