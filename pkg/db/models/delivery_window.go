package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gaardshagen/farmbox-backend/pkg/enums"
)

// DeliveryWindow is one fulfillment week for a product line, with a capacity
// counter orders reserve against. Reserved capacity is returned when an
// order is cancelled or forfeited before fulfillment.
type DeliveryWindow struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductLine      enums.ProductLine `gorm:"column:product_line;type:product_line;not null"`
	Label            string            `gorm:"column:label;not null"`
	StartsOn         time.Time         `gorm:"column:starts_on;type:date;not null"`
	CapacityTotal    int               `gorm:"column:capacity_total;not null"`
	CapacityReserved int               `gorm:"column:capacity_reserved;not null;default:0"`
	Open             bool              `gorm:"column:open;not null;default:true"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// Available returns the remaining reservable capacity.
func (w *DeliveryWindow) Available() int {
	if w == nil {
		return 0
	}
	return w.CapacityTotal - w.CapacityReserved
}
