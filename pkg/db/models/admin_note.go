package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gaardshagen/farmbox-backend/pkg/enums"
)

// AdminNote is the audit record for an admin-initiated order action.
type AdminNote struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Action    enums.OrderAction `gorm:"column:action;type:text;not null"`
	Reason    *string           `gorm:"column:reason"`
	Override  bool              `gorm:"column:override;not null;default:false"`
	Actor     string            `gorm:"column:actor;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
