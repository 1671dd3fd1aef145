package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gaardshagen/farmbox-backend/pkg/enums"
)

// DiscountCode is a referral or rebate catalog entry. Read-only from the
// reconciliation core's perspective; the order stores its own frozen
// snapshot of whatever this code granted at application time.
type DiscountCode struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string             `gorm:"column:code;not null;uniqueIndex"`
	Kind          enums.DiscountKind `gorm:"column:kind;type:discount_kind;not null"`
	PercentOff    *int               `gorm:"column:percent_off"`
	AmountCents   *int               `gorm:"column:amount_cents"`
	MinBasisCents int                `gorm:"column:min_basis_cents;not null;default:0"`
	Active        bool               `gorm:"column:active;not null;default:true"`
	ExpiresAt     *time.Time         `gorm:"column:expires_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
