package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gaardshagen/farmbox-backend/pkg/enums"
)

// Payment is one provider transaction attempt, append-only once terminal.
// Refunds are recorded as new rows with status refunded, never by mutating
// the completed row they supersede.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Type              enums.PaymentType   `gorm:"column:type;type:payment_type;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	AmountCents       int                 `gorm:"column:amount_cents;not null"`
	ProviderPaymentID *string             `gorm:"column:provider_payment_id;index"`
	FailureReason     *string             `gorm:"column:failure_reason"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
}
