package enums

import "fmt"

// PaymentType splits an order's price into its two provider transactions.
type PaymentType string

const (
	PaymentTypeDeposit   PaymentType = "deposit"
	PaymentTypeRemainder PaymentType = "remainder"
)

var validPaymentTypes = []PaymentType{
	PaymentTypeDeposit,
	PaymentTypeRemainder,
}

// String implements fmt.Stringer.
func (p PaymentType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentType.
func (p PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentType converts raw input into a PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	for _, candidate := range validPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}

// PaymentStatus tracks one provider transaction attempt. Completed, failed
// and refunded rows are append-only; refunds are recorded as new rows and
// never mutate the original completed payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentState is the derived, never-persisted payment position of an order,
// folded from its payment ledger.
type PaymentState string

const (
	PaymentStateDepositPending PaymentState = "deposit_pending"
	PaymentStateRemainderDue   PaymentState = "deposit_paid_remainder_due"
	PaymentStateFullyPaid      PaymentState = "fully_paid"
	PaymentStateRefunded       PaymentState = "refunded"
	PaymentStateFailed         PaymentState = "failed"
)

// String implements fmt.Stringer.
func (p PaymentState) String() string {
	return string(p)
}
