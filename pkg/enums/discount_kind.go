package enums

import "fmt"

// DiscountKind distinguishes the two mutually exclusive discount programs.
type DiscountKind string

const (
	DiscountKindReferral DiscountKind = "referral"
	DiscountKindRebate   DiscountKind = "rebate"
)

var validDiscountKinds = []DiscountKind{
	DiscountKindReferral,
	DiscountKindRebate,
}

// String implements fmt.Stringer.
func (d DiscountKind) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountKind.
func (d DiscountKind) IsValid() bool {
	for _, candidate := range validDiscountKinds {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountKind converts raw input into a DiscountKind.
func ParseDiscountKind(value string) (DiscountKind, error) {
	for _, candidate := range validDiscountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount kind %q", value)
}
