package enums

import "fmt"

// ProductLine identifies which seasonal storefront an order belongs to.
type ProductLine string

const (
	ProductLinePork ProductLine = "pork"
	ProductLineEgg  ProductLine = "egg"
)

var validProductLines = []ProductLine{
	ProductLinePork,
	ProductLineEgg,
}

// String implements fmt.Stringer.
func (p ProductLine) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductLine.
func (p ProductLine) IsValid() bool {
	for _, candidate := range validProductLines {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductLine converts raw input into a ProductLine.
func ParseProductLine(value string) (ProductLine, error) {
	for _, candidate := range validProductLines {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product line %q", value)
}

// PricingMode distinguishes extras sold by whole units from extras sold by
// weight in 0.1 kg steps.
type PricingMode string

const (
	PricingModePerUnit PricingMode = "per_unit"
	PricingModePerKg   PricingMode = "per_kg"
)

var validPricingModes = []PricingMode{
	PricingModePerUnit,
	PricingModePerKg,
}

// String implements fmt.Stringer.
func (p PricingMode) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PricingMode.
func (p PricingMode) IsValid() bool {
	for _, candidate := range validPricingModes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePricingMode converts raw input into a PricingMode.
func ParsePricingMode(value string) (PricingMode, error) {
	for _, candidate := range validPricingModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pricing mode %q", value)
}
