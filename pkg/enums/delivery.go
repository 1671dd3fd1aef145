package enums

import "fmt"

// DeliveryMethod is how a box reaches the customer.
type DeliveryMethod string

const (
	DeliveryMethodPickup       DeliveryMethod = "pickup"
	DeliveryMethodHomeDelivery DeliveryMethod = "home_delivery"
	DeliveryMethodPostal       DeliveryMethod = "postal"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryMethodPickup,
	DeliveryMethodHomeDelivery,
	DeliveryMethodPostal,
}

// String implements fmt.Stringer.
func (d DeliveryMethod) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryMethod.
func (d DeliveryMethod) IsValid() bool {
	for _, candidate := range validDeliveryMethods {
		if candidate == d {
			return true
		}
	}
	return false
}

// SupportsRush reports whether the fresh-delivery surcharge can be selected.
// Rush is only offered alongside home delivery.
func (d DeliveryMethod) SupportsRush() bool {
	return d == DeliveryMethodHomeDelivery
}

// RequiresShippingDetails reports whether recipient address fields must be
// filled in before dispatch.
func (d DeliveryMethod) RequiresShippingDetails() bool {
	return d == DeliveryMethodPostal
}

// ParseDeliveryMethod converts raw input into a DeliveryMethod.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	for _, candidate := range validDeliveryMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery method %q", value)
}
