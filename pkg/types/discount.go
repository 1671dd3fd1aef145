package types

import "github.com/gaardshagen/farmbox-backend/pkg/enums"

// DiscountSnapshot freezes the discount applied to an order at application
// time. An order carries at most one; applying a new discount replaces the
// previous snapshot wholesale.
type DiscountSnapshot struct {
	Kind        enums.DiscountKind `json:"kind"`
	Code        string             `json:"code"`
	PercentOff  *int               `json:"percent_off,omitempty"`
	AmountCents int                `json:"amount_cents"`
}
