package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/types"
)

// Quantity granularity per pricing mode. Per-kilogram extras move in 0.1 kg
// steps; per-unit extras in whole units.
var (
	kgStep      = decimal.NewFromFloat(0.1)
	minKg       = decimal.NewFromFloat(0.1)
	minUnits    = decimal.NewFromInt(1)
	zeroceiling = decimal.Zero
)

// ExtraLine is one add-on line as the calculator sees it: a closed variant of
// pricing mode, snapshotted unit price, and a quantity validated against the
// mode's granularity.
type ExtraLine struct {
	ExtraProductID uuid.UUID
	Name           string
	PricingMode    enums.PricingMode
	UnitPriceCents int
	Quantity       decimal.Decimal
}

// Validate enforces the quantity granularity for the line's pricing mode.
func (l ExtraLine) Validate() error {
	switch l.PricingMode {
	case enums.PricingModePerUnit:
		if !l.Quantity.IsInteger() {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "per-unit extras take whole quantities").
				WithDetails(map[string]any{"name": l.Name, "quantity": l.Quantity.String()})
		}
		if l.Quantity.LessThan(minUnits) {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "per-unit quantity must be at least 1").
				WithDetails(map[string]any{"name": l.Name, "quantity": l.Quantity.String()})
		}
	case enums.PricingModePerKg:
		if !l.Quantity.Mod(kgStep).Equal(zeroceiling) {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "per-kg quantity must move in 0.1 kg steps").
				WithDetails(map[string]any{"name": l.Name, "quantity": l.Quantity.String()})
		}
		if l.Quantity.LessThan(minKg) {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "per-kg quantity must be at least 0.1").
				WithDetails(map[string]any{"name": l.Name, "quantity": l.Quantity.String()})
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown pricing mode %q", l.PricingMode))
	}
	if l.UnitPriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative").
			WithDetails(map[string]any{"name": l.Name})
	}
	return nil
}

// LineTotalCents returns unit price times quantity, rounded to whole minor
// units for per-kg weights.
func (l ExtraLine) LineTotalCents() int {
	total := decimal.NewFromInt(int64(l.UnitPriceCents)).Mul(l.Quantity)
	return int(total.Round(0).IntPart())
}

// Input carries everything the calculator needs for one order.
type Input struct {
	BoxPriceCents  int
	DepositPercent int
	Extras         []ExtraLine
	DeliveryMethod enums.DeliveryMethod
	// DeliveryFeeCents is the surcharge for the chosen method; zero for pickup.
	DeliveryFeeCents int
	RushDelivery     bool
	RushFeeCents     int
	Discount         *types.DiscountSnapshot
}

// LineItem is one display/snapshot row of the breakdown.
type LineItem struct {
	Label       string `json:"label"`
	AmountCents int    `json:"amount_cents"`
}

// Totals is the authoritative money result for an order.
type Totals struct {
	BoxPriceCents    int
	ExtrasCents      int
	DeliveryFeeCents int
	RushFeeCents     int
	DiscountCents    int
	DepositCents     int
	RemainderCents   int
	GrandTotalCents  int
	Lines            []LineItem
}

// ComputeTotals derives the deposit/remainder split from mutable inputs.
//
// The deposit is computed from the box price alone; extras, delivery fees and
// the rush surcharge fall entirely on the remainder. The remainder absorbs
// the rounding remainder of the percentage split so deposit+remainder always
// equals the box price before add-ons. A discount reduces only the deposit
// side, clamped at zero.
func ComputeTotals(in Input) (*Totals, error) {
	if in.BoxPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "box price must be non-negative")
	}
	if in.DepositPercent < 0 || in.DepositPercent > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit percent must be between 0 and 100")
	}
	if in.RushDelivery && !in.DeliveryMethod.SupportsRush() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rush delivery is only available with home delivery")
	}

	extrasTotal := 0
	lines := make([]LineItem, 0, len(in.Extras)+4)
	lines = append(lines, LineItem{Label: "box", AmountCents: in.BoxPriceCents})
	for _, extra := range in.Extras {
		if err := extra.Validate(); err != nil {
			return nil, err
		}
		lineTotal := extra.LineTotalCents()
		extrasTotal += lineTotal
		lines = append(lines, LineItem{Label: extra.Name, AmountCents: lineTotal})
	}

	deliveryFee := 0
	if in.DeliveryMethod != enums.DeliveryMethodPickup {
		deliveryFee = in.DeliveryFeeCents
		if deliveryFee > 0 {
			lines = append(lines, LineItem{Label: "delivery", AmountCents: deliveryFee})
		}
	}

	rushFee := 0
	if in.RushDelivery {
		rushFee = in.RushFeeCents
		if rushFee > 0 {
			lines = append(lines, LineItem{Label: "rush delivery", AmountCents: rushFee})
		}
	}

	// floor(box * percent / 100); integer arithmetic avoids drift.
	depositRaw := in.BoxPriceCents * in.DepositPercent / 100
	remainderOfBox := in.BoxPriceCents - depositRaw

	discount := 0
	if in.Discount != nil {
		discount = DiscountAmountCents(in.Discount, depositRaw)
		if discount > 0 {
			lines = append(lines, LineItem{Label: "discount " + in.Discount.Code, AmountCents: -discount})
		}
	}

	deposit := depositRaw - discount
	if deposit < 0 {
		deposit = 0
	}
	remainder := remainderOfBox + extrasTotal + deliveryFee + rushFee

	return &Totals{
		BoxPriceCents:    in.BoxPriceCents,
		ExtrasCents:      extrasTotal,
		DeliveryFeeCents: deliveryFee,
		RushFeeCents:     rushFee,
		DiscountCents:    discount,
		DepositCents:     deposit,
		RemainderCents:   remainder,
		GrandTotalCents:  deposit + remainder,
		Lines:            lines,
	}, nil
}

// ResolveDiscount enforces mutual exclusivity: at most one of referral/rebate
// may be supplied. Callers that want to switch kinds must clear first, then
// apply; sending both at once is a conflict.
func ResolveDiscount(referral, rebate *types.DiscountSnapshot) (*types.DiscountSnapshot, error) {
	if referral != nil && rebate != nil {
		return nil, pkgerrors.New(pkgerrors.CodeDiscountConflict, "referral and rebate discounts cannot be combined")
	}
	if referral != nil {
		return referral, nil
	}
	return rebate, nil
}

// DiscountAmountCents resolves the snapshot's effective amount against the
// deposit basis. A frozen amount wins over the percentage rule, so orders
// keep the figure promised at application time; percentage discounts floor.
// Either way the result clamps to the basis so the deposit never goes
// negative.
func DiscountAmountCents(snapshot *types.DiscountSnapshot, basisCents int) int {
	if snapshot == nil || basisCents <= 0 {
		return 0
	}
	amount := snapshot.AmountCents
	if amount == 0 && snapshot.PercentOff != nil {
		amount = basisCents * *snapshot.PercentOff / 100
	}
	if amount < 0 {
		amount = 0
	}
	if amount > basisCents {
		amount = basisCents
	}
	return amount
}
