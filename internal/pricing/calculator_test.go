package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaardshagen/farmbox-backend/pkg/enums"
	pkgerrors "github.com/gaardshagen/farmbox-backend/pkg/errors"
	"github.com/gaardshagen/farmbox-backend/pkg/types"
)

func intPtr(v int) *int { return &v }

func TestComputeTotals_DepositSplit(t *testing.T) {
	totals, err := ComputeTotals(Input{
		BoxPriceCents:  10_000,
		DepositPercent: 50,
		DeliveryMethod: enums.DeliveryMethodPickup,
	})
	require.NoError(t, err)

	assert.Equal(t, 5_000, totals.DepositCents)
	assert.Equal(t, 5_000, totals.RemainderCents)
	assert.Equal(t, 10_000, totals.GrandTotalCents)
}

func TestComputeTotals_RoundingFallsOnRemainder(t *testing.T) {
	// 9,999 * 50% floors to 4,999; the odd cent lands on the remainder.
	totals, err := ComputeTotals(Input{
		BoxPriceCents:  9_999,
		DepositPercent: 50,
		DeliveryMethod: enums.DeliveryMethodPickup,
	})
	require.NoError(t, err)

	assert.Equal(t, 4_999, totals.DepositCents)
	assert.Equal(t, 5_000, totals.RemainderCents)
	assert.Equal(t, totals.BoxPriceCents, totals.DepositCents+totals.RemainderCents)
}

func TestComputeTotals_ExtrasAndFeesOnRemainder(t *testing.T) {
	totals, err := ComputeTotals(Input{
		BoxPriceCents:  10_000,
		DepositPercent: 50,
		Extras: []ExtraLine{
			{Name: "sausages", PricingMode: enums.PricingModePerUnit, UnitPriceCents: 600, Quantity: decimal.NewFromInt(2)},
		},
		DeliveryMethod:   enums.DeliveryMethodHomeDelivery,
		DeliveryFeeCents: 300,
	})
	require.NoError(t, err)

	assert.Equal(t, 5_000, totals.DepositCents)
	assert.Equal(t, 6_500, totals.RemainderCents)
	assert.Equal(t, 11_500, totals.GrandTotalCents)
}

func TestComputeTotals_DiscountReducesDepositOnly(t *testing.T) {
	totals, err := ComputeTotals(Input{
		BoxPriceCents:  10_000,
		DepositPercent: 50,
		Extras: []ExtraLine{
			{Name: "sausages", PricingMode: enums.PricingModePerUnit, UnitPriceCents: 600, Quantity: decimal.NewFromInt(2)},
		},
		DeliveryMethod:   enums.DeliveryMethodHomeDelivery,
		DeliveryFeeCents: 300,
		Discount: &types.DiscountSnapshot{
			Kind:        enums.DiscountKindReferral,
			Code:        "FRIEND500",
			AmountCents: 500,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 4_500, totals.DepositCents)
	assert.Equal(t, 6_500, totals.RemainderCents)
	assert.Equal(t, 11_000, totals.GrandTotalCents)
}

func TestComputeTotals_DiscountClampsAtZeroDeposit(t *testing.T) {
	totals, err := ComputeTotals(Input{
		BoxPriceCents:  1_000,
		DepositPercent: 50,
		DeliveryMethod: enums.DeliveryMethodPickup,
		Discount: &types.DiscountSnapshot{
			Kind:        enums.DiscountKindRebate,
			Code:        "BIGREBATE",
			AmountCents: 2_000,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, totals.DepositCents)
	assert.Equal(t, 500, totals.RemainderCents)
	assert.Equal(t, 500, totals.DiscountCents)
}

func TestComputeTotals_PercentDiscount(t *testing.T) {
	totals, err := ComputeTotals(Input{
		BoxPriceCents:  10_000,
		DepositPercent: 50,
		DeliveryMethod: enums.DeliveryMethodPickup,
		Discount: &types.DiscountSnapshot{
			Kind:       enums.DiscountKindReferral,
			Code:       "TENOFF",
			PercentOff: intPtr(10),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 500, totals.DiscountCents)
	assert.Equal(t, 4_500, totals.DepositCents)
}

func TestComputeTotals_RushRequiresHomeDelivery(t *testing.T) {
	_, err := ComputeTotals(Input{
		BoxPriceCents:  10_000,
		DepositPercent: 50,
		DeliveryMethod: enums.DeliveryMethodPickup,
		RushDelivery:   true,
		RushFeeCents:   15_000,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestComputeTotals_PerKgLineTotal(t *testing.T) {
	totals, err := ComputeTotals(Input{
		BoxPriceCents:  10_000,
		DepositPercent: 50,
		Extras: []ExtraLine{
			{Name: "bacon", PricingMode: enums.PricingModePerKg, UnitPriceCents: 2_490, Quantity: decimal.NewFromFloat(0.5)},
		},
		DeliveryMethod: enums.DeliveryMethodPickup,
	})
	require.NoError(t, err)

	assert.Equal(t, 1_245, totals.ExtrasCents)
	assert.Equal(t, 6_245, totals.RemainderCents)
}

func TestExtraLine_Validate(t *testing.T) {
	tests := []struct {
		name    string
		line    ExtraLine
		wantErr bool
	}{
		{
			name: "per-unit whole quantity",
			line: ExtraLine{Name: "eggs", PricingMode: enums.PricingModePerUnit, UnitPriceCents: 100, Quantity: decimal.NewFromInt(3)},
		},
		{
			name:    "per-unit fractional quantity",
			line:    ExtraLine{Name: "eggs", PricingMode: enums.PricingModePerUnit, UnitPriceCents: 100, Quantity: decimal.NewFromFloat(1.5)},
			wantErr: true,
		},
		{
			name:    "per-unit zero quantity",
			line:    ExtraLine{Name: "eggs", PricingMode: enums.PricingModePerUnit, UnitPriceCents: 100, Quantity: decimal.Zero},
			wantErr: true,
		},
		{
			name: "per-kg tenth step",
			line: ExtraLine{Name: "bacon", PricingMode: enums.PricingModePerKg, UnitPriceCents: 2_490, Quantity: decimal.NewFromFloat(0.3)},
		},
		{
			name:    "per-kg off-step quantity",
			line:    ExtraLine{Name: "bacon", PricingMode: enums.PricingModePerKg, UnitPriceCents: 2_490, Quantity: decimal.NewFromFloat(0.25)},
			wantErr: true,
		},
		{
			name:    "per-kg below minimum",
			line:    ExtraLine{Name: "bacon", PricingMode: enums.PricingModePerKg, UnitPriceCents: 2_490, Quantity: decimal.NewFromFloat(0.05)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.line.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidQuantity))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestResolveDiscount_Conflict(t *testing.T) {
	referral := &types.DiscountSnapshot{Kind: enums.DiscountKindReferral, Code: "A", AmountCents: 100}
	rebate := &types.DiscountSnapshot{Kind: enums.DiscountKindRebate, Code: "B", AmountCents: 200}

	_, err := ResolveDiscount(referral, rebate)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDiscountConflict))

	got, err := ResolveDiscount(referral, nil)
	require.NoError(t, err)
	assert.Equal(t, referral, got)

	got, err = ResolveDiscount(nil, rebate)
	require.NoError(t, err)
	assert.Equal(t, rebate, got)

	got, err = ResolveDiscount(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
