package tariff_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coopcarga/backend-carga/internal/tariff"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRates() tariff.Rates {
	return tariff.Rates{
		CostPerKg:            dec("12"),
		InsuranceDefaultRate: dec("0.01"),
		PostalRate:           dec("0.06"),
		VATRate:              dec("0"),
		SurchargeRate:        dec("0.03"),
		CoopShareRate:        dec("0.25"),
		HandlingFee:          dec("10"),
	}
}

func TestComputeVolumetricWeight(t *testing.T) {
	t.Parallel()

	guide := tariff.Guide{
		Lines: []tariff.Line{
			{Quantity: 2, WeightKg: dec("3"), LengthCm: dec("30"), WidthCm: dec("30"), HeightCm: dec("30")},
		},
		PaymentCurrency: tariff.CurrencyLocal,
	}
	b := tariff.Compute(guide, testRates())

	// volumetric = 27000/5000 = 5.4 > 3 real, times two pieces.
	require.True(t, b.ChargeableWeight.Equal(dec("10.8")), "chargeable weight %s", b.ChargeableWeight)
	require.True(t, b.Freight.Equal(dec("129.6")), "freight %s", b.Freight)
}

func TestComputeEmptyGuideIsAllZero(t *testing.T) {
	t.Parallel()

	b := tariff.Compute(tariff.Guide{}, testRates())
	require.True(t, b.Freight.IsZero())
	require.True(t, b.Handling.IsZero())
	require.True(t, b.PostalContribution.IsZero())
	require.True(t, b.Total.IsZero())
}

func TestComputeInsuranceOnDeclaredValue(t *testing.T) {
	t.Parallel()

	guide := tariff.Guide{
		Lines:           []tariff.Line{{Quantity: 1, WeightKg: dec("1")}},
		HasInsurance:    true,
		DeclaredValue:   dec("1000"),
		InsuranceRate:   dec("0.02"),
		PaymentCurrency: tariff.CurrencyLocal,
	}
	b := tariff.Compute(guide, testRates())
	require.True(t, b.Insurance.Equal(dec("20")), "insurance %s", b.Insurance)

	// Insurance does not move with freight.
	guide.Lines[0].WeightKg = dec("500")
	b = tariff.Compute(guide, testRates())
	require.True(t, b.Insurance.Equal(dec("20")))
}

func TestComputePostalContributionIgnoresDiscount(t *testing.T) {
	t.Parallel()

	base := tariff.Guide{
		Lines:           []tariff.Line{{Quantity: 1, WeightKg: dec("100")}},
		PaymentCurrency: tariff.CurrencyLocal,
	}
	discounted := base
	discounted.HasDiscount = true
	discounted.DiscountRate = dec("0.5")

	plain := tariff.Compute(base, testRates())
	withDiscount := tariff.Compute(discounted, testRates())

	require.True(t, withDiscount.Discount.Equal(dec("600")))
	require.True(t, plain.PostalContribution.Equal(withDiscount.PostalContribution),
		"postal contribution must track undiscounted freight")
	require.True(t, withDiscount.Subtotal.LessThan(plain.Subtotal))
}

func TestComputeForeignCurrencySurcharge(t *testing.T) {
	t.Parallel()

	guide := tariff.Guide{
		Lines:           []tariff.Line{{Quantity: 1, WeightKg: dec("10")}},
		PaymentCurrency: tariff.CurrencyForeign,
	}
	b := tariff.Compute(guide, testRates())

	// freight 120, handling 10, postal 7.2 → surcharge 3% of 137.2.
	require.True(t, b.Surcharge.Equal(dec("4.116")), "surcharge %s", b.Surcharge)
	require.True(t, b.Total.Equal(dec("141.316")), "total %s", b.Total)

	guide.PaymentCurrency = tariff.CurrencyLocal
	b = tariff.Compute(guide, testRates())
	require.True(t, b.Surcharge.IsZero())
}

func TestComputeClampsNegativeInput(t *testing.T) {
	t.Parallel()

	guide := tariff.Guide{
		Lines: []tariff.Line{
			{Quantity: 1, WeightKg: dec("-5"), LengthCm: dec("-10"), WidthCm: dec("20"), HeightCm: dec("20")},
			{Quantity: -3, WeightKg: dec("50")},
		},
		PaymentCurrency: tariff.CurrencyLocal,
	}
	b := tariff.Compute(guide, testRates())

	// Both lines collapse to zero weight, so only zero components remain.
	require.True(t, b.ChargeableWeight.IsZero())
	require.True(t, b.Freight.IsZero())
	require.True(t, b.Handling.IsZero())
}

func TestComputeIsDeterministic(t *testing.T) {
	t.Parallel()

	guide := tariff.Guide{
		Lines: []tariff.Line{
			{Quantity: 2, WeightKg: dec("3.7"), LengthCm: dec("41"), WidthCm: dec("33"), HeightCm: dec("27")},
			{Quantity: 1, WeightKg: dec("12.25")},
		},
		HasInsurance:    true,
		DeclaredValue:   dec("340.50"),
		InsuranceRate:   dec("0.015"),
		HasDiscount:     true,
		DiscountRate:    dec("0.1"),
		PaymentCurrency: tariff.CurrencyForeign,
	}
	first := tariff.Compute(guide, testRates())
	second := tariff.Compute(guide, testRates())
	require.True(t, first.Total.Equal(second.Total))
	require.True(t, first.PostalContribution.Equal(second.PostalContribution))
	require.True(t, first.Surcharge.Equal(second.Surcharge))
}
