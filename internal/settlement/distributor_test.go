package settlement_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coopcarga/backend-carga/internal/settlement"
	"github.com/coopcarga/backend-carga/internal/shipment"
	"github.com/coopcarga/backend-carga/internal/tariff"
)

func testRates() tariff.Rates {
	return tariff.Rates{
		CostPerKg:            decimal.RequireFromString("10"),
		InsuranceDefaultRate: decimal.RequireFromString("0.01"),
		PostalRate:           decimal.RequireFromString("0.06"),
		VATRate:              decimal.Zero,
		SurchargeRate:        decimal.RequireFromString("0.03"),
		CoopShareRate:        decimal.RequireFromString("0.25"),
		HandlingFee:          decimal.RequireFromString("10"),
	}
}

func freightShipment(id string, weightKg string, paymentType tariff.PaymentType) shipment.Shipment {
	return shipment.Shipment{
		ID:           id,
		MasterStatus: shipment.MasterActive,
		Guide: tariff.Guide{
			OriginOfficeID:      "CCS",
			DestinationOfficeID: "MCY",
			PaymentType:         paymentType,
			PaymentCurrency:     tariff.CurrencyLocal,
			Lines: []tariff.Line{{
				Quantity: 1,
				WeightKg: decimal.RequireFromString(weightKg),
			}},
		},
	}
}

func TestComputeSplitsBucketsByPaymentType(t *testing.T) {
	shipments := []shipment.Shipment{
		freightShipment("a", "100", tariff.PaymentPaidAtOrigin),
		freightShipment("b", "50", tariff.PaymentCollectAtDestination),
	}

	got := settlement.Compute(shipments, testRates())

	require.Equal(t, 1, got.PaidAtOrigin.Shipments)
	require.True(t, got.PaidAtOrigin.Freight.Equal(decimal.RequireFromString("1000")), got.PaidAtOrigin.Freight.String())
	require.True(t, got.PaidAtOrigin.PostalContribution.Equal(decimal.RequireFromString("60")))
	require.True(t, got.PaidAtOrigin.Handling.Equal(decimal.RequireFromString("10")))
	require.True(t, got.PaidAtOrigin.CooperativeShare.Equal(decimal.RequireFromString("250")))
	// 1000 - 250 - (60 + 0 + 10 + 0)
	require.True(t, got.PaidAtOrigin.AssociateShare.Equal(decimal.RequireFromString("680")), got.PaidAtOrigin.AssociateShare.String())

	require.Equal(t, 1, got.CollectAtDestination.Shipments)
	require.True(t, got.CollectAtDestination.Freight.Equal(decimal.RequireFromString("500")))
	require.True(t, got.CollectAtDestination.CooperativeShare.Equal(decimal.RequireFromString("125")))
	require.True(t, got.CollectAtDestination.AssociateShare.Equal(decimal.RequireFromString("335")))

	require.True(t, got.ReceivableFromAssociate.Equal(got.PaidAtOrigin.AssociateShare))
	// 500 + 10 handling + 30 postal
	require.True(t, got.DestinationCollectible.Equal(decimal.RequireFromString("540")), got.DestinationCollectible.String())
	require.Zero(t, got.Discrepancies)
}

func TestComputeIsOrderIndependentAndRepeatable(t *testing.T) {
	shipments := []shipment.Shipment{
		freightShipment("a", "100", tariff.PaymentPaidAtOrigin),
		freightShipment("b", "50", tariff.PaymentCollectAtDestination),
		freightShipment("c", "17.5", tariff.PaymentPaidAtOrigin),
	}
	reversed := []shipment.Shipment{shipments[2], shipments[1], shipments[0]}

	first := settlement.Compute(shipments, testRates())
	second := settlement.Compute(shipments, testRates())
	swapped := settlement.Compute(reversed, testRates())

	require.Equal(t, first, second)
	require.Equal(t, first, swapped)
}

func TestComputeExcludesVoidedShipments(t *testing.T) {
	voided := freightShipment("v", "100", tariff.PaymentPaidAtOrigin)
	voided.MasterStatus = shipment.MasterVoided
	shipments := []shipment.Shipment{
		voided,
		freightShipment("a", "50", tariff.PaymentPaidAtOrigin),
	}

	got := settlement.Compute(shipments, testRates())

	require.Equal(t, 1, got.Discrepancies)
	require.Equal(t, 1, got.PaidAtOrigin.Shipments)
	require.True(t, got.PaidAtOrigin.Freight.Equal(decimal.RequireFromString("500")))
}

func TestComputeAssociateShareMayGoNegative(t *testing.T) {
	sh := freightShipment("tiny", "1", tariff.PaymentPaidAtOrigin)
	sh.Guide.HasInsurance = true
	sh.Guide.DeclaredValue = decimal.RequireFromString("1000")
	sh.Guide.InsuranceRate = decimal.RequireFromString("0.02")

	got := settlement.Compute([]shipment.Shipment{sh}, testRates())

	// freight 10, coop 2.5, deductions 0.6 postal + 20 insurance + 10 handling
	require.True(t, got.PaidAtOrigin.AssociateShare.Equal(decimal.RequireFromString("-23.1")), got.PaidAtOrigin.AssociateShare.String())
	require.True(t, got.ReceivableFromAssociate.IsNegative())
}

func TestComputeEmptyInput(t *testing.T) {
	got := settlement.Compute(nil, testRates())
	require.Zero(t, got.PaidAtOrigin.Shipments)
	require.True(t, got.ReceivableFromAssociate.IsZero())
	require.True(t, got.DestinationCollectible.IsZero())
}
