package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coopcarga/backend-carga/internal/shipment"
	"github.com/coopcarga/backend-carga/internal/tariff"
)

// Settlement is the reconciliation record splitting freight revenue between
// cooperative and associate for a set of shipments. Its monetary fields are
// derived: always recomputed from the member shipments, never stored and
// mutated incrementally.
type Settlement struct {
	ID          string    `json:"id"`
	Number      string    `json:"number"`
	AssociateID string    `json:"associateId"`
	VehicleID   string    `json:"vehicleId"`
	ShipmentIDs []string  `json:"shipmentIds"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BucketTotals accumulates the financial components of one payment-type bucket.
type BucketTotals struct {
	Shipments          int             `json:"shipments"`
	Freight            decimal.Decimal `json:"freight"`
	Insurance          decimal.Decimal `json:"insurance"`
	PostalContribution decimal.Decimal `json:"postalContribution"`
	Handling           decimal.Decimal `json:"handling"`
	VAT                decimal.Decimal `json:"vat"`
	CooperativeShare   decimal.Decimal `json:"cooperativeShare"`
	AssociateShare     decimal.Decimal `json:"associateShare"`
}

// Breakdown is the computed financial split of a settlement. The headline
// receivable is the origin-paid bucket's associate share: money the associate
// collected on the cooperative's behalf but has not remitted. The destination
// bucket total is informational, money the destination office still must
// collect from receivers.
type Breakdown struct {
	PaidAtOrigin            BucketTotals    `json:"paidAtOrigin"`
	CollectAtDestination    BucketTotals    `json:"collectAtDestination"`
	ReceivableFromAssociate decimal.Decimal `json:"receivableFromAssociate"`
	DestinationCollectible  decimal.Decimal `json:"destinationCollectible"`
	Discrepancies           int             `json:"discrepancies"`
}

func zeroBucket() BucketTotals {
	zero := decimal.Zero
	return BucketTotals{
		Freight:            zero,
		Insurance:          zero,
		PostalContribution: zero,
		Handling:           zero,
		VAT:                zero,
		CooperativeShare:   zero,
		AssociateShare:     zero,
	}
}

// Compute aggregates the revenue split over a batch of shipments. It is pure
// and order-independent: shipments accumulate into their payment-type bucket
// with exact decimal arithmetic, so recomputation over the same set is always
// bit-identical. Voided shipments are excluded from aggregation and surfaced
// through the discrepancy count.
func Compute(shipments []shipment.Shipment, rates tariff.Rates) Breakdown {
	result := Breakdown{
		PaidAtOrigin:            zeroBucket(),
		CollectAtDestination:    zeroBucket(),
		ReceivableFromAssociate: decimal.Zero,
		DestinationCollectible:  decimal.Zero,
	}

	for _, sh := range shipments {
		if !sh.Active() {
			result.Discrepancies++
			continue
		}
		fin := tariff.Compute(sh.Guide, rates)

		coopShare := fin.Freight.Mul(rates.CoopShareRate)
		deductions := fin.PostalContribution.Add(fin.Insurance).Add(fin.Handling).Add(fin.VAT)
		// The associate share may be negative when deductions exceed freight:
		// the associate owes the cooperative. Never clamp it.
		associateShare := fin.Freight.Sub(coopShare).Sub(deductions)

		bucket := &result.PaidAtOrigin
		if sh.Guide.PaymentType == tariff.PaymentCollectAtDestination {
			bucket = &result.CollectAtDestination
			result.DestinationCollectible = result.DestinationCollectible.Add(fin.Total)
		}
		bucket.Shipments++
		bucket.Freight = bucket.Freight.Add(fin.Freight)
		bucket.Insurance = bucket.Insurance.Add(fin.Insurance)
		bucket.PostalContribution = bucket.PostalContribution.Add(fin.PostalContribution)
		bucket.Handling = bucket.Handling.Add(fin.Handling)
		bucket.VAT = bucket.VAT.Add(fin.VAT)
		bucket.CooperativeShare = bucket.CooperativeShare.Add(coopShare)
		bucket.AssociateShare = bucket.AssociateShare.Add(associateShare)
	}

	result.ReceivableFromAssociate = result.PaidAtOrigin.AssociateShare
	return result
}
