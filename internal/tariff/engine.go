package tariff

import "github.com/shopspring/decimal"

// volumetricDivisor converts cubic centimetres into kilograms.
var volumetricDivisor = decimal.NewFromInt(5000)

// PaymentType determines at which end of the route the freight is collected.
type PaymentType string

const (
	// PaymentPaidAtOrigin means the sender paid the freight when the guide was issued.
	PaymentPaidAtOrigin PaymentType = "paid_at_origin"
	// PaymentCollectAtDestination means the receiver pays on delivery.
	PaymentCollectAtDestination PaymentType = "collect_at_destination"
)

// Currency is the currency the customer pays in.
type Currency string

const (
	// CurrencyLocal is the reporting currency. No surcharge applies.
	CurrencyLocal Currency = "VES"
	// CurrencyForeign triggers the foreign-currency transaction surcharge.
	CurrencyForeign Currency = "USD"
)

// Line is a single merchandise entry on a shipping guide.
type Line struct {
	Quantity   int             `json:"quantity"`
	WeightKg   decimal.Decimal `json:"weightKg"`
	LengthCm   decimal.Decimal `json:"lengthCm"`
	WidthCm    decimal.Decimal `json:"widthCm"`
	HeightCm   decimal.Decimal `json:"heightCm"`
	CategoryID string          `json:"categoryId,omitempty"`
}

// Guide carries every input the calculator needs for one shipment.
type Guide struct {
	OriginOfficeID      string          `json:"originOfficeId"`
	DestinationOfficeID string          `json:"destinationOfficeId"`
	Lines               []Line          `json:"lines"`
	PaymentType         PaymentType     `json:"paymentType"`
	PaymentCurrency     Currency        `json:"paymentCurrency"`
	HasInsurance        bool            `json:"hasInsurance"`
	DeclaredValue       decimal.Decimal `json:"declaredValue"`
	InsuranceRate       decimal.Decimal `json:"insuranceRate"`
	HasDiscount         bool            `json:"hasDiscount"`
	DiscountRate        decimal.Decimal `json:"discountRate"`
}

// Rates is the company rate configuration. It is passed explicitly into every
// calculation; nothing in this package reads ambient state.
type Rates struct {
	CostPerKg            decimal.Decimal
	InsuranceDefaultRate decimal.Decimal
	PostalRate           decimal.Decimal
	VATRate              decimal.Decimal
	SurchargeRate        decimal.Decimal
	CoopShareRate        decimal.Decimal
	HandlingFee          decimal.Decimal
}

// Breakdown aggregates the computed monetary components of one shipment.
type Breakdown struct {
	ChargeableWeight   decimal.Decimal `json:"chargeableWeight"`
	Freight            decimal.Decimal `json:"freight"`
	Discount           decimal.Decimal `json:"discount"`
	Insurance          decimal.Decimal `json:"insurance"`
	Handling           decimal.Decimal `json:"handling"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	PostalContribution decimal.Decimal `json:"postalContribution"`
	VAT                decimal.Decimal `json:"vat"`
	Surcharge          decimal.Decimal `json:"surcharge"`
	Total              decimal.Decimal `json:"total"`
}

// ZeroBreakdown returns a breakdown with every component set to zero.
func ZeroBreakdown() Breakdown {
	zero := decimal.Zero
	return Breakdown{
		ChargeableWeight:   zero,
		Freight:            zero,
		Discount:           zero,
		Insurance:          zero,
		Handling:           zero,
		Subtotal:           zero,
		PostalContribution: zero,
		VAT:                zero,
		Surcharge:          zero,
		Total:              zero,
	}
}

// clampNonNegative treats malformed negative input as zero so the calculator
// stays a total function.
func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// LineChargeableWeight returns max(real, volumetric) * quantity for one line.
func LineChargeableWeight(l Line) decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	real := clampNonNegative(l.WeightKg)
	length := clampNonNegative(l.LengthCm)
	width := clampNonNegative(l.WidthCm)
	height := clampNonNegative(l.HeightCm)

	volumetric := length.Mul(width).Mul(height).Div(volumetricDivisor)
	chargeable := real
	if volumetric.GreaterThan(chargeable) {
		chargeable = volumetric
	}
	return chargeable.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ChargeableWeight sums the chargeable weight over every merchandise line.
func ChargeableWeight(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(LineChargeableWeight(l))
	}
	return total
}

// Compute calculates the full financial breakdown for a guide. It is pure and
// deterministic: the same guide and rates always produce the same breakdown.
func Compute(g Guide, r Rates) Breakdown {
	if len(g.Lines) == 0 {
		return ZeroBreakdown()
	}

	weight := ChargeableWeight(g.Lines)
	freight := weight.Mul(r.CostPerKg)

	discount := decimal.Zero
	if g.HasDiscount {
		discount = freight.Mul(clampNonNegative(g.DiscountRate))
	}
	freightAfterDiscount := freight.Sub(discount)

	insurance := decimal.Zero
	if g.HasInsurance {
		rate := clampNonNegative(g.InsuranceRate)
		if rate.IsZero() {
			rate = r.InsuranceDefaultRate
		}
		insurance = clampNonNegative(g.DeclaredValue).Mul(rate)
	}

	handling := decimal.Zero
	if weight.IsPositive() {
		handling = r.HandlingFee
	}

	subtotal := freightAfterDiscount.Add(insurance).Add(handling)

	// The postal contribution is levied on undiscounted freight: regulatory
	// policy ignores commercial discounts.
	postal := freight.Mul(r.PostalRate)

	vat := subtotal.Mul(r.VATRate)

	surcharge := decimal.Zero
	if g.PaymentCurrency == CurrencyForeign {
		surcharge = subtotal.Add(postal).Add(vat).Mul(r.SurchargeRate)
	}

	total := subtotal.Add(postal).Add(vat).Add(surcharge)

	return Breakdown{
		ChargeableWeight:   weight,
		Freight:            freight,
		Discount:           discount,
		Insurance:          insurance,
		Handling:           handling,
		Subtotal:           subtotal,
		PostalContribution: postal,
		VAT:                vat,
		Surcharge:          surcharge,
		Total:              total,
	}
}
