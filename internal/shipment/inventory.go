package shipment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coopcarga/backend-carga/internal/tariff"
)

// InventoryItem is a piece sitting at a destination office awaiting delivery.
// Inventory is derived from shipments, never stored independently.
type InventoryItem struct {
	ShipmentID string          `json:"shipmentId"`
	Number     string          `json:"number"`
	OfficeID   string          `json:"officeId"`
	Pieces     int             `json:"pieces"`
	WeightKg   decimal.Decimal `json:"weightKg"`
	ArrivedAt  time.Time       `json:"arrivedAt"`
}

// InventoryItems derives the office inventory from the provided shipments:
// active pieces that arrived at their destination and were not yet delivered.
func InventoryItems(shipments []Shipment) []InventoryItem {
	items := make([]InventoryItem, 0)
	for _, s := range shipments {
		if !s.Active() || s.ShippingStatus != StatusAtDestination {
			continue
		}
		pieces := 0
		for _, l := range s.Guide.Lines {
			if l.Quantity > 0 {
				pieces += l.Quantity
			}
		}
		items = append(items, InventoryItem{
			ShipmentID: s.ID,
			Number:     s.Number,
			OfficeID:   s.Guide.DestinationOfficeID,
			Pieces:     pieces,
			WeightKg:   tariff.ChargeableWeight(s.Guide.Lines),
			ArrivedAt:  s.UpdatedAt,
		})
	}
	return items
}
