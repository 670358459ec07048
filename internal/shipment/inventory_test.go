package shipment_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coopcarga/backend-carga/internal/shipment"
	"github.com/coopcarga/backend-carga/internal/tariff"
)

func inventoryShipment(id string, status shipment.ShippingStatus, master shipment.MasterStatus) shipment.Shipment {
	return shipment.Shipment{
		ID:             id,
		Number:         "F-00000" + id,
		MasterStatus:   master,
		ShippingStatus: status,
		Guide: tariff.Guide{
			OriginOfficeID:      "CCS",
			DestinationOfficeID: "MCY",
			Lines: []tariff.Line{
				{Quantity: 2, WeightKg: decimal.RequireFromString("5")},
				{Quantity: 1, WeightKg: decimal.RequireFromString("3")},
			},
		},
	}
}

func TestInventoryItemsOnlyAtDestination(t *testing.T) {
	shipments := []shipment.Shipment{
		inventoryShipment("1", shipment.StatusAtDestination, shipment.MasterActive),
		inventoryShipment("2", shipment.StatusInTransit, shipment.MasterActive),
		inventoryShipment("3", shipment.StatusDelivered, shipment.MasterActive),
		inventoryShipment("4", shipment.StatusAtDestination, shipment.MasterVoided),
	}

	items := shipment.InventoryItems(shipments)
	require.Len(t, items, 1)
	require.Equal(t, "1", items[0].ShipmentID)
	require.Equal(t, "MCY", items[0].OfficeID)
	require.Equal(t, 3, items[0].Pieces)
}

func TestInventoryItemsEmptyInput(t *testing.T) {
	items := shipment.InventoryItems(nil)
	require.NotNil(t, items)
	require.Empty(t, items)
}
