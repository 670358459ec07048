package visibility_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coopcarga/backend-carga/internal/common"
	"github.com/coopcarga/backend-carga/internal/dispatch"
	"github.com/coopcarga/backend-carga/internal/expense"
	"github.com/coopcarga/backend-carga/internal/settlement"
	"github.com/coopcarga/backend-carga/internal/shipment"
	"github.com/coopcarga/backend-carga/internal/tariff"
	"github.com/coopcarga/backend-carga/internal/visibility"
)

func ship(id, origin, destination string) shipment.Shipment {
	return shipment.Shipment{
		ID: id,
		Guide: tariff.Guide{
			OriginOfficeID:      origin,
			DestinationOfficeID: destination,
		},
	}
}

func officeActor(office string, capabilities ...string) common.Actor {
	return common.Actor{UserID: "u-1", OfficeID: office, Capabilities: capabilities}
}

func TestShipmentsScopedToOwnOffices(t *testing.T) {
	shipments := []shipment.Shipment{
		ship("s1", "CCS", "MCY"),
		ship("s2", "VAL", "BRM"),
		ship("s3", "MCY", "VAL"),
	}

	got := visibility.Shipments(officeActor("CCS"), shipments, nil)
	require.Len(t, got, 1)
	require.Equal(t, "s1", got[0].ID)

	// destination office sees inbound shipments too
	got = visibility.Shipments(officeActor("MCY"), shipments, nil)
	require.Len(t, got, 2)
}

func TestShipmentsVisibleThroughManifestLeg(t *testing.T) {
	shipments := []shipment.Shipment{ship("s1", "CCS", "MCY")}
	manifests := []dispatch.Manifest{{
		ID:                  "m1",
		OriginOfficeID:      "CCS",
		DestinationOfficeID: "VAL",
		ShipmentIDs:         []string{"s1"},
	}}

	// VAL is neither origin nor destination of the shipment itself, but the
	// manifest rerouted it through VAL
	got := visibility.Shipments(officeActor("VAL"), shipments, manifests)
	require.Len(t, got, 1)

	got = visibility.Shipments(officeActor("BRM"), shipments, manifests)
	require.Empty(t, got)
}

func TestShipmentsGlobalScopeSeesAll(t *testing.T) {
	shipments := []shipment.Shipment{
		ship("s1", "CCS", "MCY"),
		ship("s2", "VAL", "BRM"),
	}
	admin := officeActor("CCS", common.CapManageAllOffices)
	require.Len(t, visibility.Shipments(admin, shipments, nil), 2)
}

func TestShipmentsOfficelessActorSeesNothing(t *testing.T) {
	shipments := []shipment.Shipment{ship("s1", "CCS", "MCY")}
	got := visibility.Shipments(common.Actor{UserID: "u-1"}, shipments, nil)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestManifestsScopedToTouchedOffices(t *testing.T) {
	manifests := []dispatch.Manifest{
		{ID: "m1", OriginOfficeID: "CCS", DestinationOfficeID: "MCY"},
		{ID: "m2", OriginOfficeID: "VAL", DestinationOfficeID: "BRM"},
	}

	got := visibility.Manifests(officeActor("MCY"), manifests)
	require.Len(t, got, 1)
	require.Equal(t, "m1", got[0].ID)

	require.Len(t, visibility.Manifests(officeActor("CCS", common.CapManageAllOffices), manifests), 2)
	require.Empty(t, visibility.Manifests(common.Actor{UserID: "u-1"}, manifests))
}

func TestSettlementsInheritShipmentVisibility(t *testing.T) {
	settlements := []settlement.Settlement{
		{ID: "r1", ShipmentIDs: []string{"s1", "s2"}},
		{ID: "r2", ShipmentIDs: []string{"s3"}},
	}
	visibleShipments := []shipment.Shipment{ship("s2", "CCS", "MCY")}

	got := visibility.Settlements(officeActor("CCS"), settlements, visibleShipments)
	require.Len(t, got, 1)
	require.Equal(t, "r1", got[0].ID)

	admin := officeActor("CCS", common.CapManageAllOffices)
	require.Len(t, visibility.Settlements(admin, settlements, nil), 2)
}

func TestInventoryInheritsShipmentVisibility(t *testing.T) {
	items := []shipment.InventoryItem{
		{ShipmentID: "s1"},
		{ShipmentID: "s2"},
	}
	visibleShipments := []shipment.Shipment{ship("s1", "CCS", "MCY")}

	got := visibility.Inventory(officeActor("CCS"), items, visibleShipments)
	require.Len(t, got, 1)
	require.Equal(t, "s1", got[0].ShipmentID)

	admin := officeActor("CCS", common.CapManageAllOffices)
	require.Len(t, visibility.Inventory(admin, items, nil), 2)
}

func TestExpensesScopedByOfficeField(t *testing.T) {
	expenses := []expense.Expense{
		{ID: "e1", OfficeID: "CCS"},
		{ID: "e2", OfficeID: "MCY"},
	}

	got := visibility.Expenses(officeActor("CCS"), expenses)
	require.Len(t, got, 1)
	require.Equal(t, "e1", got[0].ID)

	// the expense lens has its own capability, distinct from global office scope
	auditor := officeActor("CCS", common.CapManageAllOfficeExpenses)
	require.Len(t, visibility.Expenses(auditor, expenses), 2)

	require.Empty(t, visibility.Expenses(common.Actor{UserID: "u-1"}, expenses))
}
