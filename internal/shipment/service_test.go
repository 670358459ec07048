package shipment_test

import (
	"context"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coopcarga/backend-carga/internal/common"
	"github.com/coopcarga/backend-carga/internal/fleet"
	"github.com/coopcarga/backend-carga/internal/obs"
	"github.com/coopcarga/backend-carga/internal/shipment"
	"github.com/coopcarga/backend-carga/internal/store"
	"github.com/coopcarga/backend-carga/internal/tariff"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	os.Exit(m.Run())
}

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

func testGuide(weightKg string) tariff.Guide {
	return tariff.Guide{
		OriginOfficeID:      "CCS",
		DestinationOfficeID: "MCY",
		PaymentType:         tariff.PaymentPaidAtOrigin,
		PaymentCurrency:     tariff.CurrencyLocal,
		Lines:               []tariff.Line{{Quantity: 1, WeightKg: decimal.RequireFromString(weightKg)}},
	}
}

func newService(mem *store.Memory) *shipment.Service {
	return &shipment.Service{
		Store:    mem,
		Vehicles: &fleet.Service{Store: mem},
		Rates:    testRates(),
	}
}

func seedVehicle(t *testing.T, mem *store.Memory, capacityKg string) fleet.Vehicle {
	t.Helper()
	ctx := context.Background()
	associate := fleet.Associate{Name: "Pedro Rivas"}
	require.NoError(t, mem.CreateAssociate(ctx, &associate))
	vehicle := fleet.Vehicle{
		PlateNumber: "AB123CD",
		AssociateID: associate.ID,
		CapacityKg:  decimal.RequireFromString(capacityKg),
		Status:      fleet.VehicleOperative,
	}
	require.NoError(t, mem.CreateVehicle(ctx, &vehicle))
	return vehicle
}

func TestCreateAssignsNumberAndInitialStatuses(t *testing.T) {
	svc := newService(store.NewMemory())

	created, err := svc.Create(context.Background(), "client-1", testGuide("10"))
	require.NoError(t, err)
	require.Equal(t, "F-000001", created.Shipment.Number)
	require.Equal(t, shipment.MasterActive, created.Shipment.MasterStatus)
	require.Equal(t, shipment.PaymentPaid, created.Shipment.PaymentStatus)
	require.Equal(t, shipment.StatusPendingDispatch, created.Shipment.ShippingStatus)
	require.True(t, created.Breakdown.Freight.Equal(decimal.RequireFromString("100")))

	second, err := svc.Create(context.Background(), "client-1", testGuide("5"))
	require.NoError(t, err)
	require.Equal(t, "F-000002", second.Shipment.Number)
}

func TestCreateCollectAtDestinationStartsPaymentPending(t *testing.T) {
	svc := newService(store.NewMemory())
	guide := testGuide("10")
	guide.PaymentType = tariff.PaymentCollectAtDestination

	created, err := svc.Create(context.Background(), "client-1", guide)
	require.NoError(t, err)
	require.Equal(t, shipment.PaymentPending, created.Shipment.PaymentStatus)
}

func TestCreateRejectsInvalidGuides(t *testing.T) {
	svc := newService(store.NewMemory())

	sameOffice := testGuide("10")
	sameOffice.DestinationOfficeID = sameOffice.OriginOfficeID
	_, err := svc.Create(context.Background(), "client-1", sameOffice)
	require.Error(t, err)

	badPayment := testGuide("10")
	badPayment.PaymentType = "barter"
	_, err = svc.Create(context.Background(), "client-1", badPayment)
	require.Error(t, err)
}

func TestUpdateGuideOnlyWhilePending(t *testing.T) {
	mem := store.NewMemory()
	svc := newService(mem)
	ctx := context.Background()

	created, err := svc.Create(ctx, "client-1", testGuide("10"))
	require.NoError(t, err)

	heavier := testGuide("20")
	updated, err := svc.UpdateGuide(ctx, created.Shipment.ID, heavier)
	require.NoError(t, err)
	require.True(t, updated.Breakdown.Freight.Equal(decimal.RequireFromString("200")))

	inTransit := shipment.StatusInTransit
	_, err = mem.UpdateShipmentStatuses(ctx, created.Shipment.ID, shipment.StatusPatch{Shipping: &inTransit})
	require.NoError(t, err)

	_, err = svc.UpdateGuide(ctx, created.Shipment.ID, testGuide("30"))
	require.Error(t, err)
	conflict := &shipment.StateConflictError{}
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, shipment.StatusInTransit, conflict.Current)
}

func TestUpdateGuideRejectsVoidedShipment(t *testing.T) {
	mem := store.NewMemory()
	svc := newService(mem)
	ctx := context.Background()

	created, err := svc.Create(ctx, "client-1", testGuide("10"))
	require.NoError(t, err)
	_, err = svc.Void(ctx, created.Shipment.ID)
	require.NoError(t, err)

	_, err = svc.UpdateGuide(ctx, created.Shipment.ID, testGuide("20"))
	require.ErrorIs(t, err, shipment.ErrShipmentVoided)
}

func TestAssignVehicleReportsAdvisoryOverload(t *testing.T) {
	mem := store.NewMemory()
	svc := newService(mem)
	ctx := context.Background()
	vehicle := seedVehicle(t, mem, "15")

	first, err := svc.Create(ctx, "client-1", testGuide("10"))
	require.NoError(t, err)
	result, err := svc.AssignVehicle(ctx, first.Shipment.ID, vehicle.ID)
	require.NoError(t, err)
	require.False(t, result.Load.Overloaded)
	require.Equal(t, 1, result.Load.ShipmentCount)

	// second assignment pushes past the 15kg capacity but still succeeds
	second, err := svc.Create(ctx, "client-1", testGuide("10"))
	require.NoError(t, err)
	result, err = svc.AssignVehicle(ctx, second.Shipment.ID, vehicle.ID)
	require.NoError(t, err)
	require.True(t, result.Load.Overloaded)
	require.Equal(t, 2, result.Load.ShipmentCount)
	require.True(t, result.Load.TotalKg.Equal(decimal.RequireFromString("20")))
	require.NotNil(t, result.Shipment.VehicleID)
	require.Equal(t, vehicle.ID, *result.Shipment.VehicleID)
}

func TestAssignVehicleRequiresExistingVehicle(t *testing.T) {
	mem := store.NewMemory()
	svc := newService(mem)
	ctx := context.Background()

	created, err := svc.Create(ctx, "client-1", testGuide("10"))
	require.NoError(t, err)
	_, err = svc.AssignVehicle(ctx, created.Shipment.ID, "missing")
	require.Error(t, err)
}

func TestVoidIsIdempotentOnlyOnce(t *testing.T) {
	mem := store.NewMemory()
	svc := newService(mem)
	ctx := context.Background()

	created, err := svc.Create(ctx, "client-1", testGuide("10"))
	require.NoError(t, err)

	voided, err := svc.Void(ctx, created.Shipment.ID)
	require.NoError(t, err)
	require.Equal(t, shipment.MasterVoided, voided.MasterStatus)

	_, err = svc.Void(ctx, created.Shipment.ID)
	require.ErrorIs(t, err, shipment.ErrAlreadyVoided)
}

func TestUpdateStatusesEnforcesForwardGraph(t *testing.T) {
	mem := store.NewMemory()
	svc := newService(mem)
	ctx := context.Background()
	clerk := common.Actor{UserID: "u-1", OfficeID: "CCS"}
	supervisor := common.Actor{UserID: "u-2", OfficeID: "CCS", Capabilities: []string{common.CapChangeShipmentStatus}}

	created, err := svc.Create(ctx, "client-1", testGuide("10"))
	require.NoError(t, err)

	inTransit := shipment.StatusInTransit
	updated, err := svc.UpdateStatuses(ctx, clerk, created.Shipment.ID, shipment.StatusPatch{Shipping: &inTransit})
	require.NoError(t, err)
	require.Equal(t, shipment.StatusInTransit, updated.ShippingStatus)

	// moving backwards is off the forward graph
	pending := shipment.StatusPendingDispatch
	_, err = svc.UpdateStatuses(ctx, clerk, created.Shipment.ID, shipment.StatusPatch{Shipping: &pending})
	require.Error(t, err)
	conflict := &shipment.StateConflictError{}
	require.ErrorAs(t, err, &conflict)

	reverted, err := svc.UpdateStatuses(ctx, supervisor, created.Shipment.ID, shipment.StatusPatch{Shipping: &pending})
	require.NoError(t, err)
	require.Equal(t, shipment.StatusPendingDispatch, reverted.ShippingStatus)
}

func TestUpdateStatusesRejectsUnknownShippingStatus(t *testing.T) {
	mem := store.NewMemory()
	svc := newService(mem)
	ctx := context.Background()

	created, err := svc.Create(ctx, "client-1", testGuide("10"))
	require.NoError(t, err)

	bogus := shipment.ShippingStatus("TELEPORTED")
	_, err = svc.UpdateStatuses(ctx, common.Actor{UserID: "u-1"}, created.Shipment.ID, shipment.StatusPatch{Shipping: &bogus})
	require.Error(t, err)
}

func TestUpdateStatusesPaymentChangeIsFree(t *testing.T) {
	mem := store.NewMemory()
	svc := newService(mem)
	ctx := context.Background()

	guide := testGuide("10")
	guide.PaymentType = tariff.PaymentCollectAtDestination
	created, err := svc.Create(ctx, "client-1", guide)
	require.NoError(t, err)

	paid := shipment.PaymentPaid
	updated, err := svc.UpdateStatuses(ctx, common.Actor{UserID: "u-1"}, created.Shipment.ID, shipment.StatusPatch{Payment: &paid})
	require.NoError(t, err)
	require.Equal(t, shipment.PaymentPaid, updated.PaymentStatus)
}
