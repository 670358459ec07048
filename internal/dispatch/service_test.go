package dispatch_test

import (
	"context"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/coopcarga/backend-carga/internal/common"
	"github.com/coopcarga/backend-carga/internal/dispatch"
	"github.com/coopcarga/backend-carga/internal/obs"
	"github.com/coopcarga/backend-carga/internal/shipment"
	"github.com/coopcarga/backend-carga/internal/store"
	"github.com/coopcarga/backend-carga/internal/tariff"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	os.Exit(m.Run())
}

func originActor() common.Actor {
	return common.Actor{UserID: "u-origin", Name: "Ana", OfficeID: "CCS"}
}

func destinationActor() common.Actor {
	return common.Actor{UserID: "u-dest", Name: "Luis", OfficeID: "MCY"}
}

func seedShipment(t *testing.T, mem *store.Memory, origin, destination string) shipment.Shipment {
	t.Helper()
	sh := shipment.Shipment{
		Guide: tariff.Guide{
			OriginOfficeID:      origin,
			DestinationOfficeID: destination,
			PaymentType:         tariff.PaymentPaidAtOrigin,
			PaymentCurrency:     tariff.CurrencyLocal,
			Lines:               []tariff.Line{{Quantity: 1, WeightKg: decimal.RequireFromString("10")}},
		},
		MasterStatus:   shipment.MasterActive,
		PaymentStatus:  shipment.PaymentPaid,
		ShippingStatus: shipment.StatusPendingDispatch,
	}
	require.NoError(t, mem.CreateShipment(context.Background(), &sh))
	return sh
}

func TestCreateDispatchesAllMembers(t *testing.T) {
	mem := store.NewMemory()
	svc := &dispatch.Service{Store: mem}
	a := seedShipment(t, mem, "CCS", "MCY")
	b := seedShipment(t, mem, "CCS", "MCY")

	snap, err := svc.Create(context.Background(), originActor(), []string{a.ID, b.ID}, "veh-1", "MCY")
	require.NoError(t, err)
	require.Equal(t, dispatch.ManifestInTransit, snap.Manifest.Status)
	require.Len(t, snap.Shipments, 2)
	for _, sh := range snap.Shipments {
		require.Equal(t, shipment.StatusInTransit, sh.ShippingStatus)
		require.NotNil(t, sh.VehicleID)
		require.Equal(t, "veh-1", *sh.VehicleID)
	}
}

func TestCreateRejectsNonPendingMember(t *testing.T) {
	mem := store.NewMemory()
	svc := &dispatch.Service{Store: mem}
	a := seedShipment(t, mem, "CCS", "MCY")
	b := seedShipment(t, mem, "CCS", "MCY")

	_, err := svc.Create(context.Background(), originActor(), []string{a.ID}, "veh-1", "MCY")
	require.NoError(t, err)

	// a is already in transit, the whole second manifest must fail
	_, err = svc.Create(context.Background(), originActor(), []string{a.ID, b.ID}, "veh-2", "MCY")
	require.Error(t, err)

	fresh, err := mem.GetShipment(context.Background(), b.ID)
	require.NoError(t, err)
	require.Equal(t, shipment.StatusPendingDispatch, fresh.ShippingStatus)
}

func TestCreateRejectsForeignOriginMember(t *testing.T) {
	mem := store.NewMemory()
	svc := &dispatch.Service{Store: mem}
	a := seedShipment(t, mem, "CCS", "MCY")
	other := seedShipment(t, mem, "VAL", "MCY")

	_, err := svc.Create(context.Background(), originActor(), []string{a.ID, other.ID}, "veh-1", "MCY")
	require.Error(t, err)
	appErr := &common.AppError{}
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestCreateRejectsEmptyManifest(t *testing.T) {
	svc := &dispatch.Service{Store: store.NewMemory()}
	_, err := svc.Create(context.Background(), originActor(), nil, "veh-1", "MCY")
	require.ErrorIs(t, err, dispatch.ErrEmptyManifest)
}

func TestReceiveSplitsVerifiedAndMissing(t *testing.T) {
	mem := store.NewMemory()
	svc := &dispatch.Service{Store: mem}
	a := seedShipment(t, mem, "CCS", "MCY")
	b := seedShipment(t, mem, "CCS", "MCY")
	c := seedShipment(t, mem, "CCS", "MCY")

	snap, err := svc.Create(context.Background(), originActor(), []string{a.ID, b.ID, c.ID}, "veh-1", "MCY")
	require.NoError(t, err)

	received, err := svc.Receive(context.Background(), destinationActor(), snap.Manifest.ID, []string{a.ID, b.ID})
	require.NoError(t, err)
	require.Equal(t, dispatch.ManifestReceived, received.Manifest.Status)
	require.NotNil(t, received.Manifest.ReceivedAt)

	statuses := map[string]shipment.ShippingStatus{}
	for _, sh := range received.Shipments {
		statuses[sh.ID] = sh.ShippingStatus
	}
	require.Equal(t, shipment.StatusAtDestination, statuses[a.ID])
	require.Equal(t, shipment.StatusAtDestination, statuses[b.ID])
	require.Equal(t, shipment.StatusReportedMissing, statuses[c.ID])
}

func TestReceiveRejectsWrongOffice(t *testing.T) {
	mem := store.NewMemory()
	svc := &dispatch.Service{Store: mem}
	a := seedShipment(t, mem, "CCS", "MCY")

	snap, err := svc.Create(context.Background(), originActor(), []string{a.ID}, "veh-1", "MCY")
	require.NoError(t, err)

	wrongOffice := common.Actor{UserID: "u-x", OfficeID: "VAL"}
	_, err = svc.Receive(context.Background(), wrongOffice, snap.Manifest.ID, []string{a.ID})
	require.Error(t, err)

	global := common.Actor{UserID: "u-admin", OfficeID: "VAL", Capabilities: []string{common.CapManageAllOffices}}
	_, err = svc.Receive(context.Background(), global, snap.Manifest.ID, []string{a.ID})
	require.NoError(t, err)
}

func TestReceiveRejectsUnknownVerifiedID(t *testing.T) {
	mem := store.NewMemory()
	svc := &dispatch.Service{Store: mem}
	a := seedShipment(t, mem, "CCS", "MCY")

	snap, err := svc.Create(context.Background(), originActor(), []string{a.ID}, "veh-1", "MCY")
	require.NoError(t, err)

	_, err = svc.Receive(context.Background(), destinationActor(), snap.Manifest.ID, []string{"nope"})
	require.ErrorIs(t, err, dispatch.ErrUnknownVerifiedID)
}

func TestReceiveTwiceConflicts(t *testing.T) {
	mem := store.NewMemory()
	svc := &dispatch.Service{Store: mem}
	a := seedShipment(t, mem, "CCS", "MCY")

	snap, err := svc.Create(context.Background(), originActor(), []string{a.ID}, "veh-1", "MCY")
	require.NoError(t, err)

	_, err = svc.Receive(context.Background(), destinationActor(), snap.Manifest.ID, []string{a.ID})
	require.NoError(t, err)

	_, err = svc.Receive(context.Background(), destinationActor(), snap.Manifest.ID, []string{a.ID})
	require.ErrorIs(t, err, dispatch.ErrManifestNotInTransit)
}

func TestVoidRevertsMembersToPending(t *testing.T) {
	mem := store.NewMemory()
	svc := &dispatch.Service{Store: mem}
	a := seedShipment(t, mem, "CCS", "MCY")
	b := seedShipment(t, mem, "CCS", "MCY")

	snap, err := svc.Create(context.Background(), originActor(), []string{a.ID, b.ID}, "veh-1", "MCY")
	require.NoError(t, err)

	voided, err := svc.Void(context.Background(), snap.Manifest.ID)
	require.NoError(t, err)
	require.Equal(t, dispatch.ManifestVoided, voided.Manifest.Status)
	for _, sh := range voided.Shipments {
		require.Equal(t, shipment.StatusPendingDispatch, sh.ShippingStatus)
	}

	// members are dispatchable again
	_, err = svc.Create(context.Background(), originActor(), []string{a.ID, b.ID}, "veh-2", "MCY")
	require.NoError(t, err)
}

func TestVoidAfterReceiveConflicts(t *testing.T) {
	mem := store.NewMemory()
	svc := &dispatch.Service{Store: mem}
	a := seedShipment(t, mem, "CCS", "MCY")

	snap, err := svc.Create(context.Background(), originActor(), []string{a.ID}, "veh-1", "MCY")
	require.NoError(t, err)
	_, err = svc.Receive(context.Background(), destinationActor(), snap.Manifest.ID, []string{a.ID})
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), snap.Manifest.ID)
	require.ErrorIs(t, err, dispatch.ErrManifestNotInTransit)
}
