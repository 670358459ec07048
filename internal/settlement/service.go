package settlement

import (
	"context"
	"net/http"
	"time"

	"github.com/coopcarga/backend-carga/internal/common"
	"github.com/coopcarga/backend-carga/internal/events"
	"github.com/coopcarga/backend-carga/internal/fleet"
	"github.com/coopcarga/backend-carga/internal/obs"
	"github.com/coopcarga/backend-carga/internal/shipment"
	"github.com/coopcarga/backend-carga/internal/tariff"
)

// Store defines the persistence operations required by the settlement service.
type Store interface {
	ListShipmentsByIDs(ctx context.Context, ids []string) ([]shipment.Shipment, error)
	CreateSettlement(ctx context.Context, s *Settlement) error
	GetSettlement(ctx context.Context, id string) (Settlement, error)
	ListSettlements(ctx context.Context) ([]Settlement, error)
}

// VehicleSource resolves the vehicle backing a settlement.
type VehicleSource interface {
	GetVehicle(ctx context.Context, id string) (fleet.Vehicle, error)
}

// Locker serializes settlement creation per vehicle across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service computes and records settlements between the cooperative and its
// transport associates.
type Service struct {
	Store    Store
	Vehicles VehicleSource
	Rates    tariff.Rates
	Events   *events.Bus
	Lock     Locker
}

// Record pairs a stored settlement with its recomputed breakdown.
type Record struct {
	Settlement Settlement `json:"settlement"`
	Breakdown  Breakdown  `json:"breakdown"`
}

// Preview computes a settlement breakdown for a shipment-id set without
// persisting anything. Ids that do not resolve to a stored shipment are
// excluded from aggregation and surfaced through the discrepancy count.
func (s *Service) Preview(ctx context.Context, shipmentIDs []string) (Breakdown, error) {
	if len(shipmentIDs) == 0 {
		return Breakdown{}, common.NewAppError("VALIDATION_ERROR", "settlement requires at least one shipment", http.StatusBadRequest, nil)
	}
	members, err := s.Store.ListShipmentsByIDs(ctx, shipmentIDs)
	if err != nil {
		return Breakdown{}, err
	}
	breakdown := Compute(members, s.Rates)
	breakdown.Discrepancies += len(shipmentIDs) - len(members)
	obs.SettlementsComputed.Inc()
	return breakdown, nil
}

// Create persists a numbered settlement record for a vehicle over a shipment
// set. The breakdown is returned but not stored; reads recompute it. When a
// locker is configured, creation for the same vehicle is serialized across
// instances.
func (s *Service) Create(ctx context.Context, vehicleID string, shipmentIDs []string) (Record, error) {
	if s.Lock == nil {
		return s.create(ctx, vehicleID, shipmentIDs)
	}
	var record Record
	err := s.Lock.WithLock(ctx, "settlement:vehicle:"+vehicleID, 15*time.Second, func(ctx context.Context) error {
		var err error
		record, err = s.create(ctx, vehicleID, shipmentIDs)
		return err
	})
	return record, err
}

func (s *Service) create(ctx context.Context, vehicleID string, shipmentIDs []string) (Record, error) {
	breakdown, err := s.Preview(ctx, shipmentIDs)
	if err != nil {
		return Record{}, err
	}
	vehicle, err := s.Vehicles.GetVehicle(ctx, vehicleID)
	if err != nil {
		return Record{}, common.NewAppError("NOT_FOUND", "vehicle not found", http.StatusNotFound, err)
	}
	settlement := Settlement{
		AssociateID: vehicle.AssociateID,
		VehicleID:   vehicle.ID,
		ShipmentIDs: append([]string(nil), shipmentIDs...),
	}
	if err := s.Store.CreateSettlement(ctx, &settlement); err != nil {
		return Record{}, err
	}
	if s.Events != nil {
		_ = s.Events.Emit(ctx, events.TopicSettlementCreated, settlement.ID, map[string]any{
			"number":      settlement.Number,
			"associateId": settlement.AssociateID,
			"vehicleId":   settlement.VehicleID,
			"shipments":   len(shipmentIDs),
		})
	}
	return Record{Settlement: settlement, Breakdown: breakdown}, nil
}

// Get returns a settlement with its breakdown recomputed from current member
// state. Recomputation, not incremental mutation, is the integrity rule.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	settlement, err := s.Store.GetSettlement(ctx, id)
	if err != nil {
		return Record{}, err
	}
	members, err := s.Store.ListShipmentsByIDs(ctx, settlement.ShipmentIDs)
	if err != nil {
		return Record{}, err
	}
	breakdown := Compute(members, s.Rates)
	breakdown.Discrepancies += len(settlement.ShipmentIDs) - len(members)
	return Record{Settlement: settlement, Breakdown: breakdown}, nil
}

// List returns every settlement record; callers apply the visibility filter.
func (s *Service) List(ctx context.Context) ([]Settlement, error) {
	return s.Store.ListSettlements(ctx)
}
