package shipment

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/coopcarga/backend-carga/internal/common"
	"github.com/coopcarga/backend-carga/internal/events"
	"github.com/coopcarga/backend-carga/internal/fleet"
	"github.com/coopcarga/backend-carga/internal/obs"
	"github.com/coopcarga/backend-carga/internal/tariff"
)

var (
	// ErrShipmentVoided is returned when a lifecycle operation targets a
	// voided shipment.
	ErrShipmentVoided = errors.New("shipment is voided")
	// ErrAlreadyVoided is returned when voiding a shipment twice.
	ErrAlreadyVoided = errors.New("shipment already voided")
)

// Store defines the persistence operations required by the shipment service.
// The store re-checks status preconditions at commit time; a failed re-check
// surfaces as a *StateConflictError.
type Store interface {
	CreateShipment(ctx context.Context, s *Shipment) error
	GetShipment(ctx context.Context, id string) (Shipment, error)
	UpdateShipmentGuide(ctx context.Context, id string, guide tariff.Guide) (Shipment, error)
	UpdateShipmentStatuses(ctx context.Context, id string, patch StatusPatch) (Shipment, error)
	AssignVehicle(ctx context.Context, id, vehicleID string) (Shipment, error)
	ListShipments(ctx context.Context) ([]Shipment, error)
	ListShipmentsByVehicle(ctx context.Context, vehicleID string) ([]Shipment, error)
}

// CapacitySource resolves the registered cargo capacity of a vehicle.
type CapacitySource interface {
	CargoCapacityKg(ctx context.Context, vehicleID string) (decimal.Decimal, error)
}

// Service coordinates shipment creation and the lifecycle state machine.
type Service struct {
	Store    Store
	Vehicles CapacitySource
	Rates    tariff.Rates
	Events   *events.Bus
}

// Created pairs a stored shipment with its computed financial breakdown.
type Created struct {
	Shipment  Shipment
	Breakdown tariff.Breakdown
}

// Create validates and persists a new shipment. Monetary fields are computed,
// not stored: the breakdown is always recomputable from the guide and rates.
func (s *Service) Create(ctx context.Context, clientID string, guide tariff.Guide) (Created, error) {
	if guide.OriginOfficeID == "" || guide.DestinationOfficeID == "" {
		return Created{}, common.NewAppError("VALIDATION_ERROR", "origin and destination offices are required", http.StatusBadRequest, nil)
	}
	if guide.OriginOfficeID == guide.DestinationOfficeID {
		return Created{}, common.NewAppError("VALIDATION_ERROR", "origin and destination offices must differ", http.StatusBadRequest, nil)
	}
	switch guide.PaymentType {
	case tariff.PaymentPaidAtOrigin, tariff.PaymentCollectAtDestination:
	default:
		return Created{}, common.NewAppError("VALIDATION_ERROR", "unknown payment type", http.StatusBadRequest, nil)
	}

	shipment := Shipment{
		ClientID:       clientID,
		Guide:          guide,
		MasterStatus:   MasterActive,
		PaymentStatus:  initialPaymentStatus(guide.PaymentType),
		ShippingStatus: StatusPendingDispatch,
	}
	if err := s.Store.CreateShipment(ctx, &shipment); err != nil {
		return Created{}, err
	}
	obs.ShipmentsCreated.Inc()
	s.emit(ctx, events.TopicShipmentCreated, shipment.ID, map[string]any{
		"number": shipment.Number,
		"origin": guide.OriginOfficeID,
	})
	return Created{Shipment: shipment, Breakdown: tariff.Compute(guide, s.Rates)}, nil
}

// Get returns a shipment with its recomputed breakdown.
func (s *Service) Get(ctx context.Context, id string) (Created, error) {
	shipment, err := s.Store.GetShipment(ctx, id)
	if err != nil {
		return Created{}, err
	}
	return Created{Shipment: shipment, Breakdown: tariff.Compute(shipment.Guide, s.Rates)}, nil
}

// UpdateGuide replaces the guide of an editable shipment and recomputes its
// breakdown. Only shipments that have not left the origin office are editable.
func (s *Service) UpdateGuide(ctx context.Context, id string, guide tariff.Guide) (Created, error) {
	current, err := s.Store.GetShipment(ctx, id)
	if err != nil {
		return Created{}, err
	}
	if !current.Active() {
		return Created{}, common.NewAppError("STATE_CONFLICT", "shipment is voided", http.StatusConflict, ErrShipmentVoided)
	}
	if current.ShippingStatus != StatusPendingDispatch {
		return Created{}, stateConflict(&StateConflictError{ShipmentID: id, Current: current.ShippingStatus, Attempted: StatusPendingDispatch})
	}
	updated, err := s.Store.UpdateShipmentGuide(ctx, id, guide)
	if err != nil {
		return Created{}, err
	}
	return Created{Shipment: updated, Breakdown: tariff.Compute(updated.Guide, s.Rates)}, nil
}

// AssignResult carries the updated shipment plus the advisory load summary of
// the target vehicle after the assignment.
type AssignResult struct {
	Shipment Shipment
	Load     fleet.Load
}

// AssignVehicle records the vehicle on a pending shipment. The capacity check
// never blocks the assignment; an overload only raises the warning flag on the
// returned load summary.
func (s *Service) AssignVehicle(ctx context.Context, id, vehicleID string) (AssignResult, error) {
	current, err := s.Store.GetShipment(ctx, id)
	if err != nil {
		return AssignResult{}, err
	}
	if !current.Active() {
		return AssignResult{}, common.NewAppError("STATE_CONFLICT", "shipment is voided", http.StatusConflict, ErrShipmentVoided)
	}
	if current.ShippingStatus != StatusPendingDispatch {
		return AssignResult{}, stateConflict(&StateConflictError{ShipmentID: id, Current: current.ShippingStatus, Attempted: StatusPendingDispatch})
	}
	updated, err := s.Store.AssignVehicle(ctx, id, vehicleID)
	if err != nil {
		return AssignResult{}, err
	}
	load, err := s.VehicleLoad(ctx, vehicleID)
	if err != nil {
		return AssignResult{}, err
	}
	s.emit(ctx, events.TopicShipmentAssigned, id, map[string]any{"vehicleId": vehicleID})
	return AssignResult{Shipment: updated, Load: load}, nil
}

// VehicleLoad recomputes the assigned-but-undispatched cargo of a vehicle from
// canonical state; cached totals are never trusted.
func (s *Service) VehicleLoad(ctx context.Context, vehicleID string) (fleet.Load, error) {
	assigned, err := s.Store.ListShipmentsByVehicle(ctx, vehicleID)
	if err != nil {
		return fleet.Load{}, err
	}
	total := decimal.Zero
	count := 0
	for _, sh := range assigned {
		if !sh.Active() || sh.ShippingStatus != StatusPendingDispatch {
			continue
		}
		total = total.Add(tariff.ChargeableWeight(sh.Guide.Lines))
		count++
	}
	capacity := decimal.Zero
	if s.Vehicles != nil {
		capacity, err = s.Vehicles.CargoCapacityKg(ctx, vehicleID)
		if err != nil {
			return fleet.Load{}, err
		}
	}
	return fleet.Load{
		VehicleID:     vehicleID,
		ShipmentCount: count,
		TotalKg:       total,
		CapacityKg:    capacity,
		Overloaded:    capacity.IsPositive() && total.GreaterThan(capacity),
	}, nil
}

// Void marks the shipment as administratively cancelled. The shipping status
// is left untouched: a shipment can be voided mid-transit and downstream
// aggregation excludes it regardless of shipping state.
func (s *Service) Void(ctx context.Context, id string) (Shipment, error) {
	current, err := s.Store.GetShipment(ctx, id)
	if err != nil {
		return Shipment{}, err
	}
	if !current.Active() {
		return Shipment{}, common.NewAppError("STATE_CONFLICT", "shipment already voided", http.StatusConflict, ErrAlreadyVoided)
	}
	voided := MasterVoided
	expect := MasterActive
	updated, err := s.Store.UpdateShipmentStatuses(ctx, id, StatusPatch{Master: &voided, ExpectMaster: &expect})
	if err != nil {
		return Shipment{}, err
	}
	obs.ShipmentsVoided.Inc()
	s.emit(ctx, events.TopicShipmentVoided, id, map[string]any{"number": updated.Number})
	return updated, nil
}

// UpdateStatuses applies a manual status change. Shipping transitions outside
// the forward graph require the re-flag capability; payment changes are free.
func (s *Service) UpdateStatuses(ctx context.Context, actor common.Actor, id string, patch StatusPatch) (Shipment, error) {
	current, err := s.Store.GetShipment(ctx, id)
	if err != nil {
		return Shipment{}, err
	}
	if patch.Shipping != nil {
		if !ValidShippingStatus(*patch.Shipping) {
			return Shipment{}, common.NewAppError("VALIDATION_ERROR", "unknown shipping status", http.StatusBadRequest, nil)
		}
		if !CanTransition(current.ShippingStatus, *patch.Shipping) && !actor.Can(common.CapChangeShipmentStatus) {
			return Shipment{}, stateConflict(&StateConflictError{ShipmentID: id, Current: current.ShippingStatus, Attempted: *patch.Shipping})
		}
		observed := current.ShippingStatus
		patch.ExpectShipping = &observed
	}
	return s.Store.UpdateShipmentStatuses(ctx, id, patch)
}

// List returns every shipment; callers apply the visibility filter.
func (s *Service) List(ctx context.Context) ([]Shipment, error) {
	return s.Store.ListShipments(ctx)
}

func (s *Service) emit(ctx context.Context, topic, aggregateID string, payload map[string]any) {
	if s.Events == nil {
		return
	}
	_ = s.Events.Emit(ctx, topic, aggregateID, payload)
}

func initialPaymentStatus(t tariff.PaymentType) PaymentStatus {
	if t == tariff.PaymentPaidAtOrigin {
		return PaymentPaid
	}
	return PaymentPending
}

func stateConflict(err *StateConflictError) *common.AppError {
	return &common.AppError{
		Code:       "STATE_CONFLICT",
		Message:    err.Error(),
		HTTPStatus: http.StatusConflict,
		Err:        err,
		Details:    map[string]any{"current": err.Current, "attempted": err.Attempted},
	}
}
