package fleet

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coopcarga/backend-carga/internal/common"
)

// ErrVehicleNotFound is returned when the vehicle id does not exist.
var ErrVehicleNotFound = errors.New("vehicle not found")

// Store defines the persistence operations required by the fleet service.
type Store interface {
	CreateVehicle(ctx context.Context, v *Vehicle) error
	GetVehicle(ctx context.Context, id string) (Vehicle, error)
	ListVehicles(ctx context.Context) ([]Vehicle, error)
	UpdateVehicle(ctx context.Context, v Vehicle) (Vehicle, error)
	CreateAssociate(ctx context.Context, a *Associate) error
	GetAssociate(ctx context.Context, id string) (Associate, error)
	ListAssociates(ctx context.Context) ([]Associate, error)
}

// Service manages the vehicle and associate registry.
type Service struct {
	Store Store
}

// VehicleInput captures the payload for creating or updating a vehicle.
type VehicleInput struct {
	PlateNumber string
	Model       string
	AssociateID string
	CapacityKg  decimal.Decimal
	Status      VehicleStatus
}

// CreateVehicle registers a vehicle for an associate.
func (s *Service) CreateVehicle(ctx context.Context, input VehicleInput) (Vehicle, error) {
	if strings.TrimSpace(input.PlateNumber) == "" {
		return Vehicle{}, common.NewAppError("VALIDATION_ERROR", "plate number is required", http.StatusBadRequest, nil)
	}
	if strings.TrimSpace(input.AssociateID) == "" {
		return Vehicle{}, common.NewAppError("VALIDATION_ERROR", "associate id is required", http.StatusBadRequest, nil)
	}
	if _, err := s.Store.GetAssociate(ctx, input.AssociateID); err != nil {
		return Vehicle{}, common.NewAppError("NOT_FOUND", "associate not found", http.StatusNotFound, err)
	}
	status := input.Status
	if status == "" {
		status = VehicleOperative
	}
	vehicle := Vehicle{
		PlateNumber: strings.TrimSpace(input.PlateNumber),
		Model:       strings.TrimSpace(input.Model),
		AssociateID: input.AssociateID,
		CapacityKg:  input.CapacityKg,
		Status:      status,
	}
	if err := s.Store.CreateVehicle(ctx, &vehicle); err != nil {
		return Vehicle{}, err
	}
	return vehicle, nil
}

// GetVehicle returns a vehicle by id.
func (s *Service) GetVehicle(ctx context.Context, id string) (Vehicle, error) {
	return s.Store.GetVehicle(ctx, id)
}

// ListVehicles returns every registered vehicle.
func (s *Service) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	return s.Store.ListVehicles(ctx)
}

// UpdateVehicle applies the input to an existing vehicle.
func (s *Service) UpdateVehicle(ctx context.Context, id string, input VehicleInput) (Vehicle, error) {
	vehicle, err := s.Store.GetVehicle(ctx, id)
	if err != nil {
		return Vehicle{}, err
	}
	if plate := strings.TrimSpace(input.PlateNumber); plate != "" {
		vehicle.PlateNumber = plate
	}
	if model := strings.TrimSpace(input.Model); model != "" {
		vehicle.Model = model
	}
	if input.AssociateID != "" {
		if _, err := s.Store.GetAssociate(ctx, input.AssociateID); err != nil {
			return Vehicle{}, common.NewAppError("NOT_FOUND", "associate not found", http.StatusNotFound, err)
		}
		vehicle.AssociateID = input.AssociateID
	}
	if input.CapacityKg.IsPositive() {
		vehicle.CapacityKg = input.CapacityKg
	}
	if input.Status != "" {
		vehicle.Status = input.Status
	}
	return s.Store.UpdateVehicle(ctx, vehicle)
}

// CargoCapacityKg returns the registered capacity for the vehicle. Implements
// the capacity source consumed by the shipment lifecycle for advisory load
// warnings.
func (s *Service) CargoCapacityKg(ctx context.Context, vehicleID string) (decimal.Decimal, error) {
	vehicle, err := s.Store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return decimal.Zero, err
	}
	return vehicle.CapacityKg, nil
}

// CreateAssociate registers a transport associate.
func (s *Service) CreateAssociate(ctx context.Context, name, documentID, phone string) (Associate, error) {
	if strings.TrimSpace(name) == "" {
		return Associate{}, common.NewAppError("VALIDATION_ERROR", "name is required", http.StatusBadRequest, nil)
	}
	associate := Associate{
		Name:       strings.TrimSpace(name),
		DocumentID: strings.TrimSpace(documentID),
		Phone:      strings.TrimSpace(phone),
	}
	if err := s.Store.CreateAssociate(ctx, &associate); err != nil {
		return Associate{}, err
	}
	return associate, nil
}

// ListAssociates returns every registered associate.
func (s *Service) ListAssociates(ctx context.Context) ([]Associate, error) {
	return s.Store.ListAssociates(ctx)
}
