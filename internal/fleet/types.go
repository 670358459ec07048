package fleet

import (
	"time"

	"github.com/shopspring/decimal"
)

// VehicleStatus is the operating condition of a vehicle.
type VehicleStatus string

const (
	// VehicleOperative means the vehicle can be dispatched.
	VehicleOperative VehicleStatus = "OPERATIVE"
	// VehicleMaintenance means the vehicle is temporarily out of service.
	VehicleMaintenance VehicleStatus = "MAINTENANCE"
	// VehicleInactive means the vehicle was retired from the fleet.
	VehicleInactive VehicleStatus = "INACTIVE"
)

// Vehicle is a cargo unit owned by a transport associate.
type Vehicle struct {
	ID          string          `json:"id"`
	PlateNumber string          `json:"plateNumber"`
	Model       string          `json:"model,omitempty"`
	AssociateID string          `json:"associateId"`
	CapacityKg  decimal.Decimal `json:"capacityKg"`
	Status      VehicleStatus   `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Associate is an independently owned transport contractor affiliated with
// the cooperative.
type Associate struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DocumentID string    `json:"documentId,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Load summarises the cargo currently assigned to a vehicle but not yet
// dispatched. The capacity check is advisory: overload is a warning for the
// caller, never a gate.
type Load struct {
	VehicleID     string          `json:"vehicleId"`
	ShipmentCount int             `json:"shipmentCount"`
	TotalKg       decimal.Decimal `json:"totalKg"`
	CapacityKg    decimal.Decimal `json:"capacityKg"`
	Overloaded    bool            `json:"overloaded"`
}
