package shipment

import (
	"fmt"
	"time"

	"github.com/coopcarga/backend-carga/internal/tariff"
)

// MasterStatus is the administrative state of a shipment.
type MasterStatus string

const (
	// MasterActive marks a live shipment.
	MasterActive MasterStatus = "ACTIVE"
	// MasterVoided marks an administratively cancelled shipment. Voided
	// shipments keep their shipping status but are excluded from settlement
	// and reporting.
	MasterVoided MasterStatus = "VOIDED"
)

// PaymentStatus tracks whether the freight has been collected.
type PaymentStatus string

const (
	// PaymentPending means the freight has not been collected yet.
	PaymentPending PaymentStatus = "PENDING"
	// PaymentPaid means the freight was collected.
	PaymentPaid PaymentStatus = "PAID"
)

// ShippingStatus is the physical progress of a shipment along its route.
type ShippingStatus string

const (
	// StatusPendingDispatch is the initial state: created, possibly assigned
	// to a vehicle, not yet on a manifest.
	StatusPendingDispatch ShippingStatus = "PENDING_DISPATCH"
	// StatusInTransit means the shipment is on a dispatched manifest.
	StatusInTransit ShippingStatus = "IN_TRANSIT"
	// StatusAtDestination means the destination office verified the piece on
	// manifest reception.
	StatusAtDestination ShippingStatus = "AT_DESTINATION"
	// StatusDelivered means the receiver picked the piece up.
	StatusDelivered ShippingStatus = "DELIVERED"
	// StatusReportedMissing means the piece was on a received manifest but was
	// not among the verified ids.
	StatusReportedMissing ShippingStatus = "REPORTED_MISSING"
)

// ValidShippingStatus reports whether the value belongs to the closed enum.
func ValidShippingStatus(s ShippingStatus) bool {
	switch s {
	case StatusPendingDispatch, StatusInTransit, StatusAtDestination, StatusDelivered, StatusReportedMissing:
		return true
	}
	return false
}

// CanTransition reports whether the forward transition graph allows moving a
// shipment from current to next. The only reversal in the system, manifest
// void, is not part of this graph; it is applied by the dispatch protocol.
func CanTransition(current, next ShippingStatus) bool {
	switch current {
	case StatusPendingDispatch:
		return next == StatusInTransit
	case StatusInTransit:
		return next == StatusAtDestination || next == StatusReportedMissing
	case StatusAtDestination:
		return next == StatusDelivered
	case StatusReportedMissing:
		return next == StatusDelivered
	default:
		return false
	}
}

// StateConflictError reports an operation whose precondition on the current
// status no longer holds. The observed state is attached so the caller can
// refresh and retry or abort.
type StateConflictError struct {
	ShipmentID string
	Current    ShippingStatus
	Attempted  ShippingStatus
}

// Error implements the error interface.
func (e *StateConflictError) Error() string {
	return fmt.Sprintf("shipment %s: illegal transition %s -> %s", e.ShipmentID, e.Current, e.Attempted)
}

// Shipment is a single billable consignment moving between two offices.
type Shipment struct {
	ID             string         `json:"id"`
	Number         string         `json:"number"`
	ClientID       string         `json:"clientId,omitempty"`
	Guide          tariff.Guide   `json:"guide"`
	VehicleID      *string        `json:"vehicleId,omitempty"`
	MasterStatus   MasterStatus   `json:"masterStatus"`
	PaymentStatus  PaymentStatus  `json:"paymentStatus"`
	ShippingStatus ShippingStatus `json:"shippingStatus"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Active reports whether the shipment has not been voided.
func (s Shipment) Active() bool {
	return s.MasterStatus == MasterActive
}

// StatusPatch describes a partial status update. Expect* fields carry the
// status observed by the caller; the store rejects the patch when the stored
// value differs at commit time.
type StatusPatch struct {
	Master         *MasterStatus
	Payment        *PaymentStatus
	Shipping       *ShippingStatus
	ExpectMaster   *MasterStatus
	ExpectShipping *ShippingStatus
}
