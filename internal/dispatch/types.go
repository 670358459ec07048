package dispatch

import "time"

// ManifestStatus is the lifecycle state of a dispatch manifest.
type ManifestStatus string

const (
	// ManifestInTransit means the manifest was dispatched and is on the road.
	ManifestInTransit ManifestStatus = "IN_TRANSIT"
	// ManifestReceived means the destination office reconciled the cargo.
	ManifestReceived ManifestStatus = "RECEIVED"
	// ManifestVoided means the dispatch was cancelled and its shipments
	// reverted to pending.
	ManifestVoided ManifestStatus = "VOIDED"
)

// Manifest is a batch transfer record grouping shipments moving together on
// one vehicle between two offices. Membership is immutable after creation;
// reconciliation only changes each member's individual status.
type Manifest struct {
	ID                  string         `json:"id"`
	Number              string         `json:"number"`
	VehicleID           string         `json:"vehicleId"`
	OriginOfficeID      string         `json:"originOfficeId"`
	DestinationOfficeID string         `json:"destinationOfficeId"`
	ShipmentIDs         []string       `json:"shipmentIds"`
	Status              ManifestStatus `json:"status"`
	CreatedAt           time.Time      `json:"createdAt"`
	ReceivedAt          *time.Time     `json:"receivedAt,omitempty"`
	ReceivedBy          string         `json:"receivedBy,omitempty"`
}

// Contains reports whether the shipment id is a member of the manifest.
func (m Manifest) Contains(shipmentID string) bool {
	for _, id := range m.ShipmentIDs {
		if id == shipmentID {
			return true
		}
	}
	return false
}

// TouchesOffice reports whether the manifest departs from or arrives at the
// given office.
func (m Manifest) TouchesOffice(officeID string) bool {
	return m.OriginOfficeID == officeID || m.DestinationOfficeID == officeID
}
