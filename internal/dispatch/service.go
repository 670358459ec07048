package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coopcarga/backend-carga/internal/common"
	"github.com/coopcarga/backend-carga/internal/events"
	"github.com/coopcarga/backend-carga/internal/fleet"
	"github.com/coopcarga/backend-carga/internal/obs"
	"github.com/coopcarga/backend-carga/internal/shipment"
)

var (
	// ErrManifestNotInTransit is returned when receiving or voiding a
	// manifest that already reached a terminal status.
	ErrManifestNotInTransit = errors.New("manifest is not in transit")
	// ErrEmptyManifest is returned when creating a manifest without shipments.
	ErrEmptyManifest = errors.New("manifest requires at least one shipment")
	// ErrUnknownVerifiedID is returned when a verified id is not a manifest member.
	ErrUnknownVerifiedID = errors.New("verified id is not part of the manifest")
)

// Store defines the persistence operations required by the dispatch protocol.
// CreateManifest, ReceiveManifest and VoidManifest are atomic: either every
// member shipment and the manifest commit together, or nothing does. Each
// re-checks status preconditions at commit and fails with a state-conflict
// error when a precondition no longer holds.
type Store interface {
	ListShipmentsByIDs(ctx context.Context, ids []string) ([]shipment.Shipment, error)
	CreateManifest(ctx context.Context, m *Manifest) ([]shipment.Shipment, error)
	GetManifest(ctx context.Context, id string) (Manifest, error)
	ListManifests(ctx context.Context) ([]Manifest, error)
	ReceiveManifest(ctx context.Context, id string, verifiedIDs []string, receivedBy string) (Manifest, []shipment.Shipment, error)
	VoidManifest(ctx context.Context, id string) (Manifest, []shipment.Shipment, error)
}

// VehicleSource resolves vehicles for snapshot assembly.
type VehicleSource interface {
	GetVehicle(ctx context.Context, id string) (fleet.Vehicle, error)
}

// Service owns manifest status and drives the per-shipment transitions on
// dispatch, reception and cancellation.
type Service struct {
	Store    Store
	Vehicles VehicleSource
	Events   *events.Bus
}

// Snapshot is the full before/after picture returned by every manifest
// operation so the calling layer can reconcile caches without extra reads.
type Snapshot struct {
	Manifest      Manifest            `json:"manifest"`
	Shipments     []shipment.Shipment `json:"shipments"`
	Vehicle       *fleet.Vehicle      `json:"vehicle,omitempty"`
	Discrepancies int                 `json:"discrepancies"`
}

// Create builds a manifest from a set of pending shipments and atomically
// transitions every member to in-transit. Any precondition failure rejects the
// whole operation.
func (s *Service) Create(ctx context.Context, actor common.Actor, shipmentIDs []string, vehicleID, destinationOfficeID string) (Snapshot, error) {
	if len(shipmentIDs) == 0 {
		return Snapshot{}, common.NewAppError("VALIDATION_ERROR", ErrEmptyManifest.Error(), http.StatusBadRequest, ErrEmptyManifest)
	}
	if vehicleID == "" || destinationOfficeID == "" {
		return Snapshot{}, common.NewAppError("VALIDATION_ERROR", "vehicle and destination office are required", http.StatusBadRequest, nil)
	}

	members, err := s.Store.ListShipmentsByIDs(ctx, shipmentIDs)
	if err != nil {
		return Snapshot{}, err
	}
	if len(members) != len(shipmentIDs) {
		return Snapshot{}, common.NewAppError("NOT_FOUND", "one or more shipments do not exist", http.StatusNotFound, nil)
	}

	originOfficeID := actor.OfficeID
	if originOfficeID == "" && len(members) > 0 {
		originOfficeID = members[0].Guide.OriginOfficeID
	}
	if originOfficeID == destinationOfficeID {
		return Snapshot{}, common.NewAppError("VALIDATION_ERROR", "destination office must differ from origin", http.StatusBadRequest, nil)
	}
	for _, member := range members {
		if !member.Active() {
			return Snapshot{}, common.NewAppError("STATE_CONFLICT",
				fmt.Sprintf("shipment %s is voided", member.ID), http.StatusConflict, nil)
		}
		if member.ShippingStatus != shipment.StatusPendingDispatch {
			return Snapshot{}, stateConflict(member.ID, member.ShippingStatus, shipment.StatusInTransit)
		}
		if member.Guide.OriginOfficeID != originOfficeID {
			return Snapshot{}, common.NewAppError("VALIDATION_ERROR",
				fmt.Sprintf("shipment %s does not originate from office %s", member.ID, originOfficeID), http.StatusBadRequest, nil)
		}
	}

	manifest := Manifest{
		VehicleID:           vehicleID,
		OriginOfficeID:      originOfficeID,
		DestinationOfficeID: destinationOfficeID,
		ShipmentIDs:         append([]string(nil), shipmentIDs...),
		Status:              ManifestInTransit,
	}
	updated, err := s.Store.CreateManifest(ctx, &manifest)
	if err != nil {
		return Snapshot{}, err
	}
	obs.ManifestsDispatched.Inc()
	s.emit(ctx, events.TopicManifestDispatched, manifest.ID, map[string]any{
		"number":      manifest.Number,
		"vehicleId":   vehicleID,
		"destination": destinationOfficeID,
		"shipments":   len(updated),
	})
	return s.snapshot(ctx, manifest, updated, 0), nil
}

// Receive reconciles a manifest at the destination office. Every verified
// member moves to at-destination; every non-verified member is reported
// missing. Absence from the verified set is what drives the missing
// classification.
func (s *Service) Receive(ctx context.Context, actor common.Actor, manifestID string, verifiedIDs []string) (Snapshot, error) {
	manifest, err := s.Store.GetManifest(ctx, manifestID)
	if err != nil {
		return Snapshot{}, err
	}
	if manifest.Status != ManifestInTransit {
		return Snapshot{}, common.NewAppError("STATE_CONFLICT", ErrManifestNotInTransit.Error(), http.StatusConflict,
			fmt.Errorf("%w: manifest %s is %s", ErrManifestNotInTransit, manifestID, manifest.Status))
	}
	if !actor.GlobalScope() && actor.OfficeID != "" && actor.OfficeID != manifest.DestinationOfficeID {
		return Snapshot{}, common.NewAppError("FORBIDDEN", "manifest is not destined to your office", http.StatusForbidden, nil)
	}
	for _, id := range verifiedIDs {
		if !manifest.Contains(id) {
			return Snapshot{}, common.NewAppError("VALIDATION_ERROR",
				fmt.Sprintf("shipment %s is not part of manifest %s", id, manifest.Number), http.StatusBadRequest, ErrUnknownVerifiedID)
		}
	}

	received, updated, err := s.Store.ReceiveManifest(ctx, manifestID, verifiedIDs, actor.Name)
	if err != nil {
		return Snapshot{}, err
	}
	missing := 0
	for _, sh := range updated {
		if sh.ShippingStatus == shipment.StatusReportedMissing {
			missing++
			s.emit(ctx, events.TopicShipmentMissing, sh.ID, map[string]any{
				"number":   sh.Number,
				"manifest": received.Number,
			})
		}
	}
	obs.ManifestsReceived.Inc()
	if missing > 0 {
		obs.ShipmentsReportedMissing.Add(float64(missing))
	}
	s.emit(ctx, events.TopicManifestReceived, manifestID, map[string]any{
		"number":   received.Number,
		"verified": len(verifiedIDs),
		"missing":  missing,
	})
	return s.snapshot(ctx, received, updated, len(received.ShipmentIDs)-len(updated)), nil
}

// Void cancels an in-transit manifest and reverts every member to pending
// dispatch. This is the sole reversal path in the system, scoped to manifest
// cancellation only.
func (s *Service) Void(ctx context.Context, manifestID string) (Snapshot, error) {
	manifest, err := s.Store.GetManifest(ctx, manifestID)
	if err != nil {
		return Snapshot{}, err
	}
	if manifest.Status != ManifestInTransit {
		return Snapshot{}, common.NewAppError("STATE_CONFLICT", ErrManifestNotInTransit.Error(), http.StatusConflict,
			fmt.Errorf("%w: manifest %s is %s", ErrManifestNotInTransit, manifestID, manifest.Status))
	}
	voided, updated, err := s.Store.VoidManifest(ctx, manifestID)
	if err != nil {
		return Snapshot{}, err
	}
	obs.ManifestsVoided.Inc()
	s.emit(ctx, events.TopicManifestVoided, manifestID, map[string]any{"number": voided.Number})
	return s.snapshot(ctx, voided, updated, len(voided.ShipmentIDs)-len(updated)), nil
}

// Get returns a manifest with its member snapshots.
func (s *Service) Get(ctx context.Context, manifestID string) (Snapshot, error) {
	manifest, err := s.Store.GetManifest(ctx, manifestID)
	if err != nil {
		return Snapshot{}, err
	}
	members, err := s.Store.ListShipmentsByIDs(ctx, manifest.ShipmentIDs)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, manifest, members, len(manifest.ShipmentIDs)-len(members)), nil
}

// List returns every manifest; callers apply the visibility filter.
func (s *Service) List(ctx context.Context) ([]Manifest, error) {
	return s.Store.ListManifests(ctx)
}

func (s *Service) snapshot(ctx context.Context, m Manifest, shipments []shipment.Shipment, discrepancies int) Snapshot {
	snap := Snapshot{Manifest: m, Shipments: shipments, Discrepancies: discrepancies}
	if s.Vehicles != nil {
		if vehicle, err := s.Vehicles.GetVehicle(ctx, m.VehicleID); err == nil {
			snap.Vehicle = &vehicle
		}
	}
	return snap
}

func (s *Service) emit(ctx context.Context, topic, aggregateID string, payload map[string]any) {
	if s.Events == nil {
		return
	}
	_ = s.Events.Emit(ctx, topic, aggregateID, payload)
}

func stateConflict(id string, current, attempted shipment.ShippingStatus) *common.AppError {
	err := &shipment.StateConflictError{ShipmentID: id, Current: current, Attempted: attempted}
	return &common.AppError{
		Code:       "STATE_CONFLICT",
		Message:    err.Error(),
		HTTPStatus: http.StatusConflict,
		Err:        err,
		Details:    map[string]any{"current": current, "attempted": attempted},
	}
}
