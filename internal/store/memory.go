package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coopcarga/backend-carga/internal/audit"
	"github.com/coopcarga/backend-carga/internal/dispatch"
	"github.com/coopcarga/backend-carga/internal/events"
	"github.com/coopcarga/backend-carga/internal/expense"
	"github.com/coopcarga/backend-carga/internal/fleet"
	"github.com/coopcarga/backend-carga/internal/settlement"
	"github.com/coopcarga/backend-carga/internal/shipment"
	"github.com/coopcarga/backend-carga/internal/tariff"
)

// Memory is an in-memory store used by tests and local development when no
// DATABASE_URL is configured. Every multi-record operation holds the single
// mutex for its whole duration, which gives the same all-or-nothing semantics
// the Postgres store gets from transactions.
type Memory struct {
	mu          sync.Mutex
	shipments   map[string]shipment.Shipment
	manifests   map[string]dispatch.Manifest
	settlements map[string]settlement.Settlement
	vehicles    map[string]fleet.Vehicle
	associates  map[string]fleet.Associate
	expenses    map[string]expense.Expense
	events      []events.Event
	auditTrail  []audit.Entry

	shipmentSeq   int64
	manifestSeq   int64
	settlementSeq int64
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		shipments:   map[string]shipment.Shipment{},
		manifests:   map[string]dispatch.Manifest{},
		settlements: map[string]settlement.Settlement{},
		vehicles:    map[string]fleet.Vehicle{},
		associates:  map[string]fleet.Associate{},
		expenses:    map[string]expense.Expense{},
	}
}

// Ping always succeeds for the in-memory store.
func (m *Memory) Ping(ctx context.Context) error { return nil }

// CreateShipment stores a new shipment, assigning id, number and timestamps.
func (m *Memory) CreateShipment(ctx context.Context, s *shipment.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shipmentSeq++
	now := time.Now().UTC()
	s.ID = uuid.NewString()
	s.Number = shipmentNumber(m.shipmentSeq)
	s.CreatedAt = now
	s.UpdatedAt = now
	m.shipments[s.ID] = *s
	return nil
}

// GetShipment returns a shipment by id.
func (m *Memory) GetShipment(ctx context.Context, id string) (shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[id]
	if !ok {
		return shipment.Shipment{}, ErrNotFound
	}
	return s, nil
}

// UpdateShipmentGuide replaces the guide while the shipment is still pending.
func (m *Memory) UpdateShipmentGuide(ctx context.Context, id string, guide tariff.Guide) (shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[id]
	if !ok {
		return shipment.Shipment{}, ErrNotFound
	}
	if s.ShippingStatus != shipment.StatusPendingDispatch || s.MasterStatus != shipment.MasterActive {
		return shipment.Shipment{}, ErrConflict
	}
	s.Guide = guide
	s.UpdatedAt = time.Now().UTC()
	m.shipments[id] = s
	return s, nil
}

// UpdateShipmentStatuses applies a status patch, honouring the caller's
// expectations at commit time.
func (m *Memory) UpdateShipmentStatuses(ctx context.Context, id string, patch shipment.StatusPatch) (shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[id]
	if !ok {
		return shipment.Shipment{}, ErrNotFound
	}
	if patch.ExpectMaster != nil && s.MasterStatus != *patch.ExpectMaster {
		return shipment.Shipment{}, ErrConflict
	}
	if patch.ExpectShipping != nil && s.ShippingStatus != *patch.ExpectShipping {
		attempted := s.ShippingStatus
		if patch.Shipping != nil {
			attempted = *patch.Shipping
		}
		return shipment.Shipment{}, &shipment.StateConflictError{ShipmentID: id, Current: s.ShippingStatus, Attempted: attempted}
	}
	if patch.Master != nil {
		s.MasterStatus = *patch.Master
	}
	if patch.Payment != nil {
		s.PaymentStatus = *patch.Payment
	}
	if patch.Shipping != nil {
		s.ShippingStatus = *patch.Shipping
	}
	s.UpdatedAt = time.Now().UTC()
	m.shipments[id] = s
	return s, nil
}

// AssignVehicle records the vehicle on a pending, active shipment.
func (m *Memory) AssignVehicle(ctx context.Context, id, vehicleID string) (shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[id]
	if !ok {
		return shipment.Shipment{}, ErrNotFound
	}
	if _, ok := m.vehicles[vehicleID]; !ok {
		return shipment.Shipment{}, ErrNotFound
	}
	if s.MasterStatus != shipment.MasterActive {
		return shipment.Shipment{}, ErrConflict
	}
	if s.ShippingStatus != shipment.StatusPendingDispatch {
		return shipment.Shipment{}, &shipment.StateConflictError{ShipmentID: id, Current: s.ShippingStatus, Attempted: shipment.StatusPendingDispatch}
	}
	s.VehicleID = &vehicleID
	s.UpdatedAt = time.Now().UTC()
	m.shipments[id] = s
	return s, nil
}

// ListShipments returns every shipment ordered by number.
func (m *Memory) ListShipments(ctx context.Context) ([]shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]shipment.Shipment, 0, len(m.shipments))
	for _, s := range m.shipments {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// ListShipmentsByIDs returns the shipments that exist among the given ids,
// preserving input order. Missing ids are skipped, not errors; callers track
// them as discrepancies.
func (m *Memory) ListShipmentsByIDs(ctx context.Context, ids []string) ([]shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shipmentsByIDsLocked(ids), nil
}

func (m *Memory) shipmentsByIDsLocked(ids []string) []shipment.Shipment {
	out := make([]shipment.Shipment, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.shipments[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// ListShipmentsByVehicle returns shipments currently assigned to the vehicle.
func (m *Memory) ListShipmentsByVehicle(ctx context.Context, vehicleID string) ([]shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]shipment.Shipment, 0)
	for _, s := range m.shipments {
		if s.VehicleID != nil && *s.VehicleID == vehicleID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// CreateManifest commits the manifest and flips every member to in-transit
// atomically. Any member failing its precondition rejects the whole create.
func (m *Memory) CreateManifest(ctx context.Context, man *dispatch.Manifest) ([]shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := make([]shipment.Shipment, 0, len(man.ShipmentIDs))
	for _, id := range man.ShipmentIDs {
		s, ok := m.shipments[id]
		if !ok {
			return nil, ErrNotFound
		}
		if s.MasterStatus != shipment.MasterActive {
			return nil, ErrConflict
		}
		if s.ShippingStatus != shipment.StatusPendingDispatch {
			return nil, &shipment.StateConflictError{ShipmentID: id, Current: s.ShippingStatus, Attempted: shipment.StatusInTransit}
		}
		members = append(members, s)
	}

	m.manifestSeq++
	now := time.Now().UTC()
	man.ID = uuid.NewString()
	man.Number = manifestNumber(m.manifestSeq)
	man.CreatedAt = now
	man.Status = dispatch.ManifestInTransit
	m.manifests[man.ID] = *man

	vehicleID := man.VehicleID
	updated := make([]shipment.Shipment, 0, len(members))
	for _, s := range members {
		s.ShippingStatus = shipment.StatusInTransit
		s.VehicleID = &vehicleID
		s.UpdatedAt = now
		m.shipments[s.ID] = s
		updated = append(updated, s)
	}
	return updated, nil
}

// GetManifest returns a manifest by id.
func (m *Memory) GetManifest(ctx context.Context, id string) (dispatch.Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	man, ok := m.manifests[id]
	if !ok {
		return dispatch.Manifest{}, ErrNotFound
	}
	return man, nil
}

// ListManifests returns every manifest ordered by number.
func (m *Memory) ListManifests(ctx context.Context) ([]dispatch.Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dispatch.Manifest, 0, len(m.manifests))
	for _, man := range m.manifests {
		out = append(out, man)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// ReceiveManifest reconciles a manifest: verified members arrive, the rest
// are reported missing, the manifest closes. All-or-nothing.
func (m *Memory) ReceiveManifest(ctx context.Context, id string, verifiedIDs []string, receivedBy string) (dispatch.Manifest, []shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	man, ok := m.manifests[id]
	if !ok {
		return dispatch.Manifest{}, nil, ErrNotFound
	}
	if man.Status != dispatch.ManifestInTransit {
		return dispatch.Manifest{}, nil, ErrConflict
	}

	verified := make(map[string]struct{}, len(verifiedIDs))
	for _, v := range verifiedIDs {
		verified[v] = struct{}{}
	}

	now := time.Now().UTC()
	updated := make([]shipment.Shipment, 0, len(man.ShipmentIDs))
	staged := make(map[string]shipment.Shipment, len(man.ShipmentIDs))
	for _, sid := range man.ShipmentIDs {
		s, ok := m.shipments[sid]
		if !ok {
			continue
		}
		next := shipment.StatusReportedMissing
		if _, ok := verified[sid]; ok {
			next = shipment.StatusAtDestination
		}
		if s.ShippingStatus != shipment.StatusInTransit {
			return dispatch.Manifest{}, nil, &shipment.StateConflictError{ShipmentID: sid, Current: s.ShippingStatus, Attempted: next}
		}
		s.ShippingStatus = next
		s.UpdatedAt = now
		staged[sid] = s
		updated = append(updated, s)
	}
	for sid, s := range staged {
		m.shipments[sid] = s
	}

	man.Status = dispatch.ManifestReceived
	man.ReceivedAt = &now
	man.ReceivedBy = receivedBy
	m.manifests[id] = man
	return man, updated, nil
}

// VoidManifest cancels an in-transit manifest and reverts every member to
// pending dispatch. All-or-nothing.
func (m *Memory) VoidManifest(ctx context.Context, id string) (dispatch.Manifest, []shipment.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	man, ok := m.manifests[id]
	if !ok {
		return dispatch.Manifest{}, nil, ErrNotFound
	}
	if man.Status != dispatch.ManifestInTransit {
		return dispatch.Manifest{}, nil, ErrConflict
	}

	now := time.Now().UTC()
	updated := make([]shipment.Shipment, 0, len(man.ShipmentIDs))
	staged := make(map[string]shipment.Shipment, len(man.ShipmentIDs))
	for _, sid := range man.ShipmentIDs {
		s, ok := m.shipments[sid]
		if !ok {
			continue
		}
		if s.ShippingStatus != shipment.StatusInTransit {
			return dispatch.Manifest{}, nil, &shipment.StateConflictError{ShipmentID: sid, Current: s.ShippingStatus, Attempted: shipment.StatusPendingDispatch}
		}
		s.ShippingStatus = shipment.StatusPendingDispatch
		s.UpdatedAt = now
		staged[sid] = s
		updated = append(updated, s)
	}
	for sid, s := range staged {
		m.shipments[sid] = s
	}

	man.Status = dispatch.ManifestVoided
	m.manifests[id] = man
	return man, updated, nil
}

// CreateSettlement stores a settlement record, assigning id and number.
func (m *Memory) CreateSettlement(ctx context.Context, s *settlement.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlementSeq++
	s.ID = uuid.NewString()
	s.Number = settlementNumber(m.settlementSeq)
	s.CreatedAt = time.Now().UTC()
	m.settlements[s.ID] = *s
	return nil
}

// GetSettlement returns a settlement by id.
func (m *Memory) GetSettlement(ctx context.Context, id string) (settlement.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[id]
	if !ok {
		return settlement.Settlement{}, ErrNotFound
	}
	return s, nil
}

// ListSettlements returns every settlement ordered by number.
func (m *Memory) ListSettlements(ctx context.Context) ([]settlement.Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]settlement.Settlement, 0, len(m.settlements))
	for _, s := range m.settlements {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// CreateVehicle stores a vehicle, assigning id and timestamps.
func (m *Memory) CreateVehicle(ctx context.Context, v *fleet.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	v.ID = uuid.NewString()
	v.CreatedAt = now
	v.UpdatedAt = now
	m.vehicles[v.ID] = *v
	return nil
}

// GetVehicle returns a vehicle by id.
func (m *Memory) GetVehicle(ctx context.Context, id string) (fleet.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return fleet.Vehicle{}, ErrNotFound
	}
	return v, nil
}

// ListVehicles returns every vehicle ordered by plate number.
func (m *Memory) ListVehicles(ctx context.Context) ([]fleet.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]fleet.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlateNumber < out[j].PlateNumber })
	return out, nil
}

// UpdateVehicle replaces a stored vehicle.
func (m *Memory) UpdateVehicle(ctx context.Context, v fleet.Vehicle) (fleet.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[v.ID]; !ok {
		return fleet.Vehicle{}, ErrNotFound
	}
	v.UpdatedAt = time.Now().UTC()
	m.vehicles[v.ID] = v
	return v, nil
}

// CreateAssociate stores an associate, assigning id and timestamp.
func (m *Memory) CreateAssociate(ctx context.Context, a *fleet.Associate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()
	m.associates[a.ID] = *a
	return nil
}

// GetAssociate returns an associate by id.
func (m *Memory) GetAssociate(ctx context.Context, id string) (fleet.Associate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.associates[id]
	if !ok {
		return fleet.Associate{}, ErrNotFound
	}
	return a, nil
}

// ListAssociates returns every associate ordered by name.
func (m *Memory) ListAssociates(ctx context.Context) ([]fleet.Associate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]fleet.Associate, 0, len(m.associates))
	for _, a := range m.associates {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateExpense stores an expense, assigning id and timestamp.
func (m *Memory) CreateExpense(ctx context.Context, e *expense.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	m.expenses[e.ID] = *e
	return nil
}

// ListExpenses returns every expense ordered by creation time.
func (m *Memory) ListExpenses(ctx context.Context) ([]expense.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]expense.Expense, 0, len(m.expenses))
	for _, e := range m.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// InsertDomainEvent appends a domain event.
func (m *Memory) InsertDomainEvent(ctx context.Context, event *events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	m.events = append(m.events, *event)
	return nil
}

// Events returns a copy of all recorded domain events. Test helper.
func (m *Memory) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

// InsertAuditEntry appends an audit entry.
func (m *Memory) InsertAuditEntry(ctx context.Context, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	m.auditTrail = append(m.auditTrail, *entry)
	return nil
}

// ListAuditEntries returns the newest audit entries up to limit.
func (m *Memory) ListAuditEntries(ctx context.Context, limit int) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.auditTrail)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]audit.Entry, 0, n)
	for i := len(m.auditTrail) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.auditTrail[i])
	}
	return out, nil
}
