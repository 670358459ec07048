package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/coopcarga/backend-carga/internal/audit"
	"github.com/coopcarga/backend-carga/internal/dispatch"
	"github.com/coopcarga/backend-carga/internal/events"
	"github.com/coopcarga/backend-carga/internal/expense"
	"github.com/coopcarga/backend-carga/internal/fleet"
	"github.com/coopcarga/backend-carga/internal/settlement"
	"github.com/coopcarga/backend-carga/internal/shipment"
	"github.com/coopcarga/backend-carga/internal/tariff"
)

// Postgres persists the cooperative's records in PostgreSQL via pgx. Guide
// payloads are stored as jsonb so the freight calculator stays the single
// source of truth for financial figures; nothing derived is persisted.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Ping checks database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func mapRowErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const shipmentColumns = `id, number, client_id, guide, vehicle_id, master_status, payment_status, shipping_status, created_at, updated_at`

func scanShipment(row pgx.Row) (shipment.Shipment, error) {
	var (
		s        shipment.Shipment
		rawGuide []byte
	)
	err := row.Scan(&s.ID, &s.Number, &s.ClientID, &rawGuide, &s.VehicleID, &s.MasterStatus, &s.PaymentStatus, &s.ShippingStatus, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return shipment.Shipment{}, mapRowErr(err)
	}
	if err := json.Unmarshal(rawGuide, &s.Guide); err != nil {
		return shipment.Shipment{}, fmt.Errorf("decode guide for shipment %s: %w", s.ID, err)
	}
	return s, nil
}

// CreateShipment inserts a shipment, issuing its id and document number.
func (p *Postgres) CreateShipment(ctx context.Context, s *shipment.Shipment) error {
	rawGuide, err := json.Marshal(s.Guide)
	if err != nil {
		return fmt.Errorf("encode guide: %w", err)
	}
	s.ID = uuid.NewString()
	row := p.pool.QueryRow(ctx, `
		INSERT INTO shipments (id, number, client_id, guide, vehicle_id, master_status, payment_status, shipping_status)
		VALUES ($1, 'F-' || lpad(nextval('shipment_number_seq')::text, 6, '0'), $2, $3, $4, $5, $6, $7)
		RETURNING number, created_at, updated_at`,
		s.ID, s.ClientID, rawGuide, s.VehicleID, s.MasterStatus, s.PaymentStatus, s.ShippingStatus)
	if err := row.Scan(&s.Number, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetShipment returns a shipment by id.
func (p *Postgres) GetShipment(ctx context.Context, id string) (shipment.Shipment, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id)
	return scanShipment(row)
}

// UpdateShipmentGuide replaces the guide of an active, not yet dispatched
// shipment. The precondition is re-checked by the WHERE clause so a
// concurrent dispatch loses nothing.
func (p *Postgres) UpdateShipmentGuide(ctx context.Context, id string, guide tariff.Guide) (shipment.Shipment, error) {
	rawGuide, err := json.Marshal(guide)
	if err != nil {
		return shipment.Shipment{}, fmt.Errorf("encode guide: %w", err)
	}
	row := p.pool.QueryRow(ctx, `
		UPDATE shipments
		SET guide = $2, updated_at = now()
		WHERE id = $1 AND master_status = $3 AND shipping_status = $4
		RETURNING `+shipmentColumns,
		id, rawGuide, shipment.MasterActive, shipment.StatusPendingDispatch)
	s, err := scanShipment(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := p.GetShipment(ctx, id); getErr == nil {
			return shipment.Shipment{}, ErrConflict
		}
		return shipment.Shipment{}, ErrNotFound
	}
	return s, err
}

// UpdateShipmentStatuses applies a status patch. The Expect* preconditions
// become part of the UPDATE's WHERE clause; losing the race returns a
// conflict instead of silently overwriting.
func (p *Postgres) UpdateShipmentStatuses(ctx context.Context, id string, patch shipment.StatusPatch) (shipment.Shipment, error) {
	set := "updated_at = now()"
	args := []any{id}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if patch.Master != nil {
		set += ", master_status = " + next(*patch.Master)
	}
	if patch.Payment != nil {
		set += ", payment_status = " + next(*patch.Payment)
	}
	if patch.Shipping != nil {
		set += ", shipping_status = " + next(*patch.Shipping)
	}
	where := "id = $1"
	if patch.ExpectMaster != nil {
		where += " AND master_status = " + next(*patch.ExpectMaster)
	}
	if patch.ExpectShipping != nil {
		where += " AND shipping_status = " + next(*patch.ExpectShipping)
	}

	row := p.pool.QueryRow(ctx, `UPDATE shipments SET `+set+` WHERE `+where+` RETURNING `+shipmentColumns, args...)
	s, err := scanShipment(row)
	if !errors.Is(err, ErrNotFound) {
		return s, err
	}

	current, getErr := p.GetShipment(ctx, id)
	if getErr != nil {
		return shipment.Shipment{}, ErrNotFound
	}
	if patch.ExpectShipping != nil && current.ShippingStatus != *patch.ExpectShipping {
		attempted := current.ShippingStatus
		if patch.Shipping != nil {
			attempted = *patch.Shipping
		}
		return shipment.Shipment{}, &shipment.StateConflictError{ShipmentID: id, Current: current.ShippingStatus, Attempted: attempted}
	}
	return shipment.Shipment{}, ErrConflict
}

// AssignVehicle records the vehicle on an active, pending shipment.
func (p *Postgres) AssignVehicle(ctx context.Context, id, vehicleID string) (shipment.Shipment, error) {
	if _, err := p.GetVehicle(ctx, vehicleID); err != nil {
		return shipment.Shipment{}, err
	}
	row := p.pool.QueryRow(ctx, `
		UPDATE shipments
		SET vehicle_id = $2, updated_at = now()
		WHERE id = $1 AND master_status = $3 AND shipping_status = $4
		RETURNING `+shipmentColumns,
		id, vehicleID, shipment.MasterActive, shipment.StatusPendingDispatch)
	s, err := scanShipment(row)
	if errors.Is(err, ErrNotFound) {
		current, getErr := p.GetShipment(ctx, id)
		if getErr != nil {
			return shipment.Shipment{}, ErrNotFound
		}
		if current.ShippingStatus != shipment.StatusPendingDispatch {
			return shipment.Shipment{}, &shipment.StateConflictError{ShipmentID: id, Current: current.ShippingStatus, Attempted: shipment.StatusPendingDispatch}
		}
		return shipment.Shipment{}, ErrConflict
	}
	return s, err
}

func collectShipments(rows pgx.Rows) ([]shipment.Shipment, error) {
	defer rows.Close()
	var out []shipment.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListShipments returns every shipment ordered by number.
func (p *Postgres) ListShipments(ctx context.Context) ([]shipment.Shipment, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+shipmentColumns+` FROM shipments ORDER BY number`)
	if err != nil {
		return nil, err
	}
	return collectShipments(rows)
}

// ListShipmentsByIDs returns the shipments found among the ids. Missing ids
// are skipped; callers surface them as discrepancies.
func (p *Postgres) ListShipmentsByIDs(ctx context.Context, ids []string) ([]shipment.Shipment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id = ANY($1) ORDER BY number`, ids)
	if err != nil {
		return nil, err
	}
	return collectShipments(rows)
}

// ListShipmentsByVehicle returns shipments currently assigned to the vehicle.
func (p *Postgres) ListShipmentsByVehicle(ctx context.Context, vehicleID string) ([]shipment.Shipment, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE vehicle_id = $1 ORDER BY number`, vehicleID)
	if err != nil {
		return nil, err
	}
	return collectShipments(rows)
}

const manifestColumns = `m.id, m.number, m.vehicle_id, m.origin_office_id, m.destination_office_id, m.status, m.created_at, m.received_at, m.received_by`

func (p *Postgres) scanManifest(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, id string) (dispatch.Manifest, error) {
	var (
		man    dispatch.Manifest
		recvBy *string
	)
	row := q.QueryRow(ctx, `SELECT `+manifestColumns+` FROM manifests m WHERE m.id = $1`, id)
	if err := row.Scan(&man.ID, &man.Number, &man.VehicleID, &man.OriginOfficeID, &man.DestinationOfficeID, &man.Status, &man.CreatedAt, &man.ReceivedAt, &recvBy); err != nil {
		return dispatch.Manifest{}, mapRowErr(err)
	}
	if recvBy != nil {
		man.ReceivedBy = *recvBy
	}
	rows, err := q.Query(ctx, `SELECT shipment_id FROM manifest_shipments WHERE manifest_id = $1 ORDER BY position`, id)
	if err != nil {
		return dispatch.Manifest{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return dispatch.Manifest{}, err
		}
		man.ShipmentIDs = append(man.ShipmentIDs, sid)
	}
	return man, rows.Err()
}

// CreateManifest inserts the manifest and flips every member shipment to
// in-transit in one transaction. A member that lost its pending status since
// the service validated it aborts the whole create.
func (p *Postgres) CreateManifest(ctx context.Context, man *dispatch.Manifest) ([]shipment.Shipment, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	man.ID = uuid.NewString()
	man.Status = dispatch.ManifestInTransit
	row := tx.QueryRow(ctx, `
		INSERT INTO manifests (id, number, vehicle_id, origin_office_id, destination_office_id, status)
		VALUES ($1, 'D-' || lpad(nextval('manifest_number_seq')::text, 6, '0'), $2, $3, $4, $5)
		RETURNING number, created_at`,
		man.ID, man.VehicleID, man.OriginOfficeID, man.DestinationOfficeID, man.Status)
	if err := row.Scan(&man.Number, &man.CreatedAt); err != nil {
		return nil, err
	}

	updated := make([]shipment.Shipment, 0, len(man.ShipmentIDs))
	for pos, sid := range man.ShipmentIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO manifest_shipments (manifest_id, shipment_id, position) VALUES ($1, $2, $3)`, man.ID, sid, pos); err != nil {
			if isUniqueViolation(err) {
				return nil, ErrConflict
			}
			return nil, err
		}
		r := tx.QueryRow(ctx, `
			UPDATE shipments
			SET shipping_status = $2, vehicle_id = $3, updated_at = now()
			WHERE id = $1 AND master_status = $4 AND shipping_status = $5
			RETURNING `+shipmentColumns,
			sid, shipment.StatusInTransit, man.VehicleID, shipment.MasterActive, shipment.StatusPendingDispatch)
		s, err := scanShipment(r)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, p.memberConflict(ctx, sid, shipment.StatusInTransit)
			}
			return nil, err
		}
		updated = append(updated, s)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// memberConflict turns a failed member precondition into the richest error
// available: a state conflict when the shipment exists, not-found otherwise.
func (p *Postgres) memberConflict(ctx context.Context, shipmentID string, attempted shipment.ShippingStatus) error {
	current, err := p.GetShipment(ctx, shipmentID)
	if err != nil {
		return ErrNotFound
	}
	if !current.Active() {
		return ErrConflict
	}
	return &shipment.StateConflictError{ShipmentID: shipmentID, Current: current.ShippingStatus, Attempted: attempted}
}

// GetManifest returns a manifest with its member ids.
func (p *Postgres) GetManifest(ctx context.Context, id string) (dispatch.Manifest, error) {
	return p.scanManifest(ctx, p.pool, id)
}

// ListManifests returns every manifest ordered by number.
func (p *Postgres) ListManifests(ctx context.Context) ([]dispatch.Manifest, error) {
	rows, err := p.pool.Query(ctx, `SELECT m.id FROM manifests m ORDER BY m.number`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]dispatch.Manifest, 0, len(ids))
	for _, id := range ids {
		man, err := p.GetManifest(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, man)
	}
	return out, nil
}

// ReceiveManifest closes an in-transit manifest: verified members arrive at
// destination, the rest are reported missing. One transaction.
func (p *Postgres) ReceiveManifest(ctx context.Context, id string, verifiedIDs []string, receivedBy string) (dispatch.Manifest, []shipment.Shipment, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return dispatch.Manifest{}, nil, err
	}
	defer tx.Rollback(ctx)

	man, err := p.scanManifest(ctx, tx, id)
	if err != nil {
		return dispatch.Manifest{}, nil, err
	}
	if man.Status != dispatch.ManifestInTransit {
		return dispatch.Manifest{}, nil, ErrConflict
	}

	verified := make(map[string]struct{}, len(verifiedIDs))
	for _, v := range verifiedIDs {
		verified[v] = struct{}{}
	}

	updated := make([]shipment.Shipment, 0, len(man.ShipmentIDs))
	for _, sid := range man.ShipmentIDs {
		status := shipment.StatusReportedMissing
		if _, ok := verified[sid]; ok {
			status = shipment.StatusAtDestination
		}
		r := tx.QueryRow(ctx, `
			UPDATE shipments SET shipping_status = $2, updated_at = now()
			WHERE id = $1 AND shipping_status = $3
			RETURNING `+shipmentColumns,
			sid, status, shipment.StatusInTransit)
		s, err := scanShipment(r)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return dispatch.Manifest{}, nil, p.memberConflict(ctx, sid, status)
			}
			return dispatch.Manifest{}, nil, err
		}
		updated = append(updated, s)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE manifests SET status = $2, received_at = $3, received_by = $4 WHERE id = $1`,
		id, dispatch.ManifestReceived, now, receivedBy); err != nil {
		return dispatch.Manifest{}, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return dispatch.Manifest{}, nil, err
	}

	man.Status = dispatch.ManifestReceived
	man.ReceivedAt = &now
	man.ReceivedBy = receivedBy
	return man, updated, nil
}

// VoidManifest cancels an in-transit manifest and reverts every member to
// pending dispatch. One transaction.
func (p *Postgres) VoidManifest(ctx context.Context, id string) (dispatch.Manifest, []shipment.Shipment, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return dispatch.Manifest{}, nil, err
	}
	defer tx.Rollback(ctx)

	man, err := p.scanManifest(ctx, tx, id)
	if err != nil {
		return dispatch.Manifest{}, nil, err
	}
	if man.Status != dispatch.ManifestInTransit {
		return dispatch.Manifest{}, nil, ErrConflict
	}

	updated := make([]shipment.Shipment, 0, len(man.ShipmentIDs))
	for _, sid := range man.ShipmentIDs {
		r := tx.QueryRow(ctx, `
			UPDATE shipments SET shipping_status = $2, updated_at = now()
			WHERE id = $1 AND shipping_status = $3
			RETURNING `+shipmentColumns,
			sid, shipment.StatusPendingDispatch, shipment.StatusInTransit)
		s, err := scanShipment(r)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return dispatch.Manifest{}, nil, p.memberConflict(ctx, sid, shipment.StatusPendingDispatch)
			}
			return dispatch.Manifest{}, nil, err
		}
		updated = append(updated, s)
	}

	if _, err := tx.Exec(ctx, `UPDATE manifests SET status = $2 WHERE id = $1`, id, dispatch.ManifestVoided); err != nil {
		return dispatch.Manifest{}, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return dispatch.Manifest{}, nil, err
	}

	man.Status = dispatch.ManifestVoided
	return man, updated, nil
}

// CreateSettlement inserts a settlement record with its member ids.
func (p *Postgres) CreateSettlement(ctx context.Context, s *settlement.Settlement) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	s.ID = uuid.NewString()
	row := tx.QueryRow(ctx, `
		INSERT INTO settlements (id, number, associate_id, vehicle_id)
		VALUES ($1, 'R-' || lpad(nextval('settlement_number_seq')::text, 6, '0'), $2, $3)
		RETURNING number, created_at`,
		s.ID, s.AssociateID, s.VehicleID)
	if err := row.Scan(&s.Number, &s.CreatedAt); err != nil {
		return err
	}
	for pos, sid := range s.ShipmentIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO settlement_shipments (settlement_id, shipment_id, position) VALUES ($1, $2, $3)`, s.ID, sid, pos); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetSettlement returns a settlement with its member ids.
func (p *Postgres) GetSettlement(ctx context.Context, id string) (settlement.Settlement, error) {
	var s settlement.Settlement
	row := p.pool.QueryRow(ctx, `SELECT id, number, associate_id, vehicle_id, created_at FROM settlements WHERE id = $1`, id)
	if err := row.Scan(&s.ID, &s.Number, &s.AssociateID, &s.VehicleID, &s.CreatedAt); err != nil {
		return settlement.Settlement{}, mapRowErr(err)
	}
	rows, err := p.pool.Query(ctx, `SELECT shipment_id FROM settlement_shipments WHERE settlement_id = $1 ORDER BY position`, id)
	if err != nil {
		return settlement.Settlement{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return settlement.Settlement{}, err
		}
		s.ShipmentIDs = append(s.ShipmentIDs, sid)
	}
	return s, rows.Err()
}

// ListSettlements returns every settlement ordered by number.
func (p *Postgres) ListSettlements(ctx context.Context) ([]settlement.Settlement, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM settlements ORDER BY number`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]settlement.Settlement, 0, len(ids))
	for _, id := range ids {
		s, err := p.GetSettlement(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

const vehicleColumns = `id, plate_number, model, associate_id, capacity_kg::text, status, created_at, updated_at`

func scanVehicle(row pgx.Row) (fleet.Vehicle, error) {
	var (
		v        fleet.Vehicle
		capacity string
	)
	if err := row.Scan(&v.ID, &v.PlateNumber, &v.Model, &v.AssociateID, &capacity, &v.Status, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return fleet.Vehicle{}, mapRowErr(err)
	}
	d, err := decimal.NewFromString(capacity)
	if err != nil {
		return fleet.Vehicle{}, fmt.Errorf("decode capacity for vehicle %s: %w", v.ID, err)
	}
	v.CapacityKg = d
	return v, nil
}

// CreateVehicle inserts a vehicle.
func (p *Postgres) CreateVehicle(ctx context.Context, v *fleet.Vehicle) error {
	v.ID = uuid.NewString()
	row := p.pool.QueryRow(ctx, `
		INSERT INTO vehicles (id, plate_number, model, associate_id, capacity_kg, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		v.ID, v.PlateNumber, v.Model, v.AssociateID, v.CapacityKg.String(), v.Status)
	if err := row.Scan(&v.CreatedAt, &v.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetVehicle returns a vehicle by id.
func (p *Postgres) GetVehicle(ctx context.Context, id string) (fleet.Vehicle, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	return scanVehicle(row)
}

// ListVehicles returns every vehicle ordered by plate number.
func (p *Postgres) ListVehicles(ctx context.Context) ([]fleet.Vehicle, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY plate_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []fleet.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVehicle replaces a vehicle's mutable fields.
func (p *Postgres) UpdateVehicle(ctx context.Context, v fleet.Vehicle) (fleet.Vehicle, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE vehicles
		SET plate_number = $2, model = $3, associate_id = $4, capacity_kg = $5, status = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+vehicleColumns,
		v.ID, v.PlateNumber, v.Model, v.AssociateID, v.CapacityKg.String(), v.Status)
	return scanVehicle(row)
}

// CreateAssociate inserts an associate.
func (p *Postgres) CreateAssociate(ctx context.Context, a *fleet.Associate) error {
	a.ID = uuid.NewString()
	row := p.pool.QueryRow(ctx, `
		INSERT INTO associates (id, name, document_id, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		a.ID, a.Name, a.DocumentID, a.Phone)
	if err := row.Scan(&a.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// GetAssociate returns an associate by id.
func (p *Postgres) GetAssociate(ctx context.Context, id string) (fleet.Associate, error) {
	var a fleet.Associate
	row := p.pool.QueryRow(ctx, `SELECT id, name, document_id, phone, created_at FROM associates WHERE id = $1`, id)
	if err := row.Scan(&a.ID, &a.Name, &a.DocumentID, &a.Phone, &a.CreatedAt); err != nil {
		return fleet.Associate{}, mapRowErr(err)
	}
	return a, nil
}

// ListAssociates returns every associate ordered by name.
func (p *Postgres) ListAssociates(ctx context.Context) ([]fleet.Associate, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name, document_id, phone, created_at FROM associates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []fleet.Associate
	for rows.Next() {
		var a fleet.Associate
		if err := rows.Scan(&a.ID, &a.Name, &a.DocumentID, &a.Phone, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateExpense inserts an office expense.
func (p *Postgres) CreateExpense(ctx context.Context, e *expense.Expense) error {
	e.ID = uuid.NewString()
	row := p.pool.QueryRow(ctx, `
		INSERT INTO expenses (id, office_id, description, amount, incurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		e.ID, e.OfficeID, e.Description, e.Amount.String(), e.IncurredAt)
	return row.Scan(&e.CreatedAt)
}

// ListExpenses returns every expense ordered by creation time.
func (p *Postgres) ListExpenses(ctx context.Context) ([]expense.Expense, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, office_id, description, amount::text, incurred_at, created_at FROM expenses ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []expense.Expense
	for rows.Next() {
		var (
			e      expense.Expense
			amount string
		)
		if err := rows.Scan(&e.ID, &e.OfficeID, &e.Description, &amount, &e.IncurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("decode amount for expense %s: %w", e.ID, err)
		}
		e.Amount = d
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertDomainEvent appends a domain event.
func (p *Postgres) InsertDomainEvent(ctx context.Context, event *events.Event) error {
	event.ID = uuid.NewString()
	payload := event.Payload
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	row := p.pool.QueryRow(ctx, `
		INSERT INTO domain_events (id, topic, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING occurred_at`,
		event.ID, event.Topic, event.AggregateID, []byte(payload))
	return row.Scan(&event.OccurredAt)
}

// InsertAuditEntry appends an audit entry.
func (p *Postgres) InsertAuditEntry(ctx context.Context, entry *audit.Entry) error {
	entry.ID = uuid.NewString()
	row := p.pool.QueryRow(ctx, `
		INSERT INTO audit_log (id, actor_id, actor_name, office_id, action, entity_type, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		entry.ID, entry.ActorID, entry.ActorName, entry.OfficeID, entry.Action, entry.EntityType, entry.EntityID, entry.Detail)
	return row.Scan(&entry.CreatedAt)
}

// ListAuditEntries returns the newest audit entries up to limit.
func (p *Postgres) ListAuditEntries(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, actor_id, actor_name, office_id, action, entity_type, entity_id, detail, created_at
		FROM audit_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.OfficeID, &e.Action, &e.EntityType, &e.EntityID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
