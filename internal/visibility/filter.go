// Package visibility implements the office-scoped access lens applied by
// every list-returning boundary operation. Filters are pure predicate
// compositions over already-loaded records; they never mutate their inputs.
package visibility

import (
	"github.com/coopcarga/backend-carga/internal/common"
	"github.com/coopcarga/backend-carga/internal/dispatch"
	"github.com/coopcarga/backend-carga/internal/expense"
	"github.com/coopcarga/backend-carga/internal/settlement"
	"github.com/coopcarga/backend-carga/internal/shipment"
)

// Shipments returns the shipments the actor may see. Office-scoped actors see
// a shipment when its origin office, its destination office, or its presence
// on any manifest touching their office matches. The manifest leg makes a
// shipment visible to the destination office while still inbound.
func Shipments(actor common.Actor, shipments []shipment.Shipment, manifests []dispatch.Manifest) []shipment.Shipment {
	if actor.GlobalScope() {
		return shipments
	}
	if actor.OfficeID == "" {
		return []shipment.Shipment{}
	}

	inbound := make(map[string]struct{})
	for _, m := range manifests {
		if !m.TouchesOffice(actor.OfficeID) {
			continue
		}
		for _, id := range m.ShipmentIDs {
			inbound[id] = struct{}{}
		}
	}

	visible := make([]shipment.Shipment, 0, len(shipments))
	for _, s := range shipments {
		if s.Guide.OriginOfficeID == actor.OfficeID ||
			s.Guide.DestinationOfficeID == actor.OfficeID {
			visible = append(visible, s)
			continue
		}
		if _, ok := inbound[s.ID]; ok {
			visible = append(visible, s)
		}
	}
	return visible
}

// Manifests returns the manifests touching the actor's office.
func Manifests(actor common.Actor, manifests []dispatch.Manifest) []dispatch.Manifest {
	if actor.GlobalScope() {
		return manifests
	}
	if actor.OfficeID == "" {
		return []dispatch.Manifest{}
	}
	visible := make([]dispatch.Manifest, 0, len(manifests))
	for _, m := range manifests {
		if m.TouchesOffice(actor.OfficeID) {
			visible = append(visible, m)
		}
	}
	return visible
}

// Settlements filters settlement records transitively: a settlement survives
// only when it references at least one shipment the actor can see. Visibility
// is inherited through shipment ids, not through independent office fields.
func Settlements(actor common.Actor, settlements []settlement.Settlement, visibleShipments []shipment.Shipment) []settlement.Settlement {
	if actor.GlobalScope() {
		return settlements
	}
	ids := shipmentIDSet(visibleShipments)
	visible := make([]settlement.Settlement, 0, len(settlements))
	for _, s := range settlements {
		if referencesAny(s.ShipmentIDs, ids) {
			visible = append(visible, s)
		}
	}
	return visible
}

// Inventory filters derived inventory items through their referenced
// shipment ids.
func Inventory(actor common.Actor, items []shipment.InventoryItem, visibleShipments []shipment.Shipment) []shipment.InventoryItem {
	if actor.GlobalScope() {
		return items
	}
	ids := shipmentIDSet(visibleShipments)
	visible := make([]shipment.InventoryItem, 0, len(items))
	for _, item := range items {
		if _, ok := ids[item.ShipmentID]; ok {
			visible = append(visible, item)
		}
	}
	return visible
}

// Expenses filters expenses on their own office field; expense scoping has a
// dedicated global capability.
func Expenses(actor common.Actor, expenses []expense.Expense) []expense.Expense {
	if actor.Can(common.CapManageAllOfficeExpenses) {
		return expenses
	}
	if actor.OfficeID == "" {
		return []expense.Expense{}
	}
	visible := make([]expense.Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.OfficeID == actor.OfficeID {
			visible = append(visible, e)
		}
	}
	return visible
}

func shipmentIDSet(shipments []shipment.Shipment) map[string]struct{} {
	ids := make(map[string]struct{}, len(shipments))
	for _, s := range shipments {
		ids[s.ID] = struct{}{}
	}
	return ids
}

func referencesAny(ids []string, set map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
