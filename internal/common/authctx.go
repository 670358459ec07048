package common

import "context"

type ctxKey string

const actorKey ctxKey = "auth/actor"

// Capability keys understood by the visibility and authorization layers.
const (
	CapManageAllOffices        = "shipments.manage_all_offices"
	CapManageAllOfficeExpenses = "expenses.manage_all_offices"
	CapVoidShipments           = "shipments.void"
	CapChangeShipmentStatus    = "shipments.change_status"
	CapCreateDispatch          = "dispatches.create"
	CapReceiveDispatch         = "dispatches.receive"
	CapVoidDispatch            = "dispatches.void"
	CapCreateSettlement        = "settlements.create"
)

// Actor identifies the caller of an operation: who they are, which office they
// operate from and which capabilities the authorization collaborator granted.
type Actor struct {
	UserID       string
	Name         string
	OfficeID     string
	Capabilities []string
}

// Can reports whether the actor holds the given capability.
func (a Actor) Can(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// GlobalScope reports whether the actor may see records across all offices.
func (a Actor) GlobalScope() bool {
	return a.Can(CapManageAllOffices)
}

// WithActor stores the authenticated actor on the provided context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the authenticated actor from the context if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	v := ctx.Value(actorKey)
	if v == nil {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}
