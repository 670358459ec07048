package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/coopcarga/backend-carga/internal/common"
)

// Entry is one recorded action on a core entity.
type Entry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actorId"`
	ActorName  string    `json:"actorName,omitempty"`
	OfficeID   string    `json:"officeId,omitempty"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store defines the persistence operations required for auditing.
type Store interface {
	InsertAuditEntry(ctx context.Context, entry *Entry) error
	ListAuditEntries(ctx context.Context, limit int) ([]Entry, error)
}

// Service persists an audit trail for lifecycle, dispatch and settlement
// mutations.
type Service struct {
	Store   Store
	Logger  zerolog.Logger
	Enabled bool
}

// Record persists an audit entry when auditing is enabled. Audit failures are
// logged, never propagated: a broken trail must not fail the operation.
func (s Service) Record(ctx context.Context, actor common.Actor, action, entityType, entityID, detail string) {
	if !s.Enabled {
		return
	}
	if s.Store == nil {
		s.Logger.Warn().Msg("audit store not configured")
		return
	}
	entry := Entry{
		ActorID:    actor.UserID,
		ActorName:  actor.Name,
		OfficeID:   actor.OfficeID,
		Action:     strings.TrimSpace(action),
		EntityType: strings.TrimSpace(entityType),
		EntityID:   entityID,
		Detail:     detail,
	}
	if entry.Action == "" || entry.EntityType == "" {
		s.Logger.Warn().Msg("audit entry missing action or entity type")
		return
	}
	if err := s.Store.InsertAuditEntry(ctx, &entry); err != nil {
		s.Logger.Error().Err(err).Str("action", entry.Action).Msg("persist audit entry")
	}
}

// List returns the most recent audit entries.
func (s Service) List(ctx context.Context, limit int) ([]Entry, error) {
	if s.Store == nil {
		return nil, errors.New("audit: store not configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Store.ListAuditEntries(ctx, limit)
}
