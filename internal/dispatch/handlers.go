package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/coopcarga/backend-carga/internal/audit"
	"github.com/coopcarga/backend-carga/internal/common"
	"github.com/coopcarga/backend-carga/internal/shipment"
)

// Handler exposes dispatch manifest endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	audit    *audit.Service
	filter   ListFilter
}

// ListFilter narrows a manifest listing to what the actor may see.
type ListFilter func(r *http.Request, actor common.Actor, manifests []Manifest) ([]Manifest, error)

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
	Audit    *audit.Service
	Filter   ListFilter
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, validate: cfg.Validate, audit: cfg.Audit, filter: cfg.Filter}
}

type createManifestRequest struct {
	VehicleID           string   `json:"vehicleId" validate:"required"`
	DestinationOfficeID string   `json:"destinationOfficeId" validate:"required"`
	ShipmentIDs         []string `json:"shipmentIds" validate:"required,min=1,dive,required"`
}

// Create handles POST /api/v1/manifests.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	var req createManifestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	snapshot, err := h.service.Create(r.Context(), actor, req.ShipmentIDs, req.VehicleID, req.DestinationOfficeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.record(r, actor, "manifest.create", snapshot.Manifest.ID, snapshot.Manifest.Number)
	common.JSON(w, http.StatusCreated, map[string]any{"data": snapshot})
}

type receiveManifestRequest struct {
	VerifiedShipmentIDs []string `json:"verifiedShipmentIds"`
}

// Receive handles POST /api/v1/manifests/{id}/receive.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	id := chi.URLParam(r, "id")
	var req receiveManifestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	snapshot, err := h.service.Receive(r.Context(), actor, id, req.VerifiedShipmentIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.record(r, actor, "manifest.receive", id, snapshot.Manifest.Number)
	common.JSON(w, http.StatusOK, map[string]any{"data": snapshot})
}

// Void handles POST /api/v1/manifests/{id}/void.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	id := chi.URLParam(r, "id")
	snapshot, err := h.service.Void(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.record(r, actor, "manifest.void", id, snapshot.Manifest.Number)
	common.JSON(w, http.StatusOK, map[string]any{"data": snapshot})
}

// Get handles GET /api/v1/manifests/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snapshot, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snapshot})
}

// List handles GET /api/v1/manifests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	manifests, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.filter != nil {
		if manifests, err = h.filter(r, actor, manifests); err != nil {
			h.writeError(w, err)
			return
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": manifests})
}

func (h *Handler) record(r *http.Request, actor common.Actor, action, entityID, detail string) {
	if h.audit == nil {
		return
	}
	h.audit.Record(r.Context(), actor, action, "manifest", entityID, detail)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var conflict *shipment.StateConflictError
	switch {
	case errors.As(err, &conflict):
		common.JSONError(w, http.StatusConflict, "STATE_CONFLICT", conflict.Error(), map[string]any{
			"current":   conflict.Current,
			"attempted": conflict.Attempted,
		})
	case errors.Is(err, ErrManifestNotInTransit):
		common.JSONError(w, http.StatusConflict, "STATE_CONFLICT", ErrManifestNotInTransit.Error(), nil)
	case errors.Is(err, ErrUnknownVerifiedID):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", ErrUnknownVerifiedID.Error(), nil)
	default:
		common.RenderError(w, err)
	}
}
