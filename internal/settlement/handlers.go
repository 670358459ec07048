package settlement

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/coopcarga/backend-carga/internal/audit"
	"github.com/coopcarga/backend-carga/internal/common"
)

// Handler exposes settlement endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	audit    *audit.Service
	filter   ListFilter
}

// ListFilter narrows a settlement listing to what the actor may see.
type ListFilter func(r *http.Request, actor common.Actor, settlements []Settlement) ([]Settlement, error)

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

type previewRequest struct {
	ShipmentIDs []string `json:"shipmentIds" validate:"required,min=1,dive,required"`
}

// Preview handles POST /api/v1/settlements/preview. Nothing is persisted; the
// same ids always produce the same figures.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	breakdown, err := h.service.Preview(r.Context(), req.ShipmentIDs)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": breakdown})
}

type createSettlementRequest struct {
	VehicleID   string   `json:"vehicleId" validate:"required"`
	ShipmentIDs []string `json:"shipmentIds" validate:"required,min=1,dive,required"`
}

// Create handles POST /api/v1/settlements.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	var req createSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	record, err := h.service.Create(r.Context(), req.VehicleID, req.ShipmentIDs)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if h.audit != nil {
		h.audit.Record(r.Context(), actor, "settlement.create", "settlement", record.Settlement.ID, record.Settlement.Number)
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": record})
}

// Get handles GET /api/v1/settlements/{id}. The breakdown is recomputed from
// current shipment state on every read.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": record})
}

// List handles GET /api/v1/settlements.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	settlements, err := h.service.List(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if h.filter != nil {
		if settlements, err = h.filter(r, actor, settlements); err != nil {
			common.RenderError(w, err)
			return
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": settlements})
}
