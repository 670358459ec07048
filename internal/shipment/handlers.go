package shipment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/coopcarga/backend-carga/internal/audit"
	"github.com/coopcarga/backend-carga/internal/common"
	"github.com/coopcarga/backend-carga/internal/tariff"
)

// Handler exposes shipment endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	audit    *audit.Service
	filter   ListFilter
}

// ListFilter narrows a shipment listing to what the actor may see.
type ListFilter func(r *http.Request, actor common.Actor, shipments []Shipment) ([]Shipment, error)

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

type guidePayload struct {
	OriginOfficeID      string        `json:"originOfficeId" validate:"required"`
	DestinationOfficeID string        `json:"destinationOfficeId" validate:"required"`
	Lines               []tariff.Line `json:"lines" validate:"required,min=1,dive"`
	PaymentType         string        `json:"paymentType" validate:"required"`
	PaymentCurrency     string        `json:"paymentCurrency"`
	HasInsurance        bool          `json:"hasInsurance"`
	DeclaredValue       string        `json:"declaredValue"`
	InsuranceRate       string        `json:"insuranceRate"`
	HasDiscount         bool          `json:"hasDiscount"`
	DiscountRate        string        `json:"discountRate"`
}

type createShipmentRequest struct {
	ClientID string       `json:"clientId"`
	Guide    guidePayload `json:"guide" validate:"required"`
}

func (p guidePayload) toGuide() (tariff.Guide, error) {
	g := tariff.Guide{
		OriginOfficeID:      p.OriginOfficeID,
		DestinationOfficeID: p.DestinationOfficeID,
		Lines:               p.Lines,
		PaymentType:         tariff.PaymentType(p.PaymentType),
		PaymentCurrency:     tariff.Currency(p.PaymentCurrency),
		HasInsurance:        p.HasInsurance,
		HasDiscount:         p.HasDiscount,
	}
	if g.PaymentCurrency == "" {
		g.PaymentCurrency = tariff.CurrencyLocal
	}
	var err error
	if g.DeclaredValue, err = common.ParseDecimal(p.DeclaredValue); err != nil {
		return tariff.Guide{}, common.NewAppError("VALIDATION_ERROR", "invalid declaredValue", http.StatusBadRequest, err)
	}
	if g.InsuranceRate, err = common.ParseDecimal(p.InsuranceRate); err != nil {
		return tariff.Guide{}, common.NewAppError("VALIDATION_ERROR", "invalid insuranceRate", http.StatusBadRequest, err)
	}
	if g.DiscountRate, err = common.ParseDecimal(p.DiscountRate); err != nil {
		return tariff.Guide{}, common.NewAppError("VALIDATION_ERROR", "invalid discountRate", http.StatusBadRequest, err)
	}
	return g, nil
}

// Create handles POST /api/v1/shipments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	var req createShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	guide, err := req.Guide.toGuide()
	if err != nil {
		h.writeError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), req.ClientID, guide)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.record(r, actor, "shipment.create", created.Shipment.ID, created.Shipment.Number)
	common.JSON(w, http.StatusCreated, map[string]any{
		"data":      created.Shipment,
		"breakdown": created.Breakdown,
	})
}

// List handles GET /api/v1/shipments.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	shipments, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.filter != nil {
		if shipments, err = h.filter(r, actor, shipments); err != nil {
			h.writeError(w, err)
			return
		}
	}
	page, perPage := common.ParsePagination(r, 50)
	total := len(shipments)
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       paginate(shipments, page, perPage),
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

func paginate(shipments []Shipment, page, perPage int) []Shipment {
	start := (page - 1) * perPage
	if start >= len(shipments) {
		return []Shipment{}
	}
	end := start + perPage
	if end > len(shipments) {
		end = len(shipments)
	}
	return shipments[start:end]
}

// Get handles GET /api/v1/shipments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	created, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":      created.Shipment,
		"breakdown": created.Breakdown,
	})
}

// UpdateGuide handles PUT /api/v1/shipments/{id}/guide.
func (h *Handler) UpdateGuide(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	id := chi.URLParam(r, "id")
	var payload guidePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	guide, err := payload.toGuide()
	if err != nil {
		h.writeError(w, err)
		return
	}
	updated, err := h.service.UpdateGuide(r.Context(), id, guide)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.record(r, actor, "shipment.update_guide", id, updated.Shipment.Number)
	common.JSON(w, http.StatusOK, map[string]any{
		"data":      updated.Shipment,
		"breakdown": updated.Breakdown,
	})
}

type assignVehicleRequest struct {
	VehicleID string `json:"vehicleId" validate:"required"`
}

// AssignVehicle handles POST /api/v1/shipments/{id}/vehicle.
func (h *Handler) AssignVehicle(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	id := chi.URLParam(r, "id")
	var req assignVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	result, err := h.service.AssignVehicle(r.Context(), id, req.VehicleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.record(r, actor, "shipment.assign_vehicle", id, req.VehicleID)
	common.JSON(w, http.StatusOK, map[string]any{
		"data": result.Shipment,
		"load": result.Load,
	})
}

// Void handles POST /api/v1/shipments/{id}/void.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	id := chi.URLParam(r, "id")
	voided, err := h.service.Void(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.record(r, actor, "shipment.void", id, voided.Number)
	common.JSON(w, http.StatusOK, map[string]any{"data": voided})
}

type statusPatchRequest struct {
	MasterStatus   *string `json:"masterStatus"`
	PaymentStatus  *string `json:"paymentStatus"`
	ShippingStatus *string `json:"shippingStatus"`
}

// UpdateStatuses handles PATCH /api/v1/shipments/{id}/status.
func (h *Handler) UpdateStatuses(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	id := chi.URLParam(r, "id")
	var req statusPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	var patch StatusPatch
	if req.MasterStatus != nil {
		ms := MasterStatus(*req.MasterStatus)
		patch.Master = &ms
	}
	if req.PaymentStatus != nil {
		ps := PaymentStatus(*req.PaymentStatus)
		patch.Payment = &ps
	}
	if req.ShippingStatus != nil {
		ss := ShippingStatus(*req.ShippingStatus)
		patch.Shipping = &ss
	}
	updated, err := h.service.UpdateStatuses(r.Context(), actor, id, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.record(r, actor, "shipment.update_status", id, string(updated.ShippingStatus))
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// VehicleLoad handles GET /api/v1/vehicles/{id}/load.
func (h *Handler) VehicleLoad(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	load, err := h.service.VehicleLoad(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": load})
}

// Inventory handles GET /api/v1/inventory: pieces sitting at destination
// offices waiting for pickup, derived from shipment state.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	shipments, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.filter != nil {
		if shipments, err = h.filter(r, actor, shipments); err != nil {
			h.writeError(w, err)
			return
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": InventoryItems(shipments)})
}

func (h *Handler) record(r *http.Request, actor common.Actor, action, entityID, detail string) {
	if h.audit == nil {
		return
	}
	h.audit.Record(r.Context(), actor, action, "shipment", entityID, detail)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var conflict *StateConflictError
	if errors.As(err, &conflict) {
		common.JSONError(w, http.StatusConflict, "STATE_CONFLICT", conflict.Error(), map[string]any{
			"current":   conflict.Current,
			"attempted": conflict.Attempted,
		})
		return
	}
	common.RenderError(w, err)
}
