package fleet

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/coopcarga/backend-carga/internal/common"
)

// Handler exposes fleet registry endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, validate: cfg.Validate}
}

type vehicleRequest struct {
	PlateNumber string `json:"plateNumber" validate:"required"`
	Model       string `json:"model"`
	AssociateID string `json:"associateId" validate:"required"`
	CapacityKg  string `json:"capacityKg"`
	Status      string `json:"status"`
}

func (req vehicleRequest) toInput() (VehicleInput, error) {
	capacity, err := common.ParseDecimal(req.CapacityKg)
	if err != nil {
		return VehicleInput{}, common.NewAppError("VALIDATION_ERROR", "invalid capacityKg", http.StatusBadRequest, err)
	}
	return VehicleInput{
		PlateNumber: req.PlateNumber,
		Model:       req.Model,
		AssociateID: req.AssociateID,
		CapacityKg:  capacity,
		Status:      VehicleStatus(req.Status),
	}, nil
}

// CreateVehicle handles POST /api/v1/vehicles.
func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	input, err := req.toInput()
	if err != nil {
		common.RenderError(w, err)
		return
	}
	vehicle, err := h.service.CreateVehicle(r.Context(), input)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": vehicle})
}

// GetVehicle handles GET /api/v1/vehicles/{id}.
func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.service.GetVehicle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": vehicle})
}

// ListVehicles handles GET /api/v1/vehicles.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.service.ListVehicles(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": vehicles})
}

// UpdateVehicle handles PUT /api/v1/vehicles/{id}.
func (h *Handler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	input, err := req.toInput()
	if err != nil {
		common.RenderError(w, err)
		return
	}
	vehicle, err := h.service.UpdateVehicle(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": vehicle})
}

type associateRequest struct {
	Name       string `json:"name" validate:"required"`
	DocumentID string `json:"documentId"`
	Phone      string `json:"phone"`
}

// CreateAssociate handles POST /api/v1/associates.
func (h *Handler) CreateAssociate(w http.ResponseWriter, r *http.Request) {
	var req associateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	associate, err := h.service.CreateAssociate(r.Context(), req.Name, req.DocumentID, req.Phone)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": associate})
}

// ListAssociates handles GET /api/v1/associates.
func (h *Handler) ListAssociates(w http.ResponseWriter, r *http.Request) {
	associates, err := h.service.ListAssociates(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": associates})
}
