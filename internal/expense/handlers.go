package expense

import (
	"encoding/json"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/coopcarga/backend-carga/internal/common"
)

// Handler exposes office expense endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
	filter   ListFilter
}

// ListFilter narrows an expense listing to what the actor may see.
type ListFilter func(r *http.Request, actor common.Actor, expenses []Expense) ([]Expense, error)

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
	Filter   ListFilter
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, validate: cfg.Validate, filter: cfg.Filter}
}

type createExpenseRequest struct {
	OfficeID    string     `json:"officeId"`
	Description string     `json:"description" validate:"required"`
	Amount      string     `json:"amount" validate:"required"`
	IncurredAt  *time.Time `json:"incurredAt"`
}

// Create handles POST /api/v1/expenses. Actors record expenses against their
// own office unless they hold the cross-office expense capability.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	officeID := req.OfficeID
	if officeID == "" {
		officeID = actor.OfficeID
	}
	if officeID != actor.OfficeID && !actor.Can(common.CapManageAllOfficeExpenses) {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "cannot record expenses for another office", nil)
		return
	}
	amount, err := common.ParseDecimal(req.Amount)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid amount", nil)
		return
	}
	var incurredAt time.Time
	if req.IncurredAt != nil {
		incurredAt = *req.IncurredAt
	}
	created, err := h.service.Create(r.Context(), officeID, req.Description, amount, incurredAt)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// List handles GET /api/v1/expenses.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.ActorFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	expenses, err := h.service.List(r.Context())
	if err != nil {
		common.RenderError(w, err)
		return
	}
	if h.filter != nil {
		if expenses, err = h.filter(r, actor, expenses); err != nil {
			common.RenderError(w, err)
			return
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": expenses})
}
