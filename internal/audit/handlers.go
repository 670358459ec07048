package audit

import (
	"net/http"
	"strconv"

	"github.com/coopcarga/backend-carga/internal/common"
)

// Handler exposes the audit trail read endpoint.
type Handler struct {
	Service Service
}

// List handles GET /api/v1/audit.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid limit", nil)
			return
		}
		limit = parsed
	}
	entries, err := h.Service.List(r.Context(), limit)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}
