package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vizora/entitlements/internal/api/middleware"
	"github.com/vizora/entitlements/internal/entitlement"
)

type BillingHandler struct {
	guard  *entitlement.Guard
	logger *slog.Logger
}

func NewBillingHandler(guard *entitlement.Guard, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{guard: guard, logger: logger}
}

// Quota reports screen usage for the caller's organization.
func (h *BillingHandler) Quota(w http.ResponseWriter, r *http.Request) {
	usage, err := h.guard.QuotaUsage(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
