package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/organizations"
)

type OrganizationHandler struct {
	orgs   *organizations.Service
	logger *slog.Logger
}

func NewOrganizationHandler(orgs *organizations.Service, logger *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, logger: logger}
}

func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := dto.PaginationFromRequest(r)

	result, err := h.orgs.FindAll(r.Context(), organizations.Filter{
		Search:    q.Get("search"),
		Status:    models.SubscriptionStatus(q.Get("status")),
		Tier:      q.Get("tier"),
		Page:      p.Page,
		PerPage:   p.PerPage,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       result.Data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	org, err := h.orgs.FindOne(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdateOrganizationRequest
	if !decode(w, r, &req) {
		return
	}
	org, err := h.orgs.Update(r.Context(), actorFrom(r), id, req.Input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *OrganizationHandler) ExtendTrial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.ExtendTrialRequest
	if !decode(w, r, &req) {
		return
	}
	org, err := h.orgs.ExtendTrial(r.Context(), actorFrom(r), id, req.Days)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *OrganizationHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.SuspendOrganizationRequest
	if !decode(w, r, &req) {
		return
	}
	org, err := h.orgs.Suspend(r.Context(), actorFrom(r), id, req.CleanReason())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *OrganizationHandler) Unsuspend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	org, err := h.orgs.Unsuspend(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// Delete erases the organization and everything it owns.
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.orgs.Erase(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OrganizationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	stats, err := h.orgs.Stats(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
