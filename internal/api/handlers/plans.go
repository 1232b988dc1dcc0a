package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/plans"
)

type PlanHandler struct {
	plans  *plans.Service
	logger *slog.Logger
}

func NewPlanHandler(plans *plans.Service, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{plans: plans, logger: logger}
}

// List returns the full catalog, inactive plans included.
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.plans.FindAll(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DataResponse{Data: list})
}

// ListPublic returns the active, public plans offered to tenants.
func (h *PlanHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	list, err := h.plans.FindActive(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DataResponse{Data: list})
}

func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	plan, err := h.plans.FindOne(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePlanRequest
	if !decode(w, r, &req) {
		return
	}
	plan, err := h.plans.Create(r.Context(), actorFrom(r), req.Input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdatePlanRequest
	if !decode(w, r, &req) {
		return
	}
	plan, err := h.plans.Update(r.Context(), actorFrom(r), id, req.Input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Delete deactivates the plan; it is never removed.
func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	plan, err := h.plans.Delete(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *PlanHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	plan, err := h.plans.Duplicate(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (h *PlanHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req dto.ReorderPlansRequest
	if !decode(w, r, &req) {
		return
	}
	list, err := h.plans.Reorder(r.Context(), actorFrom(r), req.IDs())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DataResponse{Data: list})
}
