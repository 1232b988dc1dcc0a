package handlers

import (
	"log/slog"
	"net/http"

	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/platformstats"
)

type StatsHandler struct {
	stats  *platformstats.Service
	logger *slog.Logger
}

func NewStatsHandler(stats *platformstats.Service, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.stats.Overview(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *StatsHandler) ByPlan(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.stats.ByPlan(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DataResponse{Data: breakdown})
}

// Signups takes period=day|week|month|year; month by default.
func (h *StatsHandler) Signups(w http.ResponseWriter, r *http.Request) {
	signups, err := h.stats.Signups(r.Context(), platformstats.Period(r.URL.Query().Get("period")))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, signups)
}

func (h *StatsHandler) Geographic(w http.ResponseWriter, r *http.Request) {
	rows, err := h.stats.Geographic(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DataResponse{Data: rows})
}
