package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/audit"
)

type AuditHandler struct {
	recorder *audit.Recorder
	logger   *slog.Logger
}

func NewAuditHandler(recorder *audit.Recorder, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{recorder: recorder, logger: logger}
}

// List supports actor_id, action, target_type, target_id, start_date and
// end_date filters. Dates are RFC 3339 or YYYY-MM-DD; a bare end date
// covers the whole day.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	details := make(map[string]string)

	f := audit.Filter{
		Action:     q.Get("action"),
		TargetType: q.Get("target_type"),
		TargetID:   q.Get("target_id"),
	}
	if v := q.Get("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			details["actor_id"] = "Invalid actor ID format"
		} else {
			f.ActorID = &id
		}
	}
	if v := q.Get("start_date"); v != "" {
		t, err := parseDate(v, false)
		if err != nil {
			details["start_date"] = "Invalid date"
		} else {
			f.StartDate = &t
		}
	}
	if v := q.Get("end_date"); v != "" {
		t, err := parseDate(v, true)
		if err != nil {
			details["end_date"] = "Invalid date"
		} else {
			f.EndDate = &t
		}
	}
	if len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.recorder.FindAll(r.Context(), f, page, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entry, err := h.recorder.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func parseDate(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
