// Package handlers holds the HTTP handlers. They decode and validate the
// request, call one service method and map its error to a status.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/api/middleware"
	"github.com/vizora/entitlements/internal/api/respond"
	"github.com/vizora/entitlements/internal/api/validation"
	"github.com/vizora/entitlements/internal/audit"
)

// validatable is implemented by every request DTO.
type validatable interface {
	Validate() map[string]string
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	respond.JSON(w, status, v)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	respond.Error(w, logger, err)
}

// decode reads and validates the body into v. It writes the 400 itself
// and returns false when the request is unusable.
func decode(w http.ResponseWriter, r *http.Request, v validatable) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return false
	}
	if errors := v.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ID format"})
		return uuid.Nil, false
	}
	return id, true
}

func actorFrom(r *http.Request) audit.Actor {
	return audit.Actor{
		ID:        middleware.GetUserID(r.Context()),
		IPAddress: middleware.ClientIP(r),
		UserAgent: validation.TruncateString(r.UserAgent(), 512),
	}
}
