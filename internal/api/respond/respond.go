// Package respond writes JSON responses and maps service errors to status
// codes. It is shared by handlers and middleware.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/errs"
)

func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Status returns the HTTP status for err. Unknown errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrQuotaExceeded),
		errors.Is(err, errs.ErrSubscriptionInactive),
		errors.Is(err, errs.ErrOrganizationNotFound):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as an ErrorResponse. Internal errors are logged and
// replaced by a generic message.
func Error(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", "error", err)
		}
		msg = "Internal server error"
	}
	JSON(w, status, dto.ErrorResponse{Error: msg})
}
