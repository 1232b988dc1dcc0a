package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/errs"
	"github.com/vizora/entitlements/internal/metrics"
)

type Handler struct {
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Collector
}

func NewHandler(recorder *audit.Recorder, logger *slog.Logger, m *metrics.Collector) *Handler {
	return &Handler{
		recorder: recorder,
		logger:   logger,
		metrics:  m,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeAuditRecord, h.HandleAuditRecord)
}

func (h *Handler) HandleAuditRecord(ctx context.Context, t *asynq.Task) error {
	var payload AuditRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	entry, err := h.recorder.Log(ctx, payload.Entry())
	if err != nil {
		h.metrics.RecordAuditDispatch("worker", "error")
		if errors.Is(err, errs.ErrInvalidArgument) {
			h.logger.Error("dropping malformed audit entry", "action", payload.Action, "error", err)
			return fmt.Errorf("record audit entry: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("record audit entry: %w", err)
	}

	h.metrics.RecordAuditDispatch("worker", "ok")
	h.logger.Debug("audit entry recorded",
		"id", entry.ID,
		"action", entry.Action,
		"target_type", entry.TargetType,
		"target_id", entry.TargetID,
	)
	return nil
}
