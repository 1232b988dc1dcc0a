package audit

import (
	"context"
	"log/slog"

	"github.com/vizora/entitlements/internal/metrics"
)

// Dispatcher hands an entry off after the audited write has committed.
// Dispatch never reports failure: a lost audit record must not undo or
// fail the business operation that produced it.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Entry)
}

// DirectDispatcher writes through the Recorder on the caller's goroutine.
type DirectDispatcher struct {
	recorder *Recorder
	logger   *slog.Logger
	metrics  *metrics.Collector
}

func NewDirectDispatcher(recorder *Recorder, logger *slog.Logger, m *metrics.Collector) *DirectDispatcher {
	return &DirectDispatcher{recorder: recorder, logger: logger, metrics: m}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, e Entry) {
	// The request may already be finishing; the record should still land.
	ctx = context.WithoutCancel(ctx)

	if _, err := d.recorder.Log(ctx, e); err != nil {
		d.metrics.RecordAuditDispatch("direct", "error")
		d.logger.Error("failed to record audit entry",
			"action", e.Action,
			"target_type", e.TargetType,
			"target_id", e.TargetID,
			"error", err,
		)
		return
	}
	d.metrics.RecordAuditDispatch("direct", "ok")
}

// NopDispatcher drops every entry.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Entry) {}
