package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sony/gobreaker"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/metrics"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueDispatcher hands audit entries to the worker through Redis. When
// enqueueing fails, or the breaker is open after repeated failures, the
// entry is written by the fallback dispatcher instead.
type QueueDispatcher struct {
	enqueuer Enqueuer
	breaker  *gobreaker.CircuitBreaker
	fallback audit.Dispatcher
	queue    string
	logger   *slog.Logger
	metrics  *metrics.Collector
}

func NewQueueDispatcher(enqueuer Enqueuer, fallback audit.Dispatcher, queue string, logger *slog.Logger, m *metrics.Collector) *QueueDispatcher {
	if queue == "" {
		queue = "low"
	}
	settings := gobreaker.Settings{
		Name:        "audit-queue",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"circuit_breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &QueueDispatcher{
		enqueuer: enqueuer,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		fallback: fallback,
		queue:    queue,
		logger:   logger,
		metrics:  m,
	}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, e audit.Entry) {
	ctx = context.WithoutCancel(ctx)

	task, err := NewAuditRecordTask(e)
	if err != nil {
		d.logger.Error("failed to build audit task", "action", e.Action, "error", err)
		d.metrics.RecordAuditDispatch("queue", "fallback")
		d.fallback.Dispatch(ctx, e)
		return
	}

	_, err = d.breaker.Execute(func() (interface{}, error) {
		return d.enqueuer.EnqueueContext(ctx, task, asynq.Queue(d.queue), asynq.MaxRetry(10))
	})
	if err != nil {
		d.logger.Warn("audit enqueue failed, writing directly",
			"action", e.Action,
			"breaker", d.breaker.State().String(),
			"error", err,
		)
		d.metrics.RecordAuditDispatch("queue", "fallback")
		d.fallback.Dispatch(ctx, e)
		return
	}
	d.metrics.RecordAuditDispatch("queue", "ok")
}
