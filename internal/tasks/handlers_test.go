package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/metrics"
	"github.com/vizora/entitlements/internal/testutil"
)

func sampleEntry() audit.Entry {
	return audit.Entry{
		ActorID:    uuid.New(),
		Action:     audit.ActionPlanUpdate,
		TargetType: audit.TargetPlan,
		TargetID:   uuid.NewString(),
		Details:    map[string]any{"screen_quota": 25},
		IPAddress:  "203.0.113.9",
		UserAgent:  "curl/8.5",
	}
}

func TestNewAuditRecordTask(t *testing.T) {
	e := sampleEntry()

	task, err := NewAuditRecordTask(e)
	require.NoError(t, err)
	assert.Equal(t, TypeAuditRecord, task.Type())

	var payload AuditRecordPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, e.ActorID, payload.ActorID)
	assert.JSONEq(t, `{"screen_quota":25}`, string(payload.Details))

	back := payload.Entry()
	assert.Equal(t, e.Action, back.Action)
	assert.Equal(t, e.TargetID, back.TargetID)
	assert.Equal(t, e.IPAddress, back.IPAddress)

	t.Run("no details", func(t *testing.T) {
		e := sampleEntry()
		e.Details = nil
		task, err := NewAuditRecordTask(e)
		require.NoError(t, err)

		var payload AuditRecordPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		assert.Nil(t, payload.Entry().Details)
	})
}

func TestHandleAuditRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	m := metrics.NewCollector()
	handler := NewHandler(audit.NewRecorder(db), testutil.DiscardLogger(), m)
	ctx := testutil.TestContext(t)

	t.Run("records entry", func(t *testing.T) {
		e := sampleEntry()
		task, err := NewAuditRecordTask(e)
		require.NoError(t, err)

		require.NoError(t, handler.HandleAuditRecord(ctx, task))

		var stored models.AdminAuditLog
		require.NoError(t, db.Where("target_id = ?", e.TargetID).First(&stored).Error)
		assert.Equal(t, e.ActorID, stored.AdminUserID)
		assert.Equal(t, audit.ActionPlanUpdate, stored.Action)
		assert.JSONEq(t, `{"screen_quota":25}`, string(stored.Details))
		assert.Equal(t, 1.0, promtestutil.ToFloat64(m.AuditDispatch.WithLabelValues("worker", "ok")))
	})

	t.Run("invalid payload is not retried", func(t *testing.T) {
		task := asynq.NewTask(TypeAuditRecord, []byte("invalid json"))

		err := handler.HandleAuditRecord(ctx, task)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unmarshal payload")
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("entry without actor is not retried", func(t *testing.T) {
		e := sampleEntry()
		e.ActorID = uuid.Nil
		task, err := NewAuditRecordTask(e)
		require.NoError(t, err)

		err = handler.HandleAuditRecord(ctx, task)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}

func TestRegisterHandlers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewHandler(audit.NewRecorder(db), testutil.DiscardLogger(), nil)

	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	task, err := NewAuditRecordTask(sampleEntry())
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(testutil.TestContext(t), task))

	var count int64
	require.NoError(t, db.Model(&models.AdminAuditLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	err   error
	calls int
	tasks []*asynq.Task
	queue string
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for _, o := range opts {
		if o.Type() == asynq.QueueOpt {
			f.queue = o.Value().(string)
		}
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestQueueDispatcher(t *testing.T) {
	ctx := testutil.TestContext(t)

	t.Run("enqueues on the configured queue", func(t *testing.T) {
		enq := &fakeEnqueuer{}
		fallback := &testutil.AuditSpy{}
		m := metrics.NewCollector()
		d := NewQueueDispatcher(enq, fallback, "low", testutil.DiscardLogger(), m)

		d.Dispatch(ctx, sampleEntry())

		require.Len(t, enq.tasks, 1)
		assert.Equal(t, TypeAuditRecord, enq.tasks[0].Type())
		assert.Equal(t, "low", enq.queue)
		assert.Empty(t, fallback.Entries())
		assert.Equal(t, 1.0, promtestutil.ToFloat64(m.AuditDispatch.WithLabelValues("queue", "ok")))
	})

	t.Run("falls back when redis is unavailable", func(t *testing.T) {
		enq := &fakeEnqueuer{err: errors.New("dial tcp: connection refused")}
		fallback := &testutil.AuditSpy{}
		d := NewQueueDispatcher(enq, fallback, "low", testutil.DiscardLogger(), nil)

		e := sampleEntry()
		d.Dispatch(ctx, e)

		require.Len(t, fallback.Entries(), 1)
		assert.Equal(t, e.TargetID, fallback.Entries()[0].TargetID)
	})

	t.Run("open breaker skips the queue", func(t *testing.T) {
		enq := &fakeEnqueuer{err: errors.New("dial tcp: connection refused")}
		fallback := &testutil.AuditSpy{}
		d := NewQueueDispatcher(enq, fallback, "low", testutil.DiscardLogger(), nil)

		for i := 0; i < 8; i++ {
			d.Dispatch(ctx, sampleEntry())
		}

		assert.Equal(t, 5, enq.calls)
		assert.Len(t, fallback.Entries(), 8)
	})
}
