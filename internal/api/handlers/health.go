package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const pingTimeout = 2 * time.Second

// dependency is one backing service the health report covers. A failing
// critical dependency makes the API unhealthy, any other makes it degraded.
type dependency struct {
	name     string
	critical bool
	ping     func(context.Context) error
}

type HealthHandler struct {
	deps []dependency
}

// NewHealthHandler accepts a nil redis client when the cache is disabled.
func NewHealthHandler(db *gorm.DB, rdb *redis.Client) *HealthHandler {
	deps := []dependency{{
		name:     "database",
		critical: true,
		ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	// Redis backs the plan cache, the rate limiter and the audit queue.
	// Each of those falls back when it is gone.
	if rdb != nil {
		deps = append(deps, dependency{
			name: "redis",
			ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return &HealthHandler{deps: deps}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	CheckedAt time.Time         `json:"checked_at"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Services:  make(map[string]string, len(h.deps)),
		CheckedAt: time.Now().UTC(),
	}
	for _, dep := range h.deps {
		if err := dep.ping(ctx); err == nil {
			resp.Services[dep.name] = "healthy"
			continue
		}
		resp.Services[dep.name] = "unhealthy"
		switch {
		case dep.critical:
			resp.Status = "unhealthy"
		case resp.Status == "healthy":
			resp.Status = "degraded"
		}
	}

	code := http.StatusOK
	if resp.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// Ready reports whether the database answers. Redis is optional and does
// not gate readiness.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	for _, dep := range h.deps {
		if dep.critical && dep.ping(ctx) != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
