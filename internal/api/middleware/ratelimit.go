package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vizora/entitlements/internal/api/dto"
	"github.com/vizora/entitlements/internal/api/respond"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, reset time.Time)
	Limit() int
}

// RedisLimiter is a fixed-window counter shared by every API replica.
// Redis errors fail open.
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	prefix   string
	logger   *slog.Logger
}

func NewRedisLimiter(client *redis.Client, requests, windowSeconds int, logger *slog.Logger) *RedisLimiter {
	requests, window := limiterDefaults(requests, windowSeconds)
	return &RedisLimiter{
		client:   client,
		requests: requests,
		window:   window,
		prefix:   "ratelimit:",
		logger:   logger,
	}
}

func (l *RedisLimiter) Limit() int { return l.requests }

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time) {
	now := time.Now()
	bucket := now.Truncate(l.window)
	reset := bucket.Add(l.window)
	redisKey := l.prefix + key + ":" + strconv.FormatInt(bucket.Unix(), 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		if l.logger != nil {
			l.logger.Warn("rate limiter unavailable, allowing request", "error", err)
		}
		return true, l.requests, reset
	}

	count := int(incr.Val())
	remaining := l.requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.requests, remaining, reset
}

// MemoryLimiter is a per-process sliding window, used when Redis is not
// configured.
type MemoryLimiter struct {
	requests int
	window   time.Duration
	clients  map[string]*clientWindow
	mu       sync.RWMutex
}

type clientWindow struct {
	timestamps []time.Time
	mu         sync.Mutex
}

func NewMemoryLimiter(requests, windowSeconds int) *MemoryLimiter {
	requests, window := limiterDefaults(requests, windowSeconds)
	return &MemoryLimiter{
		requests: requests,
		window:   window,
		clients:  make(map[string]*clientWindow),
	}
}

func (l *MemoryLimiter) Limit() int { return l.requests }

// Run evicts idle clients until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(time.Now())
		}
	}
}

func (l *MemoryLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, client := range l.clients {
		client.mu.Lock()
		if len(client.timestamps) == 0 || now.Sub(client.timestamps[len(client.timestamps)-1]) > l.window*2 {
			delete(l.clients, key)
		}
		client.mu.Unlock()
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, time.Time) {
	l.mu.RLock()
	client, ok := l.clients[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		if client, ok = l.clients[key]; !ok {
			client = &clientWindow{timestamps: make([]time.Time, 0, l.requests)}
			l.clients[key] = client
		}
		l.mu.Unlock()
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.window)

	kept := client.timestamps[:0]
	for _, ts := range client.timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	client.timestamps = kept

	if len(client.timestamps) >= l.requests {
		return false, 0, client.timestamps[0].Add(l.window)
	}

	client.timestamps = append(client.timestamps, now)
	return true, l.requests - len(client.timestamps), now.Add(l.window)
}

func limiterDefaults(requests, windowSeconds int) (int, time.Duration) {
	if requests <= 0 {
		requests = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return requests, time.Duration(windowSeconds) * time.Second
}

// RateLimit limits by client IP.
func RateLimit(limiter Limiter) func(http.Handler) http.Handler {
	return rateLimit(limiter, func(r *http.Request) string {
		return "ip:" + ClientIP(r)
	})
}

// RateLimitByUser limits by authenticated user, falling back to client IP.
func RateLimitByUser(limiter Limiter) func(http.Handler) http.Handler {
	return rateLimit(limiter, func(r *http.Request) string {
		if userID := GetUserID(r.Context()); userID != uuid.Nil {
			return "user:" + userID.String()
		}
		return "ip:" + ClientIP(r)
	})
}

func rateLimit(limiter Limiter, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset := limiter.Allow(r.Context(), keyFn(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(time.Until(reset).Seconds())+1, 10))
				respond.JSON(w, http.StatusTooManyRequests, dto.ErrorResponse{Error: "Rate limit exceeded"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the originating client address, honouring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
