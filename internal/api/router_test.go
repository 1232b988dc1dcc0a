package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vizora/entitlements/internal/api"
	"github.com/vizora/entitlements/internal/api/handlers"
	"github.com/vizora/entitlements/internal/api/middleware"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/auth"
	"github.com/vizora/entitlements/internal/entitlement"
	"github.com/vizora/entitlements/internal/metrics"
	"github.com/vizora/entitlements/internal/organizations"
	"github.com/vizora/entitlements/internal/plans"
	"github.com/vizora/entitlements/internal/platformstats"
	"github.com/vizora/entitlements/internal/promotions"
	"github.com/vizora/entitlements/internal/testutil"
	"github.com/vizora/entitlements/internal/users"
	"github.com/vizora/entitlements/pkg/config"
)

func newRouter(t *testing.T, mutate func(*api.RouterConfig)) (*api.Router, api.RouterConfig) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := testutil.DiscardLogger()
	jwtService := testutil.CreateTestJWTService()
	recorder := audit.NewRecorder(db)
	collector := metrics.NewCollector()
	dispatcher := audit.NewDirectDispatcher(recorder, logger, collector)

	billing := config.BillingConfig{DefaultPlanSlug: "free", TrialDays: 30, DefaultScreenQuota: 5}
	cfg := api.RouterConfig{
		DB:            db,
		Logger:        logger,
		Metrics:       collector,
		JWTService:    jwtService,
		AuthService:   auth.NewService(db, jwtService, billing, logger),
		Guard:         entitlement.NewGuard(entitlement.NewGormStore(db), collector),
		Plans:         plans.NewService(db, nil, dispatcher, logger),
		Promotions:    promotions.NewService(db, dispatcher, logger, collector),
		Organizations: organizations.NewService(db, recorder, dispatcher, logger),
		Users:         users.NewService(db, dispatcher, logger),
		PlatformStats: platformstats.NewService(db),
		AuditRecorder: recorder,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return api.NewRouter(cfg), cfg
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	t.Run("without redis", func(t *testing.T) {
		router, _ := newRouter(t, nil)

		rr := serve(router, httptest.NewRequest("GET", "/health", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp handlers.HealthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "healthy", resp.Services["database"])
		assert.NotContains(t, resp.Services, "redis")
	})

	t.Run("redis down degrades", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })

		router, _ := newRouter(t, func(c *api.RouterConfig) { c.Redis = client })

		rr := serve(router, httptest.NewRequest("GET", "/health", nil))
		var resp handlers.HealthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "healthy", resp.Services["redis"])

		mr.Close()

		rr = serve(router, httptest.NewRequest("GET", "/health", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "unhealthy", resp.Services["redis"])
	})
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newRouter(t, nil)

	serve(router, httptest.NewRequest("GET", "/ready", nil))

	rr := serve(router, httptest.NewRequest("GET", "/metrics", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "vizora_http_request_duration_seconds")
}

func TestRouter_RateLimit(t *testing.T) {
	router, _ := newRouter(t, func(c *api.RouterConfig) {
		c.Limiter = middleware.NewMemoryLimiter(2, 60)
	})

	for i := 0; i < 2; i++ {
		rr := serve(router, httptest.NewRequest("GET", "/ready", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := serve(router, httptest.NewRequest("GET", "/ready", nil))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newRouter(t, func(c *api.RouterConfig) {
		c.AllowedOrigins = []string{"https://admin.vizora.io"}
	})

	req := httptest.NewRequest("OPTIONS", "/api/v1/admin/plans/reorder", nil)
	req.Header.Set("Origin", "https://admin.vizora.io")
	req.Header.Set("Access-Control-Request-Method", "PATCH")

	rr := serve(router, req)
	assert.Equal(t, "https://admin.vizora.io", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_CookieSessionsNeedCSRF(t *testing.T) {
	router, cfg := newRouter(t, nil)

	org := testutil.CreateTestOrg(t, cfg.DB)
	user := testutil.CreateTestUser(t, cfg.DB, org)
	token := testutil.GenerateTestToken(t, cfg.JWTService.(*auth.JWTService), user)

	req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/billing/promotions/validate", map[string]string{"code": "X"}, "")
	req.AddCookie(&http.Cookie{Name: "token", Value: token})

	rr := serve(router, req)
	testutil.AssertStatus(t, rr, http.StatusForbidden)
	assert.Contains(t, rr.Body.String(), "CSRF token missing")

	req = testutil.AuthenticatedRequest(t, "POST", "/api/v1/billing/promotions/validate", map[string]string{"code": "X"}, "")
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "abc"})
	req.Header.Set("X-CSRF-Token", "abc")

	rr = serve(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
}
