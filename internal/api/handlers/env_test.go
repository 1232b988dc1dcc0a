package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vizora/entitlements/internal/api"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/auth"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/entitlement"
	"github.com/vizora/entitlements/internal/organizations"
	"github.com/vizora/entitlements/internal/plans"
	"github.com/vizora/entitlements/internal/platformstats"
	"github.com/vizora/entitlements/internal/promotions"
	"github.com/vizora/entitlements/internal/testutil"
	"github.com/vizora/entitlements/internal/users"
	"github.com/vizora/entitlements/pkg/config"
	"gorm.io/gorm"
)

// testEnv wires the real router over an in-memory database, with a tenant
// user and a super admin in separate organizations.
type testEnv struct {
	DB       *gorm.DB
	Router   http.Handler
	JWT      *auth.JWTService
	Recorder *audit.Recorder

	Org   *models.Organization
	User  *models.User
	Token string

	Admin      *models.User
	AdminToken string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	setup := testutil.NewTestContext(t)
	db, jwtService := setup.DB, setup.JWTService
	logger := testutil.DiscardLogger()
	recorder := audit.NewRecorder(db)
	dispatcher := audit.NewDirectDispatcher(recorder, logger, nil)

	router := api.NewRouter(api.RouterConfig{
		DB:         db,
		Logger:     logger,
		JWTService: jwtService,
		AuthService: auth.NewService(db, jwtService, config.BillingConfig{
			DefaultPlanSlug:    "free",
			TrialDays:          30,
			DefaultScreenQuota: 5,
		}, logger),
		Guard:         entitlement.NewGuard(entitlement.NewGormStore(db), nil),
		Plans:         plans.NewService(db, nil, dispatcher, logger),
		Promotions:    promotions.NewService(db, dispatcher, logger, nil),
		Organizations: organizations.NewService(db, recorder, dispatcher, logger),
		Users:         users.NewService(db, dispatcher, logger),
		PlatformStats: platformstats.NewService(db),
		AuditRecorder: recorder,
	})

	adminOrg := testutil.CreateTestOrg(t, db)
	admin := testutil.CreateTestSuperAdmin(t, db, adminOrg)

	return &testEnv{
		DB:         db,
		Router:     router,
		JWT:        jwtService,
		Recorder:   recorder,
		Org:        setup.Org,
		User:       setup.User,
		Token:      setup.Token,
		Admin:      admin,
		AdminToken: testutil.GenerateTestToken(t, jwtService, admin),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.AuthenticatedRequest(t, method, path, body, token)
	rr := httptest.NewRecorder()
	e.Router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) asTenant(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, e.Token)
}

func (e *testEnv) asAdmin(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, e.AdminToken)
}
