package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/auth"
	"github.com/vizora/entitlements/internal/database"
	"github.com/vizora/entitlements/internal/database/models"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The pool is pinned to one connection so every query sees the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateTestPlan creates an active, public plan with the given slug and screen quota.
func CreateTestPlan(t *testing.T, db *gorm.DB, slug string, screenQuota int) *models.Plan {
	t.Helper()

	plan := &models.Plan{
		Slug:            slug,
		Name:            "Plan " + slug,
		ScreenQuota:     screenQuota,
		StorageQuotaMB:  5000,
		APIRateLimit:    1000,
		PriceUSDMonthly: 2900,
		PriceUSDYearly:  29000,
		PriceINRMonthly: 199900,
		PriceINRYearly:  1999000,
		Features:        datatypes.JSON(`["playlists","scheduling"]`),
		IsActive:        true,
		IsPublic:        true,
	}

	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("failed to create test plan: %v", err)
	}

	return plan
}

// CreateTestOrg creates an active organization on the free tier with a quota of 5 screens.
func CreateTestOrg(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:               "Test Organization",
		Slug:               "test-org-" + uuid.New().String()[:8],
		SubscriptionTier:   "free",
		SubscriptionStatus: models.SubscriptionActive,
		ScreenQuota:        5,
	}

	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}

	return org
}

// CreateTestUser creates a test user with the given organization
func CreateTestUser(t *testing.T, db *gorm.DB, org *models.Organization) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:          "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash:   hash,
		Name:           "Test User",
		OrganizationID: org.ID,
		Role:           models.RoleOwner,
		IsActive:       true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Organization = org
	return user
}

// CreateTestSuperAdmin creates a platform operator inside org.
func CreateTestSuperAdmin(t *testing.T, db *gorm.DB, org *models.Organization) *models.User {
	t.Helper()

	user := CreateTestUser(t, db, org)
	if err := db.Model(user).Update("is_super_admin", true).Error; err != nil {
		t.Fatalf("failed to promote test user: %v", err)
	}
	user.IsSuperAdmin = true
	return user
}

// CreateTestDisplays creates n displays for the organization.
func CreateTestDisplays(t *testing.T, db *gorm.DB, orgID uuid.UUID, n int) []models.Display {
	t.Helper()

	displays := make([]models.Display, 0, n)
	for i := 0; i < n; i++ {
		d := models.Display{
			OrganizationID: orgID,
			Name:           "Lobby " + uuid.New().String()[:6],
			Status:         models.DisplayOffline,
		}
		if err := db.Create(&d).Error; err != nil {
			t.Fatalf("failed to create test display: %v", err)
		}
		displays = append(displays, d)
	}
	return displays
}

// CreateTestPromotion creates a running 10% promotion with the given code.
// Mutators run before insert.
func CreateTestPromotion(t *testing.T, db *gorm.DB, code string, mutate ...func(*models.Promotion)) *models.Promotion {
	t.Helper()

	promo := &models.Promotion{
		Code:           code,
		Name:           "Promotion " + code,
		DiscountType:   models.DiscountPercentage,
		DiscountValue:  10,
		MaxPerCustomer: 1,
		StartsAt:       time.Now().Add(-time.Hour),
		IsActive:       true,
	}
	for _, m := range mutate {
		m(promo)
	}

	if err := db.Create(promo).Error; err != nil {
		t.Fatalf("failed to create test promotion: %v", err)
	}

	return promo
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.Issue(auth.PrincipalOf(user))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup is one tenant with an owner and a signed session token.
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Org        *models.Organization
	User       *models.User
	Token      string
}

// NewTestContext creates a fresh database holding a single tenant.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	org := CreateTestOrg(t, db)
	user := CreateTestUser(t, db, org)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Org:        org,
		User:       user,
		Token:      token,
	}
}
