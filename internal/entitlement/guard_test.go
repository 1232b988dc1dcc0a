package entitlement_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/entitlement"
	"github.com/vizora/entitlements/internal/errs"
	"github.com/vizora/entitlements/internal/metrics"
	"github.com/vizora/entitlements/internal/testutil"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// countingStore records how often it was consulted.
type countingStore struct {
	calls int
	sub   *entitlement.SubscriptionSnapshot
}

func (s *countingStore) QuotaSnapshot(ctx context.Context, orgID uuid.UUID) (*entitlement.QuotaSnapshot, error) {
	s.calls++
	return &entitlement.QuotaSnapshot{}, nil
}

func (s *countingStore) SubscriptionSnapshot(ctx context.Context, orgID uuid.UUID) (*entitlement.SubscriptionSnapshot, error) {
	s.calls++
	return s.sub, nil
}

func TestGuard_CheckQuota(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	guard := entitlement.NewGuard(entitlement.NewGormStore(db), nil)

	t.Run("allows below quota", func(t *testing.T) {
		org := testutil.CreateTestOrg(t, db)
		testutil.CreateTestDisplays(t, db, org.ID, 4)

		assert.NoError(t, guard.CheckQuota(ctx, org.ID, entitlement.QuotaScreen))
	})

	t.Run("denies at quota with current and limit", func(t *testing.T) {
		org := testutil.CreateTestOrg(t, db)
		testutil.CreateTestDisplays(t, db, org.ID, 5)

		err := guard.CheckQuota(ctx, org.ID, entitlement.QuotaScreen)
		require.Error(t, err)

		var qe *errs.QuotaExceededError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, int64(5), qe.Current)
		assert.Equal(t, 5, qe.Limit)
		assert.Contains(t, err.Error(), "5/5 screens")
	})

	t.Run("unlimited ignores count", func(t *testing.T) {
		org := testutil.CreateTestOrg(t, db)
		require.NoError(t, db.Model(org).Update("screen_quota", models.UnlimitedQuota).Error)
		testutil.CreateTestDisplays(t, db, org.ID, 12)

		assert.NoError(t, guard.CheckQuota(ctx, org.ID, entitlement.QuotaScreen))
	})

	t.Run("zero quota denies", func(t *testing.T) {
		org := testutil.CreateTestOrg(t, db)
		require.NoError(t, db.Model(org).Update("screen_quota", 0).Error)

		err := guard.CheckQuota(ctx, org.ID, entitlement.QuotaScreen)
		assert.True(t, errors.Is(err, errs.ErrQuotaExceeded))
	})

	t.Run("other organizations displays are not counted", func(t *testing.T) {
		org := testutil.CreateTestOrg(t, db)
		other := testutil.CreateTestOrg(t, db)
		testutil.CreateTestDisplays(t, db, other.ID, 6)

		assert.NoError(t, guard.CheckQuota(ctx, org.ID, entitlement.QuotaScreen))
	})

	t.Run("unknown organization fails closed", func(t *testing.T) {
		err := guard.CheckQuota(ctx, uuid.New(), entitlement.QuotaScreen)
		assert.ErrorIs(t, err, errs.ErrOrganizationNotFound)
	})

	t.Run("missing organization id fails closed", func(t *testing.T) {
		err := guard.CheckQuota(ctx, uuid.Nil, entitlement.QuotaScreen)
		assert.ErrorIs(t, err, errs.ErrOrganizationNotFound)
	})

	t.Run("unknown dimension still requires an organization", func(t *testing.T) {
		org := testutil.CreateTestOrg(t, db)
		assert.NoError(t, guard.CheckQuota(ctx, org.ID, entitlement.QuotaDimension("storage")))

		err := guard.CheckQuota(ctx, uuid.New(), entitlement.QuotaDimension("storage"))
		assert.ErrorIs(t, err, errs.ErrOrganizationNotFound)
	})
}

func TestGuard_CheckSubscription(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	guard := entitlement.NewGuard(entitlement.NewGormStore(db), nil).WithClock(func() time.Time { return now })

	newOrg := func(t *testing.T, status models.SubscriptionStatus, trialEndsAt *time.Time) *models.Organization {
		org := testutil.CreateTestOrg(t, db)
		require.NoError(t, db.Model(org).Updates(map[string]interface{}{
			"subscription_status": status,
			"trial_ends_at":       trialEndsAt,
		}).Error)
		return org
	}

	t.Run("trial ending one second from now allows", func(t *testing.T) {
		end := now.Add(time.Second)
		org := newOrg(t, models.SubscriptionTrial, &end)
		assert.NoError(t, guard.CheckSubscription(ctx, org.ID, http.MethodPost))
	})

	t.Run("trial ended one second ago denies", func(t *testing.T) {
		end := now.Add(-time.Second)
		org := newOrg(t, models.SubscriptionTrial, &end)
		err := guard.CheckSubscription(ctx, org.ID, http.MethodPost)
		assert.ErrorIs(t, err, errs.ErrSubscriptionInactive)
	})

	t.Run("trial without end date denies", func(t *testing.T) {
		org := newOrg(t, models.SubscriptionTrial, nil)
		err := guard.CheckSubscription(ctx, org.ID, http.MethodDelete)
		assert.ErrorIs(t, err, errs.ErrSubscriptionInactive)
	})

	t.Run("suspended denies mutations but not reads", func(t *testing.T) {
		org := newOrg(t, models.SubscriptionSuspended, nil)
		assert.ErrorIs(t, guard.CheckSubscription(ctx, org.ID, http.MethodPut), errs.ErrSubscriptionInactive)
		assert.NoError(t, guard.CheckSubscription(ctx, org.ID, http.MethodGet))
		assert.NoError(t, guard.CheckSubscription(ctx, org.ID, http.MethodHead))
	})

	t.Run("unknown organization fails closed", func(t *testing.T) {
		err := guard.CheckSubscription(ctx, uuid.New(), http.MethodPost)
		assert.ErrorIs(t, err, errs.ErrOrganizationNotFound)
	})
}

func TestGuard_ReadsSkipStore(t *testing.T) {
	store := &countingStore{sub: &entitlement.SubscriptionSnapshot{Status: models.SubscriptionCanceled}}
	guard := entitlement.NewGuard(store, nil)
	ctx := context.Background()

	assert.NoError(t, guard.CheckSubscription(ctx, uuid.New(), http.MethodGet))
	assert.NoError(t, guard.CheckSubscription(ctx, uuid.Nil, http.MethodHead))
	assert.Equal(t, 0, store.calls)

	assert.Error(t, guard.CheckSubscription(ctx, uuid.New(), http.MethodPost))
	assert.Equal(t, 1, store.calls)
}

func TestGuard_RecordsDecisions(t *testing.T) {
	m := metrics.NewCollector()
	store := &countingStore{sub: &entitlement.SubscriptionSnapshot{Status: models.SubscriptionActive}}
	guard := entitlement.NewGuard(store, m)
	ctx := context.Background()

	require.NoError(t, guard.CheckSubscription(ctx, uuid.New(), http.MethodPost))
	require.ErrorIs(t, guard.CheckQuota(ctx, uuid.New(), entitlement.QuotaScreen), errs.ErrQuotaExceeded)

	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.GuardDecisions.WithLabelValues("subscription", "allowed")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(m.GuardDecisions.WithLabelValues("quota", "denied")))
}

func TestGuard_QuotaUsage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	guard := entitlement.NewGuard(entitlement.NewGormStore(db), nil)

	tests := []struct {
		name      string
		quota     int
		displays  int
		remaining int64
		percent   float64
	}{
		{"partially used", 5, 2, 3, 40},
		{"full", 4, 4, 0, 100},
		{"unlimited", -1, 3, -1, 0},
		{"zero quota", 0, 0, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := testutil.CreateTestOrg(t, db)
			require.NoError(t, db.Model(org).Update("screen_quota", tt.quota).Error)
			testutil.CreateTestDisplays(t, db, org.ID, tt.displays)

			usage, err := guard.QuotaUsage(ctx, org.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.quota, usage.ScreenQuota)
			assert.Equal(t, int64(tt.displays), usage.ScreensUsed)
			assert.Equal(t, tt.remaining, usage.Remaining)
			assert.InDelta(t, tt.percent, usage.PercentUsed, 0.001)
		})
	}
}

func newMockGorm(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func TestGormStore_PropagatesStorageErrors(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("connection reset by peer")

	t.Run("organization lookup", func(t *testing.T) {
		db, mock := newMockGorm(t)
		mock.ExpectQuery(`SELECT .* FROM "organizations"`).WillReturnError(dbErr)

		guard := entitlement.NewGuard(entitlement.NewGormStore(db), nil)
		err := guard.CheckSubscription(ctx, uuid.New(), http.MethodPost)

		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, errs.ErrOrganizationNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("display count", func(t *testing.T) {
		db, mock := newMockGorm(t)
		orgID := uuid.New()
		mock.ExpectQuery(`SELECT .* FROM "organizations"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "screen_quota"}).AddRow(orgID.String(), 5))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "displays"`).WillReturnError(dbErr)

		guard := entitlement.NewGuard(entitlement.NewGormStore(db), nil)
		err := guard.CheckQuota(ctx, orgID, entitlement.QuotaScreen)

		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, errs.ErrQuotaExceeded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
