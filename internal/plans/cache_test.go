package plans_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vizora/entitlements/internal/plans"
	"github.com/vizora/entitlements/internal/testutil"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCache_NilIsAlwaysMiss(t *testing.T) {
	var c *plans.Cache
	ctx := testutil.TestContext(t)

	got, ok, err := c.GetActive(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, c.SetActive(ctx, nil))
	assert.NoError(t, c.Invalidate(ctx))
	assert.Nil(t, plans.NewCache(nil, time.Minute))
}

func TestCache_CorruptEntryIsDropped(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := testutil.TestContext(t)
	c := plans.NewCache(client, time.Minute)

	require.NoError(t, mr.Set("plans:active", "{not json"))

	_, ok, err := c.GetActive(ctx)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("plans:active"))
}

func TestService_FindActive_UsesCache(t *testing.T) {
	mr, client := setupRedis(t)
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	spy := &testutil.AuditSpy{}
	svc := plans.NewService(db, plans.NewCache(client, 5*time.Minute), spy, testutil.DiscardLogger())

	free := testutil.CreateTestPlan(t, db, "free", 5)

	first, err := svc.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, mr.Exists("plans:active"))
	assert.Equal(t, 5*time.Minute, mr.TTL("plans:active"))

	// A row written behind the service's back is invisible until invalidation.
	testutil.CreateTestPlan(t, db, "pro", 25)
	cached, err := svc.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, free.ID, cached[0].ID)
	assert.JSONEq(t, string(free.Features), string(cached[0].Features))

	// Writes through the service invalidate.
	_, err = svc.Delete(ctx, admin, free.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists("plans:active"))

	fresh, err := svc.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "pro", fresh[0].Slug)
}

func TestService_FindActive_RedisDown(t *testing.T) {
	mr, client := setupRedis(t)
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := plans.NewService(db, plans.NewCache(client, time.Minute), &testutil.AuditSpy{}, testutil.DiscardLogger())

	testutil.CreateTestPlan(t, db, "free", 5)
	mr.Close()

	active, err := svc.FindActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
