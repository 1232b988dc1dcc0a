package promotions

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/testutil"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	planA, planB := uuid.New(), uuid.New()

	base := func() *models.Promotion {
		return &models.Promotion{
			IsActive:       true,
			StartsAt:       now.Add(-time.Hour),
			MaxPerCustomer: 2,
		}
	}
	count := func(n int64) *int64 { return &n }
	limit := func(n int) *int { return &n }
	at := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name   string
		mutate func(p *models.Promotion)
		used   *int64
		planID *uuid.UUID
		want   string
	}{
		{name: "running", want: ""},
		{name: "inactive wins over everything", mutate: func(p *models.Promotion) {
			p.IsActive = false
			p.StartsAt = now.Add(time.Hour)
		}, want: MsgInactive},
		{name: "starts exactly now", mutate: func(p *models.Promotion) { p.StartsAt = now }, want: ""},
		{name: "not started", mutate: func(p *models.Promotion) { p.StartsAt = now.Add(time.Second) }, want: MsgNotStarted},
		{name: "expires exactly now", mutate: func(p *models.Promotion) { p.ExpiresAt = at(now) }, want: ""},
		{name: "expired", mutate: func(p *models.Promotion) { p.ExpiresAt = at(now.Add(-time.Second)) }, want: MsgExpired},
		{name: "cap reached", mutate: func(p *models.Promotion) {
			p.MaxRedemptions = limit(5)
			p.CurrentRedemptions = 5
		}, want: MsgLimitReached},
		{name: "zero cap", mutate: func(p *models.Promotion) { p.MaxRedemptions = limit(0) }, want: MsgLimitReached},
		{name: "under cap", mutate: func(p *models.Promotion) {
			p.MaxRedemptions = limit(5)
			p.CurrentRedemptions = 4
		}, want: ""},
		{name: "customer under cap", used: count(1), want: ""},
		{name: "customer at cap", used: count(2), want: MsgAlreadyUsed},
		{name: "plan outside scope", mutate: func(p *models.Promotion) {
			p.ApplicablePlans = []models.PlanPromotion{{PlanID: planA}}
		}, planID: &planB, want: MsgPlanNotEligible},
		{name: "plan inside scope", mutate: func(p *models.Promotion) {
			p.ApplicablePlans = []models.PlanPromotion{{PlanID: planA}, {PlanID: planB}}
		}, planID: &planB, want: ""},
		{name: "scope ignored without plan", mutate: func(p *models.Promotion) {
			p.ApplicablePlans = []models.PlanPromotion{{PlanID: planA}}
		}, want: ""},
		{name: "cap checked before customer usage", mutate: func(p *models.Promotion) {
			p.MaxRedemptions = limit(1)
			p.CurrentRedemptions = 1
		}, used: count(9), want: MsgLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			if tt.mutate != nil {
				tt.mutate(p)
			}
			assert.Equal(t, tt.want, evaluate(p, now, tt.used, tt.planID))
		})
	}
}

func TestBulkGenerate_DropsCollisions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	svc := NewService(db, &testutil.AuditSpy{}, testutil.DiscardLogger(), nil)

	testutil.CreateTestPromotion(t, db, "VIP-CCCCCCCC")

	svc.random = bytes.NewReader([]byte{
		0xaa, 0xaa, 0xaa, 0xaa,
		0xbb, 0xbb, 0xbb, 0xbb,
		0xaa, 0xaa, 0xaa, 0xaa, // repeats the first candidate
		0xcc, 0xcc, 0xcc, 0xcc, // already stored
		0x01, 0x02, 0x03, 0x0f,
	})

	codes, err := svc.BulkGenerate(ctx, audit.Actor{ID: uuid.New()}, "vip", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"VIP-AAAAAAAA", "VIP-BBBBBBBB", "VIP-0102030F"}, codes)

	var stored int64
	require.NoError(t, db.Model(&models.Promotion{}).Count(&stored).Error)
	assert.Equal(t, int64(1), stored, "generated codes are not persisted")
}

func TestBulkGenerate_RandomSourceFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db, &testutil.AuditSpy{}, testutil.DiscardLogger(), nil)
	svc.random = bytes.NewReader([]byte{0x01, 0x02})

	_, err := svc.BulkGenerate(testutil.TestContext(t), audit.Actor{ID: uuid.New()}, "VIP", 1)
	assert.Error(t, err)
}
