package entitlement

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
	"github.com/vizora/entitlements/internal/metrics"
)

// Guard runs the entitlement checks against live organization state.
// Both checks fail closed: an unresolvable organization is denied.
type Guard struct {
	store   Store
	metrics *metrics.Collector
	now     func() time.Time
}

func NewGuard(store Store, m *metrics.Collector) *Guard {
	return &Guard{store: store, metrics: m, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

func (g *Guard) CheckQuota(ctx context.Context, orgID uuid.UUID, dim QuotaDimension) error {
	err := g.checkQuota(ctx, orgID, dim)
	g.metrics.RecordGuardDecision("quota", err == nil)
	return err
}

func (g *Guard) checkQuota(ctx context.Context, orgID uuid.UUID, dim QuotaDimension) error {
	if orgID == uuid.Nil {
		return errs.ErrOrganizationNotFound
	}
	snap, err := g.store.QuotaSnapshot(ctx, orgID)
	if err != nil {
		return err
	}
	return EvaluateQuota(dim, *snap)
}

// CheckSubscription passes GET and HEAD without touching the store.
func (g *Guard) CheckSubscription(ctx context.Context, orgID uuid.UUID, method string) error {
	if IsReadOnly(method) {
		return nil
	}
	err := g.checkSubscription(ctx, orgID)
	g.metrics.RecordGuardDecision("subscription", err == nil)
	return err
}

func (g *Guard) checkSubscription(ctx context.Context, orgID uuid.UUID) error {
	if orgID == uuid.Nil {
		return errs.ErrOrganizationNotFound
	}
	snap, err := g.store.SubscriptionSnapshot(ctx, orgID)
	if err != nil {
		return err
	}
	return EvaluateSubscription(*snap, g.now())
}

type QuotaUsage struct {
	ScreenQuota int     `json:"screenQuota"`
	ScreensUsed int64   `json:"screensUsed"`
	Remaining   int64   `json:"remaining"` // -1 when unlimited
	PercentUsed float64 `json:"percentUsed"`
}

func (g *Guard) QuotaUsage(ctx context.Context, orgID uuid.UUID) (*QuotaUsage, error) {
	if orgID == uuid.Nil {
		return nil, errs.ErrOrganizationNotFound
	}
	snap, err := g.store.QuotaSnapshot(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return usageFromSnapshot(*snap), nil
}

func usageFromSnapshot(snap QuotaSnapshot) *QuotaUsage {
	u := &QuotaUsage{ScreenQuota: snap.ScreenQuota, ScreensUsed: snap.DisplayCount}

	switch {
	case snap.ScreenQuota == models.UnlimitedQuota:
		u.Remaining = -1
	case snap.ScreenQuota == 0:
		u.PercentUsed = 100
	default:
		u.Remaining = max(int64(snap.ScreenQuota)-snap.DisplayCount, 0)
		u.PercentUsed = math.Round(float64(snap.DisplayCount)/float64(snap.ScreenQuota)*100)
	}
	return u
}
