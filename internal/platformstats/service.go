// Package platformstats aggregates tenant, device and promotion counts for
// the operator dashboard.
package platformstats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

type Overview struct {
	TotalOrganizations     int64 `json:"totalOrganizations"`
	ActiveSubscriptions    int64 `json:"activeSubscriptions"`
	TrialOrganizations     int64 `json:"trialOrganizations"`
	SuspendedOrganizations int64 `json:"suspendedOrganizations"`
	TotalUsers             int64 `json:"totalUsers"`
	TotalDisplays          int64 `json:"totalDisplays"`
	OnlineDisplays         int64 `json:"onlineDisplays"`
	TotalContent           int64 `json:"totalContent"`
	TotalStorageBytes      int64 `json:"totalStorageBytes"`
	ActivePromotions       int64 `json:"activePromotions"`
	TotalRedemptions       int64 `json:"totalRedemptions"`
	TotalDiscountApplied   int64 `json:"totalDiscountApplied"` // minor units, all currencies
}

func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var o Overview
	g, gctx := errgroup.WithContext(ctx)

	count := func(model interface{}, dst *int64, extra ...interface{}) {
		g.Go(func() error {
			q := s.db.WithContext(gctx).Model(model)
			if len(extra) > 0 {
				q = q.Where(extra[0], extra[1:]...)
			}
			return q.Count(dst).Error
		})
	}
	sum := func(model interface{}, column string, dst *int64) {
		g.Go(func() error {
			return s.db.WithContext(gctx).Model(model).
				Select("COALESCE(SUM(" + column + "), 0)").
				Scan(dst).Error
		})
	}

	count(&models.Organization{}, &o.TotalOrganizations)
	count(&models.Organization{}, &o.ActiveSubscriptions, "subscription_status = ?", models.SubscriptionActive)
	count(&models.Organization{}, &o.TrialOrganizations, "subscription_status = ?", models.SubscriptionTrial)
	count(&models.Organization{}, &o.SuspendedOrganizations, "subscription_status = ?", models.SubscriptionSuspended)
	count(&models.User{}, &o.TotalUsers)
	count(&models.Display{}, &o.TotalDisplays)
	count(&models.Display{}, &o.OnlineDisplays, "status = ?", models.DisplayOnline)
	count(&models.Content{}, &o.TotalContent)
	count(&models.Promotion{}, &o.ActivePromotions, "is_active = ?", true)
	count(&models.PromotionRedemption{}, &o.TotalRedemptions)
	sum(&models.Content{}, "file_size", &o.TotalStorageBytes)
	sum(&models.PromotionRedemption{}, "discount_applied", &o.TotalDiscountApplied)

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collecting platform overview: %w", err)
	}
	return &o, nil
}

// PlanBreakdown is the share of tenants on one subscription tier.
type PlanBreakdown struct {
	Plan              string `json:"plan"`
	Name              string `json:"name,omitempty"`
	OrganizationCount int64  `json:"organizationCount"`
	UserCount         int64  `json:"userCount"`
	DisplayCount      int64  `json:"displayCount"`
	Percentage        int    `json:"percentage"`
}

type tierCount struct {
	Tier  string
	Count int64
}

// ByPlan reports every catalog plan in catalog order, followed by any tier
// still held by organizations but missing from the catalog.
func (s *Service) ByPlan(ctx context.Context) ([]PlanBreakdown, error) {
	var (
		plans    []models.Plan
		orgs     []tierCount
		users    []tierCount
		displays []tierCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Order("sort_order ASC, created_at ASC").Find(&plans).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Organization{}).
			Select("subscription_tier AS tier, COUNT(*) AS count").
			Group("subscription_tier").
			Scan(&orgs).Error
	})
	perTier := func(table string, dst *[]tierCount) {
		g.Go(func() error {
			return s.db.WithContext(gctx).Table(table).
				Select("organizations.subscription_tier AS tier, COUNT(*) AS count").
				Joins("JOIN organizations ON organizations.id = " + table + ".organization_id").
				Group("organizations.subscription_tier").
				Scan(dst).Error
		})
	}
	perTier(models.User{}.TableName(), &users)
	perTier(models.Display{}.TableName(), &displays)

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collecting plan breakdown: %w", err)
	}

	index := func(rows []tierCount) map[string]int64 {
		m := make(map[string]int64, len(rows))
		for _, r := range rows {
			m[r.Tier] = r.Count
		}
		return m
	}
	orgCounts, userCounts, displayCounts := index(orgs), index(users), index(displays)

	var total int64
	for _, n := range orgCounts {
		total += n
	}
	row := func(slug, name string) PlanBreakdown {
		b := PlanBreakdown{
			Plan:              slug,
			Name:              name,
			OrganizationCount: orgCounts[slug],
			UserCount:         userCounts[slug],
			DisplayCount:      displayCounts[slug],
		}
		if total > 0 {
			b.Percentage = int(math.Round(float64(b.OrganizationCount) / float64(total) * 100))
		}
		return b
	}

	breakdown := make([]PlanBreakdown, 0, len(plans))
	seen := make(map[string]bool, len(plans))
	for _, p := range plans {
		seen[p.Slug] = true
		breakdown = append(breakdown, row(p.Slug, p.Name))
	}

	var orphans []string
	for tier := range orgCounts {
		if !seen[tier] {
			orphans = append(orphans, tier)
		}
	}
	sort.Strings(orphans)
	for _, tier := range orphans {
		breakdown = append(breakdown, row(tier, ""))
	}
	return breakdown, nil
}

// Period is a trailing window ending now.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

func (p Period) start(now time.Time) (time.Time, error) {
	switch p {
	case PeriodDay:
		return now.AddDate(0, 0, -1), nil
	case PeriodWeek:
		return now.AddDate(0, 0, -7), nil
	case PeriodMonth, "":
		return now.AddDate(0, -1, 0), nil
	case PeriodYear:
		return now.AddDate(-1, 0, 0), nil
	}
	return time.Time{}, errs.InvalidArgument("Unknown period %q", string(p))
}

type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD, UTC
	Count int    `json:"count"`
}

type Signups struct {
	Period Period           `json:"period"`
	Total  int              `json:"total"`
	ByDay  []DayCount       `json:"byDay"`
	ByPlan map[string]int64 `json:"byPlan"`
}

// Signups counts organizations created within the period.
func (s *Service) Signups(ctx context.Context, period Period) (*Signups, error) {
	if period == "" {
		period = PeriodMonth
	}
	since, err := period.start(s.now())
	if err != nil {
		return nil, err
	}

	var orgs []models.Organization
	if err := s.db.WithContext(ctx).
		Select("created_at", "subscription_tier").
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("listing signups: %w", err)
	}

	out := &Signups{Period: period, Total: len(orgs), ByDay: []DayCount{}, ByPlan: map[string]int64{}}
	for _, org := range orgs {
		day := org.CreatedAt.UTC().Format(time.DateOnly)
		if n := len(out.ByDay); n > 0 && out.ByDay[n-1].Date == day {
			out.ByDay[n-1].Count++
		} else {
			out.ByDay = append(out.ByDay, DayCount{Date: day, Count: 1})
		}
		out.ByPlan[org.SubscriptionTier]++
	}
	return out, nil
}

type CountryCount struct {
	Country       string `json:"country"`
	Organizations int64  `json:"organizations"`
	Users         int64  `json:"users"`
	Percentage    int    `json:"percentage"`
}

// Geographic groups organizations with a billing country, largest first.
func (s *Service) Geographic(ctx context.Context) ([]CountryCount, error) {
	var rows []CountryCount
	if err := s.db.WithContext(ctx).Model(&models.Organization{}).
		Select("organizations.country AS country, " +
			"COUNT(DISTINCT organizations.id) AS organizations, " +
			"COUNT(users.id) AS users").
		Joins("LEFT JOIN users ON users.organization_id = organizations.id").
		Where("organizations.country <> ''").
		Group("organizations.country").
		Order("COUNT(DISTINCT organizations.id) DESC, organizations.country ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("grouping organizations by country: %w", err)
	}

	var total int64
	for _, r := range rows {
		total += r.Organizations
	}
	for i := range rows {
		if total > 0 {
			rows[i].Percentage = int(math.Round(float64(rows[i].Organizations) / float64(total) * 100))
		}
	}
	if rows == nil {
		rows = []CountryCount{}
	}
	return rows, nil
}
