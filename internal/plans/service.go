// Package plans manages the catalog of purchasable tiers.
package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultStorageQuotaMB = 5000
	defaultAPIRateLimit   = 1000
)

type Service struct {
	db         *gorm.DB
	cache      *Cache
	dispatcher audit.Dispatcher
	logger     *slog.Logger
}

func NewService(db *gorm.DB, cache *Cache, dispatcher audit.Dispatcher, logger *slog.Logger) *Service {
	return &Service{db: db, cache: cache, dispatcher: dispatcher, logger: logger}
}

type CreateInput struct {
	Slug        string
	Name        string
	Description string

	ScreenQuota    int
	StorageQuotaMB *int
	APIRateLimit   *int

	PriceUSDMonthly int64
	PriceUSDYearly  int64
	PriceINRMonthly int64
	PriceINRYearly  int64

	StripePriceIDMonthly  string
	StripePriceIDYearly   string
	RazorpayPlanIDMonthly string
	RazorpayPlanIDYearly  string

	Features     []string
	FeatureFlags map[string]any

	IsActive      *bool
	IsPublic      *bool
	SortOrder     int
	HighlightText string
}

// UpdateInput is a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Slug        *string
	Name        *string
	Description *string

	ScreenQuota    *int
	StorageQuotaMB *int
	APIRateLimit   *int

	PriceUSDMonthly *int64
	PriceUSDYearly  *int64
	PriceINRMonthly *int64
	PriceINRYearly  *int64

	StripePriceIDMonthly  *string
	StripePriceIDYearly   *string
	RazorpayPlanIDMonthly *string
	RazorpayPlanIDYearly  *string

	Features     *[]string
	FeatureFlags map[string]any

	IsActive      *bool
	IsPublic      *bool
	SortOrder     *int
	HighlightText *string
}

func (s *Service) FindAll(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := s.db.WithContext(ctx).Order("sort_order ASC").Order("created_at ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	return plans, nil
}

func (s *Service) FindOne(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("Plan with ID %s not found", id)
		}
		return nil, fmt.Errorf("loading plan: %w", err)
	}
	return &plan, nil
}

func (s *Service) FindBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	var plan models.Plan
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("Plan with slug '%s' not found", slug)
		}
		return nil, fmt.Errorf("loading plan: %w", err)
	}
	return &plan, nil
}

// FindActive returns the public catalog shown to tenants, served from
// Redis when possible. Cache failures fall through to the database.
func (s *Service) FindActive(ctx context.Context) ([]models.Plan, error) {
	if cached, ok, err := s.cache.GetActive(ctx); err != nil {
		s.logger.Warn("plan cache read failed", "error", err)
	} else if ok {
		return cached, nil
	}

	var plans []models.Plan
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND is_public = ?", true, true).
		Order("sort_order ASC").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("listing active plans: %w", err)
	}

	if err := s.cache.SetActive(ctx, plans); err != nil {
		s.logger.Warn("plan cache write failed", "error", err)
	}
	return plans, nil
}

func (s *Service) Create(ctx context.Context, actor audit.Actor, in CreateInput) (*models.Plan, error) {
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		return nil, errs.InvalidArgument("Plan slug is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, errs.InvalidArgument("Plan name is required")
	}
	if in.ScreenQuota < models.UnlimitedQuota {
		return nil, errs.InvalidArgument("Screen quota must be -1 (unlimited) or greater")
	}

	taken, err := s.slugTaken(ctx, slug, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errs.Conflict("Plan with slug '%s' already exists", slug)
	}

	features, err := encodeFeatures(in.Features)
	if err != nil {
		return nil, err
	}
	flags, err := encodeFlags(in.FeatureFlags)
	if err != nil {
		return nil, err
	}

	plan := &models.Plan{
		Slug:                  slug,
		Name:                  in.Name,
		Description:           in.Description,
		ScreenQuota:           in.ScreenQuota,
		StorageQuotaMB:        intOr(in.StorageQuotaMB, defaultStorageQuotaMB),
		APIRateLimit:          intOr(in.APIRateLimit, defaultAPIRateLimit),
		PriceUSDMonthly:       in.PriceUSDMonthly,
		PriceUSDYearly:        in.PriceUSDYearly,
		PriceINRMonthly:       in.PriceINRMonthly,
		PriceINRYearly:        in.PriceINRYearly,
		StripePriceIDMonthly:  in.StripePriceIDMonthly,
		StripePriceIDYearly:   in.StripePriceIDYearly,
		RazorpayPlanIDMonthly: in.RazorpayPlanIDMonthly,
		RazorpayPlanIDYearly:  in.RazorpayPlanIDYearly,
		Features:              features,
		FeatureFlags:          flags,
		IsActive:              boolOr(in.IsActive, true),
		IsPublic:              boolOr(in.IsPublic, true),
		SortOrder:             in.SortOrder,
		HighlightText:         in.HighlightText,
	}

	if err := s.db.WithContext(ctx).Create(plan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Conflict("Plan with slug '%s' already exists", slug)
		}
		return nil, fmt.Errorf("creating plan: %w", err)
	}

	s.logger.Info("plan created", "id", plan.ID, "slug", plan.Slug)
	s.afterWrite(ctx, actor.Entry(audit.ActionPlanCreate, audit.TargetPlan, plan.ID.String(), map[string]any{
		"slug": plan.Slug,
		"name": plan.Name,
	}))
	return plan, nil
}

func (s *Service) Update(ctx context.Context, actor audit.Actor, id uuid.UUID, in UpdateInput) (*models.Plan, error) {
	plan, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	updates, err := in.columns()
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return plan, nil
	}

	slug, slugChanged := updates["slug"].(string)
	if slugChanged && slug != plan.Slug {
		taken, err := s.slugTaken(ctx, slug, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, errs.Conflict("Plan with slug '%s' already exists", slug)
		}
	}

	if err := s.db.WithContext(ctx).Model(plan).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Conflict("Plan with slug '%s' already exists", slug)
		}
		return nil, fmt.Errorf("updating plan: %w", err)
	}

	updated, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan updated", "id", id, "fields", len(updates))
	s.afterWrite(ctx, actor.Entry(audit.ActionPlanUpdate, audit.TargetPlan, id.String(), updates))
	return updated, nil
}

// Delete deactivates the plan. Rows are kept for invoices and promotions.
func (s *Service) Delete(ctx context.Context, actor audit.Actor, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(plan).Update("is_active", false).Error; err != nil {
		return nil, fmt.Errorf("deactivating plan: %w", err)
	}
	plan.IsActive = false

	s.logger.Info("plan deactivated", "id", id, "slug", plan.Slug)
	s.afterWrite(ctx, actor.Entry(audit.ActionPlanDelete, audit.TargetPlan, id.String(), map[string]any{
		"slug": plan.Slug,
	}))
	return plan, nil
}

// Duplicate copies a plan under a free "-copy" slug. The copy starts
// inactive and private.
func (s *Service) Duplicate(ctx context.Context, actor audit.Actor, id uuid.UUID) (*models.Plan, error) {
	source, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	slug, err := s.nextCopySlug(ctx, source.Slug)
	if err != nil {
		return nil, err
	}

	dup := *source
	dup.Base = models.Base{}
	dup.Slug = slug
	dup.Name = source.Name + " (Copy)"
	dup.IsActive = false
	dup.IsPublic = false

	if err := s.db.WithContext(ctx).Create(&dup).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Conflict("Plan with slug '%s' already exists", slug)
		}
		return nil, fmt.Errorf("duplicating plan: %w", err)
	}

	s.logger.Info("plan duplicated", "source_id", id, "id", dup.ID, "slug", dup.Slug)
	s.afterWrite(ctx, actor.Entry(audit.ActionPlanDuplicate, audit.TargetPlan, dup.ID.String(), map[string]any{
		"sourceId": id.String(),
		"slug":     dup.Slug,
	}))
	return &dup, nil
}

func (s *Service) nextCopySlug(ctx context.Context, base string) (string, error) {
	candidate := base + "-copy"
	for i := 1; ; i++ {
		taken, err := s.slugTaken(ctx, candidate, uuid.Nil)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-copy-%d", base, i)
	}
}

// Reorder sets sort_order to each plan's position in ids. Either every
// listed plan is renumbered or none is.
func (s *Service) Reorder(ctx context.Context, actor audit.Actor, ids []uuid.UUID) ([]models.Plan, error) {
	if len(ids) == 0 {
		return nil, errs.InvalidArgument("Plan IDs are required")
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, errs.InvalidArgument("Plan ID %s is listed more than once", id)
		}
		seen[id] = struct{}{}
	}

	var plans []models.Plan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found []uuid.UUID
		if err := tx.Model(&models.Plan{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
			return fmt.Errorf("loading plans: %w", err)
		}

		if len(found) != len(ids) {
			present := make(map[uuid.UUID]struct{}, len(found))
			for _, id := range found {
				present[id] = struct{}{}
			}
			var missing []string
			for _, id := range ids {
				if _, ok := present[id]; !ok {
					missing = append(missing, id.String())
				}
			}
			return errs.NotFound("Plans not found: %s", strings.Join(missing, ", "))
		}

		for i, id := range ids {
			if err := tx.Model(&models.Plan{}).Where("id = ?", id).Update("sort_order", i).Error; err != nil {
				return fmt.Errorf("updating sort order: %w", err)
			}
		}

		return tx.Where("id IN ?", ids).Order("sort_order ASC").Find(&plans).Error
	})
	if err != nil {
		return nil, err
	}

	order := make([]string, len(ids))
	for i, id := range ids {
		order[i] = id.String()
	}

	s.logger.Info("plans reordered", "count", len(ids))
	s.afterWrite(ctx, actor.Entry(audit.ActionPlanReorder, audit.TargetPlan, "", map[string]any{
		"planIds": order,
	}))
	return plans, nil
}

// slugTaken checks every plan, deactivated ones included, since the
// unique index covers them too.
func (s *Service) slugTaken(ctx context.Context, slug string, exclude uuid.UUID) (bool, error) {
	query := s.db.WithContext(ctx).Model(&models.Plan{}).Where("slug = ?", slug)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking plan slug: %w", err)
	}
	return count > 0, nil
}

// afterWrite runs once a catalog write has committed.
func (s *Service) afterWrite(ctx context.Context, e audit.Entry) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("plan cache invalidation failed", "error", err)
	}
	s.dispatcher.Dispatch(ctx, e)
}

func (in UpdateInput) columns() (map[string]interface{}, error) {
	u := make(map[string]interface{})

	if in.Slug != nil {
		slug := strings.TrimSpace(*in.Slug)
		if slug == "" {
			return nil, errs.InvalidArgument("Plan slug is required")
		}
		u["slug"] = slug
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, errs.InvalidArgument("Plan name is required")
		}
		u["name"] = *in.Name
	}
	if in.Description != nil {
		u["description"] = *in.Description
	}
	if in.ScreenQuota != nil {
		if *in.ScreenQuota < models.UnlimitedQuota {
			return nil, errs.InvalidArgument("Screen quota must be -1 (unlimited) or greater")
		}
		u["screen_quota"] = *in.ScreenQuota
	}
	if in.StorageQuotaMB != nil {
		u["storage_quota_mb"] = *in.StorageQuotaMB
	}
	if in.APIRateLimit != nil {
		u["api_rate_limit"] = *in.APIRateLimit
	}
	if in.PriceUSDMonthly != nil {
		u["price_usd_monthly"] = *in.PriceUSDMonthly
	}
	if in.PriceUSDYearly != nil {
		u["price_usd_yearly"] = *in.PriceUSDYearly
	}
	if in.PriceINRMonthly != nil {
		u["price_inr_monthly"] = *in.PriceINRMonthly
	}
	if in.PriceINRYearly != nil {
		u["price_inr_yearly"] = *in.PriceINRYearly
	}
	if in.StripePriceIDMonthly != nil {
		u["stripe_price_id_monthly"] = *in.StripePriceIDMonthly
	}
	if in.StripePriceIDYearly != nil {
		u["stripe_price_id_yearly"] = *in.StripePriceIDYearly
	}
	if in.RazorpayPlanIDMonthly != nil {
		u["razorpay_plan_id_monthly"] = *in.RazorpayPlanIDMonthly
	}
	if in.RazorpayPlanIDYearly != nil {
		u["razorpay_plan_id_yearly"] = *in.RazorpayPlanIDYearly
	}
	if in.Features != nil {
		features, err := encodeFeatures(*in.Features)
		if err != nil {
			return nil, err
		}
		u["features"] = features
	}
	if in.FeatureFlags != nil {
		flags, err := encodeFlags(in.FeatureFlags)
		if err != nil {
			return nil, err
		}
		u["feature_flags"] = flags
	}
	if in.IsActive != nil {
		u["is_active"] = *in.IsActive
	}
	if in.IsPublic != nil {
		u["is_public"] = *in.IsPublic
	}
	if in.SortOrder != nil {
		u["sort_order"] = *in.SortOrder
	}
	if in.HighlightText != nil {
		u["highlight_text"] = *in.HighlightText
	}

	return u, nil
}

func encodeFeatures(features []string) (datatypes.JSON, error) {
	if features == nil {
		features = []string{}
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("encoding features: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func encodeFlags(flags map[string]any) (datatypes.JSON, error) {
	if flags == nil {
		return nil, nil
	}
	raw, err := json.Marshal(flags)
	if err != nil {
		return nil, fmt.Errorf("encoding feature flags: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
