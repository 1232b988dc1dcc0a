// Package organizations is the platform operator's view of tenants:
// plan changes, trial extensions, suspension and erasure.
package organizations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	recorder   *audit.Recorder
	dispatcher audit.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(db *gorm.DB, recorder *audit.Recorder, dispatcher audit.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		db:         db,
		recorder:   recorder,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Filter narrows FindAll. Zero fields do not filter.
type Filter struct {
	Search string // matches name, slug or billing email
	Status models.SubscriptionStatus
	Tier   string

	Page    int
	PerPage int

	SortBy    string // created_at, name or screen_quota
	SortOrder string // asc or desc
}

type ListResult struct {
	Data       []models.Organization `json:"data"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PerPage    int                   `json:"per_page"`
	TotalPages int                   `json:"total_pages"`
}

var sortColumns = map[string]string{
	"":             "created_at",
	"createdAt":    "created_at",
	"created_at":   "created_at",
	"name":         "name",
	"screenQuota":  "screen_quota",
	"screen_quota": "screen_quota",
}

func (s *Service) FindAll(ctx context.Context, f Filter) (*ListResult, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
	column, ok := sortColumns[f.SortBy]
	if !ok {
		return nil, errs.InvalidArgument("Cannot sort by %q", f.SortBy)
	}
	direction := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		direction = "ASC"
	}

	query := s.db.WithContext(ctx).Model(&models.Organization{})
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(slug) LIKE ? OR LOWER(billing_email) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if f.Status != "" {
		query = query.Where("subscription_status = ?", f.Status)
	}
	if f.Tier != "" {
		query = query.Where("subscription_tier = ?", f.Tier)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting organizations: %w", err)
	}

	var orgs []models.Organization
	if err := query.
		Order(column + " " + direction).
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}

	return &ListResult{
		Data:       orgs,
		Total:      total,
		Page:       f.Page,
		PerPage:    f.PerPage,
		TotalPages: int(math.Ceil(float64(total) / float64(f.PerPage))),
	}, nil
}

func (s *Service) FindOne(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("Organization with ID %s not found", id)
		}
		return nil, fmt.Errorf("loading organization: %w", err)
	}
	return &org, nil
}

// UpdateInput is a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Name               *string
	SubscriptionTier   *string
	SubscriptionStatus *models.SubscriptionStatus
	ScreenQuota        *int
	TrialEndsAt        *time.Time
	Country            *string
	BillingEmail       *string
}

// Update applies operator changes. Moving to another tier adopts that
// plan's screen quota unless a quota is given explicitly.
func (s *Service) Update(ctx context.Context, actor audit.Actor, id uuid.UUID, in UpdateInput) (*models.Organization, error) {
	org, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, errs.InvalidArgument("Organization name is required")
		}
		updates["name"] = *in.Name
	}
	if in.SubscriptionStatus != nil {
		status := *in.SubscriptionStatus
		if !status.Valid() {
			return nil, errs.InvalidArgument("Invalid subscription status %q", status)
		}
		if status == models.SubscriptionSuspended && org.SubscriptionStatus != models.SubscriptionSuspended {
			return nil, errs.InvalidArgument("Use suspend to suspend an organization")
		}
		updates["subscription_status"] = status
		if org.SubscriptionStatus == models.SubscriptionSuspended && status != models.SubscriptionSuspended {
			clearSuspension(updates)
		}
	}
	if in.ScreenQuota != nil {
		if *in.ScreenQuota < models.UnlimitedQuota {
			return nil, errs.InvalidArgument("Screen quota must be -1 (unlimited) or greater")
		}
		updates["screen_quota"] = *in.ScreenQuota
	}
	if in.SubscriptionTier != nil && *in.SubscriptionTier != org.SubscriptionTier {
		var plan models.Plan
		if err := s.db.WithContext(ctx).Where("slug = ?", *in.SubscriptionTier).First(&plan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errs.InvalidArgument("Unknown subscription tier '%s'", *in.SubscriptionTier)
			}
			return nil, fmt.Errorf("loading plan: %w", err)
		}
		updates["subscription_tier"] = plan.Slug
		if in.ScreenQuota == nil {
			updates["screen_quota"] = plan.ScreenQuota
		}
	}
	if in.TrialEndsAt != nil {
		updates["trial_ends_at"] = *in.TrialEndsAt
	}
	if in.Country != nil {
		updates["country"] = strings.ToUpper(*in.Country)
	}
	if in.BillingEmail != nil {
		updates["billing_email"] = *in.BillingEmail
	}

	if len(updates) == 0 {
		return org, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Organization{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating organization: %w", err)
	}

	s.logger.Info("organization updated", "id", id, "fields", len(updates))
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionOrganizationUpdate, audit.TargetOrganization, id.String(), updates))
	return s.FindOne(ctx, id)
}

// ExtendTrial pushes the trial end out by days, counting from the current
// end date when one is set, and puts the organization back on trial.
func (s *Service) ExtendTrial(ctx context.Context, actor audit.Actor, id uuid.UUID, days int) (*models.Organization, error) {
	if days <= 0 {
		return nil, errs.InvalidArgument("Days must be positive")
	}
	org, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	from := s.now()
	if org.TrialEndsAt != nil {
		from = *org.TrialEndsAt
	}
	ends := from.AddDate(0, 0, days)

	updates := map[string]interface{}{
		"trial_ends_at":       ends,
		"subscription_status": models.SubscriptionTrial,
	}
	if org.SubscriptionStatus == models.SubscriptionSuspended {
		clearSuspension(updates)
	}
	if err := s.db.WithContext(ctx).Model(&models.Organization{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("extending trial: %w", err)
	}

	s.logger.Info("trial extended", "id", id, "days", days, "trial_ends_at", ends)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionOrganizationExtendTrial, audit.TargetOrganization, id.String(), map[string]any{
		"days":        days,
		"trialEndsAt": ends,
	}))
	return s.FindOne(ctx, id)
}

// Suspend blocks every mutating request from the organization. The status
// it had is kept so Unsuspend can restore it.
func (s *Service) Suspend(ctx context.Context, actor audit.Actor, id uuid.UUID, reason string) (*models.Organization, error) {
	org, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if org.SubscriptionStatus == models.SubscriptionSuspended {
		return nil, errs.InvalidArgument("Organization is already suspended")
	}

	if err := s.db.WithContext(ctx).Model(&models.Organization{}).Where("id = ?", id).Updates(map[string]interface{}{
		"subscription_status": models.SubscriptionSuspended,
		"previous_status":     org.SubscriptionStatus,
		"suspended_at":        s.now(),
		"suspended_reason":    reason,
	}).Error; err != nil {
		return nil, fmt.Errorf("suspending organization: %w", err)
	}

	s.logger.Info("organization suspended", "id", id, "reason", reason)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionOrganizationSuspend, audit.TargetOrganization, id.String(), map[string]any{
		"reason":         reason,
		"previousStatus": org.SubscriptionStatus,
	}))
	return s.FindOne(ctx, id)
}

func (s *Service) Unsuspend(ctx context.Context, actor audit.Actor, id uuid.UUID) (*models.Organization, error) {
	org, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if org.SubscriptionStatus != models.SubscriptionSuspended {
		return nil, errs.InvalidArgument("Organization is not suspended")
	}

	restored := models.SubscriptionActive
	if org.PreviousStatus != nil && org.PreviousStatus.Valid() && *org.PreviousStatus != models.SubscriptionSuspended {
		restored = *org.PreviousStatus
	}

	updates := map[string]interface{}{"subscription_status": restored}
	clearSuspension(updates)
	if err := s.db.WithContext(ctx).Model(&models.Organization{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("unsuspending organization: %w", err)
	}

	s.logger.Info("organization unsuspended", "id", id, "status", restored)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionOrganizationUnsuspend, audit.TargetOrganization, id.String(), map[string]any{
		"restoredStatus": restored,
	}))
	return s.FindOne(ctx, id)
}

// clearSuspension adds the column resets that drop the suspension snapshot.
// Any write that moves an organization out of suspended must include them.
func clearSuspension(updates map[string]interface{}) {
	updates["previous_status"] = nil
	updates["suspended_at"] = nil
	updates["suspended_reason"] = ""
}

type EraseResult struct {
	Deleted          bool      `json:"deleted"`
	OrganizationID   uuid.UUID `json:"organizationId"`
	OrganizationName string    `json:"organizationName"`
}

// Erase removes the organization and everything it owns. Audit records
// about it are kept.
func (s *Service) Erase(ctx context.Context, actor audit.Actor, id uuid.UUID) (*EraseResult, error) {
	org, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := []interface{}{
			&models.PromotionRedemption{},
			&models.Playlist{},
			&models.Content{},
			&models.Display{},
			&models.User{},
		}
		for _, model := range owned {
			if err := tx.Where("organization_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&models.Organization{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("erasing organization: %w", err)
	}

	s.logger.Warn("organization erased", "id", id, "name", org.Name)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionOrganizationDelete, audit.TargetOrganization, id.String(), map[string]any{
		"name": org.Name,
		"slug": org.Slug,
	}))
	return &EraseResult{Deleted: true, OrganizationID: id, OrganizationName: org.Name}, nil
}

type Stats struct {
	UserCount         int64      `json:"userCount"`
	DisplayCount      int64      `json:"displayCount"`
	OnlineDisplays    int64      `json:"onlineDisplays"`
	ContentCount      int64      `json:"contentCount"`
	PlaylistCount     int64      `json:"playlistCount"`
	TotalStorageBytes int64      `json:"totalStorageBytes"`
	LastActivity      *time.Time `json:"lastActivity"`
}

func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	if _, err := s.FindOne(ctx, id); err != nil {
		return nil, err
	}

	var st Stats
	g, gctx := errgroup.WithContext(ctx)

	count := func(model interface{}, dst *int64, extra ...interface{}) {
		g.Go(func() error {
			q := s.db.WithContext(gctx).Model(model).Where("organization_id = ?", id)
			if len(extra) > 0 {
				q = q.Where(extra[0], extra[1:]...)
			}
			return q.Count(dst).Error
		})
	}
	count(&models.User{}, &st.UserCount)
	count(&models.Display{}, &st.DisplayCount)
	count(&models.Display{}, &st.OnlineDisplays, "status = ?", models.DisplayOnline)
	count(&models.Content{}, &st.ContentCount)
	count(&models.Playlist{}, &st.PlaylistCount)

	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.Content{}).
			Where("organization_id = ?", id).
			Select("COALESCE(SUM(file_size), 0)").
			Scan(&st.TotalStorageBytes).Error
	})
	g.Go(func() error {
		latest, err := s.recorder.LatestForTarget(gctx, audit.TargetOrganization, id.String())
		if err != nil {
			return err
		}
		if latest != nil {
			st.LastActivity = &latest.CreatedAt
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collecting organization stats: %w", err)
	}
	return &st, nil
}
