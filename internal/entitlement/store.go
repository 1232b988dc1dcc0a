package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) loadOrganization(ctx context.Context, orgID uuid.UUID, columns ...string) (*models.Organization, error) {
	var org models.Organization
	err := s.db.WithContext(ctx).Select(columns).Where("id = ?", orgID).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("loading organization: %w", err)
	}
	return &org, nil
}

func (s *GormStore) QuotaSnapshot(ctx context.Context, orgID uuid.UUID) (*QuotaSnapshot, error) {
	org, err := s.loadOrganization(ctx, orgID, "id", "screen_quota")
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Display{}).
		Where("organization_id = ?", orgID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("counting displays: %w", err)
	}

	return &QuotaSnapshot{ScreenQuota: org.ScreenQuota, DisplayCount: count}, nil
}

func (s *GormStore) SubscriptionSnapshot(ctx context.Context, orgID uuid.UUID) (*SubscriptionSnapshot, error) {
	org, err := s.loadOrganization(ctx, orgID, "id", "subscription_status", "trial_ends_at")
	if err != nil {
		return nil, err
	}
	return &SubscriptionSnapshot{Status: org.SubscriptionStatus, TrialEndsAt: org.TrialEndsAt}, nil
}
