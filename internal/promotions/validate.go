package promotions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/database/models"
	"gorm.io/gorm"
)

// Rejection reasons, in the order they are checked.
const (
	MsgNotFound        = "Promotion code not found"
	MsgInactive        = "Promotion is no longer active"
	MsgNotStarted      = "Promotion has not started yet"
	MsgExpired         = "Promotion has expired"
	MsgLimitReached    = "Promotion redemption limit reached"
	MsgAlreadyUsed     = "You have already used this promotion"
	MsgPlanNotEligible = "Promotion is not valid for this plan"
)

// Discount is the part of a promotion a checkout needs to price an order.
type Discount struct {
	ID            uuid.UUID           `json:"id"`
	Code          string              `json:"code"`
	DiscountType  models.DiscountType `json:"discountType"`
	DiscountValue float64             `json:"discountValue"`
	Currency      string              `json:"currency,omitempty"`
}

type ValidationResult struct {
	Valid     bool      `json:"valid"`
	Promotion *Discount `json:"promotion,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// evaluate derives the promotion's state from its fields and the clock.
// orgRedemptions is nil when no organization is being checked. It
// returns the first failing reason, or "" when the promotion applies.
func evaluate(p *models.Promotion, now time.Time, orgRedemptions *int64, planID *uuid.UUID) string {
	if !p.IsActive {
		return MsgInactive
	}
	if now.Before(p.StartsAt) {
		return MsgNotStarted
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return MsgExpired
	}
	if p.MaxRedemptions != nil && p.CurrentRedemptions >= *p.MaxRedemptions {
		return MsgLimitReached
	}
	if orgRedemptions != nil && *orgRedemptions >= int64(p.MaxPerCustomer) {
		return MsgAlreadyUsed
	}
	if planID != nil && len(p.ApplicablePlans) > 0 {
		eligible := false
		for _, pp := range p.ApplicablePlans {
			if pp.PlanID == *planID {
				eligible = true
				break
			}
		}
		if !eligible {
			return MsgPlanNotEligible
		}
	}
	return ""
}

// Validate reports whether code can be applied. It never writes. planID and
// orgID are optional and only enable the checks that need them.
func (s *Service) Validate(ctx context.Context, code string, planID, orgID *uuid.UUID) (*ValidationResult, error) {
	return s.validate(ctx, s.db, code, planID, orgID)
}

func (s *Service) validate(ctx context.Context, db *gorm.DB, code string, planID, orgID *uuid.UUID) (*ValidationResult, error) {
	var promo models.Promotion
	err := db.WithContext(ctx).
		Preload("ApplicablePlans").
		Where("code = ?", NormalizeCode(code)).
		First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ValidationResult{Valid: false, Error: MsgNotFound}, nil
		}
		return nil, fmt.Errorf("loading promotion: %w", err)
	}

	var used *int64
	if orgID != nil {
		n, err := countRedemptions(ctx, db, promo.ID, *orgID)
		if err != nil {
			return nil, err
		}
		used = &n
	}

	if reason := evaluate(&promo, s.now(), used, planID); reason != "" {
		return &ValidationResult{Valid: false, Error: reason}, nil
	}

	return &ValidationResult{
		Valid: true,
		Promotion: &Discount{
			ID:            promo.ID,
			Code:          promo.Code,
			DiscountType:  promo.DiscountType,
			DiscountValue: promo.DiscountValue,
			Currency:      promo.Currency,
		},
	}, nil
}

func countRedemptions(ctx context.Context, db *gorm.DB, promotionID, orgID uuid.UUID) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.PromotionRedemption{}).
		Where("promotion_id = ? AND organization_id = ?", promotionID, orgID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting redemptions: %w", err)
	}
	return n, nil
}
