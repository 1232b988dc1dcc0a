package promotions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
	"gorm.io/gorm"
)

const (
	outcomeRedeemed = "redeemed"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// Redeem applies code for the organization, which must exist. The counter
// increment and the redemption row commit together. The increment is
// conditional on the global cap, and the per-organization count is taken
// while the promotion row is locked by that increment, so concurrent calls
// cannot overshoot either cap.
func (s *Service) Redeem(ctx context.Context, code string, orgID uuid.UUID, discountApplied int64) (*models.PromotionRedemption, error) {
	if orgID == uuid.Nil {
		return nil, errs.ErrOrganizationNotFound
	}
	if discountApplied < 0 {
		return nil, errs.InvalidArgument("Discount applied must be non-negative")
	}

	result, err := s.Validate(ctx, code, nil, &orgID)
	if err != nil {
		s.metrics.RecordRedemption(outcomeError)
		return nil, err
	}
	if !result.Valid {
		s.metrics.RecordRedemption(outcomeRejected)
		return nil, errs.InvalidArgument("%s", result.Error)
	}
	promotionID := result.Promotion.ID

	var redemption *models.PromotionRedemption
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org models.Organization
		if err := tx.Select("id").Where("id = ?", orgID).First(&org).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.ErrOrganizationNotFound
			}
			return fmt.Errorf("loading organization: %w", err)
		}

		res := tx.Model(&models.Promotion{}).
			Where("id = ? AND is_active = ?", promotionID, true).
			Where("max_redemptions IS NULL OR current_redemptions < max_redemptions").
			Update("current_redemptions", gorm.Expr("current_redemptions + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("incrementing redemptions: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.rejection(tx, promotionID)
		}

		var promo models.Promotion
		if err := tx.Select("id", "max_per_customer").Where("id = ?", promotionID).First(&promo).Error; err != nil {
			return fmt.Errorf("loading promotion: %w", err)
		}
		used, err := countRedemptions(ctx, tx, promotionID, orgID)
		if err != nil {
			return err
		}
		if used >= int64(promo.MaxPerCustomer) {
			return errs.InvalidArgument(MsgAlreadyUsed)
		}

		redemption = &models.PromotionRedemption{
			PromotionID:     promotionID,
			OrganizationID:  orgID,
			DiscountApplied: discountApplied,
			RedeemedAt:      s.now(),
		}
		if err := tx.Create(redemption).Error; err != nil {
			return fmt.Errorf("recording redemption: %w", err)
		}
		return nil
	})
	if err != nil {
		var domainErr *errs.Error
		if errors.As(err, &domainErr) || errors.Is(err, errs.ErrOrganizationNotFound) {
			s.metrics.RecordRedemption(outcomeRejected)
		} else {
			s.metrics.RecordRedemption(outcomeError)
		}
		return nil, err
	}

	s.metrics.RecordRedemption(outcomeRedeemed)
	s.logger.Info("promotion redeemed",
		"code", result.Promotion.Code,
		"organization_id", orgID,
		"discount_applied", discountApplied,
	)
	return redemption, nil
}

// rejection explains why the conditional increment matched no row. The
// promotion changed between validation and the write.
func (s *Service) rejection(tx *gorm.DB, promotionID uuid.UUID) error {
	var promo models.Promotion
	if err := tx.Where("id = ?", promotionID).First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.InvalidArgument(MsgNotFound)
		}
		return fmt.Errorf("loading promotion: %w", err)
	}
	if reason := evaluate(&promo, s.now(), nil, nil); reason != "" {
		return errs.InvalidArgument("%s", reason)
	}
	return errs.InvalidArgument(MsgLimitReached)
}
