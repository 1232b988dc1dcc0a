// Package promotions implements discount codes: their catalog, eligibility
// checks and redemption bookkeeping.
package promotions

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
	"github.com/vizora/entitlements/internal/metrics"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	dispatcher audit.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Collector
	now        func() time.Time
	random     io.Reader
}

func NewService(db *gorm.DB, dispatcher audit.Dispatcher, logger *slog.Logger, m *metrics.Collector) *Service {
	return &Service{
		db:         db,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
		random:     rand.Reader,
	}
}

// NormalizeCode is the stored form of a code. Lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type CreateInput struct {
	Code        string
	Name        string
	Description string

	DiscountType      models.DiscountType
	DiscountValue     float64
	Currency          string
	MinPurchaseAmount *int64

	MaxRedemptions *int
	MaxPerCustomer *int

	StartsAt  *time.Time
	ExpiresAt *time.Time
	IsActive  *bool

	PlanIDs  []uuid.UUID
	Metadata map[string]any
}

// UpdateInput is a partial update. Nil fields are left unchanged. A non-nil
// PlanIDs replaces the plan scope; an empty slice opens it to every plan.
// ClearMaxRedemptions removes the global cap and ClearExpiresAt makes the
// promotion open-ended; each conflicts with setting the same field.
type UpdateInput struct {
	Code        *string
	Name        *string
	Description *string

	DiscountType      *models.DiscountType
	DiscountValue     *float64
	Currency          *string
	MinPurchaseAmount *int64

	MaxRedemptions      *int
	MaxPerCustomer      *int
	ClearMaxRedemptions bool

	StartsAt       *time.Time
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	IsActive       *bool

	PlanIDs  *[]uuid.UUID
	Metadata map[string]any
}

func (s *Service) FindAll(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := s.db.WithContext(ctx).
		Preload("ApplicablePlans.Plan").
		Order("created_at DESC").
		Find(&promos).Error; err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return promos, nil
}

func (s *Service) FindOne(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	var promo models.Promotion
	if err := s.db.WithContext(ctx).
		Preload("ApplicablePlans.Plan").
		Where("id = ?", id).
		First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("Promotion with ID %s not found", id)
		}
		return nil, fmt.Errorf("loading promotion: %w", err)
	}
	return &promo, nil
}

func (s *Service) FindByCode(ctx context.Context, code string) (*models.Promotion, error) {
	code = NormalizeCode(code)
	var promo models.Promotion
	if err := s.db.WithContext(ctx).
		Preload("ApplicablePlans.Plan").
		Where("code = ?", code).
		First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("Promotion with code '%s' not found", code)
		}
		return nil, fmt.Errorf("loading promotion: %w", err)
	}
	return &promo, nil
}

func (s *Service) Create(ctx context.Context, actor audit.Actor, in CreateInput) (*models.Promotion, error) {
	code := NormalizeCode(in.Code)
	if code == "" {
		return nil, errs.InvalidArgument("Promotion code is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, errs.InvalidArgument("Promotion name is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if err := validateDiscount(in.DiscountType, in.DiscountValue, currency); err != nil {
		return nil, err
	}

	startsAt := s.now()
	if in.StartsAt != nil {
		startsAt = *in.StartsAt
	}
	if in.ExpiresAt != nil && in.ExpiresAt.Before(startsAt) {
		return nil, errs.InvalidArgument("Expiry must not be before the start date")
	}

	maxPerCustomer := 1
	if in.MaxPerCustomer != nil {
		maxPerCustomer = *in.MaxPerCustomer
	}
	if err := validateCaps(in.MaxRedemptions, maxPerCustomer); err != nil {
		return nil, err
	}

	taken, err := s.codeTaken(ctx, code, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errs.Conflict("Promotion with code '%s' already exists", code)
	}

	if err := s.checkPlans(ctx, s.db, in.PlanIDs); err != nil {
		return nil, err
	}

	meta, err := encodeMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}

	promo := &models.Promotion{
		Code:              code,
		Name:              in.Name,
		Description:       in.Description,
		DiscountType:      in.DiscountType,
		DiscountValue:     in.DiscountValue,
		Currency:          currency,
		MinPurchaseAmount: in.MinPurchaseAmount,
		MaxRedemptions:    in.MaxRedemptions,
		MaxPerCustomer:    maxPerCustomer,
		StartsAt:          startsAt,
		ExpiresAt:         in.ExpiresAt,
		IsActive:          true,
		Metadata:          meta,
	}
	if in.IsActive != nil {
		promo.IsActive = *in.IsActive
	}
	if actor.ID != uuid.Nil {
		createdBy := actor.ID
		promo.CreatedBy = &createdBy
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("ApplicablePlans", "Redemptions").Create(promo).Error; err != nil {
			return err
		}
		return replacePlanScope(tx, promo.ID, in.PlanIDs)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Conflict("Promotion with code '%s' already exists", code)
		}
		return nil, fmt.Errorf("creating promotion: %w", err)
	}

	s.logger.Info("promotion created", "id", promo.ID, "code", promo.Code)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionPromotionCreate, audit.TargetPromotion, promo.ID.String(), map[string]any{
		"code":          promo.Code,
		"discountType":  promo.DiscountType,
		"discountValue": promo.DiscountValue,
	}))
	return s.FindOne(ctx, promo.ID)
}

// Update applies a partial change. Discount fields are validated against
// the merged result so a type change cannot leave an invalid value behind.
func (s *Service) Update(ctx context.Context, actor audit.Actor, id uuid.UUID, in UpdateInput) (*models.Promotion, error) {
	promo, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})

	if in.Code != nil {
		code := NormalizeCode(*in.Code)
		if code == "" {
			return nil, errs.InvalidArgument("Promotion code is required")
		}
		if code != promo.Code {
			taken, err := s.codeTaken(ctx, code, id)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, errs.Conflict("Promotion with code '%s' already exists", code)
			}
		}
		updates["code"] = code
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, errs.InvalidArgument("Promotion name is required")
		}
		updates["name"] = *in.Name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}

	if in.DiscountType != nil || in.DiscountValue != nil || in.Currency != nil {
		dtype, value, currency := promo.DiscountType, promo.DiscountValue, promo.Currency
		if in.DiscountType != nil {
			dtype = *in.DiscountType
		}
		if in.DiscountValue != nil {
			value = *in.DiscountValue
		}
		if in.Currency != nil {
			currency = strings.ToUpper(strings.TrimSpace(*in.Currency))
		}
		if err := validateDiscount(dtype, value, currency); err != nil {
			return nil, err
		}
		updates["discount_type"] = dtype
		updates["discount_value"] = value
		updates["currency"] = currency
	}
	if in.MinPurchaseAmount != nil {
		updates["min_purchase_amount"] = *in.MinPurchaseAmount
	}

	if in.ClearMaxRedemptions && in.MaxRedemptions != nil {
		return nil, errs.InvalidArgument("Max redemptions cannot be set and cleared together")
	}
	if in.ClearExpiresAt && in.ExpiresAt != nil {
		return nil, errs.InvalidArgument("Expiry cannot be set and cleared together")
	}

	if in.MaxRedemptions != nil || in.MaxPerCustomer != nil || in.ClearMaxRedemptions {
		maxRedemptions, maxPerCustomer := promo.MaxRedemptions, promo.MaxPerCustomer
		switch {
		case in.ClearMaxRedemptions:
			maxRedemptions = nil
			updates["max_redemptions"] = nil
		case in.MaxRedemptions != nil:
			maxRedemptions = in.MaxRedemptions
			updates["max_redemptions"] = *in.MaxRedemptions
		}
		if in.MaxPerCustomer != nil {
			maxPerCustomer = *in.MaxPerCustomer
			updates["max_per_customer"] = *in.MaxPerCustomer
		}
		if err := validateCaps(maxRedemptions, maxPerCustomer); err != nil {
			return nil, err
		}
	}

	if in.StartsAt != nil || in.ExpiresAt != nil || in.ClearExpiresAt {
		startsAt, expiresAt := promo.StartsAt, promo.ExpiresAt
		if in.StartsAt != nil {
			startsAt = *in.StartsAt
			updates["starts_at"] = startsAt
		}
		switch {
		case in.ClearExpiresAt:
			expiresAt = nil
			updates["expires_at"] = nil
		case in.ExpiresAt != nil:
			expiresAt = in.ExpiresAt
			updates["expires_at"] = *in.ExpiresAt
		}
		if expiresAt != nil && expiresAt.Before(startsAt) {
			return nil, errs.InvalidArgument("Expiry must not be before the start date")
		}
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if in.Metadata != nil {
		meta, err := encodeMetadata(in.Metadata)
		if err != nil {
			return nil, err
		}
		updates["metadata"] = meta
	}

	if len(updates) == 0 && in.PlanIDs == nil {
		return promo, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Promotion{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}
		if in.PlanIDs != nil {
			if err := s.checkPlans(ctx, tx, *in.PlanIDs); err != nil {
				return err
			}
			if err := tx.Where("promotion_id = ?", id).Delete(&models.PlanPromotion{}).Error; err != nil {
				return err
			}
			return replacePlanScope(tx, id, *in.PlanIDs)
		}
		return nil
	})
	if err != nil {
		var domainErr *errs.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.Conflict("Promotion with code '%v' already exists", updates["code"])
		}
		return nil, fmt.Errorf("updating promotion: %w", err)
	}

	details := map[string]any{"changes": updates}
	if in.PlanIDs != nil {
		details["planIds"] = idStrings(*in.PlanIDs)
	}

	s.logger.Info("promotion updated", "id", id, "fields", len(updates))
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionPromotionUpdate, audit.TargetPromotion, id.String(), details))
	return s.FindOne(ctx, id)
}

// Delete removes a promotion that was never redeemed. Once redeemed it can
// only be deactivated, so the redemption history stays intact.
func (s *Service) Delete(ctx context.Context, actor audit.Actor, id uuid.UUID) error {
	promo, err := s.FindOne(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var redeemed int64
		if err := tx.Model(&models.PromotionRedemption{}).Where("promotion_id = ?", id).Count(&redeemed).Error; err != nil {
			return err
		}
		if redeemed > 0 {
			return errs.Conflict("Promotion '%s' has been redeemed %d times; deactivate it instead", promo.Code, redeemed)
		}
		if err := tx.Where("promotion_id = ?", id).Delete(&models.PlanPromotion{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Promotion{}).Error
	})
	if err != nil {
		var domainErr *errs.Error
		if errors.As(err, &domainErr) {
			return err
		}
		return fmt.Errorf("deleting promotion: %w", err)
	}

	s.logger.Info("promotion deleted", "id", id, "code", promo.Code)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionPromotionDelete, audit.TargetPromotion, id.String(), map[string]any{
		"code": promo.Code,
	}))
	return nil
}

// Redemptions lists a promotion's redemptions, newest first.
func (s *Service) Redemptions(ctx context.Context, promotionID uuid.UUID) ([]models.PromotionRedemption, error) {
	if _, err := s.FindOne(ctx, promotionID); err != nil {
		return nil, err
	}

	var rows []models.PromotionRedemption
	if err := s.db.WithContext(ctx).
		Where("promotion_id = ?", promotionID).
		Order("redeemed_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing redemptions: %w", err)
	}
	return rows, nil
}

func validateDiscount(t models.DiscountType, value float64, currency string) error {
	if !t.Valid() {
		return errs.InvalidArgument("Invalid discount type %q", t)
	}
	if t == models.DiscountPercentage && (value < 0 || value > 100) {
		return errs.InvalidArgument("Percentage discount must be between 0 and 100")
	}
	if t == models.DiscountFixedAmount && currency == "" {
		return errs.InvalidArgument("Currency is required for fixed amount discounts")
	}
	if value < 0 {
		return errs.InvalidArgument("Discount value must be non-negative")
	}
	return nil
}

func validateCaps(maxRedemptions *int, maxPerCustomer int) error {
	if maxRedemptions != nil && *maxRedemptions < 0 {
		return errs.InvalidArgument("Max redemptions must be non-negative")
	}
	if maxPerCustomer < 1 {
		return errs.InvalidArgument("Max redemptions per customer must be at least 1")
	}
	return nil
}

func (s *Service) codeTaken(ctx context.Context, code string, exclude uuid.UUID) (bool, error) {
	query := s.db.WithContext(ctx).Model(&models.Promotion{}).Where("code = ?", code)
	if exclude != uuid.Nil {
		query = query.Where("id <> ?", exclude)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking promotion code: %w", err)
	}
	return count > 0, nil
}

func (s *Service) checkPlans(ctx context.Context, db *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var found []uuid.UUID
	if err := db.WithContext(ctx).Model(&models.Plan{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return fmt.Errorf("loading plans: %w", err)
	}
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
	if len(missing) > 0 {
		return errs.NotFound("Plans not found: %s", strings.Join(missing, ", "))
	}
	return nil
}

func replacePlanScope(tx *gorm.DB, promotionID uuid.UUID, planIDs []uuid.UUID) error {
	if len(planIDs) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(planIDs))
	links := make([]models.PlanPromotion, 0, len(planIDs))
	for _, id := range planIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		links = append(links, models.PlanPromotion{PromotionID: promotionID, PlanID: id})
	}
	return tx.Create(&links).Error
}

func encodeMetadata(meta map[string]any) (datatypes.JSON, error) {
	if meta == nil {
		return nil, nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
