package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/api/validation"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/promotions"
)

type CreatePromotionRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	DiscountType      string  `json:"discount_type"`
	DiscountValue     float64 `json:"discount_value"`
	Currency          string  `json:"currency,omitempty"`
	MinPurchaseAmount *int64  `json:"min_purchase_amount,omitempty"`

	MaxRedemptions *int `json:"max_redemptions,omitempty"`
	MaxPerCustomer *int `json:"max_per_customer,omitempty"`

	StartsAt  *time.Time `json:"starts_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  *bool      `json:"is_active,omitempty"`

	PlanIDs  []string       `json:"plan_ids,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (r CreatePromotionRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Code) == "" {
		errors["code"] = "Code is required"
	} else if !validation.IsValidPromoCode(r.Code) {
		errors["code"] = "Code must be 2-50 letters, digits, hyphens or underscores"
	}
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if r.DiscountType == "" {
		errors["discount_type"] = "Discount type is required"
	}
	if r.Currency != "" && !validation.IsValidCurrency(r.Currency) {
		errors["currency"] = "Currency must be a 3-letter ISO code"
	}
	validatePlanIDs(errors, r.PlanIDs)

	return errors
}

func (r CreatePromotionRequest) Input() promotions.CreateInput {
	in := promotions.CreateInput{
		Code:                 r.Code,
		Name:              strings.TrimSpace(r.Name),
		Description:          r.Description,
		DiscountType:      models.DiscountType(r.DiscountType),
		DiscountValue:        r.DiscountValue,
		Currency:             r.Currency,
		MinPurchaseAmount:    r.MinPurchaseAmount,
		MaxRedemptions:    r.MaxRedemptions,
		MaxPerCustomer:    r.MaxPerCustomer,
		StartsAt:          r.StartsAt,
		ExpiresAt:         r.ExpiresAt,
		IsActive:          r.IsActive,
		Metadata:          r.Metadata,
	}
	if len(r.PlanIDs) > 0 {
		in.PlanIDs = parseIDs(r.PlanIDs)
	}
	return in
}

// UpdatePromotionRequest is a partial update. A present plan_ids replaces
// the whole scope; an empty list opens the promotion to every plan.
type UpdatePromotionRequest struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`

	DiscountType      *string  `json:"discount_type,omitempty"`
	DiscountValue     *float64 `json:"discount_value,omitempty"`
	Currency          *string  `json:"currency,omitempty"`
	MinPurchaseAmount *int64   `json:"min_purchase_amount,omitempty"`

	MaxRedemptions      *int `json:"max_redemptions,omitempty"`
	MaxPerCustomer      *int `json:"max_per_customer,omitempty"`
	ClearMaxRedemptions bool `json:"clear_max_redemptions,omitempty"`

	StartsAt       *time.Time `json:"starts_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ClearExpiresAt bool       `json:"clear_expires_at,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`

	PlanIDs  *[]string      `json:"plan_ids,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (r UpdatePromotionRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Code != nil && !validation.IsValidPromoCode(*r.Code) {
		errors["code"] = "Code must be 2-50 letters, digits, hyphens or underscores"
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "Name must not be empty"
	}
	if r.Currency != nil && *r.Currency != "" && !validation.IsValidCurrency(*r.Currency) {
		errors["currency"] = "Currency must be a 3-letter ISO code"
	}
	if r.ClearMaxRedemptions && r.MaxRedemptions != nil {
		errors["max_redemptions"] = "Cannot set and clear max redemptions together"
	}
	if r.ClearExpiresAt && r.ExpiresAt != nil {
		errors["expires_at"] = "Cannot set and clear the expiry together"
	}
	if r.PlanIDs != nil {
		validatePlanIDs(errors, *r.PlanIDs)
	}

	return errors
}

func (r UpdatePromotionRequest) Input() promotions.UpdateInput {
	in := promotions.UpdateInput{
		Code:                r.Code,
		Name:                r.Name,
		Description:         r.Description,
		DiscountValue:       r.DiscountValue,
		Currency:            r.Currency,
		MinPurchaseAmount:   r.MinPurchaseAmount,
		MaxRedemptions:      r.MaxRedemptions,
		MaxPerCustomer:      r.MaxPerCustomer,
		ClearMaxRedemptions: r.ClearMaxRedemptions,
		StartsAt:            r.StartsAt,
		ExpiresAt:           r.ExpiresAt,
		ClearExpiresAt:      r.ClearExpiresAt,
		IsActive:            r.IsActive,
		Metadata:            r.Metadata,
	}
	if r.DiscountType != nil {
		t := models.DiscountType(*r.DiscountType)
		in.DiscountType = &t
	}
	if r.PlanIDs != nil {
		ids := parseIDs(*r.PlanIDs)
		in.PlanIDs = &ids
	}
	return in
}

type ValidatePromotionRequest struct {
	Code   string  `json:"code"`
	PlanID *string `json:"plan_id,omitempty"`
}

func (r ValidatePromotionRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Code) == "" {
		errors["code"] = "Code is required"
	}
	if r.PlanID != nil && !validation.IsValidUUID(*r.PlanID) {
		errors["plan_id"] = "Invalid plan ID format"
	}

	return errors
}

// Plan returns the parsed plan id, or nil when none was given.
func (r ValidatePromotionRequest) Plan() *uuid.UUID {
	if r.PlanID == nil {
		return nil
	}
	id, err := uuid.Parse(*r.PlanID)
	if err != nil {
		return nil
	}
	return &id
}

type RedeemPromotionRequest struct {
	Code            string `json:"code"`
	DiscountApplied int64  `json:"discount_applied"`
}

func (r RedeemPromotionRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Code) == "" {
		errors["code"] = "Code is required"
	}
	if r.DiscountApplied < 0 {
		errors["discount_applied"] = "Discount must not be negative"
	}

	return errors
}

type BulkGenerateRequest struct {
	Prefix string `json:"prefix"`
	Count  int    `json:"count"`
}

func (r BulkGenerateRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Prefix) == "" {
		errors["prefix"] = "Prefix is required"
	}
	if r.Count < 1 || r.Count > 1000 {
		errors["count"] = "Count must be between 1 and 1000"
	}

	return errors
}

type BulkGenerateResponse struct {
	Codes []string `json:"codes"`
	Count int      `json:"count"`
}

func validatePlanIDs(errors map[string]string, ids []string) {
	for _, id := range ids {
		if !validation.IsValidUUID(id) {
			errors["plan_ids"] = "Invalid plan ID format: " + id
			return
		}
	}
}
