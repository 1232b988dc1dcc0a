package dto

import (
	"strings"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/api/validation"
	"github.com/vizora/entitlements/internal/plans"
)

type CreatePlanRequest struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	ScreenQuota    int  `json:"screen_quota"`
	StorageQuotaMB *int `json:"storage_quota_mb,omitempty"`
	APIRateLimit   *int `json:"api_rate_limit,omitempty"`

	PriceUSDMonthly int64 `json:"price_usd_monthly"`
	PriceUSDYearly  int64 `json:"price_usd_yearly"`
	PriceINRMonthly int64 `json:"price_inr_monthly"`
	PriceINRYearly  int64 `json:"price_inr_yearly"`

	StripePriceIDMonthly  string `json:"stripe_price_id_monthly,omitempty"`
	StripePriceIDYearly   string `json:"stripe_price_id_yearly,omitempty"`
	RazorpayPlanIDMonthly string `json:"razorpay_plan_id_monthly,omitempty"`
	RazorpayPlanIDYearly  string `json:"razorpay_plan_id_yearly,omitempty"`

	Features     []string       `json:"features,omitempty"`
	FeatureFlags map[string]any `json:"feature_flags,omitempty"`

	IsActive      *bool  `json:"is_active,omitempty"`
	IsPublic      *bool  `json:"is_public,omitempty"`
	SortOrder     int    `json:"sort_order"`
	HighlightText string `json:"highlight_text,omitempty"`
}

func (r CreatePlanRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Slug == "" {
		errors["slug"] = "Slug is required"
	} else if !validation.IsValidSlug(r.Slug) {
		errors["slug"] = "Slug must be lowercase letters, digits and hyphens"
	}
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	validateQuota(errors, "screen_quota", &r.ScreenQuota)
	validateNonNegative(errors, "storage_quota_mb", r.StorageQuotaMB)
	validateNonNegative(errors, "api_rate_limit", r.APIRateLimit)
	validatePrices(errors, &r.PriceUSDMonthly, &r.PriceUSDYearly, &r.PriceINRMonthly, &r.PriceINRYearly)

	return errors
}

func (r CreatePlanRequest) Input() plans.CreateInput {
	return plans.CreateInput{
		Slug:                  r.Slug,
		Name:                  strings.TrimSpace(r.Name),
		Description:           r.Description,
		ScreenQuota:           r.ScreenQuota,
		StorageQuotaMB:        r.StorageQuotaMB,
		APIRateLimit:          r.APIRateLimit,
		PriceUSDMonthly:       r.PriceUSDMonthly,
		PriceUSDYearly:        r.PriceUSDYearly,
		PriceINRMonthly:       r.PriceINRMonthly,
		PriceINRYearly:        r.PriceINRYearly,
		StripePriceIDMonthly:  r.StripePriceIDMonthly,
		StripePriceIDYearly:   r.StripePriceIDYearly,
		RazorpayPlanIDMonthly: r.RazorpayPlanIDMonthly,
		RazorpayPlanIDYearly:  r.RazorpayPlanIDYearly,
		Features:              r.Features,
		FeatureFlags:          r.FeatureFlags,
		IsActive:              r.IsActive,
		IsPublic:              r.IsPublic,
		SortOrder:             r.SortOrder,
		HighlightText:         r.HighlightText,
	}
}

// UpdatePlanRequest is a partial update; omitted fields are unchanged.
type UpdatePlanRequest struct {
	Slug        *string `json:"slug,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`

	ScreenQuota    *int `json:"screen_quota,omitempty"`
	StorageQuotaMB *int `json:"storage_quota_mb,omitempty"`
	APIRateLimit   *int `json:"api_rate_limit,omitempty"`

	PriceUSDMonthly *int64 `json:"price_usd_monthly,omitempty"`
	PriceUSDYearly  *int64 `json:"price_usd_yearly,omitempty"`
	PriceINRMonthly *int64 `json:"price_inr_monthly,omitempty"`
	PriceINRYearly  *int64 `json:"price_inr_yearly,omitempty"`

	StripePriceIDMonthly  *string `json:"stripe_price_id_monthly,omitempty"`
	StripePriceIDYearly   *string `json:"stripe_price_id_yearly,omitempty"`
	RazorpayPlanIDMonthly *string `json:"razorpay_plan_id_monthly,omitempty"`
	RazorpayPlanIDYearly  *string `json:"razorpay_plan_id_yearly,omitempty"`

	Features     *[]string      `json:"features,omitempty"`
	FeatureFlags map[string]any `json:"feature_flags,omitempty"`

	IsActive      *bool   `json:"is_active,omitempty"`
	IsPublic      *bool   `json:"is_public,omitempty"`
	SortOrder     *int    `json:"sort_order,omitempty"`
	HighlightText *string `json:"highlight_text,omitempty"`
}

func (r UpdatePlanRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Slug != nil && !validation.IsValidSlug(*r.Slug) {
		errors["slug"] = "Slug must be lowercase letters, digits and hyphens"
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "Name must not be empty"
	}
	if r.ScreenQuota != nil {
		validateQuota(errors, "screen_quota", r.ScreenQuota)
	}
	validateNonNegative(errors, "storage_quota_mb", r.StorageQuotaMB)
	validateNonNegative(errors, "api_rate_limit", r.APIRateLimit)
	validatePrices(errors, r.PriceUSDMonthly, r.PriceUSDYearly, r.PriceINRMonthly, r.PriceINRYearly)

	return errors
}

func (r UpdatePlanRequest) Input() plans.UpdateInput {
	return plans.UpdateInput{
		Slug:                  r.Slug,
		Name:                  r.Name,
		Description:           r.Description,
		ScreenQuota:           r.ScreenQuota,
		StorageQuotaMB:        r.StorageQuotaMB,
		APIRateLimit:          r.APIRateLimit,
		PriceUSDMonthly:       r.PriceUSDMonthly,
		PriceUSDYearly:        r.PriceUSDYearly,
		PriceINRMonthly:       r.PriceINRMonthly,
		PriceINRYearly:        r.PriceINRYearly,
		StripePriceIDMonthly:  r.StripePriceIDMonthly,
		StripePriceIDYearly:   r.StripePriceIDYearly,
		RazorpayPlanIDMonthly: r.RazorpayPlanIDMonthly,
		RazorpayPlanIDYearly:  r.RazorpayPlanIDYearly,
		Features:              r.Features,
		FeatureFlags:          r.FeatureFlags,
		IsActive:              r.IsActive,
		IsPublic:              r.IsPublic,
		SortOrder:             r.SortOrder,
		HighlightText:         r.HighlightText,
	}
}

type ReorderPlansRequest struct {
	PlanIDs []string `json:"plan_ids"`
}

func (r ReorderPlansRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if len(r.PlanIDs) == 0 {
		errors["plan_ids"] = "At least one plan ID is required"
		return errors
	}
	for _, id := range r.PlanIDs {
		if !validation.IsValidUUID(id) {
			errors["plan_ids"] = "Invalid plan ID format: " + id
			break
		}
	}

	return errors
}

// IDs parses PlanIDs. Call Validate first.
func (r ReorderPlansRequest) IDs() []uuid.UUID {
	return parseIDs(r.PlanIDs)
}

func validateQuota(errors map[string]string, field string, v *int) {
	if v != nil && *v < -1 {
		errors[field] = "Quota must be -1 (unlimited) or greater"
	}
}

func validateNonNegative(errors map[string]string, field string, v *int) {
	if v != nil && *v < 0 {
		errors[field] = "Must not be negative"
	}
}

func validatePrices(errors map[string]string, prices ...*int64) {
	for _, p := range prices {
		if p != nil && *p < 0 {
			errors["price"] = "Prices must not be negative"
			return
		}
	}
}

func parseIDs(raw []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
