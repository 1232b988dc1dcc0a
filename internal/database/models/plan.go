package models

import "gorm.io/datatypes"

// Plan is a purchasable tier. Plans are never hard-deleted: invoices and
// promotions keep referencing them after IsActive is cleared.
type Plan struct {
	Base
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description,omitempty"`

	// Quotas
	ScreenQuota    int `gorm:"not null" json:"screen_quota"` // -1 = unlimited
	StorageQuotaMB int `gorm:"not null" json:"storage_quota_mb"`
	APIRateLimit   int `gorm:"not null" json:"api_rate_limit"`

	// Prices in minor units (cents / paise)
	PriceUSDMonthly int64 `gorm:"not null" json:"price_usd_monthly"`
	PriceUSDYearly  int64 `gorm:"not null" json:"price_usd_yearly"`
	PriceINRMonthly int64 `gorm:"not null" json:"price_inr_monthly"`
	PriceINRYearly  int64 `gorm:"not null" json:"price_inr_yearly"`

	// Payment provider identifiers
	StripePriceIDMonthly  string `json:"stripe_price_id_monthly,omitempty"`
	StripePriceIDYearly   string `json:"stripe_price_id_yearly,omitempty"`
	RazorpayPlanIDMonthly string `json:"razorpay_plan_id_monthly,omitempty"`
	RazorpayPlanIDYearly  string `json:"razorpay_plan_id_yearly,omitempty"`

	Features     datatypes.JSON `json:"features"`                // JSON array of feature keys
	FeatureFlags datatypes.JSON `json:"feature_flags,omitempty"` // JSON object

	IsActive      bool   `gorm:"index" json:"is_active"`
	IsPublic      bool   `gorm:"index" json:"is_public"`
	SortOrder     int    `gorm:"index" json:"sort_order"`
	HighlightText string `json:"highlight_text,omitempty"`
}

func (Plan) TableName() string {
	return "plans"
}
