package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
	DiscountFreeMonths  DiscountType = "free_months"
)

func (d DiscountType) Valid() bool {
	switch d {
	case DiscountPercentage, DiscountFixedAmount, DiscountFreeMonths:
		return true
	}
	return false
}

type Promotion struct {
	Base
	Code        string `gorm:"uniqueIndex;not null" json:"code"` // stored upper-cased
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description,omitempty"`

	DiscountType      DiscountType `gorm:"not null" json:"discount_type"`
	DiscountValue     float64      `gorm:"not null" json:"discount_value"`
	Currency          string       `gorm:"size:3" json:"currency,omitempty"` // required for fixed_amount
	MinPurchaseAmount *int64       `json:"min_purchase_amount,omitempty"`

	// Redemption caps. MaxRedemptions nil = unlimited.
	MaxRedemptions     *int `json:"max_redemptions,omitempty"`
	MaxPerCustomer     int  `gorm:"not null" json:"max_per_customer"`
	CurrentRedemptions int  `gorm:"not null" json:"current_redemptions"`

	StartsAt  time.Time  `gorm:"not null" json:"starts_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  bool       `gorm:"index" json:"is_active"`

	CreatedBy *uuid.UUID     `gorm:"type:uuid" json:"created_by,omitempty"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`

	// Relationships
	ApplicablePlans []PlanPromotion       `gorm:"foreignKey:PromotionID" json:"applicable_plans,omitempty"`
	Redemptions     []PromotionRedemption `gorm:"foreignKey:PromotionID" json:"-"`
}

func (Promotion) TableName() string {
	return "promotions"
}

// PlanIDs returns the plan scope. An empty scope means every plan.
func (p *Promotion) PlanIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.ApplicablePlans))
	for _, pp := range p.ApplicablePlans {
		ids = append(ids, pp.PlanID)
	}
	return ids
}

// PlanPromotion scopes a promotion to a plan.
type PlanPromotion struct {
	PromotionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"promotion_id"`
	PlanID      uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"plan_id"`

	Plan *Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

func (PlanPromotion) TableName() string {
	return "plan_promotions"
}

// PromotionRedemption is written once by a redemption and never changed.
type PromotionRedemption struct {
	Base
	PromotionID     uuid.UUID `gorm:"type:uuid;index:idx_redemptions_promo_org;not null" json:"promotion_id"`
	OrganizationID  uuid.UUID `gorm:"type:uuid;index:idx_redemptions_promo_org;index;not null" json:"organization_id"`
	DiscountApplied int64     `gorm:"not null" json:"discount_applied"` // minor units
	RedeemedAt      time.Time `gorm:"not null;index" json:"redeemed_at"`

	Promotion *Promotion `gorm:"foreignKey:PromotionID" json:"-"`
}

func (PromotionRedemption) TableName() string {
	return "promotion_redemptions"
}
