package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCanceled  SubscriptionStatus = "canceled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionTrial, SubscriptionActive, SubscriptionPastDue, SubscriptionSuspended, SubscriptionCanceled:
		return true
	}
	return false
}

// UnlimitedQuota disables a quota check entirely.
const UnlimitedQuota = -1

type Organization struct {
	Base
	Name string `gorm:"not null" json:"name"`
	Slug string `gorm:"uniqueIndex;not null" json:"slug"`

	// Subscription
	SubscriptionTier   string             `gorm:"not null;index" json:"subscription_tier"` // plan slug
	SubscriptionStatus SubscriptionStatus `gorm:"not null;index" json:"subscription_status"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at,omitempty"`
	ScreenQuota        int                `gorm:"not null" json:"screen_quota"` // -1 = unlimited

	BillingEmail string `json:"billing_email,omitempty"`
	Country      string `gorm:"size:2" json:"country,omitempty"`

	// Suspension snapshot, populated only while status is suspended
	PreviousStatus  *SubscriptionStatus `json:"previous_status,omitempty"`
	SuspendedAt     *time.Time          `json:"suspended_at,omitempty"`
	SuspendedReason string              `json:"suspended_reason,omitempty"`

	// Relationships
	Users     []User     `gorm:"foreignKey:OrganizationID" json:"-"`
	Displays  []Display  `gorm:"foreignKey:OrganizationID" json:"-"`
	Content   []Content  `gorm:"foreignKey:OrganizationID" json:"-"`
	Playlists []Playlist `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}
