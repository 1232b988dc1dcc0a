package dto

import (
	"strings"
	"time"

	"github.com/vizora/entitlements/internal/api/validation"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/organizations"
)

type UpdateOrganizationRequest struct {
	Name               *string    `json:"name,omitempty"`
	SubscriptionTier   *string    `json:"subscription_tier,omitempty"`
	SubscriptionStatus *string    `json:"subscription_status,omitempty"`
	ScreenQuota        *int       `json:"screen_quota,omitempty"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	Country            *string    `json:"country,omitempty"`
	BillingEmail       *string    `json:"billing_email,omitempty"`
}

func (r UpdateOrganizationRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "Name must not be empty"
	}
	if r.ScreenQuota != nil {
		validateQuota(errors, "screen_quota", r.ScreenQuota)
	}
	if r.Country != nil && *r.Country != "" && !validation.IsValidCountry(*r.Country) {
		errors["country"] = "Country must be a 2-letter ISO code"
	}
	if r.BillingEmail != nil && *r.BillingEmail != "" && !validation.IsValidEmail(*r.BillingEmail) {
		errors["billing_email"] = "Invalid email address"
	}

	return errors
}

func (r UpdateOrganizationRequest) Input() organizations.UpdateInput {
	in := organizations.UpdateInput{
		Name:             r.Name,
		SubscriptionTier: r.SubscriptionTier,
		ScreenQuota:      r.ScreenQuota,
		TrialEndsAt:      r.TrialEndsAt,
		Country:          r.Country,
		BillingEmail:     r.BillingEmail,
	}
	if r.SubscriptionStatus != nil {
		s := models.SubscriptionStatus(*r.SubscriptionStatus)
		in.SubscriptionStatus = &s
	}
	return in
}

type ExtendTrialRequest struct {
	Days int `json:"days"`
}

func (r ExtendTrialRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Days <= 0 {
		errors["days"] = "Days must be positive"
	}
	return errors
}

type SuspendOrganizationRequest struct {
	Reason string `json:"reason"`
}

func (r SuspendOrganizationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Reason) == "" {
		errors["reason"] = "Reason is required"
	}
	return errors
}

// CleanReason is the reason as stored on the organization.
func (r SuspendOrganizationRequest) CleanReason() string {
	return validation.TruncateString(validation.SanitizeString(strings.TrimSpace(r.Reason)), 500)
}

type CreateDisplayRequest struct {
	Name             string `json:"name"`
	DeviceIdentifier string `json:"device_identifier,omitempty"`
	Location         string `json:"location,omitempty"`
}

func (r CreateDisplayRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	return errors
}
