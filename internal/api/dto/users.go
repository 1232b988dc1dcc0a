package dto

import (
	"time"

	"github.com/vizora/entitlements/internal/database/models"
)

// AdminUserDTO is a console account as operators see it.
type AdminUserDTO struct {
	ID            string               `json:"id"`
	Email         string               `json:"email"`
	Name          string               `json:"name"`
	Role          string               `json:"role"`
	IsActive      bool                 `json:"is_active"`
	IsSuperAdmin  bool                 `json:"is_super_admin"`
	EmailVerified bool                 `json:"email_verified"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Organization  *OrganizationSummary `json:"organization,omitempty"`
}

type OrganizationSummary struct {
	ID                 string                    `json:"id"`
	Name               string                    `json:"name"`
	Slug               string                    `json:"slug"`
	SubscriptionTier   string                    `json:"subscription_tier"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscription_status"`
}

func AdminUserFromModel(u *models.User) AdminUserDTO {
	d := AdminUserDTO{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		IsActive:      u.IsActive,
		IsSuperAdmin:  u.IsSuperAdmin,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if org := u.Organization; org != nil {
		d.Organization = &OrganizationSummary{
			ID:                 org.ID.String(),
			Name:               org.Name,
			Slug:               org.Slug,
			SubscriptionTier:   org.SubscriptionTier,
			SubscriptionStatus: org.SubscriptionStatus,
		}
	}
	return d
}

func AdminUsersFromModels(users []models.User) []AdminUserDTO {
	out := make([]AdminUserDTO, len(users))
	for i := range users {
		out[i] = AdminUserFromModel(&users[i])
	}
	return out
}

type ResetPasswordResponse struct {
	TemporaryPassword string `json:"temporary_password"`
}
