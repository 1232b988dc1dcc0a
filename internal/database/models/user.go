package models

import "github.com/google/uuid"

// Organization roles. Owners and admins manage billing for their tenant.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index" json:"organization_id"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	Name           string    `json:"name"`
	PasswordHash   string    `gorm:"not null" json:"-"`
	Role           string    `gorm:"default:'member'" json:"role"`
	IsActive       bool      `json:"is_active"`
	EmailVerified  bool      `json:"email_verified"`

	// Platform operators; grants the admin console regardless of org role.
	IsSuperAdmin bool `gorm:"index" json:"is_super_admin"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (User) TableName() string {
	return "users"
}

