package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminAuditLog is append-only. Nothing in this codebase updates or deletes it.
type AdminAuditLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	AdminUserID uuid.UUID      `gorm:"type:uuid;index;not null" json:"admin_user_id"`
	Action      string         `gorm:"size:100;index;not null" json:"action"` // e.g. plan.create
	TargetType  string         `gorm:"size:50;index:idx_audit_target" json:"target_type,omitempty"`
	TargetID    string         `gorm:"size:100;index:idx_audit_target" json:"target_id,omitempty"`
	Details     datatypes.JSON `json:"details,omitempty"`
	IPAddress   string         `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	CreatedAt   time.Time      `gorm:"index;not null" json:"created_at"`
}

func (AdminAuditLog) TableName() string {
	return "admin_audit_logs"
}

func (a *AdminAuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}
