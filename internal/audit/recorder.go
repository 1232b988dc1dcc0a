// Package audit keeps the append-only trail of administrative actions.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Action names recorded by the admin surface.
const (
	ActionPlanCreate    = "plan.create"
	ActionPlanUpdate    = "plan.update"
	ActionPlanDelete    = "plan.delete"
	ActionPlanDuplicate = "plan.duplicate"
	ActionPlanReorder   = "plan.reorder"

	ActionPromotionCreate       = "promotion.create"
	ActionPromotionUpdate       = "promotion.update"
	ActionPromotionDelete       = "promotion.delete"
	ActionPromotionBulkGenerate = "promotion.bulk_generate"

	ActionOrganizationUpdate      = "organization.update"
	ActionOrganizationExtendTrial = "organization.extend_trial"
	ActionOrganizationSuspend     = "organization.suspend"
	ActionOrganizationUnsuspend   = "organization.unsuspend"
	ActionOrganizationDelete      = "organization.delete"

	ActionUserDisable          = "user.disable"
	ActionUserEnable           = "user.enable"
	ActionUserGrantSuperAdmin  = "user.grant_super_admin"
	ActionUserRevokeSuperAdmin = "user.revoke_super_admin"
	ActionUserResetPassword    = "user.reset_password"
)

const (
	TargetPlan         = "plan"
	TargetPromotion    = "promotion"
	TargetOrganization = "organization"
	TargetUser         = "user"
)

// Entry is one record to append. Details is marshaled to JSON.
type Entry struct {
	ActorID    uuid.UUID
	Action     string
	TargetType string
	TargetID   string
	Details    any
	IPAddress  string
	UserAgent  string
}

// Actor identifies who performed an admin mutation and from where.
type Actor struct {
	ID        uuid.UUID
	IPAddress string
	UserAgent string
}

// Entry builds an audit entry attributed to the actor.
func (a Actor) Entry(action, targetType, targetID string, details any) Entry {
	return Entry{
		ActorID:    a.ID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		IPAddress:  a.IPAddress,
		UserAgent:  a.UserAgent,
	}
}

type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// Log appends one record and returns it. Records are never updated.
func (r *Recorder) Log(ctx context.Context, e Entry) (*models.AdminAuditLog, error) {
	if e.ActorID == uuid.Nil {
		return nil, errs.InvalidArgument("Audit entry requires an actor")
	}
	action := strings.TrimSpace(e.Action)
	if action == "" {
		return nil, errs.InvalidArgument("Audit entry requires an action")
	}

	var details datatypes.JSON
	if e.Details != nil {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return nil, fmt.Errorf("encoding audit details: %w", err)
		}
		details = datatypes.JSON(raw)
	}

	entry := &models.AdminAuditLog{
		AdminUserID: e.ActorID,
		Action:      action,
		TargetType:  e.TargetType,
		TargetID:    e.TargetID,
		Details:     details,
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		CreatedAt:   r.now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("writing audit entry: %w", err)
	}
	return entry, nil
}

// Filter narrows FindAll. Zero fields do not filter.
type Filter struct {
	ActorID    *uuid.UUID
	Action     string
	TargetType string
	TargetID   string
	StartDate  *time.Time
	EndDate    *time.Time
}

type Page struct {
	Data       []models.AdminAuditLog `json:"data"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"totalPages"`
}

const (
	defaultLimit = 50
	maxLimit     = 100
)

// FindAll returns matching records, newest first.
func (r *Recorder) FindAll(ctx context.Context, f Filter, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	query := r.db.WithContext(ctx).Model(&models.AdminAuditLog{})
	if f.ActorID != nil {
		query = query.Where("admin_user_id = ?", *f.ActorID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.TargetType != "" {
		query = query.Where("target_type = ?", f.TargetType)
	}
	if f.TargetID != "" {
		query = query.Where("target_id = ?", f.TargetID)
	}
	if f.StartDate != nil {
		query = query.Where("created_at >= ?", f.StartDate.UTC())
	}
	if f.EndDate != nil {
		query = query.Where("created_at <= ?", f.EndDate.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	var entries []models.AdminAuditLog
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}

	return &Page{
		Data:       entries,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (r *Recorder) Get(ctx context.Context, id uuid.UUID) (*models.AdminAuditLog, error) {
	var entry models.AdminAuditLog
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("Audit log entry %s not found", id)
		}
		return nil, fmt.Errorf("loading audit entry: %w", err)
	}
	return &entry, nil
}

// LatestForTarget returns the newest record about a target, or nil.
func (r *Recorder) LatestForTarget(ctx context.Context, targetType, targetID string) (*models.AdminAuditLog, error) {
	var entries []models.AdminAuditLog
	if err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at DESC").
		Limit(1).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("loading latest audit entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}
