// Package users is the platform operator's view of console accounts across
// every organization: lookup, disabling, password resets and the super
// admin grant.
package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/auth"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
	"gorm.io/gorm"
)

const (
	temporaryPasswordLen     = 16
	temporaryPasswordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
)

type Service struct {
	db         *gorm.DB
	dispatcher audit.Dispatcher
	logger     *slog.Logger
}

func NewService(db *gorm.DB, dispatcher audit.Dispatcher, logger *slog.Logger) *Service {
	return &Service{db: db, dispatcher: dispatcher, logger: logger}
}

// Filter narrows FindAll. Zero fields do not filter.
type Filter struct {
	Search         string // matches email or name
	OrganizationID uuid.UUID
	Role           string
	IsActive       *bool
	IsSuperAdmin   *bool

	Page    int
	PerPage int

	SortBy    string // created_at, email or name
	SortOrder string // asc or desc
}

type ListResult struct {
	Data       []models.User `json:"data"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalPages int           `json:"total_pages"`
}

var sortColumns = map[string]string{
	"":           "created_at",
	"createdAt":  "created_at",
	"created_at": "created_at",
	"email":      "email",
	"name":       "name",
}

func (s *Service) FindAll(ctx context.Context, f Filter) (*ListResult, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
	column, ok := sortColumns[f.SortBy]
	if !ok {
		return nil, errs.InvalidArgument("Cannot sort by %q", f.SortBy)
	}
	direction := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		direction = "ASC"
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", pattern, pattern)
	}
	if f.OrganizationID != uuid.Nil {
		query = query.Where("organization_id = ?", f.OrganizationID)
	}
	if f.Role != "" {
		query = query.Where("role = ?", f.Role)
	}
	if f.IsActive != nil {
		query = query.Where("is_active = ?", *f.IsActive)
	}
	if f.IsSuperAdmin != nil {
		query = query.Where("is_super_admin = ?", *f.IsSuperAdmin)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	var users []models.User
	if err := query.
		Preload("Organization").
		Order(column + " " + direction).
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	return &ListResult{
		Data:       users,
		Total:      total,
		Page:       f.Page,
		PerPage:    f.PerPage,
		TotalPages: int(math.Ceil(float64(total) / float64(f.PerPage))),
	}, nil
}

func (s *Service) FindOne(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Organization").Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("User with ID %s not found", id)
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &user, nil
}

// SuperAdmins lists every operator account, oldest first.
func (s *Service) SuperAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).
		Preload("Organization").
		Where("is_super_admin = ?", true).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing super admins: %w", err)
	}
	return users, nil
}

// Disable blocks the account from signing in. Operators cannot disable
// themselves.
func (s *Service) Disable(ctx context.Context, actor audit.Actor, id uuid.UUID) (*models.User, error) {
	if actor.ID == id {
		return nil, errs.InvalidArgument("You cannot disable your own account")
	}
	user, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errs.InvalidArgument("User is already disabled")
	}

	if err := s.setFlag(ctx, id, "is_active", false); err != nil {
		return nil, fmt.Errorf("disabling user: %w", err)
	}

	s.logger.Info("user disabled", "id", id, "email", user.Email)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionUserDisable, audit.TargetUser, id.String(), map[string]any{
		"email":          user.Email,
		"organizationId": user.OrganizationID,
	}))
	return s.FindOne(ctx, id)
}

func (s *Service) Enable(ctx context.Context, actor audit.Actor, id uuid.UUID) (*models.User, error) {
	user, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive {
		return nil, errs.InvalidArgument("User is already active")
	}

	if err := s.setFlag(ctx, id, "is_active", true); err != nil {
		return nil, fmt.Errorf("enabling user: %w", err)
	}

	s.logger.Info("user enabled", "id", id, "email", user.Email)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionUserEnable, audit.TargetUser, id.String(), map[string]any{
		"email":          user.Email,
		"organizationId": user.OrganizationID,
	}))
	return s.FindOne(ctx, id)
}

func (s *Service) GrantSuperAdmin(ctx context.Context, actor audit.Actor, id uuid.UUID) (*models.User, error) {
	user, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		return nil, errs.InvalidArgument("User is already a super admin")
	}
	if !user.IsActive {
		return nil, errs.InvalidArgument("Cannot grant super admin to a disabled user")
	}

	if err := s.setFlag(ctx, id, "is_super_admin", true); err != nil {
		return nil, fmt.Errorf("granting super admin: %w", err)
	}

	s.logger.Warn("super admin granted", "id", id, "email", user.Email, "actor_id", actor.ID)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionUserGrantSuperAdmin, audit.TargetUser, id.String(), map[string]any{
		"email": user.Email,
	}))
	return s.FindOne(ctx, id)
}

// RevokeSuperAdmin removes operator access. The last super admin is kept:
// the update only matches while another super admin exists.
func (s *Service) RevokeSuperAdmin(ctx context.Context, actor audit.Actor, id uuid.UUID) (*models.User, error) {
	if actor.ID == id {
		return nil, errs.InvalidArgument("You cannot revoke your own super admin access")
	}
	user, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsSuperAdmin {
		return nil, errs.InvalidArgument("User is not a super admin")
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_super_admin = ?", id, true).
		Where("(SELECT COUNT(*) FROM users WHERE is_super_admin = ?) > 1", true).
		Update("is_super_admin", false)
	if res.Error != nil {
		return nil, fmt.Errorf("revoking super admin: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errs.InvalidArgument("Cannot revoke: at least one super admin must exist")
	}

	s.logger.Warn("super admin revoked", "id", id, "email", user.Email, "actor_id", actor.ID)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionUserRevokeSuperAdmin, audit.TargetUser, id.String(), map[string]any{
		"email": user.Email,
	}))
	return s.FindOne(ctx, id)
}

// ResetPassword replaces the password with a random one and returns it.
// The plaintext is shown to the operator once and never stored or audited.
func (s *Service) ResetPassword(ctx context.Context, actor audit.Actor, id uuid.UUID) (string, error) {
	user, err := s.FindOne(ctx, id)
	if err != nil {
		return "", err
	}

	password, err := temporaryPassword()
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash).Error; err != nil {
		return "", fmt.Errorf("resetting password: %w", err)
	}

	s.logger.Info("user password reset", "id", id, "email", user.Email)
	s.dispatcher.Dispatch(ctx, actor.Entry(audit.ActionUserResetPassword, audit.TargetUser, id.String(), map[string]any{
		"email": user.Email,
	}))
	return password, nil
}

func (s *Service) setFlag(ctx context.Context, id uuid.UUID, column string, value bool) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value).Error
}

// temporaryPassword draws from temporaryPasswordCharset until the result
// has an upper-case letter, a lower-case letter and a digit, so it passes
// the console's password rules.
func temporaryPassword() (string, error) {
	limit := big.NewInt(int64(len(temporaryPasswordCharset)))
	buf := make([]byte, temporaryPasswordLen)
	for {
		for i := range buf {
			n, err := rand.Int(rand.Reader, limit)
			if err != nil {
				return "", err
			}
			buf[i] = temporaryPasswordCharset[n.Int64()]
		}
		if hasClasses(string(buf)) {
			return string(buf), nil
		}
	}
}

func hasClasses(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
