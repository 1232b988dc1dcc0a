package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/pkg/config"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

type Service struct {
	db      *gorm.DB
	jwt     *JWTService
	billing config.BillingConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(db *gorm.DB, jwt *JWTService, billing config.BillingConfig, logger *slog.Logger) *Service {
	return &Service{db: db, jwt: jwt, billing: billing, logger: logger, now: time.Now}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	OrgName  string // Optional: defaults to "<Name>'s Team"
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates the user and a new organization on the default plan,
// in trial status.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	orgSlug := generateSlug(input.OrgName)
	if input.OrgName == "" {
		input.OrgName = input.Name + "'s Team"
		orgSlug = generateSlug(input.Name)
	}

	screenQuota, err := s.defaultScreenQuota(ctx)
	if err != nil {
		return nil, err
	}

	trialEndsAt := s.now().Add(s.billing.TrialDuration())
	org := models.Organization{
		Name:               input.OrgName,
		Slug:               orgSlug,
		SubscriptionTier:   s.billing.DefaultPlanSlug,
		SubscriptionStatus: models.SubscriptionTrial,
		TrialEndsAt:        &trialEndsAt,
		ScreenQuota:        screenQuota,
		BillingEmail:       input.Email,
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return fmt.Errorf("creating organization: %w", err)
		}

		user = models.User{
			Email:          input.Email,
			PasswordHash:   hash,
			Name:           input.Name,
			OrganizationID: org.ID,
			Role:           models.RoleOwner,
			IsActive:       true,
		}

		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.Issue(PrincipalOf(&user))
	if err != nil {
		return nil, err
	}

	s.logger.Info("organization registered",
		"org_id", org.ID,
		"plan", org.SubscriptionTier,
		"trial_ends_at", trialEndsAt,
	)

	user.Organization = &org

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

// defaultScreenQuota reads the quota from the default plan, falling back to
// configuration when the catalog has not been seeded.
func (s *Service) defaultScreenQuota(ctx context.Context) (int, error) {
	var plan models.Plan
	err := s.db.WithContext(ctx).Select("screen_quota").Where("slug = ?", s.billing.DefaultPlanSlug).First(&plan).Error
	if err == nil {
		return plan.ScreenQuota, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.billing.DefaultScreenQuota, nil
	}
	return 0, fmt.Errorf("loading default plan: %w", err)
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Organization").
		Where("email = ?", input.Email).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.Issue(PrincipalOf(&user))
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Organization").
		Where("id = ?", id).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "'", "")
	// Add timestamp to ensure uniqueness
	return slug + "-" + time.Now().Format("0601021504")
}
