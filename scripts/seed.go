//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/auth"
	"github.com/vizora/entitlements/internal/database"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
	"github.com/vizora/entitlements/internal/plans"
	"github.com/vizora/entitlements/pkg/config"
	"github.com/vizora/entitlements/pkg/util"
)

func intPtr(v int) *int { return &v }

var catalog = []plans.CreateInput{
	{
		Slug: "free", Name: "Free", Description: "Try Vizora on a few screens",
		ScreenQuota: 5, StorageQuotaMB: intPtr(1000), APIRateLimit: intPtr(100),
		Features:  []string{"basic_scheduling"},
		SortOrder: 0,
	},
	{
		Slug: "basic", Name: "Basic",
		ScreenQuota: 10, StorageQuotaMB: intPtr(5000), APIRateLimit: intPtr(500),
		PriceUSDMonthly: 1900, PriceUSDYearly: 19000, PriceINRMonthly: 149900, PriceINRYearly: 1499000,
		Features:  []string{"basic_scheduling", "playlists"},
		SortOrder: 1,
	},
	{
		Slug: "pro", Name: "Pro", HighlightText: "Most popular",
		ScreenQuota: 50, StorageQuotaMB: intPtr(50000), APIRateLimit: intPtr(2000),
		PriceUSDMonthly: 4900, PriceUSDYearly: 49000, PriceINRMonthly: 399900, PriceINRYearly: 3999000,
		Features:  []string{"advanced_scheduling", "playlists", "analytics"},
		SortOrder: 2,
	},
	{
		Slug: "enterprise", Name: "Enterprise",
		ScreenQuota: models.UnlimitedQuota, StorageQuotaMB: intPtr(500000), APIRateLimit: intPtr(10000),
		Features:  []string{"advanced_scheduling", "playlists", "analytics", "sso", "priority_support"},
		SortOrder: 3,
	},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel, "vizora-seed")
	ctx := context.Background()

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	planService := plans.NewService(db, nil, audit.NopDispatcher{}, logger)
	for _, in := range catalog {
		plan, err := planService.Create(ctx, audit.Actor{}, in)
		if errors.Is(err, errs.ErrConflict) {
			fmt.Printf("Plan already exists: %s\n", in.Slug)
			continue
		}
		if err != nil {
			log.Fatalf("failed to create plan %s: %v", in.Slug, err)
		}
		fmt.Printf("Plan created: %s (%d screens)\n", plan.Slug, plan.ScreenQuota)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, cfg.Billing, logger)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "Admin12345"
	}
	if name == "" {
		name = "Platform Admin"
	}

	resp, err := authService.Register(ctx, auth.RegisterInput{
		Email:    email,
		Password: password,
		Name:     name,
		OrgName:  "Vizora Operations",
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	if err := db.Model(&models.User{}).Where("id = ?", resp.User.ID).Update("is_super_admin", true).Error; err != nil {
		log.Fatalf("failed to grant super admin: %v", err)
	}

	fmt.Printf("Super admin created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Organization: %s\n", resp.User.Organization.Name)
}
