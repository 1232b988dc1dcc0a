package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/vizora/entitlements/internal/api/handlers"
	"github.com/vizora/entitlements/internal/api/middleware"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/auth"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/entitlement"
	"github.com/vizora/entitlements/internal/metrics"
	"github.com/vizora/entitlements/internal/organizations"
	"github.com/vizora/entitlements/internal/plans"
	"github.com/vizora/entitlements/internal/platformstats"
	"github.com/vizora/entitlements/internal/promotions"
	"github.com/vizora/entitlements/internal/users"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB      *gorm.DB
	Redis   *redis.Client // optional
	Logger  *slog.Logger
	Metrics *metrics.Collector // optional

	JWTService    auth.TokenService
	AuthService   auth.Authenticator
	Guard         *entitlement.Guard
	Plans         *plans.Service
	Promotions    *promotions.Service
	Organizations *organizations.Service
	Users         *users.Service
	PlatformStats *platformstats.Service
	AuditRecorder *audit.Recorder

	Limiter        middleware.Limiter // nil disables rate limiting
	AllowedOrigins []string
	SecureCookies  bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger, cfg.Metrics))

	if cfg.Limiter != nil {
		r.Use(middleware.RateLimit(cfg.Limiter))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Logger, cfg.SecureCookies)
	billingHandler := handlers.NewBillingHandler(cfg.Guard, cfg.Logger)
	displayHandler := handlers.NewDisplayHandler(cfg.DB, cfg.Logger)
	planHandler := handlers.NewPlanHandler(cfg.Plans, cfg.Logger)
	promotionHandler := handlers.NewPromotionHandler(cfg.Promotions, cfg.Logger)
	orgHandler := handlers.NewOrganizationHandler(cfg.Organizations, cfg.Logger)
	userHandler := handlers.NewUserHandler(cfg.Users, cfg.Logger)
	statsHandler := handlers.NewStatsHandler(cfg.PlatformStats, cfg.Logger)
	auditHandler := handlers.NewAuditHandler(cfg.AuditRecorder, cfg.Logger)

	requireActive := middleware.RequireActiveSubscription(cfg.Guard, cfg.Logger)
	requireScreen := middleware.RequireQuota(cfg.Guard, entitlement.QuotaScreen, cfg.Logger)

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			r.Use(middleware.CSRF())
			if cfg.Limiter != nil {
				r.Use(middleware.RateLimitByUser(cfg.Limiter))
			}

			r.Get("/auth/me", authHandler.Me)

			r.Route("/billing", func(r chi.Router) {
				r.Get("/quota", billingHandler.Quota)
				r.Get("/plans", planHandler.ListPublic)
				r.Post("/promotions/validate", promotionHandler.Validate)
				// No subscription guard: redeeming is how a lapsed organization recovers.
				r.With(middleware.RequireRole(models.RoleOwner, models.RoleAdmin)).Post("/promotions/redeem", promotionHandler.Redeem)
			})

			r.Route("/displays", func(r chi.Router) {
				r.Get("/", displayHandler.List)
				r.With(requireActive, requireScreen).Post("/", displayHandler.Create)
				r.With(requireActive).Delete("/{id}", displayHandler.Delete)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireSuperAdmin)

				r.Route("/plans", func(r chi.Router) {
					r.Get("/", planHandler.List)
					r.Post("/", planHandler.Create)
					r.Put("/reorder", planHandler.Reorder)
					r.Get("/{id}", planHandler.Get)
					r.Patch("/{id}", planHandler.Update)
					r.Delete("/{id}", planHandler.Delete)
					r.Post("/{id}/duplicate", planHandler.Duplicate)
				})

				r.Route("/promotions", func(r chi.Router) {
					r.Get("/", promotionHandler.List)
					r.Post("/", promotionHandler.Create)
					r.Post("/bulk-generate", promotionHandler.BulkGenerate)
					r.Get("/{id}", promotionHandler.Get)
					r.Patch("/{id}", promotionHandler.Update)
					r.Delete("/{id}", promotionHandler.Delete)
					r.Get("/{id}/redemptions", promotionHandler.Redemptions)
				})

				r.Route("/organizations", func(r chi.Router) {
					r.Get("/", orgHandler.List)
					r.Get("/{id}", orgHandler.Get)
					r.Patch("/{id}", orgHandler.Update)
					r.Delete("/{id}", orgHandler.Delete)
					r.Get("/{id}/stats", orgHandler.Stats)
					r.Post("/{id}/extend-trial", orgHandler.ExtendTrial)
					r.Post("/{id}/suspend", orgHandler.Suspend)
					r.Post("/{id}/unsuspend", orgHandler.Unsuspend)
				})

				r.Route("/users", func(r chi.Router) {
					r.Get("/", userHandler.List)
					r.Get("/super-admins", userHandler.SuperAdmins)
					r.Get("/{id}", userHandler.Get)
					r.Post("/{id}/disable", userHandler.Disable)
					r.Post("/{id}/enable", userHandler.Enable)
					r.Post("/{id}/reset-password", userHandler.ResetPassword)
					r.Post("/{id}/grant-super-admin", userHandler.GrantSuperAdmin)
					r.Post("/{id}/revoke-super-admin", userHandler.RevokeSuperAdmin)
				})

				r.Route("/stats", func(r chi.Router) {
					r.Get("/overview", statsHandler.Overview)
					r.Get("/by-plan", statsHandler.ByPlan)
					r.Get("/signups", statsHandler.Signups)
					r.Get("/geographic", statsHandler.Geographic)
				})

				r.Route("/audit-log", func(r chi.Router) {
					r.Get("/", auditHandler.List)
					r.Get("/{id}", auditHandler.Get)
				})
			})
		})
	})

	return &Router{r}
}
