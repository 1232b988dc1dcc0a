package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/vizora/entitlements/internal/api"
	"github.com/vizora/entitlements/internal/api/middleware"
	"github.com/vizora/entitlements/internal/audit"
	"github.com/vizora/entitlements/internal/auth"
	"github.com/vizora/entitlements/internal/database"
	"github.com/vizora/entitlements/internal/entitlement"
	"github.com/vizora/entitlements/internal/metrics"
	"github.com/vizora/entitlements/internal/organizations"
	"github.com/vizora/entitlements/internal/plans"
	"github.com/vizora/entitlements/internal/platformstats"
	"github.com/vizora/entitlements/internal/promotions"
	"github.com/vizora/entitlements/internal/tasks"
	"github.com/vizora/entitlements/internal/users"
	"github.com/vizora/entitlements/pkg/config"
	"github.com/vizora/entitlements/pkg/queue"
	"github.com/vizora/entitlements/pkg/util"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel, "vizora-api")
	slog.SetDefault(logger)

	logger.Info("starting entitlements server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Production schemas are managed out of band
	if cfg.Server.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	redisClient := queue.NewRedis(&cfg.Redis)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, continuing without cache and queue", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	collector := metrics.NewCollector()
	recorder := audit.NewRecorder(db)

	var dispatcher audit.Dispatcher = audit.NewDirectDispatcher(recorder, logger, collector)
	var asynqClient *asynq.Client
	if cfg.Audit.Async {
		if redisClient == nil {
			logger.Warn("AUDIT_ASYNC set but Redis is unavailable, writing audit records inline")
		} else {
			asynqClient = queue.NewClient(&cfg.Redis)
			dispatcher = tasks.NewQueueDispatcher(asynqClient, dispatcher, cfg.Audit.Queue, logger, collector)
		}
	}

	var planCache *plans.Cache
	var limiter middleware.Limiter
	if redisClient != nil {
		planCache = plans.NewCache(redisClient, cfg.Cache.PlanTTL())
		limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds, logger)
	} else {
		memory := middleware.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds)
		go memory.Run(ctx)
		limiter = memory
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		Metrics:        collector,
		JWTService:     jwtService,
		AuthService:    auth.NewService(db, jwtService, cfg.Billing, logger),
		Guard:          entitlement.NewGuard(entitlement.NewGormStore(db), collector),
		Plans:          plans.NewService(db, planCache, dispatcher, logger),
		Promotions:     promotions.NewService(db, dispatcher, logger, collector),
		Organizations:  organizations.NewService(db, recorder, dispatcher, logger),
		Users:          users.NewService(db, dispatcher, logger),
		PlatformStats:  platformstats.NewService(db),
		AuditRecorder:  recorder,
		Limiter:        limiter,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SecureCookies:  !cfg.Server.IsDevelopment(),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		closeRedis(redisClient, logger)
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}

func closeRedis(c *redis.Client, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("failed to close Redis", "error", err)
	}
}
