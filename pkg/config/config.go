package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Billing   BillingConfig
	Audit     AuditConfig
	Cache     CacheConfig
	CORS      CORSConfig
	Worker    WorkerConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string

	// LogLevel overrides the environment's default log level when set.
	LogLevel string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

// BillingConfig controls how new organizations are provisioned at signup.
type BillingConfig struct {
	DefaultPlanSlug    string
	TrialDays          int
	DefaultScreenQuota int
}

type AuditConfig struct {
	// Async routes audit records through the task queue instead of writing inline.
	Async bool
	Queue string
}

type CacheConfig struct {
	PlanTTLSeconds int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type WorkerConfig struct {
	Concurrency int
	MetricsAddr string // empty disables the worker's /metrics listener
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (j *JWTConfig) Expiry() time.Duration {
	return time.Duration(j.ExpiryHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (b *BillingConfig) TrialDuration() time.Duration {
	return time.Duration(b.TrialDays) * 24 * time.Hour
}

func (c *CacheConfig) PlanTTL() time.Duration {
	return time.Duration(c.PlanTTLSeconds) * time.Second
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "vizora")
	v.SetDefault("DATABASE_PASSWORD", "vizora_secret")
	v.SetDefault("DATABASE_NAME", "vizora")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 10)
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 100)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("BILLING_DEFAULT_PLAN_SLUG", "free")
	v.SetDefault("BILLING_TRIAL_DAYS", 30)
	v.SetDefault("BILLING_DEFAULT_SCREEN_QUOTA", 5)
	v.SetDefault("AUDIT_ASYNC", false)
	v.SetDefault("AUDIT_QUEUE", "low")
	v.SetDefault("CACHE_PLAN_TTL_SECONDS", 300)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("WORKER_METRICS_ADDR", ":9091")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:     v.GetString("SERVER_HOST"),
			Port:     v.GetInt("SERVER_PORT"),
			Env:      v.GetString("SERVER_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DATABASE_HOST"),
			Port:         v.GetInt("DATABASE_PORT"),
			User:         v.GetString("DATABASE_USER"),
			Password:     v.GetString("DATABASE_PASSWORD"),
			Name:         v.GetString("DATABASE_NAME"),
			SSLMode:      v.GetString("DATABASE_SSLMODE"),
			MaxIdleConns: v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			MaxOpenConns: v.GetInt("DATABASE_MAX_OPEN_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: v.GetInt("JWT_EXPIRY_HOURS"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Billing: BillingConfig{
			DefaultPlanSlug:    v.GetString("BILLING_DEFAULT_PLAN_SLUG"),
			TrialDays:          v.GetInt("BILLING_TRIAL_DAYS"),
			DefaultScreenQuota: v.GetInt("BILLING_DEFAULT_SCREEN_QUOTA"),
		},
		Audit: AuditConfig{
			Async: v.GetBool("AUDIT_ASYNC"),
			Queue: v.GetString("AUDIT_QUEUE"),
		},
		Cache: CacheConfig{
			PlanTTLSeconds: v.GetInt("CACHE_PLAN_TTL_SECONDS"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("WORKER_CONCURRENCY"),
			MetricsAddr: v.GetString("WORKER_METRICS_ADDR"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings that would provision organizations incorrectly.
func (c *Config) Validate() error {
	if c.Billing.TrialDays < 0 {
		return fmt.Errorf("BILLING_TRIAL_DAYS must not be negative, got %d", c.Billing.TrialDays)
	}
	if c.Billing.DefaultScreenQuota < -1 {
		return fmt.Errorf("BILLING_DEFAULT_SCREEN_QUOTA must be -1 or greater, got %d", c.Billing.DefaultScreenQuota)
	}
	if c.Billing.DefaultPlanSlug == "" {
		return fmt.Errorf("BILLING_DEFAULT_PLAN_SLUG is required")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
