package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "free", cfg.Billing.DefaultPlanSlug)
	assert.Equal(t, 30, cfg.Billing.TrialDays)
	assert.Equal(t, 5, cfg.Billing.DefaultScreenQuota)
	assert.Equal(t, "low", cfg.Audit.Queue)
	assert.Equal(t, 5*time.Minute, cfg.Cache.PlanTTL())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BILLING_TRIAL_DAYS", "45")
	t.Setenv("AUDIT_ASYNC", "true")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Billing.TrialDays)
	assert.Equal(t, 45*24*time.Hour, cfg.Billing.TrialDuration())
	assert.True(t, cfg.Audit.Async)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		billing BillingConfig
		wantErr bool
	}{
		{"valid", BillingConfig{DefaultPlanSlug: "free", TrialDays: 14, DefaultScreenQuota: 5}, false},
		{"unlimited quota", BillingConfig{DefaultPlanSlug: "free", DefaultScreenQuota: -1}, false},
		{"negative trial", BillingConfig{DefaultPlanSlug: "free", TrialDays: -1}, true},
		{"quota below unlimited", BillingConfig{DefaultPlanSlug: "free", DefaultScreenQuota: -2}, true},
		{"missing plan", BillingConfig{TrialDays: 14}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Billing: tt.billing}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://app.vizora.io , ,https://admin.vizora.io")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://app.vizora.io", "https://admin.vizora.io"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 10, cfg.Worker.Concurrency)
}
