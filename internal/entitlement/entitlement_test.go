package entitlement

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
)

func TestEvaluateQuota(t *testing.T) {
	tests := []struct {
		name    string
		quota   int
		count   int64
		allowed bool
	}{
		{"unlimited with no displays", -1, 0, true},
		{"unlimited with many displays", -1, 10000, true},
		{"below quota", 5, 4, true},
		{"at quota", 5, 5, false},
		{"over quota", 5, 7, false},
		{"zero quota denies empty org", 0, 0, false},
		{"single screen unused", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EvaluateQuota(QuotaScreen, QuotaSnapshot{ScreenQuota: tt.quota, DisplayCount: tt.count})
			if tt.allowed {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrQuotaExceeded))

			var qe *errs.QuotaExceededError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, tt.count, qe.Current)
			assert.Equal(t, tt.quota, qe.Limit)
		})
	}
}

func TestEvaluateQuota_UnknownDimensionAllows(t *testing.T) {
	err := EvaluateQuota(QuotaDimension("storage"), QuotaSnapshot{ScreenQuota: 0, DisplayCount: 100})
	assert.NoError(t, err)
}

func TestEvaluateSubscription(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Second)
	past := now.Add(-time.Second)

	tests := []struct {
		name    string
		snap    SubscriptionSnapshot
		allowed bool
	}{
		{"active", SubscriptionSnapshot{Status: models.SubscriptionActive}, true},
		{"active with lapsed trial date", SubscriptionSnapshot{Status: models.SubscriptionActive, TrialEndsAt: &past}, true},
		{"trial one second left", SubscriptionSnapshot{Status: models.SubscriptionTrial, TrialEndsAt: &future}, true},
		{"trial one second over", SubscriptionSnapshot{Status: models.SubscriptionTrial, TrialEndsAt: &past}, false},
		{"trial ending exactly now", SubscriptionSnapshot{Status: models.SubscriptionTrial, TrialEndsAt: &now}, false},
		{"trial without end date", SubscriptionSnapshot{Status: models.SubscriptionTrial}, false},
		{"past due", SubscriptionSnapshot{Status: models.SubscriptionPastDue}, false},
		{"suspended", SubscriptionSnapshot{Status: models.SubscriptionSuspended}, false},
		{"canceled", SubscriptionSnapshot{Status: models.SubscriptionCanceled}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EvaluateSubscription(tt.snap, now)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, errs.ErrSubscriptionInactive))

			var se *errs.SubscriptionInactiveError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, string(tt.snap.Status), se.Status)
		})
	}
}

func TestIsReadOnly(t *testing.T) {
	assert.True(t, IsReadOnly(http.MethodGet))
	assert.True(t, IsReadOnly(http.MethodHead))
	assert.False(t, IsReadOnly(http.MethodPost))
	assert.False(t, IsReadOnly(http.MethodPut))
	assert.False(t, IsReadOnly(http.MethodPatch))
	assert.False(t, IsReadOnly(http.MethodDelete))
	assert.False(t, IsReadOnly(http.MethodOptions))
}
