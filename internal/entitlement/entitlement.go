// Package entitlement decides whether an organization may perform a
// mutating action, based on its subscription state and usage against quota.
package entitlement

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/database/models"
	"github.com/vizora/entitlements/internal/errs"
)

type QuotaDimension string

const (
	QuotaScreen QuotaDimension = "screen"
)

// QuotaSnapshot is the state the quota guard decides on.
type QuotaSnapshot struct {
	ScreenQuota  int
	DisplayCount int64
}

type SubscriptionSnapshot struct {
	Status      models.SubscriptionStatus
	TrialEndsAt *time.Time
}

// Store resolves organization snapshots. Implementations return
// errs.ErrOrganizationNotFound when the organization does not exist.
type Store interface {
	QuotaSnapshot(ctx context.Context, orgID uuid.UUID) (*QuotaSnapshot, error)
	SubscriptionSnapshot(ctx context.Context, orgID uuid.UUID) (*SubscriptionSnapshot, error)
}

// EvaluateQuota is the pure quota decision. Unknown dimensions are allowed.
func EvaluateQuota(dim QuotaDimension, snap QuotaSnapshot) error {
	switch dim {
	case QuotaScreen:
		if snap.ScreenQuota == models.UnlimitedQuota {
			return nil
		}
		// A quota of 0 denies even with no displays.
		if snap.DisplayCount >= int64(snap.ScreenQuota) {
			return &errs.QuotaExceededError{
				Resource: string(QuotaScreen),
				Current:  snap.DisplayCount,
				Limit:    snap.ScreenQuota,
			}
		}
		return nil
	default:
		return nil
	}
}

// EvaluateSubscription is the pure subscription decision for a mutating request.
func EvaluateSubscription(snap SubscriptionSnapshot, now time.Time) error {
	switch snap.Status {
	case models.SubscriptionActive:
		return nil
	case models.SubscriptionTrial:
		if snap.TrialEndsAt != nil && snap.TrialEndsAt.After(now) {
			return nil
		}
	}
	return &errs.SubscriptionInactiveError{Status: string(snap.Status)}
}

// IsReadOnly reports whether a request method skips the subscription check.
func IsReadOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
