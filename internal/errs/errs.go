// Package errs defines the error kinds shared by the billing services.
// The HTTP layer maps each kind to a status code; services never choose one.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrSubscriptionInactive = errors.New("subscription inactive")

	// ErrOrganizationNotFound is an authorization failure, not a 404.
	ErrOrganizationNotFound = errors.New("Organization not found")
)

// Error is a user-facing message tagged with one of the sentinel kinds.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func InvalidArgument(format string, args ...any) error {
	return newError(ErrInvalidArgument, format, args...)
}

// QuotaExceededError carries the numbers a tenant admin needs to act on.
type QuotaExceededError struct {
	Resource string
	Current  int64
	Limit    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf(
		"%s quota exceeded. You have %d/%d %ss. Please upgrade your plan to add more %ss.",
		capitalize(e.Resource), e.Current, e.Limit, e.Resource, e.Resource,
	)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

type SubscriptionInactiveError struct {
	Status string
}

func (e *SubscriptionInactiveError) Error() string {
	return "Your subscription is inactive. Please upgrade to continue using this feature."
}

func (e *SubscriptionInactiveError) Is(target error) bool {
	return target == ErrSubscriptionInactive
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
