// Package validation holds the field checks shared by the request DTOs.
package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxEmailLen    = 254
	maxSlugLen     = 64
	minPasswordLen = 8
	maxPasswordLen = 128
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// lowercase words joined by hyphens, e.g. "pro-annual"
	slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

	// codes and bulk prefixes, matched after upper-casing
	promoCodeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_\-]{1,49}$`)

	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	countryRegex  = regexp.MustCompile(`^[A-Z]{2}$`)
)

func IsValidEmail(email string) bool {
	return len(email) <= maxEmailLen && emailRegex.MatchString(email)
}

// IsValidUUID accepts only the canonical hyphenated form.
func IsValidUUID(id string) bool {
	return len(id) == 36 && uuid.Validate(id) == nil
}

// IsValidSlug checks a plan slug. Matching is case-sensitive.
func IsValidSlug(slug string) bool {
	return len(slug) <= maxSlugLen && slugRegex.MatchString(slug)
}

// IsValidPromoCode checks a promotion code or bulk-generation prefix.
func IsValidPromoCode(code string) bool {
	return promoCodeRegex.MatchString(strings.ToUpper(strings.TrimSpace(code)))
}

// IsValidCurrency checks for an ISO 4217 alphabetic code.
func IsValidCurrency(currency string) bool {
	return currencyRegex.MatchString(strings.ToUpper(currency))
}

// IsValidCountry checks for an ISO 3166-1 alpha-2 code.
func IsValidCountry(country string) bool {
	return countryRegex.MatchString(strings.ToUpper(country))
}

var passwordRules = []struct {
	class   func(rune) bool
	message string
}{
	{unicode.IsUpper, "Password must contain at least one uppercase letter"},
	{unicode.IsLower, "Password must contain at least one lowercase letter"},
	{unicode.IsNumber, "Password must contain at least one number"},
}

// IsValidPassword returns false and the first failed rule's message when
// the password is too weak for a console account.
func IsValidPassword(password string) (bool, string) {
	switch {
	case len(password) < minPasswordLen:
		return false, "Password must be at least 8 characters"
	case len(password) > maxPasswordLen:
		return false, "Password must be at most 128 characters"
	}
	for _, rule := range passwordRules {
		if strings.IndexFunc(password, rule.class) < 0 {
			return false, rule.message
		}
	}
	return true, ""
}

// SanitizeString drops control characters other than newlines and tabs.
func SanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, s)
}

// TruncateString cuts s to at most maxLen bytes without splitting a rune.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
