// Package models holds sign-in throttling state.
package models

import (
	"strings"
	"time"
)

// AuthLockout tracks failed sign-ins for one email and client address.
type AuthLockout struct {
	Identifier     string
	FailureCount   int
	FirstFailureAt time.Time
	LastFailureAt  time.Time
	LockedUntil    *time.Time
}

// IsLockedAt reports whether the lock is still in force at now.
func (l *AuthLockout) IsLockedAt(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// Decision is the outcome of a pre-sign-in check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// NewAuthLockoutKey joins the email and client address into one store key.
func NewAuthLockoutKey(identifier, ip string) string {
	return "auth:" + SanitizeKeySegment(strings.ToLower(identifier)) + ":" + SanitizeKeySegment(ip)
}

// SanitizeKeySegment replaces the key delimiter so an identifier containing
// ':' cannot address another caller's record. IPv6 addresses pass through
// with their colons replaced as well.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
