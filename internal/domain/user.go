// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and related types for authentication.
// These types are separate from the repository models so that business logic
// works with plain Go types instead of sql.Null* wrappers.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered HabitFlow user.
//
// The entitlement fields (IsPremium, QuoteCount, QuoteCountDate) drive the
// daily quote gate. QuoteCount is only meaningful when QuoteCountDate equals
// the current UTC day; a stale date means the effective count is zero (lazy
// reset, no scheduled job).
type User struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     string // Never expose this in API responses
	Name             string
	IsPremium        bool
	QuoteCount       int
	QuoteCountDate   string // YYYY-MM-DD in UTC, empty when never consumed
	StripeCustomerID string
	EmailVerified    bool
	EmailVerifiedAt  *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// EffectiveQuoteCount returns the number of quotes consumed on the given UTC
// day. A QuoteCountDate that is not today means the stored count is stale and
// logically zero.
func (u *User) EffectiveQuoteCount(today string) int {
	if u.QuoteCountDate != today {
		return 0
	}
	return u.QuoteCount
}

// Session represents an authenticated session.
//
// Sessions are stored in the database with a hashed token.
// The raw token is only given to the client once (at login).
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hash of the session token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RegisterParams contains the validated parameters for user registration.
type RegisterParams struct {
	Email    string
	Password string // Raw password, will be hashed by service
	Name     string
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User  *User
	Token string // Raw session token (not hashed) - only returned once
}

// EmailVerificationResult contains a freshly created verification token.
type EmailVerificationResult struct {
	Token     string // Raw token to send in email
	ExpiresAt time.Time
	UserID    uuid.UUID
}

// EmailVerificationTokenDuration is how long a verification link stays valid.
const EmailVerificationTokenDuration = 24 * time.Hour
