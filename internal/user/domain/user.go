// Package domain defines central user accounts and the records that back password
// login: refresh tokens and login attempts.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	"github.com/braidmgr/braidmgr/internal/errors"
)

// User is a row of the central users table. PasswordHash is empty for accounts
// provisioned without a password; those cannot log in.
type User struct {
	ID             uuid.UUID
	OrganizationID string
	Email          string
	Name           string
	OrgRole        accessDomain.OrgRole
	PasswordHash   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RefreshToken is a stored long-lived token. Only a hash of its secret is kept.
type RefreshToken struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	SecretHash string
	UserAgent  string
	IPAddress  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the token is neither revoked nor expired at now.
func (r *RefreshToken) Usable(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// LoginAttempt records one password login, successful or not.
type LoginAttempt struct {
	ID        uuid.UUID
	Email     string
	Success   bool
	UserAgent string
	IPAddress string
	CreatedAt time.Time
}

// Client identifies where a login or refresh came from.
type Client struct {
	UserAgent string
	IPAddress string
}

// Session is the pair of tokens handed out by login and refresh.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *User
}

// Domain-specific errors for user operations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.Wrap(errors.ErrNotFound, "user not found")

	// ErrUserAlreadyExists indicates a user with the same email already exists.
	ErrUserAlreadyExists = errors.Wrap(errors.ErrConflict, "user already exists")

	// ErrInvalidCredentials is returned for an unknown email or a wrong password alike.
	ErrInvalidCredentials = errors.Wrap(errors.ErrUnauthorized, "invalid email or password")

	// ErrRefreshTokenInvalid covers malformed, unknown, revoked and expired refresh tokens.
	ErrRefreshTokenInvalid = errors.Wrap(errors.ErrUnauthorized, "invalid refresh token")

	// ErrRefreshTokenNotFound indicates no stored refresh token has the given id.
	ErrRefreshTokenNotFound = errors.Wrap(errors.ErrNotFound, "refresh token not found")

	// ErrAccountLocked indicates too many recent failed logins for an email.
	ErrAccountLocked = errors.Wrap(errors.ErrTooManyRequests, "account temporarily locked")
)

// LockoutError carries how long a locked account stays locked.
type LockoutError struct {
	Remaining time.Duration
}

// Error implements error.
func (e *LockoutError) Error() string {
	minutes := int(e.Remaining.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%s, try again in %d minute(s)", ErrAccountLocked.Error(), minutes)
}

// Unwrap returns ErrAccountLocked.
func (e *LockoutError) Unwrap() error {
	return ErrAccountLocked
}

// RetryAfter reports the remaining lock time.
func (e *LockoutError) RetryAfter() time.Duration {
	return e.Remaining
}
