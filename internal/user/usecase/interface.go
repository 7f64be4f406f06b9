// Package usecase implements account registration and password login on top of
// the central users table. Access credentials are minted by the credential service
// so they verify exactly like externally issued ones.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
	userDomain "github.com/braidmgr/braidmgr/internal/user/domain"
)

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *userDomain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userDomain.User, error)
}

// RefreshTokenRepository defines refresh token persistence operations.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *userDomain.RefreshToken) error
	GetByID(ctx context.Context, id uuid.UUID) (*userDomain.RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

// LoginAttemptRepository records login attempts and counts recent failures.
type LoginAttemptRepository interface {
	Create(ctx context.Context, attempt *userDomain.LoginAttempt) error
	RecentFailures(ctx context.Context, email string, since time.Time) (int, *time.Time, error)
}

// TenantDirectory resolves a tenant to its store. Only existence matters here.
type TenantDirectory interface {
	ResolveLocator(ctx context.Context, tenantID string) (tenantDomain.StoreLocator, error)
}

// CredentialIssuer signs access credentials.
type CredentialIssuer interface {
	Issue(input *accessDomain.IssueCredentialInput) (string, *accessDomain.Claims, error)
}

// UseCase defines account and session operations.
type UseCase interface {
	// Register creates a member of an active organization with a hashed password.
	Register(ctx context.Context, input RegisterInput) (*userDomain.User, error)

	// Login checks the lockout window, verifies the password and opens a session.
	// Unknown emails and wrong passwords both return ErrInvalidCredentials.
	Login(ctx context.Context, input LoginInput) (*userDomain.Session, error)

	// Refresh rotates a refresh token: the presented one is revoked and a new
	// session is returned.
	Refresh(ctx context.Context, refreshToken string, client userDomain.Client) (*userDomain.Session, error)

	// Logout revokes one refresh token of userID, or all of them when all is set.
	Logout(ctx context.Context, userID uuid.UUID, refreshToken string, all bool) error

	// Me returns the account behind a verified credential.
	Me(ctx context.Context, userID uuid.UUID) (*userDomain.User, error)
}

// RegisterInput contains the input data for registration.
type RegisterInput struct {
	OrganizationID string
	Name           string
	Email          string
	Password       string
}

// LoginInput contains the input data for a password login.
type LoginInput struct {
	Email    string
	Password string
	Client   userDomain.Client
}

// Config holds session and lockout settings.
type Config struct {
	RefreshTokenExpiration time.Duration
	MaxLoginAttempts       int
	LockoutDuration        time.Duration
	PasswordMinLength      int
}
