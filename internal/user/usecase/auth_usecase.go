package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/allisson/go-pwdhash"
	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	"github.com/braidmgr/braidmgr/internal/metrics"
	userDomain "github.com/braidmgr/braidmgr/internal/user/domain"
	appValidation "github.com/braidmgr/braidmgr/internal/validation"
)

const (
	metricsDomain     = "auth"
	refreshSecretSize = 32
)

// AuthUseCase handles registration, login and refresh token sessions.
type AuthUseCase struct {
	txManager      database.TxManager
	users          UserRepository
	tokens         RefreshTokenRepository
	attempts       LoginAttemptRepository
	directory      TenantDirectory
	credentials    CredentialIssuer
	passwordHasher *pwdhash.PasswordHasher
	metrics        metrics.BusinessMetrics
	cfg            Config
	logger         *slog.Logger
	now            func() time.Time
}

// NewAuthUseCase creates an AuthUseCase with an interactive password hashing policy.
func NewAuthUseCase(
	txManager database.TxManager,
	users UserRepository,
	tokens RefreshTokenRepository,
	attempts LoginAttemptRepository,
	directory TenantDirectory,
	credentials CredentialIssuer,
	bm metrics.BusinessMetrics,
	cfg Config,
	logger *slog.Logger,
) (*AuthUseCase, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create password hasher")
	}
	if bm == nil {
		bm = metrics.NewNoOpBusinessMetrics()
	}

	return &AuthUseCase{
		txManager:      txManager,
		users:          users,
		tokens:         tokens,
		attempts:       attempts,
		directory:      directory,
		credentials:    credentials,
		passwordHasher: hasher,
		metrics:        bm,
		cfg:            cfg,
		logger:         logger,
		now:            time.Now,
	}, nil
}

func (uc *AuthUseCase) validateRegisterInput(input RegisterInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.OrganizationID,
			validation.Required.Error("organization_id is required"),
			appValidation.NoWhitespace,
			validation.Length(1, 64),
		),
		validation.Field(&input.Name,
			validation.Required.Error("name is required"),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("name must be between 1 and 255 characters"),
		),
		validation.Field(&input.Email,
			validation.Required.Error("email is required"),
			appValidation.Email,
			validation.Length(5, 255).Error("email must be between 5 and 255 characters"),
		),
		validation.Field(&input.Password,
			validation.Required.Error("password is required"),
			validation.Length(0, 128).Error("password must be at most 128 characters"),
			appValidation.DefaultPasswordStrength(uc.cfg.PasswordMinLength),
		),
	)
	return appValidation.WrapValidationError(err)
}

// Register creates a member account in an active organization.
func (uc *AuthUseCase) Register(ctx context.Context, input RegisterInput) (*userDomain.User, error) {
	input.Email = normalizeEmail(input.Email)
	if err := uc.validateRegisterInput(input); err != nil {
		return nil, err
	}

	if _, err := uc.directory.ResolveLocator(ctx, input.OrganizationID); err != nil {
		return nil, err
	}

	hashedPassword, err := uc.passwordHasher.Hash([]byte(input.Password))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	now := uc.now().UTC()
	user := &userDomain.User{
		ID:             uuid.Must(uuid.NewV7()),
		OrganizationID: input.OrganizationID,
		Email:          input.Email,
		Name:           strings.TrimSpace(input.Name),
		OrgRole:        accessDomain.OrgRoleMember,
		PasswordHash:   hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.users.Create(ctx, user); err != nil {
		uc.metrics.RecordOperation(ctx, metricsDomain, "register", "error")
		return nil, err
	}

	uc.metrics.RecordOperation(ctx, metricsDomain, "register", "success")
	uc.logger.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("tenant_id", user.OrganizationID))
	return user, nil
}

// Login verifies the password of input.Email and opens a session. The failure count
// is checked before the password so a locked account gets no further password checks.
func (uc *AuthUseCase) Login(ctx context.Context, input LoginInput) (*userDomain.Session, error) {
	email := normalizeEmail(input.Email)
	err := validation.Errors{
		"email":    validation.Validate(email, validation.Required),
		"password": validation.Validate(input.Password, validation.Required),
	}.Filter()
	if err != nil {
		return nil, appValidation.WrapValidationError(err)
	}

	if err := uc.checkLockout(ctx, email); err != nil {
		uc.metrics.RecordOperation(ctx, metricsDomain, "login", "locked")
		return nil, err
	}

	user, err := uc.authenticate(ctx, email, input.Password)
	if err != nil {
		if apperrors.Is(err, userDomain.ErrInvalidCredentials) {
			if recErr := uc.recordAttempt(ctx, email, false, input.Client); recErr != nil {
				return nil, recErr
			}
			uc.metrics.RecordOperation(ctx, metricsDomain, "login", "denied")
		}
		return nil, err
	}

	session, err := uc.openSession(ctx, user, input.Client, func(ctx context.Context) error {
		return uc.recordAttempt(ctx, email, true, input.Client)
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.RecordOperation(ctx, metricsDomain, "login", "success")
	return session, nil
}

func (uc *AuthUseCase) checkLockout(ctx context.Context, email string) error {
	now := uc.now().UTC()
	count, oldest, err := uc.attempts.RecentFailures(ctx, email, now.Add(-uc.cfg.LockoutDuration))
	if err != nil {
		return err
	}
	if count < uc.cfg.MaxLoginAttempts {
		return nil
	}

	remaining := uc.cfg.LockoutDuration
	if oldest != nil {
		remaining = oldest.Add(uc.cfg.LockoutDuration).Sub(now)
	}
	if remaining < time.Second {
		remaining = time.Second
	}

	uc.logger.Warn("login rejected for locked account",
		slog.Int("failures", count),
		slog.Duration("remaining", remaining))
	return &userDomain.LockoutError{Remaining: remaining}
}

// authenticate returns ErrInvalidCredentials for a missing user, a user without a
// password, a wrong password or an organization that is no longer active.
func (uc *AuthUseCase) authenticate(ctx context.Context, email, password string) (*userDomain.User, error) {
	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, userDomain.ErrUserNotFound) {
			return nil, userDomain.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, userDomain.ErrInvalidCredentials
	}

	ok, err := uc.passwordHasher.Verify([]byte(password), user.PasswordHash)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to verify password")
	}
	if !ok {
		return nil, userDomain.ErrInvalidCredentials
	}

	if err := uc.requireActiveTenant(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (uc *AuthUseCase) requireActiveTenant(ctx context.Context, user *userDomain.User) error {
	_, err := uc.directory.ResolveLocator(ctx, user.OrganizationID)
	if err != nil && apperrors.Is(err, apperrors.ErrNotFound) {
		return userDomain.ErrInvalidCredentials
	}
	return err
}

// Refresh exchanges a usable refresh token for a new session. The presented token is
// revoked in the same transaction that stores its replacement.
func (uc *AuthUseCase) Refresh(
	ctx context.Context,
	refreshToken string,
	client userDomain.Client,
) (*userDomain.Session, error) {
	stored, err := uc.lookupRefreshToken(ctx, refreshToken)
	if err != nil {
		uc.metrics.RecordOperation(ctx, metricsDomain, "refresh", "denied")
		return nil, err
	}

	user, err := uc.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if apperrors.Is(err, userDomain.ErrUserNotFound) {
			return nil, userDomain.ErrRefreshTokenInvalid
		}
		return nil, err
	}
	if err := uc.requireActiveTenant(ctx, user); err != nil {
		if apperrors.Is(err, userDomain.ErrInvalidCredentials) {
			return nil, userDomain.ErrRefreshTokenInvalid
		}
		return nil, err
	}

	session, err := uc.openSession(ctx, user, client, func(ctx context.Context) error {
		err := uc.tokens.Revoke(ctx, stored.ID, uc.now().UTC())
		if apperrors.Is(err, userDomain.ErrRefreshTokenNotFound) {
			return userDomain.ErrRefreshTokenInvalid
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.RecordOperation(ctx, metricsDomain, "refresh", "success")
	return session, nil
}

// Logout revokes refreshToken, which must belong to userID, or every token of userID
// when all is set. Revoking an already revoked token succeeds.
func (uc *AuthUseCase) Logout(ctx context.Context, userID uuid.UUID, refreshToken string, all bool) error {
	now := uc.now().UTC()

	if all {
		revoked, err := uc.tokens.RevokeAllForUser(ctx, userID, now)
		if err != nil {
			return err
		}
		uc.logger.Info("user logged out everywhere",
			slog.String("user_id", userID.String()),
			slog.Int64("revoked", revoked))
		return nil
	}

	if refreshToken == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "refresh_token is required unless all is set")
	}

	id, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return err
	}
	stored, err := uc.tokens.GetByID(ctx, id)
	if err != nil {
		if apperrors.Is(err, userDomain.ErrRefreshTokenNotFound) {
			return userDomain.ErrRefreshTokenInvalid
		}
		return err
	}
	if stored.UserID != userID {
		return userDomain.ErrRefreshTokenInvalid
	}
	if err := uc.verifySecret(secret, stored); err != nil {
		return err
	}

	err = uc.tokens.Revoke(ctx, stored.ID, now)
	if err != nil && !apperrors.Is(err, userDomain.ErrRefreshTokenNotFound) {
		return err
	}
	return nil
}

// Me returns the account of userID.
func (uc *AuthUseCase) Me(ctx context.Context, userID uuid.UUID) (*userDomain.User, error) {
	return uc.users.GetByID(ctx, userID)
}

// openSession runs inTx and stores a new refresh token in one transaction, then signs
// the access credential.
func (uc *AuthUseCase) openSession(
	ctx context.Context,
	user *userDomain.User,
	client userDomain.Client,
	inTx func(ctx context.Context) error,
) (*userDomain.Session, error) {
	secret, err := newRefreshSecret()
	if err != nil {
		return nil, err
	}
	secretHash, err := uc.passwordHasher.Hash([]byte(secret))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash refresh token")
	}

	now := uc.now().UTC()
	token := &userDomain.RefreshToken{
		ID:         uuid.Must(uuid.NewV7()),
		UserID:     user.ID,
		SecretHash: secretHash,
		UserAgent:  truncate(client.UserAgent, 512),
		IPAddress:  truncate(client.IPAddress, 64),
		ExpiresAt:  now.Add(uc.cfg.RefreshTokenExpiration),
		CreatedAt:  now,
	}

	err = uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := inTx(ctx); err != nil {
			return err
		}
		return uc.tokens.Create(ctx, token)
	})
	if err != nil {
		return nil, err
	}

	accessToken, claims, err := uc.credentials.Issue(&accessDomain.IssueCredentialInput{
		SubjectID: user.ID,
		Email:     user.Email,
		Name:      user.Name,
		TenantID:  user.OrganizationID,
		OrgRole:   user.OrgRole,
	})
	if err != nil {
		return nil, err
	}

	return &userDomain.Session{
		AccessToken:      accessToken,
		AccessExpiresAt:  claims.ExpiresAt,
		RefreshToken:     token.ID.String() + "." + secret,
		RefreshExpiresAt: token.ExpiresAt,
		User:             user,
	}, nil
}

func (uc *AuthUseCase) lookupRefreshToken(ctx context.Context, refreshToken string) (*userDomain.RefreshToken, error) {
	id, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	stored, err := uc.tokens.GetByID(ctx, id)
	if err != nil {
		if apperrors.Is(err, userDomain.ErrRefreshTokenNotFound) {
			return nil, userDomain.ErrRefreshTokenInvalid
		}
		return nil, err
	}
	if !stored.Usable(uc.now()) {
		return nil, userDomain.ErrRefreshTokenInvalid
	}
	if err := uc.verifySecret(secret, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (uc *AuthUseCase) verifySecret(secret string, stored *userDomain.RefreshToken) error {
	ok, err := uc.passwordHasher.Verify([]byte(secret), stored.SecretHash)
	if err != nil {
		return apperrors.Wrap(err, "failed to verify refresh token")
	}
	if !ok {
		return userDomain.ErrRefreshTokenInvalid
	}
	return nil
}

func (uc *AuthUseCase) recordAttempt(ctx context.Context, email string, success bool, client userDomain.Client) error {
	return uc.attempts.Create(ctx, &userDomain.LoginAttempt{
		ID:        uuid.Must(uuid.NewV7()),
		Email:     email,
		Success:   success,
		UserAgent: truncate(client.UserAgent, 512),
		IPAddress: truncate(client.IPAddress, 64),
		CreatedAt: uc.now().UTC(),
	})
}

// splitRefreshToken parses "<token id>.<secret>".
func splitRefreshToken(refreshToken string) (uuid.UUID, string, error) {
	rawID, secret, ok := strings.Cut(refreshToken, ".")
	if !ok || secret == "" {
		return uuid.Nil, "", userDomain.ErrRefreshTokenInvalid
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", userDomain.ErrRefreshTokenInvalid
	}
	return id, secret, nil
}

func newRefreshSecret() (string, error) {
	buf := make([]byte, refreshSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", apperrors.Wrap(err, "failed to generate refresh token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
