package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/braidmgr/braidmgr/internal/database"
	"github.com/braidmgr/braidmgr/internal/http"
	userRepository "github.com/braidmgr/braidmgr/internal/user/repository"
	userUseCase "github.com/braidmgr/braidmgr/internal/user/usecase"
)

type authComponents struct {
	useCase *userUseCase.AuthUseCase

	useCaseInit sync.Once
}

// AuthUseCase returns account registration and login backed by the central database.
func (c *Container) AuthUseCase(ctx context.Context) (*userUseCase.AuthUseCase, error) {
	c.auth.useCaseInit.Do(func() {
		var err error
		c.auth.useCase, err = c.initAuthUseCase(ctx)
		c.setErr("auth", err)
	})
	return c.auth.useCase, c.err("auth")
}

func (c *Container) initAuthUseCase(ctx context.Context) (*userUseCase.AuthUseCase, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for auth: %w", err)
	}

	directory, err := c.Directory()
	if err != nil {
		return nil, fmt.Errorf("failed to get directory for auth: %w", err)
	}

	credentials, err := c.CredentialService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get credential service for auth: %w", err)
	}

	bm, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	var (
		users    userUseCase.UserRepository
		tokens   userUseCase.RefreshTokenRepository
		attempts userUseCase.LoginAttemptRepository
	)
	switch database.Dialect(c.config.DBDriver) {
	case "mysql":
		users = userRepository.NewMySQLUserRepository(db)
		tokens = userRepository.NewMySQLRefreshTokenRepository(db)
		attempts = userRepository.NewMySQLLoginAttemptRepository(db)
	default:
		users = userRepository.NewPostgreSQLUserRepository(db)
		tokens = userRepository.NewPostgreSQLRefreshTokenRepository(db)
		attempts = userRepository.NewPostgreSQLLoginAttemptRepository(db)
	}

	uc, err := userUseCase.NewAuthUseCase(
		database.NewTxManager(db),
		users,
		tokens,
		attempts,
		directory,
		credentials,
		bm,
		userUseCase.Config{
			RefreshTokenExpiration: c.config.AuthRefreshTokenExpiration,
			MaxLoginAttempts:       c.config.AuthMaxLoginAttempts,
			LockoutDuration:        c.config.AuthLockoutDuration,
			PasswordMinLength:      c.config.AuthPasswordMinLength,
		},
		c.Logger(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth use case: %w", err)
	}
	return uc, nil
}

func (c *Container) authRoutes(ctx context.Context) (http.AuthRoutes, error) {
	uc, err := c.AuthUseCase(ctx)
	if err != nil {
		return http.AuthRoutes{}, err
	}
	credentials, err := c.CredentialService(ctx)
	if err != nil {
		return http.AuthRoutes{}, err
	}
	return http.AuthRoutes{UseCase: uc, Verifier: credentials}, nil
}
