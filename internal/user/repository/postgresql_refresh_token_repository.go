package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	userDomain "github.com/braidmgr/braidmgr/internal/user/domain"
)

// PostgreSQLRefreshTokenRepository handles refresh token persistence for PostgreSQL.
type PostgreSQLRefreshTokenRepository struct {
	db *sql.DB
}

// NewPostgreSQLRefreshTokenRepository creates a new PostgreSQLRefreshTokenRepository.
func NewPostgreSQLRefreshTokenRepository(db *sql.DB) *PostgreSQLRefreshTokenRepository {
	return &PostgreSQLRefreshTokenRepository{db: db}
}

// Create inserts a refresh token.
func (r *PostgreSQLRefreshTokenRepository) Create(ctx context.Context, token *userDomain.RefreshToken) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO refresh_tokens (id, user_id, secret_hash, user_agent, ip_address, expires_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		token.ID,
		token.UserID,
		token.SecretHash,
		token.UserAgent,
		token.IPAddress,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create refresh token")
	}
	return nil
}

// GetByID retrieves a refresh token, revoked or not.
func (r *PostgreSQLRefreshTokenRepository) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*userDomain.RefreshToken, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, user_id, secret_hash, user_agent, ip_address, expires_at, revoked_at, created_at
			  FROM refresh_tokens WHERE id = $1`

	var token userDomain.RefreshToken
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&token.ID,
		&token.UserID,
		&token.SecretHash,
		&token.UserAgent,
		&token.IPAddress,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userDomain.ErrRefreshTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get refresh token")
	}
	return &token, nil
}

// Revoke marks an unrevoked token as revoked. Returns ErrRefreshTokenNotFound when
// no unrevoked token has the id, which lets concurrent rotations detect each other.
func (r *PostgreSQLRefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE refresh_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`

	result, err := querier.ExecContext(ctx, query, at, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to revoke refresh token")
	}
	return requireAffected(result, userDomain.ErrRefreshTokenNotFound)
}

// RevokeAllForUser revokes every unrevoked token of userID and returns how many changed.
func (r *PostgreSQLRefreshTokenRepository) RevokeAllForUser(
	ctx context.Context,
	userID uuid.UUID,
	at time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE refresh_tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`

	result, err := querier.ExecContext(ctx, query, at, userID)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to revoke refresh tokens")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return affected, nil
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
