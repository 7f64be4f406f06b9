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

// MySQLRefreshTokenRepository handles refresh token persistence for MySQL.
type MySQLRefreshTokenRepository struct {
	db *sql.DB
}

// NewMySQLRefreshTokenRepository creates a new MySQLRefreshTokenRepository.
func NewMySQLRefreshTokenRepository(db *sql.DB) *MySQLRefreshTokenRepository {
	return &MySQLRefreshTokenRepository{db: db}
}

// Create inserts a refresh token.
func (r *MySQLRefreshTokenRepository) Create(ctx context.Context, token *userDomain.RefreshToken) error {
	querier := database.GetTx(ctx, r.db)

	id, err := token.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal refresh token id")
	}
	userID, err := token.UserID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal user id")
	}

	query := `INSERT INTO refresh_tokens (id, user_id, secret_hash, user_agent, ip_address, expires_at, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		userID,
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
func (r *MySQLRefreshTokenRepository) GetByID(ctx context.Context, id uuid.UUID) (*userDomain.RefreshToken, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal refresh token id")
	}

	query := `SELECT id, user_id, secret_hash, user_agent, ip_address, expires_at, revoked_at, created_at
			  FROM refresh_tokens WHERE id = ?`

	var token userDomain.RefreshToken
	var rawID, rawUserID []byte
	err = querier.QueryRowContext(ctx, query, idBytes).Scan(
		&rawID,
		&rawUserID,
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

	if err := token.ID.UnmarshalBinary(rawID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal refresh token id")
	}
	if err := token.UserID.UnmarshalBinary(rawUserID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal user id")
	}
	return &token, nil
}

// Revoke marks an unrevoked token as revoked. Returns ErrRefreshTokenNotFound when
// no unrevoked token has the id.
func (r *MySQLRefreshTokenRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal refresh token id")
	}

	query := `UPDATE refresh_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`

	result, err := querier.ExecContext(ctx, query, at, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to revoke refresh token")
	}
	return requireAffected(result, userDomain.ErrRefreshTokenNotFound)
}

// RevokeAllForUser revokes every unrevoked token of userID and returns how many changed.
func (r *MySQLRefreshTokenRepository) RevokeAllForUser(
	ctx context.Context,
	userID uuid.UUID,
	at time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	userIDBytes, err := userID.MarshalBinary()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to marshal user id")
	}

	query := `UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`

	result, err := querier.ExecContext(ctx, query, at, userIDBytes)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to revoke refresh tokens")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return affected, nil
}
