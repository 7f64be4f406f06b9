package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	userDomain "github.com/braidmgr/braidmgr/internal/user/domain"
)

// MySQLLoginAttemptRepository records login attempts on MySQL.
type MySQLLoginAttemptRepository struct {
	db *sql.DB
}

// NewMySQLLoginAttemptRepository creates a new MySQLLoginAttemptRepository.
func NewMySQLLoginAttemptRepository(db *sql.DB) *MySQLLoginAttemptRepository {
	return &MySQLLoginAttemptRepository{db: db}
}

// Create inserts a login attempt.
func (r *MySQLLoginAttemptRepository) Create(ctx context.Context, attempt *userDomain.LoginAttempt) error {
	querier := database.GetTx(ctx, r.db)

	id, err := attempt.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal login attempt id")
	}

	query := `INSERT INTO login_attempts (id, email, success, user_agent, ip_address, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		attempt.Email,
		attempt.Success,
		attempt.UserAgent,
		attempt.IPAddress,
		attempt.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to record login attempt")
	}
	return nil
}

// RecentFailures counts failed attempts for email at or after since and returns the
// oldest of them.
func (r *MySQLLoginAttemptRepository) RecentFailures(
	ctx context.Context,
	email string,
	since time.Time,
) (int, *time.Time, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*), MIN(created_at) FROM login_attempts
			  WHERE email = ? AND success = FALSE AND created_at >= ?`

	return scanFailures(querier.QueryRowContext(ctx, query, email, since))
}
