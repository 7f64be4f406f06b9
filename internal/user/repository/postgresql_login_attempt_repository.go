package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	userDomain "github.com/braidmgr/braidmgr/internal/user/domain"
)

// PostgreSQLLoginAttemptRepository records login attempts on PostgreSQL.
type PostgreSQLLoginAttemptRepository struct {
	db *sql.DB
}

// NewPostgreSQLLoginAttemptRepository creates a new PostgreSQLLoginAttemptRepository.
func NewPostgreSQLLoginAttemptRepository(db *sql.DB) *PostgreSQLLoginAttemptRepository {
	return &PostgreSQLLoginAttemptRepository{db: db}
}

// Create inserts a login attempt.
func (r *PostgreSQLLoginAttemptRepository) Create(ctx context.Context, attempt *userDomain.LoginAttempt) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO login_attempts (id, email, success, user_agent, ip_address, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		attempt.ID,
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
// oldest of them. oldest is nil when the count is zero.
func (r *PostgreSQLLoginAttemptRepository) RecentFailures(
	ctx context.Context,
	email string,
	since time.Time,
) (int, *time.Time, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*), MIN(created_at) FROM login_attempts
			  WHERE email = $1 AND success = FALSE AND created_at >= $2`

	return scanFailures(querier.QueryRowContext(ctx, query, email, since))
}

func scanFailures(row *sql.Row) (int, *time.Time, error) {
	var count int
	var oldest sql.NullTime
	if err := row.Scan(&count, &oldest); err != nil {
		return 0, nil, apperrors.Wrap(err, "failed to count login failures")
	}
	if !oldest.Valid {
		return count, nil, nil
	}
	return count, &oldest.Time, nil
}
