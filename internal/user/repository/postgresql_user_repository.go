// Package repository provides central database persistence for users, refresh
// tokens and login attempts.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	userDomain "github.com/braidmgr/braidmgr/internal/user/domain"
)

// PostgreSQLUserRepository handles user persistence for PostgreSQL.
type PostgreSQLUserRepository struct {
	db *sql.DB
}

// NewPostgreSQLUserRepository creates a new PostgreSQLUserRepository.
func NewPostgreSQLUserRepository(db *sql.DB) *PostgreSQLUserRepository {
	return &PostgreSQLUserRepository{db: db}
}

// Create inserts a new user. Returns ErrUserAlreadyExists when the email is taken.
func (r *PostgreSQLUserRepository) Create(ctx context.Context, user *userDomain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO users (id, organization_id, email, name, org_role, password_hash, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(
		ctx,
		query,
		user.ID,
		user.OrganizationID,
		user.Email,
		user.Name,
		string(user.OrgRole),
		nullString(user.PasswordHash),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return userDomain.ErrUserAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create user")
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *PostgreSQLUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, organization_id, email, name, org_role, password_hash, created_at, updated_at
			  FROM users WHERE id = $1`

	user, err := scanPostgreSQLUser(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get user by id")
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
func (r *PostgreSQLUserRepository) GetByEmail(ctx context.Context, email string) (*userDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, organization_id, email, name, org_role, password_hash, created_at, updated_at
			  FROM users WHERE email = $1`

	user, err := scanPostgreSQLUser(querier.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get user by email")
	}
	return user, nil
}

func scanPostgreSQLUser(row *sql.Row) (*userDomain.User, error) {
	var user userDomain.User
	var orgRole string
	var passwordHash sql.NullString

	err := row.Scan(
		&user.ID,
		&user.OrganizationID,
		&user.Email,
		&user.Name,
		&orgRole,
		&passwordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userDomain.ErrUserNotFound
		}
		return nil, err
	}

	user.OrgRole = accessDomain.OrgRole(orgRole)
	user.PasswordHash = passwordHash.String
	return &user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
