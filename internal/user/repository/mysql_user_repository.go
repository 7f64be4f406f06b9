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

// MySQLUserRepository handles user persistence for MySQL. UUIDs are stored as BINARY(16).
type MySQLUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new MySQLUserRepository.
func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

// Create inserts a new user. Returns ErrUserAlreadyExists when the email is taken.
func (r *MySQLUserRepository) Create(ctx context.Context, user *userDomain.User) error {
	querier := database.GetTx(ctx, r.db)

	id, err := user.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal user id")
	}

	query := `INSERT INTO users (id, organization_id, email, name, org_role, password_hash, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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
func (r *MySQLUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal user id")
	}

	query := `SELECT id, organization_id, email, name, org_role, password_hash, created_at, updated_at
			  FROM users WHERE id = ?`

	user, err := scanMySQLUser(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get user by id")
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
func (r *MySQLUserRepository) GetByEmail(ctx context.Context, email string) (*userDomain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, organization_id, email, name, org_role, password_hash, created_at, updated_at
			  FROM users WHERE email = ?`

	user, err := scanMySQLUser(querier.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get user by email")
	}
	return user, nil
}

func scanMySQLUser(row *sql.Row) (*userDomain.User, error) {
	var user userDomain.User
	var id []byte
	var orgRole string
	var passwordHash sql.NullString

	err := row.Scan(
		&id,
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

	if err := user.ID.UnmarshalBinary(id); err != nil {
		return nil, err
	}
	user.OrgRole = accessDomain.OrgRole(orgRole)
	user.PasswordHash = passwordHash.String
	return &user, nil
}
