package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// MySQLDirectoryRepository reads and writes the organizations table on MySQL.
type MySQLDirectoryRepository struct {
	db *sql.DB
}

// NewMySQLDirectoryRepository creates a new MySQL directory repository.
func NewMySQLDirectoryRepository(db *sql.DB) *MySQLDirectoryRepository {
	return &MySQLDirectoryRepository{db: db}
}

// Lookup returns the tenant record, including soft-deleted ones.
func (m *MySQLDirectoryRepository) Lookup(
	ctx context.Context,
	tenantID string,
) (*tenantDomain.TenantRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, database_name, created_at, updated_at, deleted_at
			  FROM organizations WHERE id = ?`

	var record tenantDomain.TenantRecord
	var locator string
	err := querier.QueryRowContext(ctx, query, tenantID).Scan(
		&record.ID,
		&record.Name,
		&locator,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenantDomain.ErrTenantNotFound
		}
		return nil, apperrors.Wrap(err, "failed to lookup tenant")
	}

	record.Locator = tenantDomain.StoreLocator(locator)
	return &record, nil
}

// ListActive returns every tenant that has not been soft-deleted, ordered by id.
func (m *MySQLDirectoryRepository) ListActive(ctx context.Context) ([]*tenantDomain.TenantRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, database_name, created_at, updated_at, deleted_at
			  FROM organizations WHERE deleted_at IS NULL ORDER BY id`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list tenants")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanTenantRecords(rows)
}

// Create registers a new tenant.
func (m *MySQLDirectoryRepository) Create(ctx context.Context, record *tenantDomain.TenantRecord) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO organizations (id, name, database_name, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		record.ID,
		record.Name,
		record.Locator.String(),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return tenantDomain.ErrTenantAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create tenant")
	}
	return nil
}

// SoftDelete marks an active tenant as deleted.
func (m *MySQLDirectoryRepository) SoftDelete(ctx context.Context, tenantID string) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE organizations SET deleted_at = NOW(6), updated_at = NOW(6)
			  WHERE id = ? AND deleted_at IS NULL`

	result, err := querier.ExecContext(ctx, query, tenantID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete tenant")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return tenantDomain.ErrTenantNotFound
	}
	return nil
}
