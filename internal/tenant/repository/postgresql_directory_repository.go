// Package repository provides central directory persistence for tenant records.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// PostgreSQLDirectoryRepository reads and writes the organizations table on PostgreSQL.
type PostgreSQLDirectoryRepository struct {
	db *sql.DB
}

// NewPostgreSQLDirectoryRepository creates a new PostgreSQL directory repository.
func NewPostgreSQLDirectoryRepository(db *sql.DB) *PostgreSQLDirectoryRepository {
	return &PostgreSQLDirectoryRepository{db: db}
}

// Lookup returns the tenant record, including soft-deleted ones. Returns
// ErrTenantNotFound when no row exists.
func (p *PostgreSQLDirectoryRepository) Lookup(
	ctx context.Context,
	tenantID string,
) (*tenantDomain.TenantRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, database_name, created_at, updated_at, deleted_at
			  FROM organizations WHERE id = $1`

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
func (p *PostgreSQLDirectoryRepository) ListActive(ctx context.Context) ([]*tenantDomain.TenantRecord, error) {
	querier := database.GetTx(ctx, p.db)

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

// Create registers a new tenant. Returns ErrTenantAlreadyExists on duplicate id or locator.
func (p *PostgreSQLDirectoryRepository) Create(ctx context.Context, record *tenantDomain.TenantRecord) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO organizations (id, name, database_name, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5)`

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

// SoftDelete marks an active tenant as deleted. Returns ErrTenantNotFound when no
// active tenant matches.
func (p *PostgreSQLDirectoryRepository) SoftDelete(ctx context.Context, tenantID string) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE organizations SET deleted_at = NOW(), updated_at = NOW()
			  WHERE id = $1 AND deleted_at IS NULL`

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

func scanTenantRecords(rows *sql.Rows) ([]*tenantDomain.TenantRecord, error) {
	records := make([]*tenantDomain.TenantRecord, 0)
	for rows.Next() {
		var record tenantDomain.TenantRecord
		var locator string
		if err := rows.Scan(
			&record.ID,
			&record.Name,
			&locator,
			&record.CreatedAt,
			&record.UpdatedAt,
			&record.DeletedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan tenant")
		}
		record.Locator = tenantDomain.StoreLocator(locator)
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate tenants")
	}
	return records, nil
}
