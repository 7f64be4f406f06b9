// Package repository reads and soft-deletes items in tenant stores.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	itemDomain "github.com/braidmgr/braidmgr/internal/item/domain"
)

// PostgreSQLItemRepository works on the items table of PostgreSQL tenant stores.
type PostgreSQLItemRepository struct{}

// NewPostgreSQLItemRepository creates a new PostgreSQL item repository.
func NewPostgreSQLItemRepository() *PostgreSQLItemRepository {
	return &PostgreSQLItemRepository{}
}

// Get returns a live item of the project. Deleted items are not found.
func (p *PostgreSQLItemRepository) Get(
	ctx context.Context,
	q database.Querier,
	projectID, itemID uuid.UUID,
) (*itemDomain.Item, error) {
	query := `SELECT id, project_id, item_num, type, title, assigned_to, percent_complete,
			  created_at, updated_at, deleted_at
			  FROM items WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL`

	var item itemDomain.Item
	err := q.QueryRowContext(ctx, query, itemID, projectID).Scan(
		&item.ID,
		&item.ProjectID,
		&item.ItemNum,
		&item.Type,
		&item.Title,
		&item.AssignedTo,
		&item.PercentComplete,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, itemDomain.ErrItemNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get item")
	}

	return &item, nil
}

// SoftDelete stamps deleted_at on a live item.
func (p *PostgreSQLItemRepository) SoftDelete(
	ctx context.Context,
	q database.Querier,
	projectID, itemID uuid.UUID,
) error {
	query := `UPDATE items SET deleted_at = NOW(), updated_at = NOW()
			  WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL`

	result, err := q.ExecContext(ctx, query, itemID, projectID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete item")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return itemDomain.ErrItemNotFound
	}

	return nil
}
