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

// MySQLItemRepository works on the items table of MySQL tenant stores. UUIDs are
// stored as BINARY(16).
type MySQLItemRepository struct{}

// NewMySQLItemRepository creates a new MySQL item repository.
func NewMySQLItemRepository() *MySQLItemRepository {
	return &MySQLItemRepository{}
}

// Get returns a live item of the project. Deleted items are not found.
func (m *MySQLItemRepository) Get(
	ctx context.Context,
	q database.Querier,
	projectID, itemID uuid.UUID,
) (*itemDomain.Item, error) {
	itemBytes, projectBytes, err := marshalIDs(itemID, projectID)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, project_id, item_num, type, title, assigned_to, percent_complete,
			  created_at, updated_at, deleted_at
			  FROM items WHERE id = ? AND project_id = ? AND deleted_at IS NULL`

	var item itemDomain.Item
	var id, project []byte
	err = q.QueryRowContext(ctx, query, itemBytes, projectBytes).Scan(
		&id,
		&project,
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

	if err := item.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal item id")
	}
	if err := item.ProjectID.UnmarshalBinary(project); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal item project_id")
	}

	return &item, nil
}

// SoftDelete stamps deleted_at on a live item.
func (m *MySQLItemRepository) SoftDelete(
	ctx context.Context,
	q database.Querier,
	projectID, itemID uuid.UUID,
) error {
	itemBytes, projectBytes, err := marshalIDs(itemID, projectID)
	if err != nil {
		return err
	}

	query := `UPDATE items SET deleted_at = NOW(), updated_at = NOW()
			  WHERE id = ? AND project_id = ? AND deleted_at IS NULL`

	result, err := q.ExecContext(ctx, query, itemBytes, projectBytes)
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

func marshalIDs(itemID, projectID uuid.UUID) ([]byte, []byte, error) {
	itemBytes, err := itemID.MarshalBinary()
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to marshal item id")
	}
	projectBytes, err := projectID.MarshalBinary()
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "failed to marshal project id")
	}
	return itemBytes, projectBytes, nil
}
