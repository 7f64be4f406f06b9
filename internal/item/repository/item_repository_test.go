package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	itemDomain "github.com/braidmgr/braidmgr/internal/item/domain"
)

var itemColumns = []string{
	"id", "project_id", "item_num", "type", "title", "assigned_to", "percent_complete",
	"created_at", "updated_at", "deleted_at",
}

func TestPostgreSQLItemRepository_Get(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgreSQLItemRepository()
	projectID := uuid.Must(uuid.NewV7())
	itemID := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(`FROM items WHERE id = \$1 AND project_id = \$2 AND deleted_at IS NULL`).
			WithArgs(itemID, projectID).
			WillReturnRows(sqlmock.NewRows(itemColumns).
				AddRow(itemID.String(), projectID.String(), 7, "Risk", "Vendor slip", nil, 20, now, now, nil))

		item, err := repo.Get(ctx, db, projectID, itemID)
		require.NoError(t, err)
		assert.Equal(t, itemID, item.ID)
		assert.Equal(t, 7, item.ItemNum)
		assert.Nil(t, item.AssignedTo)
		assert.Nil(t, item.DeletedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(`FROM items`).WillReturnRows(sqlmock.NewRows(itemColumns))

		_, err = repo.Get(ctx, db, projectID, itemID)
		assert.ErrorIs(t, err, itemDomain.ErrItemNotFound)
	})

	t.Run("Error_QueryFails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(`FROM items`).WillReturnError(assert.AnError)

		_, err = repo.Get(ctx, db, projectID, itemID)
		assert.ErrorIs(t, err, assert.AnError)
		assert.NotErrorIs(t, err, itemDomain.ErrItemNotFound)
	})
}

func TestPostgreSQLItemRepository_SoftDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewPostgreSQLItemRepository()
	projectID := uuid.Must(uuid.NewV7())
	itemID := uuid.Must(uuid.NewV7())

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectExec(`UPDATE items SET deleted_at = NOW\(\), updated_at = NOW\(\)`).
			WithArgs(itemID, projectID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SoftDelete(ctx, db, projectID, itemID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error_AlreadyDeleted", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectExec(`UPDATE items`).WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SoftDelete(ctx, db, projectID, itemID)
		assert.ErrorIs(t, err, itemDomain.ErrItemNotFound)
	})
}

func TestMySQLItemRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMySQLItemRepository()
	projectID := uuid.Must(uuid.NewV7())
	itemID := uuid.Must(uuid.NewV7())
	itemBytes, _ := itemID.MarshalBinary()
	projectBytes, _ := projectID.MarshalBinary()
	now := time.Now().UTC()

	t.Run("Success_Get", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		owner := "pat@example.com"
		mock.ExpectQuery(`FROM items WHERE id = \? AND project_id = \?`).
			WithArgs(itemBytes, projectBytes).
			WillReturnRows(sqlmock.NewRows(itemColumns).
				AddRow(itemBytes, projectBytes, 3, "Issue", "Env outage", owner, 0, now, now, nil))

		item, err := repo.Get(ctx, db, projectID, itemID)
		require.NoError(t, err)
		assert.Equal(t, itemID, item.ID)
		assert.Equal(t, projectID, item.ProjectID)
		require.NotNil(t, item.AssignedTo)
		assert.Equal(t, owner, *item.AssignedTo)
	})

	t.Run("Success_SoftDelete", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectExec(`UPDATE items`).
			WithArgs(itemBytes, projectBytes).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SoftDelete(ctx, db, projectID, itemID))
	})

	t.Run("Error_SoftDeleteMissing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectExec(`UPDATE items`).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.SoftDelete(ctx, db, projectID, itemID), itemDomain.ErrItemNotFound)
	})
}
