package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
)

// MySQLProjectRoleRepository reads user_project_roles on MySQL tenant stores.
// UUIDs are stored as BINARY(16).
type MySQLProjectRoleRepository struct{}

// NewMySQLProjectRoleRepository creates a new MySQL project role repository.
func NewMySQLProjectRoleRepository() *MySQLProjectRoleRepository {
	return &MySQLProjectRoleRepository{}
}

// GetRole returns the subject's role in the project, or false when no role is assigned.
func (m *MySQLProjectRoleRepository) GetRole(
	ctx context.Context,
	q database.Querier,
	subjectID, projectID uuid.UUID,
) (accessDomain.ProjectRole, bool, error) {
	subjectBytes, err := subjectID.MarshalBinary()
	if err != nil {
		return "", false, apperrors.Wrap(err, "failed to marshal subject id")
	}
	projectBytes, err := projectID.MarshalBinary()
	if err != nil {
		return "", false, apperrors.Wrap(err, "failed to marshal project id")
	}

	query := `SELECT role FROM user_project_roles WHERE user_id = ? AND project_id = ?`

	var role string
	err = q.QueryRowContext(ctx, query, subjectBytes, projectBytes).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, apperrors.Wrap(err, "failed to get project role")
	}

	return accessDomain.ProjectRole(role), true, nil
}
