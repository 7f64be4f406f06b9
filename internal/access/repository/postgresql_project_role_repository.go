// Package repository reads project role assignments from tenant stores.
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

// PostgreSQLProjectRoleRepository reads user_project_roles on PostgreSQL tenant stores.
// It holds no connection; every call runs on the querier of the request's tenant pool.
type PostgreSQLProjectRoleRepository struct{}

// NewPostgreSQLProjectRoleRepository creates a new PostgreSQL project role repository.
func NewPostgreSQLProjectRoleRepository() *PostgreSQLProjectRoleRepository {
	return &PostgreSQLProjectRoleRepository{}
}

// GetRole returns the subject's role in the project, or false when no role is assigned.
func (p *PostgreSQLProjectRoleRepository) GetRole(
	ctx context.Context,
	q database.Querier,
	subjectID, projectID uuid.UUID,
) (accessDomain.ProjectRole, bool, error) {
	query := `SELECT role FROM user_project_roles WHERE user_id = $1 AND project_id = $2`

	var role string
	err := q.QueryRowContext(ctx, query, subjectID, projectID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, apperrors.Wrap(err, "failed to get project role")
	}

	return accessDomain.ProjectRole(role), true, nil
}
