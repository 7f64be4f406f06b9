package repository

import (
	"context"

	"github.com/google/uuid"

	auditDomain "github.com/braidmgr/braidmgr/internal/audit/domain"
	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
)

// PostgreSQLAuditRepository writes and lists audit_log rows on PostgreSQL tenant stores.
// It holds no connection; callers pass the tenant querier.
type PostgreSQLAuditRepository struct{}

// NewPostgreSQLAuditRepository creates a new PostgreSQL audit repository.
func NewPostgreSQLAuditRepository() *PostgreSQLAuditRepository {
	return &PostgreSQLAuditRepository{}
}

// Create inserts entry through q.
func (p *PostgreSQLAuditRepository) Create(
	ctx context.Context,
	q database.Querier,
	entry *auditDomain.AuditEntry,
) error {
	beforeJSON, err := marshalState(entry.BeforeState)
	if err != nil {
		return err
	}
	afterJSON, err := marshalState(entry.AfterState)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_log (id, user_id, project_id, action, entity_type, entity_id,
			  before_state, after_state, correlation_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = q.ExecContext(
		ctx,
		query,
		entry.ID,
		nullableUUID(entry.ActorID),
		nullableUUID(entry.ProjectID),
		entry.Action,
		entry.EntityType,
		nullableUUID(entry.EntityID),
		beforeJSON,
		afterJSON,
		entry.CorrelationID,
		entry.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit entry")
	}

	return nil
}

// List returns the audit entries of projectID newest first.
func (p *PostgreSQLAuditRepository) List(
	ctx context.Context,
	q database.Querier,
	projectID uuid.UUID,
	offset, limit int,
) ([]*auditDomain.AuditEntry, error) {
	query := `SELECT id, user_id, project_id, action, entity_type, entity_id, before_state,
			  after_state, correlation_id, created_at
			  FROM audit_log
			  WHERE project_id = $1
			  ORDER BY created_at DESC, id DESC
			  LIMIT $2 OFFSET $3`

	rows, err := q.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries")
	}
	defer func() {
		_ = rows.Close()
	}()

	entries := make([]*auditDomain.AuditEntry, 0)
	for rows.Next() {
		var entry auditDomain.AuditEntry
		var actorID, entryProjectID, entityID uuid.NullUUID
		var beforeJSON, afterJSON []byte

		err := rows.Scan(
			&entry.ID,
			&actorID,
			&entryProjectID,
			&entry.Action,
			&entry.EntityType,
			&entityID,
			&beforeJSON,
			&afterJSON,
			&entry.CorrelationID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit entry")
		}

		if actorID.Valid {
			entry.ActorID = &actorID.UUID
		}
		if entryProjectID.Valid {
			entry.ProjectID = &entryProjectID.UUID
		}
		if entityID.Valid {
			entry.EntityID = &entityID.UUID
		}
		if entry.BeforeState, err = unmarshalState(beforeJSON); err != nil {
			return nil, err
		}
		if entry.AfterState, err = unmarshalState(afterJSON); err != nil {
			return nil, err
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit entries")
	}

	return entries, nil
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
