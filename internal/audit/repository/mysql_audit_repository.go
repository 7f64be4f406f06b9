package repository

import (
	"context"

	"github.com/google/uuid"

	auditDomain "github.com/braidmgr/braidmgr/internal/audit/domain"
	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
)

// MySQLAuditRepository writes and lists audit_log rows on MySQL tenant stores.
// UUIDs are stored as BINARY(16).
type MySQLAuditRepository struct{}

// NewMySQLAuditRepository creates a new MySQL audit repository.
func NewMySQLAuditRepository() *MySQLAuditRepository {
	return &MySQLAuditRepository{}
}

// Create inserts entry through q.
func (m *MySQLAuditRepository) Create(
	ctx context.Context,
	q database.Querier,
	entry *auditDomain.AuditEntry,
) error {
	id, err := entry.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit entry id")
	}
	actorID, err := binaryUUID(entry.ActorID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit entry user_id")
	}
	projectID, err := binaryUUID(entry.ProjectID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit entry project_id")
	}
	entityID, err := binaryUUID(entry.EntityID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit entry entity_id")
	}

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
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = q.ExecContext(
		ctx,
		query,
		id,
		actorID,
		projectID,
		entry.Action,
		entry.EntityType,
		entityID,
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
func (m *MySQLAuditRepository) List(
	ctx context.Context,
	q database.Querier,
	projectID uuid.UUID,
	offset, limit int,
) ([]*auditDomain.AuditEntry, error) {
	projectIDBytes, err := projectID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal project id")
	}

	query := `SELECT id, user_id, project_id, action, entity_type, entity_id, before_state,
			  after_state, correlation_id, created_at
			  FROM audit_log
			  WHERE project_id = ?
			  ORDER BY created_at DESC, id DESC
			  LIMIT ? OFFSET ?`

	rows, err := q.QueryContext(ctx, query, projectIDBytes, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries")
	}
	defer func() {
		_ = rows.Close()
	}()

	entries := make([]*auditDomain.AuditEntry, 0)
	for rows.Next() {
		var entry auditDomain.AuditEntry
		var id, actorID, entryProjectID, entityID []byte
		var beforeJSON, afterJSON []byte

		err := rows.Scan(
			&id,
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

		if err := entry.ID.UnmarshalBinary(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit entry id")
		}
		if entry.ActorID, err = parseBinaryUUID(actorID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit entry user_id")
		}
		if entry.ProjectID, err = parseBinaryUUID(entryProjectID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit entry project_id")
		}
		if entry.EntityID, err = parseBinaryUUID(entityID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit entry entity_id")
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

func binaryUUID(id *uuid.UUID) ([]byte, error) {
	if id == nil {
		return nil, nil
	}
	return id.MarshalBinary()
}

func parseBinaryUUID(data []byte) (*uuid.UUID, error) {
	if data == nil {
		return nil, nil
	}
	var id uuid.UUID
	if err := id.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &id, nil
}
