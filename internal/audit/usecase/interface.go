// Package usecase records and lists audit entries in tenant stores.
package usecase

import (
	"context"

	"github.com/google/uuid"

	auditDomain "github.com/braidmgr/braidmgr/internal/audit/domain"
	"github.com/braidmgr/braidmgr/internal/database"
)

// AuditRepository persists audit entries through a tenant querier.
type AuditRepository interface {
	Create(ctx context.Context, q database.Querier, entry *auditDomain.AuditEntry) error
	List(
		ctx context.Context,
		q database.Querier,
		projectID uuid.UUID,
		offset, limit int,
	) ([]*auditDomain.AuditEntry, error)
}

// Recorder appends audit entries to the tenant store.
type Recorder interface {
	// Record inserts entry inside the transaction carried by ctx. It never opens a
	// transaction itself; without one it returns ErrNoTransaction and writes nothing.
	Record(ctx context.Context, entry *auditDomain.AuditEntry) error
}

// Reader lists a project's audit entries newest first.
type Reader interface {
	List(
		ctx context.Context,
		q database.Querier,
		projectID uuid.UUID,
		offset, limit int,
	) ([]*auditDomain.AuditEntry, error)
}
