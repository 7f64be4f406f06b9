// Package domain defines the append-only audit trail kept in each tenant store.
package domain

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/braidmgr/braidmgr/internal/errors"
)

// AuditEntry records one mutation against tenant data. Entries are inserted in the
// same transaction as the mutation and are never updated or deleted. ProjectID scopes
// the entry for listing; entries without one never appear in a project's trail.
type AuditEntry struct {
	ID            uuid.UUID
	ActorID       *uuid.UUID
	ProjectID     *uuid.UUID
	Action        string
	EntityType    string
	EntityID      *uuid.UUID
	BeforeState   map[string]any
	AfterState    map[string]any
	CorrelationID string
	CreatedAt     time.Time
}

// Validate checks the fields required by the audit_log table.
func (a *AuditEntry) Validate() error {
	err := validation.ValidateStruct(a,
		validation.Field(&a.Action, validation.Required, validation.Length(1, 100)),
		validation.Field(&a.EntityType, validation.Required, validation.Length(1, 100)),
		validation.Field(&a.CorrelationID, validation.Length(0, 100)),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}
	return nil
}
