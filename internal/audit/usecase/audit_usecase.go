package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/braidmgr/braidmgr/internal/audit/domain"
	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
)

type auditUseCase struct {
	repo   AuditRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditUseCase returns the recorder and reader backed by repo.
func NewAuditUseCase(repo AuditRepository, logger *slog.Logger) (Recorder, Reader) {
	uc := &auditUseCase{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
	return uc, uc
}

func (a *auditUseCase) Record(ctx context.Context, entry *auditDomain.AuditEntry) error {
	tx, ok := database.TxFromContext(ctx)
	if !ok {
		return auditDomain.ErrNoTransaction
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.Must(uuid.NewV7())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now().UTC()
	}

	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", auditDomain.ErrAuditWriteFailed, err)
	}

	if err := a.repo.Create(ctx, tx, entry); err != nil {
		a.logger.Error("audit write failed",
			slog.String("action", entry.Action),
			slog.String("entity_type", entry.EntityType),
			slog.String("correlation_id", entry.CorrelationID),
			slog.Any("error", err))
		return fmt.Errorf("%w: %w", auditDomain.ErrAuditWriteFailed, err)
	}

	return nil
}

func (a *auditUseCase) List(
	ctx context.Context,
	q database.Querier,
	projectID uuid.UUID,
	offset, limit int,
) ([]*auditDomain.AuditEntry, error) {
	entries, err := a.repo.List(ctx, q, projectID, offset, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit entries")
	}
	return entries, nil
}
