// Package orchestrator runs business operations against a tenant store: it resolves
// the caller, acquires the tenant pool, checks permission, runs the operation and
// records audit entries for mutations in the same transaction.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	accessUseCase "github.com/braidmgr/braidmgr/internal/access/usecase"
	auditDomain "github.com/braidmgr/braidmgr/internal/audit/domain"
	auditUseCase "github.com/braidmgr/braidmgr/internal/audit/usecase"
	"github.com/braidmgr/braidmgr/internal/database"
	"github.com/braidmgr/braidmgr/internal/pool"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// Request identifies the caller and what they want to do.
type Request struct {
	Credential    string
	CorrelationID string
	ProjectID     uuid.UUID
	Action        accessDomain.Action
}

// Result is what an operation returns. Audit entries are recorded only for
// mutating actions.
type Result struct {
	Value any
	Audit []*auditDomain.AuditEntry
}

// Outcome describes a completed request.
type Outcome struct {
	Value         any
	Decision      accessDomain.PermissionDecision
	Locator       tenantDomain.StoreLocator
	CorrelationID string
	SubjectID     uuid.UUID
	Audited       int
}

// Operation is a business operation. q is a transaction for mutating actions and
// the pool itself for reads.
type Operation func(ctx context.Context, q database.Querier, rc *accessDomain.RequestContext) (*Result, error)

// Executor runs operations on behalf of a request.
type Executor interface {
	Execute(ctx context.Context, req Request, op Operation) (*Outcome, error)
}

// PoolAcquirer hands out tenant pool handles.
type PoolAcquirer interface {
	Acquire(ctx context.Context, locator tenantDomain.StoreLocator) (*pool.Handle, error)
}

// Config bounds each request. A zero timeout leaves the caller's deadline in charge.
type Config struct {
	AcquireTimeout time.Duration
	CommandTimeout time.Duration
	ProbeOnAcquire bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTransitionHook registers an observer for state transitions.
func WithTransitionHook(hook TransitionHook) Option {
	return func(o *Orchestrator) {
		o.hooks = append(o.hooks, hook)
	}
}

// Orchestrator implements Executor.
type Orchestrator struct {
	resolver accessUseCase.ContextResolver
	pools    PoolAcquirer
	roles    accessUseCase.ProjectRoleRepository
	recorder auditUseCase.Recorder
	cfg      Config
	logger   *slog.Logger
	hooks    []TransitionHook
}

// New creates an Orchestrator.
func New(
	resolver accessUseCase.ContextResolver,
	pools PoolAcquirer,
	roles accessUseCase.ProjectRoleRepository,
	recorder auditUseCase.Recorder,
	cfg Config,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		resolver: resolver,
		pools:    pools,
		roles:    roles,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs op for req. The tenant pool reference is released on every path.
//
// Errors: credential and directory errors from the resolver, ErrPoolUnavailable when
// the tenant store cannot be reached or the role lookup fails, a *DeniedError
// (matching ErrPermissionDenied) when the action is refused, ErrOperationFailed and
// ErrAuditWriteFailed when a mutation is rolled back.
func (o *Orchestrator) Execute(ctx context.Context, req Request, op Operation) (outcome *Outcome, err error) {
	r := &run{ctx: ctx, hooks: o.hooks, correlationID: req.CorrelationID}
	r.advance(StateResolving, nil)
	defer func() {
		r.advance(StateReleased, err)
	}()

	rc, err := o.resolver.Resolve(ctx, req.Credential, req.CorrelationID)
	if err != nil {
		return nil, err
	}
	r.correlationID = rc.CorrelationID

	handle, err := o.acquire(ctx, rc.Locator)
	if err != nil {
		o.logger.Warn("tenant pool unavailable",
			slog.String("correlation_id", rc.CorrelationID),
			slog.String("tenant_id", rc.TenantID),
			slog.Any("error", err))
		return nil, err
	}
	defer handle.Release()
	r.advance(StatePoolAcquired, nil)

	if o.cfg.ProbeOnAcquire && !handle.Healthy(ctx) {
		handle.Invalidate(ctx)
		o.logger.Warn("tenant pool failed health check",
			slog.String("correlation_id", rc.CorrelationID),
			slog.String("tenant_id", rc.TenantID))
		return nil, fmt.Errorf("%w: health check failed", pool.ErrPoolUnavailable)
	}

	decision, err := rc.Authorize(ctx, req.ProjectID, req.Action, o.roleLoader(handle))
	if err != nil {
		o.logger.Warn("project role lookup failed",
			slog.String("correlation_id", rc.CorrelationID),
			slog.String("project_id", req.ProjectID.String()),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", pool.ErrPoolUnavailable, err)
	}
	r.advance(StatePermissionChecked, nil)

	if !decision.Allowed {
		o.logger.Info("action denied",
			slog.String("correlation_id", rc.CorrelationID),
			slog.String("subject_id", rc.SubjectID.String()),
			slog.String("action", string(req.Action)),
			slog.String("rule", decision.Rule))
		return nil, &DeniedError{Decision: decision}
	}

	outcome = &Outcome{
		Decision:      decision,
		Locator:       rc.Locator,
		CorrelationID: rc.CorrelationID,
		SubjectID:     rc.SubjectID,
	}

	r.advance(StateExecuting, nil)
	opCtx, cancel := withTimeout(ctx, o.cfg.CommandTimeout)
	defer cancel()

	if !req.Action.Mutating() {
		res, err := op(opCtx, handle.Querier(), rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOperationFailed, err)
		}
		if res != nil {
			if len(res.Audit) > 0 {
				o.logger.Debug("discarding audit entries from read action",
					slog.String("correlation_id", rc.CorrelationID),
					slog.String("action", string(req.Action)))
			}
			outcome.Value = res.Value
		}
		return outcome, nil
	}

	err = handle.TxManager().WithTx(opCtx, func(txCtx context.Context) error {
		tx, _ := database.TxFromContext(txCtx)

		res, err := op(txCtx, tx, rc)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOperationFailed, err)
		}
		if res == nil {
			return nil
		}

		for _, entry := range res.Audit {
			if entry.ActorID == nil {
				actorID := rc.SubjectID
				entry.ActorID = &actorID
			}
			if entry.ProjectID == nil && req.ProjectID != uuid.Nil {
				projectID := req.ProjectID
				entry.ProjectID = &projectID
			}
			if entry.CorrelationID == "" {
				entry.CorrelationID = rc.CorrelationID
			}
			if err := o.recorder.Record(txCtx, entry); err != nil {
				return err
			}
		}

		outcome.Value = res.Value
		outcome.Audited = len(res.Audit)
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrOperationFailed) && !errors.Is(err, auditDomain.ErrAuditWriteFailed) {
			err = fmt.Errorf("%w: %w", pool.ErrPoolUnavailable, err)
		}
		r.advance(StateRolledBack, err)
		o.logger.Warn("mutation rolled back",
			slog.String("correlation_id", rc.CorrelationID),
			slog.String("action", string(req.Action)),
			slog.Any("error", err))
		return nil, err
	}
	r.advance(StateCommitted, nil)

	return outcome, nil
}

func (o *Orchestrator) acquire(ctx context.Context, locator tenantDomain.StoreLocator) (*pool.Handle, error) {
	acquireCtx, cancel := withTimeout(ctx, o.cfg.AcquireTimeout)
	defer cancel()
	return o.pools.Acquire(acquireCtx, locator)
}

// roleLoader reads project roles through the request's tenant pool.
func (o *Orchestrator) roleLoader(handle *pool.Handle) accessDomain.ProjectRoleLoader {
	return func(ctx context.Context, subjectID, projectID uuid.UUID) (accessDomain.ProjectRole, bool, error) {
		return o.roles.GetRole(ctx, handle.Querier(), subjectID, projectID)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
