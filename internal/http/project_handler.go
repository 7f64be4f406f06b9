package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	auditDomain "github.com/braidmgr/braidmgr/internal/audit/domain"
	auditUseCase "github.com/braidmgr/braidmgr/internal/audit/usecase"
	"github.com/braidmgr/braidmgr/internal/database"
	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	"github.com/braidmgr/braidmgr/internal/http/dto"
	"github.com/braidmgr/braidmgr/internal/httputil"
	itemDomain "github.com/braidmgr/braidmgr/internal/item/domain"
	itemUseCase "github.com/braidmgr/braidmgr/internal/item/usecase"
	"github.com/braidmgr/braidmgr/internal/orchestrator"
)

// ProjectHandler serves project scoped endpoints. Every request runs through the
// orchestrator so the caller is resolved and authorized against its tenant store.
type ProjectHandler struct {
	executor orchestrator.Executor
	items    *itemUseCase.ItemUseCase
	audit    auditUseCase.Reader
	policy   httputil.ErrorPolicy
	logger   *slog.Logger
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(
	executor orchestrator.Executor,
	items *itemUseCase.ItemUseCase,
	audit auditUseCase.Reader,
	policy httputil.ErrorPolicy,
	logger *slog.Logger,
) *ProjectHandler {
	return &ProjectHandler{
		executor: executor,
		items:    items,
		audit:    audit,
		policy:   policy,
		logger:   logger,
	}
}

// ListAuditLogsHandler lists the project's audit trail newest first.
// GET /v1/projects/:project_id/audit-logs?offset=0&limit=50
func (h *ProjectHandler) ListAuditLogsHandler(c *gin.Context) {
	projectID, ok := h.parseUUIDParam(c, "project_id")
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	op := func(ctx context.Context, q database.Querier, _ *accessDomain.RequestContext) (*orchestrator.Result, error) {
		entries, err := h.audit.List(ctx, q, projectID, offset, limit)
		if err != nil {
			return nil, err
		}
		return &orchestrator.Result{Value: entries}, nil
	}

	outcome, err := h.execute(c, projectID, accessDomain.ActionViewAudit, op)
	if err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	entries, _ := outcome.Value.([]*auditDomain.AuditEntry)
	c.JSON(http.StatusOK, dto.MapAuditEntriesToListResponse(entries))
}

// DeleteItemHandler soft-deletes an item.
// DELETE /v1/projects/:project_id/items/:item_id
func (h *ProjectHandler) DeleteItemHandler(c *gin.Context) {
	projectID, ok := h.parseUUIDParam(c, "project_id")
	if !ok {
		return
	}
	itemID, ok := h.parseUUIDParam(c, "item_id")
	if !ok {
		return
	}

	outcome, err := h.execute(c, projectID, accessDomain.ActionDeleteItem, h.items.Delete(projectID, itemID))
	if err != nil {
		h.policy.Handle(c, err, h.logger)
		return
	}

	item, _ := outcome.Value.(*itemDomain.Item)
	if item == nil {
		h.policy.Handle(c, apperrors.New("delete returned no item"), h.logger)
		return
	}
	c.JSON(http.StatusOK, dto.MapItemToResponse(item))
}

func (h *ProjectHandler) execute(
	c *gin.Context,
	projectID uuid.UUID,
	action accessDomain.Action,
	op orchestrator.Operation,
) (*orchestrator.Outcome, error) {
	return h.executor.Execute(c.Request.Context(), orchestrator.Request{
		Credential:    GetCredential(c),
		CorrelationID: requestid.Get(c),
		ProjectID:     projectID,
		Action:        action,
	}, op)
}

func (h *ProjectHandler) parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.HandleBadRequestGin(c, apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid %s", name), h.logger)
		return uuid.Nil, false
	}
	return id, true
}
