// Package usecase builds the item operations run by the request orchestrator.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	auditDomain "github.com/braidmgr/braidmgr/internal/audit/domain"
	"github.com/braidmgr/braidmgr/internal/database"
	itemDomain "github.com/braidmgr/braidmgr/internal/item/domain"
	"github.com/braidmgr/braidmgr/internal/orchestrator"
)

// ItemRepository reads and soft-deletes items through a tenant querier.
type ItemRepository interface {
	Get(ctx context.Context, q database.Querier, projectID, itemID uuid.UUID) (*itemDomain.Item, error)
	SoftDelete(ctx context.Context, q database.Querier, projectID, itemID uuid.UUID) error
}

// ItemUseCase builds item operations.
type ItemUseCase struct {
	repo ItemRepository
	now  func() time.Time
}

// NewItemUseCase creates an ItemUseCase.
func NewItemUseCase(repo ItemRepository) *ItemUseCase {
	return &ItemUseCase{repo: repo, now: time.Now}
}

// Delete returns an operation that soft-deletes an item and audits its prior state.
func (u *ItemUseCase) Delete(projectID, itemID uuid.UUID) orchestrator.Operation {
	return func(ctx context.Context, q database.Querier, rc *accessDomain.RequestContext) (*orchestrator.Result, error) {
		item, err := u.repo.Get(ctx, q, projectID, itemID)
		if err != nil {
			return nil, err
		}
		before := item.Snapshot()

		if err := u.repo.SoftDelete(ctx, q, projectID, itemID); err != nil {
			return nil, err
		}
		deletedAt := u.now().UTC()
		item.DeletedAt = &deletedAt

		return &orchestrator.Result{
			Value: item,
			Audit: []*auditDomain.AuditEntry{{
				ProjectID:   &item.ProjectID,
				Action:      string(accessDomain.ActionDeleteItem),
				EntityType:  "item",
				EntityID:    &item.ID,
				BeforeState: before,
				AfterState:  item.Snapshot(),
			}},
		}, nil
	}
}
