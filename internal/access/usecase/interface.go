// Package usecase turns a bearer credential into a RequestContext.
package usecase

import (
	"context"

	"github.com/google/uuid"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	"github.com/braidmgr/braidmgr/internal/database"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// LocatorResolver maps a tenant to its store locator.
type LocatorResolver interface {
	ResolveLocator(ctx context.Context, tenantID string) (tenantDomain.StoreLocator, error)
}

// ProjectRoleRepository reads project role assignments through a tenant querier.
type ProjectRoleRepository interface {
	GetRole(
		ctx context.Context,
		q database.Querier,
		subjectID, projectID uuid.UUID,
	) (accessDomain.ProjectRole, bool, error)
}

// ContextResolver builds the RequestContext for a credential.
type ContextResolver interface {
	// Resolve verifies credential and resolves the tenant's store locator.
	//
	// Returns ErrCredentialInvalid or ErrCredentialExpired for bad credentials,
	// ErrTenantNotFound for unknown or deactivated tenants and ErrDirectoryUnavailable
	// when the directory cannot be reached.
	Resolve(ctx context.Context, credential, correlationID string) (*accessDomain.RequestContext, error)
}
