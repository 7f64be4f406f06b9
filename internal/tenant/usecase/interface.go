// Package usecase implements the tenant directory: resolving a tenant id to the
// locator of its data store, plus the administrative lifecycle of tenants.
package usecase

import (
	"context"

	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// DirectoryRepository defines persistence operations against the central directory.
type DirectoryRepository interface {
	// Lookup returns the record for tenantID, soft-deleted or not. Returns
	// ErrTenantNotFound when no record exists.
	Lookup(ctx context.Context, tenantID string) (*tenantDomain.TenantRecord, error)

	// ListActive returns every tenant that has not been soft-deleted.
	ListActive(ctx context.Context) ([]*tenantDomain.TenantRecord, error)

	// Create stores a new tenant record.
	Create(ctx context.Context, record *tenantDomain.TenantRecord) error

	// SoftDelete marks a tenant as deleted.
	SoftDelete(ctx context.Context, tenantID string) error
}

// DirectoryUseCase resolves tenants to store locators.
type DirectoryUseCase interface {
	// ResolveLocator returns the store locator of an active tenant.
	//
	// Returns ErrTenantNotFound for unknown or soft-deleted tenants and
	// ErrDirectoryUnavailable when the central store cannot be queried.
	ResolveLocator(ctx context.Context, tenantID string) (tenantDomain.StoreLocator, error)

	// ListActive returns every active tenant.
	ListActive(ctx context.Context) ([]*tenantDomain.TenantRecord, error)

	// Create registers a tenant.
	Create(ctx context.Context, input *tenantDomain.CreateTenantInput) (*tenantDomain.TenantRecord, error)

	// Deactivate soft-deletes a tenant and drops it from the cache.
	Deactivate(ctx context.Context, tenantID string) error

	// Invalidate drops a cached record so the next resolution hits the store.
	Invalidate(tenantID string)
}
