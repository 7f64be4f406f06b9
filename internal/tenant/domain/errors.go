package domain

import (
	"github.com/braidmgr/braidmgr/internal/errors"
)

// Tenant directory errors.
var (
	// ErrTenantNotFound indicates the tenant is unknown or has been soft-deleted.
	ErrTenantNotFound = errors.Wrap(errors.ErrNotFound, "tenant not found")

	// ErrDirectoryUnavailable indicates the central directory could not be queried.
	ErrDirectoryUnavailable = errors.Wrap(errors.ErrUnavailable, "tenant directory unavailable")

	// ErrTenantAlreadyExists indicates a tenant id or locator is already registered.
	ErrTenantAlreadyExists = errors.Wrap(errors.ErrConflict, "tenant already exists")

	// ErrInvalidLocator indicates a locator that is not a safe database identifier.
	ErrInvalidLocator = errors.Wrap(errors.ErrInvalidInput, "invalid store locator")
)
