package pool

import (
	"github.com/braidmgr/braidmgr/internal/errors"
)

// Pool registry errors.
var (
	// ErrPoolUnavailable indicates the tenant store could not be reached or a pool
	// could not be built in time. It is retryable.
	ErrPoolUnavailable = errors.Wrap(errors.ErrUnavailable, "tenant pool unavailable")

	// ErrRegistryClosed indicates the registry has been shut down.
	ErrRegistryClosed = errors.Wrap(ErrPoolUnavailable, "pool registry closed")
)
