package pool

import (
	"context"
	"database/sql"
	"sync"

	"github.com/braidmgr/braidmgr/internal/database"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// Handle is a counted reference to a live tenant pool. A pool is never closed
// while a handle on it is outstanding.
type Handle struct {
	registry *Registry
	entry    *entry
	once     sync.Once
}

// Locator returns the store locator the handle was acquired for.
func (h *Handle) Locator() tenantDomain.StoreLocator {
	return h.entry.locator
}

// DB returns the underlying pool.
func (h *Handle) DB() *sql.DB {
	return h.entry.db
}

// Querier returns a query executor bound to the pool.
func (h *Handle) Querier() database.Querier {
	return h.entry.db
}

// TxManager returns a transaction manager bound to the pool.
func (h *Handle) TxManager() database.TxManager {
	return database.NewTxManager(h.entry.db)
}

// Healthy runs a round trip against the pool.
func (h *Handle) Healthy(ctx context.Context) bool {
	return h.registry.ping(ctx, h.entry.db)
}

// Invalidate takes the pool out of service after a failed health check, the same
// way Sweep drains an unhealthy pool. The next Acquire for the locator builds a
// fresh pool; this handle stays usable until Release, which closes the old pool
// once no other holder remains. It reports false when the pool had already been
// replaced or removed.
func (h *Handle) Invalidate(ctx context.Context) bool {
	if !h.registry.drain(h.entry) {
		return false
	}
	h.registry.metrics.RecordOperation(ctx, metricsDomain, "drain", "success")
	return true
}

// Release returns the reference. Calling it more than once is a no-op.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.registry.release(h.entry)
	})
}
