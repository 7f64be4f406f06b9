// Package pool keeps one live connection pool per tenant store.
//
// Pools are created lazily on first use. Concurrent first uses of the same locator
// share a single construction, and a failed or timed-out construction leaves nothing
// behind so the next request simply retries. A background sweep closes pools that
// have been idle for too long and drains pools that fail their health check.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/braidmgr/braidmgr/internal/database"
	"github.com/braidmgr/braidmgr/internal/metrics"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

const metricsDomain = "pool"

// Config holds registry timing parameters.
type Config struct {
	// ConstructTimeout bounds one pool construction, including the first round trip.
	ConstructTimeout time.Duration
	// ProbeTimeout bounds one health probe.
	ProbeTimeout time.Duration
	// IdleThreshold is how long an unreferenced pool may sit before it is evicted.
	IdleThreshold time.Duration
	// SweepInterval is the period of the background sweep started by Start.
	SweepInterval time.Duration
}

// entry is one pool tracked by the registry. All fields except db and locator
// are guarded by Registry.mu.
type entry struct {
	locator   tenantDomain.StoreLocator
	db        *sql.DB
	createdAt time.Time
	lastUsed  time.Time
	refs      int
	draining  bool
}

// EntryStats is a point-in-time view of one live pool.
type EntryStats struct {
	Locator   tenantDomain.StoreLocator
	Refs      int
	CreatedAt time.Time
	LastUsed  time.Time
	OpenConns int
	IdleConns int
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Evicted int
	Drained int
}

// WarmResult reports the outcome of pre-warming one locator.
type WarmResult struct {
	Locator tenantDomain.StoreLocator
	Healthy bool
	Err     error
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the wall clock used for idle accounting.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithMetrics records construction, eviction and drain events.
func WithMetrics(m metrics.BusinessMetrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// Registry maps store locators to live pools.
type Registry struct {
	connector database.Connector
	cfg       Config
	logger    *slog.Logger
	metrics   metrics.BusinessMetrics
	now       func() time.Time
	group     singleflight.Group

	mu       sync.Mutex
	entries  map[tenantDomain.StoreLocator]*entry
	draining map[*entry]struct{}
	closed   bool
}

// NewRegistry creates an empty registry that opens pools with connector.
func NewRegistry(connector database.Connector, cfg Config, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		connector: connector,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics.NewNoOpBusinessMetrics(),
		now:       time.Now,
		entries:   make(map[tenantDomain.StoreLocator]*entry),
		draining:  make(map[*entry]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire returns a handle on the live pool for locator, constructing the pool if
// needed. Waiting is bounded by ctx; construction itself is bounded by
// Config.ConstructTimeout. Callers must Release the handle.
func (r *Registry) Acquire(ctx context.Context, locator tenantDomain.StoreLocator) (*Handle, error) {
	for {
		h, err := r.tryAcquire(locator)
		if err != nil {
			return nil, err
		}
		if h != nil {
			return h, nil
		}

		ch := r.group.DoChan(locator.String(), func() (any, error) {
			return nil, r.construct(locator)
		})

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrPoolUnavailable, ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
		}
	}
}

// tryAcquire takes a reference on an existing entry. It returns a nil handle when
// no live entry exists.
func (r *Registry) tryAcquire(locator tenantDomain.StoreLocator) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	e, ok := r.entries[locator]
	if !ok {
		return nil, nil
	}

	e.refs++
	e.lastUsed = r.now()
	return &Handle{registry: r, entry: e}, nil
}

type constructResult struct {
	db  *sql.DB
	err error
}

// construct builds a pool for locator and inserts it into the map. It runs once per
// singleflight flight. A construction that outlives the timeout fails the flight and
// its eventual pool is closed without ever being inserted.
func (r *Registry) construct(locator tenantDomain.StoreLocator) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	if _, ok := r.entries[locator]; ok {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ConstructTimeout)
	defer cancel()

	done := make(chan constructResult, 1)
	go func() {
		db, err := r.connector.Connect(ctx, locator.String())
		done <- constructResult{db: db, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			r.record("construct", start, res.err)
			r.logger.Error("failed to construct tenant pool",
				slog.String("locator", locator.String()),
				slog.Any("error", res.err))
			return fmt.Errorf("%w: %w", ErrPoolUnavailable, res.err)
		}
		err := r.insert(locator, res.db)
		r.record("construct", start, err)
		return err

	case <-ctx.Done():
		go r.discardLate(locator, done)
		r.record("construct", start, ctx.Err())
		r.logger.Error("tenant pool construction timed out",
			slog.String("locator", locator.String()),
			slog.Duration("timeout", r.cfg.ConstructTimeout))
		return fmt.Errorf("%w: construction timed out", ErrPoolUnavailable)
	}
}

func (r *Registry) insert(locator tenantDomain.StoreLocator, db *sql.DB) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.closeDB(locator, db)
		return ErrRegistryClosed
	}
	if _, ok := r.entries[locator]; ok {
		r.mu.Unlock()
		r.closeDB(locator, db)
		return nil
	}

	now := r.now()
	r.entries[locator] = &entry{
		locator:   locator,
		db:        db,
		createdAt: now,
		lastUsed:  now,
	}
	r.mu.Unlock()

	r.logger.Info("tenant pool created", slog.String("locator", locator.String()))
	return nil
}

// discardLate waits for a timed-out construction and closes whatever it produced.
func (r *Registry) discardLate(locator tenantDomain.StoreLocator, done <-chan constructResult) {
	res := <-done
	if res.db != nil {
		r.logger.Warn("closing pool from timed-out construction", slog.String("locator", locator.String()))
		r.closeDB(locator, res.db)
	}
}

// release drops one reference. A draining entry is closed by its last release.
func (r *Registry) release(e *entry) {
	r.mu.Lock()
	e.refs--
	e.lastUsed = r.now()
	closeNow := e.draining && e.refs == 0
	if closeNow {
		delete(r.draining, e)
	}
	r.mu.Unlock()

	if closeNow {
		r.closeDB(e.locator, e.db)
	}
}

// Sweep evicts idle pools and drains unhealthy ones. An unhealthy pool leaves the
// map immediately so new requests get a fresh pool; in-flight holders keep using the
// old one and the last of them closes it.
func (r *Registry) Sweep(ctx context.Context) SweepResult {
	var result SweepResult
	var idle, live []*entry

	r.mu.Lock()
	now := r.now()
	for locator, e := range r.entries {
		if e.refs == 0 && now.Sub(e.lastUsed) >= r.cfg.IdleThreshold {
			delete(r.entries, locator)
			idle = append(idle, e)
			continue
		}
		live = append(live, e)
	}
	r.mu.Unlock()

	for _, e := range idle {
		r.logger.Info("evicting idle tenant pool", slog.String("locator", e.locator.String()))
		r.closeDB(e.locator, e.db)
		r.metrics.RecordOperation(ctx, metricsDomain, "evict", "success")
		result.Evicted++
	}

	for _, e := range live {
		if r.ping(ctx, e.db) {
			continue
		}
		if r.drain(e) {
			r.metrics.RecordOperation(ctx, metricsDomain, "drain", "success")
			result.Drained++
		}
	}

	return result
}

// drain removes e from the map and closes it once unreferenced. It reports false
// when e had already been replaced or removed.
func (r *Registry) drain(e *entry) bool {
	r.mu.Lock()
	if current, ok := r.entries[e.locator]; !ok || current != e {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, e.locator)
	e.draining = true
	closeNow := e.refs == 0
	if !closeNow {
		r.draining[e] = struct{}{}
	}
	refs := e.refs
	r.mu.Unlock()

	r.logger.Warn("draining unhealthy tenant pool",
		slog.String("locator", e.locator.String()),
		slog.Int("refs", refs))

	if closeNow {
		r.closeDB(e.locator, e.db)
	}
	return true
}

// Start runs Sweep every Config.SweepInterval until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) error {
	r.logger.Info("pool sweeper started", slog.Duration("interval", r.cfg.SweepInterval))

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pool sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			result := r.Sweep(ctx)
			if result.Evicted > 0 || result.Drained > 0 {
				r.logger.Debug("pool sweep finished",
					slog.Int("evicted", result.Evicted),
					slog.Int("drained", result.Drained))
			}
		}
	}
}

// Warm acquires, health-checks and releases a pool for every locator in parallel.
func (r *Registry) Warm(ctx context.Context, locators []tenantDomain.StoreLocator) []WarmResult {
	results := make([]WarmResult, len(locators))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, locator := range locators {
		g.Go(func() error {
			results[i] = WarmResult{Locator: locator}
			h, err := r.Acquire(gctx, locator)
			if err != nil {
				results[i].Err = err
				return nil
			}
			defer h.Release()
			results[i].Healthy = h.Healthy(gctx)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Healthy pings the live pool for locator. It reports false when no pool exists.
func (r *Registry) Healthy(ctx context.Context, locator tenantDomain.StoreLocator) bool {
	r.mu.Lock()
	e, ok := r.entries[locator]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.ping(ctx, e.db)
}

func (r *Registry) ping(ctx context.Context, db *sql.DB) bool {
	if r.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.ProbeTimeout)
		defer cancel()
	}
	return db.PingContext(ctx) == nil
}

// InFlight returns the number of outstanding handles on the live pool for locator.
func (r *Registry) InFlight(locator tenantDomain.StoreLocator) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[locator]; ok {
		return e.refs
	}
	return 0
}

// Draining returns the number of pools waiting for their last handle to be released.
func (r *Registry) Draining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.draining)
}

// Gauges reports live pools, outstanding handles and draining pools.
func (r *Registry) Gauges() metrics.PoolGauges {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := metrics.PoolGauges{Live: len(r.entries), Draining: len(r.draining)}
	for _, e := range r.entries {
		g.InFlight += e.refs
	}
	for e := range r.draining {
		g.InFlight += e.refs
	}
	return g
}

// Stats returns a snapshot of every live pool ordered by locator.
func (r *Registry) Stats() []EntryStats {
	r.mu.Lock()
	stats := make([]EntryStats, 0, len(r.entries))
	dbs := make([]*sql.DB, 0, len(r.entries))
	for _, e := range r.entries {
		stats = append(stats, EntryStats{
			Locator:   e.locator,
			Refs:      e.refs,
			CreatedAt: e.createdAt,
			LastUsed:  e.lastUsed,
		})
		dbs = append(dbs, e.db)
	}
	r.mu.Unlock()

	for i, db := range dbs {
		dbStats := db.Stats()
		stats[i].OpenConns = dbStats.OpenConnections
		stats[i].IdleConns = dbStats.Idle
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Locator < stats[j].Locator
	})
	return stats
}

// Close closes every unreferenced pool and marks referenced ones to be closed by
// their last release. Acquire fails with ErrRegistryClosed afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true

	var toClose []*entry
	for locator, e := range r.entries {
		delete(r.entries, locator)
		if e.refs == 0 {
			toClose = append(toClose, e)
			continue
		}
		e.draining = true
		r.draining[e] = struct{}{}
	}
	r.mu.Unlock()

	for _, e := range toClose {
		r.closeDB(e.locator, e.db)
	}
	return nil
}

func (r *Registry) closeDB(locator tenantDomain.StoreLocator, db *sql.DB) {
	if err := db.Close(); err != nil {
		r.logger.Debug("error while closing tenant pool",
			slog.String("locator", locator.String()),
			slog.Any("error", err))
	}
}

func (r *Registry) record(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ctx := context.Background()
	r.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	r.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}
