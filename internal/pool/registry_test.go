package pool

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	"github.com/braidmgr/braidmgr/internal/metrics"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// fakeConnector hands out sqlmock-backed pools and records every construction.
type fakeConnector struct {
	mu           sync.Mutex
	calls        map[string]int
	dbs          map[string][]*sql.DB
	mocks        map[string][]sqlmock.Sqlmock
	failFor      map[string]error
	block        chan struct{}
	ignoreCtx    bool
	monitorPings bool
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		calls:   make(map[string]int),
		dbs:     make(map[string][]*sql.DB),
		mocks:   make(map[string][]sqlmock.Sqlmock),
		failFor: make(map[string]error),
	}
}

func (f *fakeConnector) Connect(ctx context.Context, locator string) (*sql.DB, error) {
	f.mu.Lock()
	f.calls[locator]++
	block := f.block
	failErr := f.failFor[locator]
	f.mu.Unlock()

	if block != nil {
		if f.ignoreCtx {
			<-block
		} else {
			select {
			case <-block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if failErr != nil {
		return nil, failErr
	}

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(f.monitorPings))
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.dbs[locator] = append(f.dbs[locator], db)
	f.mocks[locator] = append(f.mocks[locator], mock)
	f.mu.Unlock()

	return db, nil
}

func (f *fakeConnector) Calls(locator string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[locator]
}

func (f *fakeConnector) DB(locator string, i int) *sql.DB {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dbs[locator][i]
}

func (f *fakeConnector) Mock(locator string, i int) sqlmock.Sqlmock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mocks[locator][i]
}

func (f *fakeConnector) SetFailure(locator string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[locator] = err
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	return Config{
		ConstructTimeout: 2 * time.Second,
		ProbeTimeout:     time.Second,
		IdleThreshold:    5 * time.Minute,
		SweepInterval:    30 * time.Second,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func isClosed(db *sql.DB) bool {
	return db.Ping() != nil
}

const (
	acme   tenantDomain.StoreLocator = "org_acme"
	globex tenantDomain.StoreLocator = "org_globex"
	hooli  tenantDomain.StoreLocator = "org_hooli"
)

func TestRegistry_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ReusesLivePool", func(t *testing.T) {
		connector := newFakeConnector()
		registry := NewRegistry(connector, testConfig(), testLogger())
		defer func() { _ = registry.Close() }()

		first, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)
		second, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)

		assert.Same(t, first.DB(), second.DB())
		assert.Equal(t, acme, first.Locator())
		assert.Equal(t, 1, connector.Calls(acme.String()))
		assert.Equal(t, 2, registry.InFlight(acme))

		first.Release()
		first.Release()
		assert.Equal(t, 1, registry.InFlight(acme))

		second.Release()
		assert.Equal(t, 0, registry.InFlight(acme))
		assert.False(t, isClosed(second.DB()))
	})

	t.Run("Success_DistinctPoolsPerLocator", func(t *testing.T) {
		connector := newFakeConnector()
		registry := NewRegistry(connector, testConfig(), testLogger())
		defer func() { _ = registry.Close() }()

		a, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)
		defer a.Release()
		g, err := registry.Acquire(ctx, globex)
		require.NoError(t, err)
		defer g.Release()

		assert.NotSame(t, a.DB(), g.DB())
		assert.Len(t, registry.Stats(), 2)
	})

	t.Run("Error_ConstructionFailureIsNotCached", func(t *testing.T) {
		connector := newFakeConnector()
		connector.SetFailure(acme.String(), errors.New("connection refused"))
		registry := NewRegistry(connector, testConfig(), testLogger())
		defer func() { _ = registry.Close() }()

		h, err := registry.Acquire(ctx, acme)
		assert.Nil(t, h)
		assert.ErrorIs(t, err, ErrPoolUnavailable)
		assert.True(t, apperrors.IsRetryable(err))
		assert.Empty(t, registry.Stats())

		connector.SetFailure(acme.String(), nil)
		h, err = registry.Acquire(ctx, acme)
		require.NoError(t, err)
		h.Release()
		assert.Equal(t, 2, connector.Calls(acme.String()))
	})

	t.Run("Error_RegistryClosed", func(t *testing.T) {
		registry := NewRegistry(newFakeConnector(), testConfig(), testLogger())
		require.NoError(t, registry.Close())

		_, err := registry.Acquire(ctx, acme)
		assert.ErrorIs(t, err, ErrRegistryClosed)
		assert.ErrorIs(t, err, ErrPoolUnavailable)
	})
}

func TestRegistry_Acquire_SingleFlight(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	connector := newFakeConnector()
	connector.block = make(chan struct{})
	registry := NewRegistry(connector, testConfig(), testLogger())
	defer func() { _ = registry.Close() }()

	const callers = 50
	handles := make([]*Handle, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = registry.Acquire(context.Background(), acme)
		}(i)
	}

	require.Eventually(t, func() bool {
		return connector.Calls(acme.String()) == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(connector.block)
	wg.Wait()

	assert.Equal(t, 1, connector.Calls(acme.String()))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, connector.DB(acme.String(), 0), handles[i].DB())
	}
	assert.Equal(t, callers, registry.InFlight(acme))

	for _, h := range handles {
		h.Release()
	}
	assert.Equal(t, 0, registry.InFlight(acme))
}

func TestRegistry_Acquire_ConstructionTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	connector := newFakeConnector()
	connector.block = make(chan struct{})
	connector.ignoreCtx = true

	cfg := testConfig()
	cfg.ConstructTimeout = 50 * time.Millisecond
	registry := NewRegistry(connector, cfg, testLogger())
	defer func() { _ = registry.Close() }()

	start := time.Now()
	h, err := registry.Acquire(context.Background(), acme)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrPoolUnavailable)
	assert.Less(t, time.Since(start), time.Second)

	// the stalled construction finishes late and its pool is discarded
	close(connector.block)
	require.Eventually(t, func() bool {
		connector.mu.Lock()
		defer connector.mu.Unlock()
		return len(connector.dbs[acme.String()]) == 1
	}, time.Second, time.Millisecond)
	late := connector.DB(acme.String(), 0)
	assert.Eventually(t, func() bool { return isClosed(late) }, time.Second, time.Millisecond)
	assert.Empty(t, registry.Stats())

	h, err = registry.Acquire(context.Background(), acme)
	require.NoError(t, err)
	assert.NotSame(t, late, h.DB())
	assert.Equal(t, 2, connector.Calls(acme.String()))
	h.Release()
}

func TestRegistry_Acquire_WaiterDeadline(t *testing.T) {
	connector := newFakeConnector()
	connector.block = make(chan struct{})
	registry := NewRegistry(connector, testConfig(), testLogger())
	defer func() { _ = registry.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := registry.Acquire(ctx, acme)
	assert.ErrorIs(t, err, ErrPoolUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// construction is not tied to the waiter and still completes
	close(connector.block)
	assert.Eventually(t, func() bool { return len(registry.Stats()) == 1 }, time.Second, time.Millisecond)
}

func TestRegistry_IsolationUnderConcurrency(t *testing.T) {
	connector := newFakeConnector()
	registry := NewRegistry(connector, testConfig(), testLogger())
	defer func() { _ = registry.Close() }()

	locators := []tenantDomain.StoreLocator{acme, globex, hooli}

	const requests = 300
	var wg sync.WaitGroup
	wg.Add(requests)
	for i := 0; i < requests; i++ {
		go func() {
			defer wg.Done()
			locator := locators[rand.IntN(len(locators))]

			h, err := registry.Acquire(context.Background(), locator)
			if !assert.NoError(t, err) {
				return
			}
			defer h.Release()

			assert.Equal(t, locator, h.Locator())
			assert.Same(t, connector.DB(locator.String(), 0), h.DB())
		}()
	}
	wg.Wait()

	for _, locator := range locators {
		assert.Equal(t, 1, connector.Calls(locator.String()))
		assert.Equal(t, 0, registry.InFlight(locator))
	}
}

func TestRegistry_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_EvictsIdlePoolAndRebuildsTransparently", func(t *testing.T) {
		clock := &manualClock{now: time.Now()}
		connector := newFakeConnector()
		registry := NewRegistry(connector, testConfig(), testLogger(), WithClock(clock.Now))
		defer func() { _ = registry.Close() }()

		h, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)
		old := h.DB()
		h.Release()

		clock.Advance(4 * time.Minute)
		assert.Equal(t, SweepResult{}, registry.Sweep(ctx))

		clock.Advance(2 * time.Minute)
		assert.Equal(t, SweepResult{Evicted: 1}, registry.Sweep(ctx))
		assert.Empty(t, registry.Stats())
		assert.True(t, isClosed(old))

		h, err = registry.Acquire(ctx, acme)
		require.NoError(t, err)
		defer h.Release()
		assert.NotSame(t, old, h.DB())
		assert.Equal(t, 2, connector.Calls(acme.String()))
	})

	t.Run("Success_NeverEvictsReferencedPool", func(t *testing.T) {
		clock := &manualClock{now: time.Now()}
		registry := NewRegistry(newFakeConnector(), testConfig(), testLogger(), WithClock(clock.Now))
		defer func() { _ = registry.Close() }()

		h, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)

		clock.Advance(time.Hour)
		assert.Equal(t, SweepResult{}, registry.Sweep(ctx))
		assert.False(t, isClosed(h.DB()))

		h.Release()
	})

	t.Run("Success_DrainsUnhealthyPoolWithHolders", func(t *testing.T) {
		connector := newFakeConnector()
		connector.monitorPings = true
		registry := NewRegistry(connector, testConfig(), testLogger())
		defer func() { _ = registry.Close() }()

		held, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)
		oldMock := connector.Mock(acme.String(), 0)
		oldMock.ExpectPing().WillReturnError(errors.New("server closed the connection"))

		assert.Equal(t, SweepResult{Drained: 1}, registry.Sweep(ctx))
		assert.Empty(t, registry.Stats())
		assert.Equal(t, 1, registry.Draining())

		// the in-flight holder can still use the drained pool
		oldMock.ExpectPing()
		assert.NoError(t, held.DB().Ping())

		fresh, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)
		assert.NotSame(t, held.DB(), fresh.DB())
		assert.Equal(t, metrics.PoolGauges{Live: 1, InFlight: 2, Draining: 1}, registry.Gauges())

		held.Release()
		assert.Equal(t, 0, registry.Draining())
		assert.True(t, isClosed(held.DB()))

		fresh.Release()
	})

	t.Run("Success_ClosesUnhealthyIdlePoolImmediately", func(t *testing.T) {
		connector := newFakeConnector()
		connector.monitorPings = true
		registry := NewRegistry(connector, testConfig(), testLogger())
		defer func() { _ = registry.Close() }()

		h, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)
		h.Release()

		connector.Mock(acme.String(), 0).ExpectPing().WillReturnError(errors.New("timeout"))

		assert.Equal(t, SweepResult{Drained: 1}, registry.Sweep(ctx))
		assert.Equal(t, 0, registry.Draining())
		assert.True(t, isClosed(h.DB()))
	})
}

func TestHandle_Invalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_DrainsAndRebuilds", func(t *testing.T) {
		connector := newFakeConnector()
		registry := NewRegistry(connector, testConfig(), testLogger())
		defer func() { _ = registry.Close() }()

		other, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)
		h, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)

		assert.True(t, h.Invalidate(ctx))
		assert.Empty(t, registry.Stats())
		assert.Equal(t, 0, registry.InFlight(acme))
		assert.Equal(t, 1, registry.Draining())

		h.Release()
		assert.Equal(t, 1, registry.Draining(), "pool stays open for the remaining holder")
		assert.False(t, isClosed(other.DB()))

		other.Release()
		assert.Equal(t, 0, registry.Draining())
		assert.True(t, isClosed(other.DB()))

		fresh, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)
		defer fresh.Release()
		assert.Equal(t, 2, connector.Calls(acme.String()))
		assert.NotSame(t, h.DB(), fresh.DB())
	})

	t.Run("Success_SecondInvalidateIsNoop", func(t *testing.T) {
		registry := NewRegistry(newFakeConnector(), testConfig(), testLogger())
		defer func() { _ = registry.Close() }()

		first, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)
		second, err := registry.Acquire(ctx, acme)
		require.NoError(t, err)

		assert.True(t, first.Invalidate(ctx))
		assert.False(t, second.Invalidate(ctx))
		assert.Equal(t, 1, registry.Draining())

		first.Release()
		second.Release()
		assert.Equal(t, 0, registry.Draining())
	})
}

func TestRegistry_Healthy(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(newFakeConnector(), testConfig(), testLogger())
	defer func() { _ = registry.Close() }()

	assert.False(t, registry.Healthy(ctx, acme))

	h, err := registry.Acquire(ctx, acme)
	require.NoError(t, err)
	defer h.Release()

	assert.True(t, registry.Healthy(ctx, acme))
	assert.True(t, h.Healthy(ctx))
}

func TestRegistry_Warm(t *testing.T) {
	connector := newFakeConnector()
	connector.SetFailure(globex.String(), errors.New("database does not exist"))
	registry := NewRegistry(connector, testConfig(), testLogger())
	defer func() { _ = registry.Close() }()

	results := registry.Warm(context.Background(), []tenantDomain.StoreLocator{acme, globex})

	require.Len(t, results, 2)
	assert.Equal(t, acme, results[0].Locator)
	assert.True(t, results[0].Healthy)
	assert.NoError(t, results[0].Err)

	assert.Equal(t, globex, results[1].Locator)
	assert.False(t, results[1].Healthy)
	assert.ErrorIs(t, results[1].Err, ErrPoolUnavailable)

	assert.Equal(t, 0, registry.InFlight(acme))
	stats := registry.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, acme, stats[0].Locator)
}

func TestRegistry_Close(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(newFakeConnector(), testConfig(), testLogger())

	held, err := registry.Acquire(ctx, acme)
	require.NoError(t, err)
	idle, err := registry.Acquire(ctx, globex)
	require.NoError(t, err)
	idle.Release()

	require.NoError(t, registry.Close())
	require.NoError(t, registry.Close())

	assert.True(t, isClosed(idle.DB()))
	assert.False(t, isClosed(held.DB()))
	assert.Equal(t, 1, registry.Draining())

	held.Release()
	assert.True(t, isClosed(held.DB()))
	assert.Equal(t, 0, registry.Draining())
}

func TestRegistry_Start(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testConfig()
	cfg.IdleThreshold = time.Millisecond
	cfg.SweepInterval = 5 * time.Millisecond
	registry := NewRegistry(newFakeConnector(), cfg, testLogger())
	defer func() { _ = registry.Close() }()

	h, err := registry.Acquire(context.Background(), acme)
	require.NoError(t, err)
	h.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- registry.Start(ctx)
	}()

	assert.Eventually(t, func() bool { return len(registry.Stats()) == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
