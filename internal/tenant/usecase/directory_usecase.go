package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/braidmgr/braidmgr/internal/errors"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// defaultLookupTimeout bounds a shared directory lookup when no option overrides it.
const defaultLookupTimeout = 5 * time.Second

type directoryUseCase struct {
	repo          DirectoryRepository
	cache         *expirable.LRU[string, *tenantDomain.TenantRecord]
	group         singleflight.Group
	lookupTimeout time.Duration
	logger        *slog.Logger
}

// DirectoryOption configures a directory use case.
type DirectoryOption func(*directoryUseCase)

// WithLookupTimeout bounds each shared lookup against the central store. The lookup
// outlives any single caller, so this is its only deadline.
func WithLookupTimeout(d time.Duration) DirectoryOption {
	return func(u *directoryUseCase) {
		if d > 0 {
			u.lookupTimeout = d
		}
	}
}

// NewDirectoryUseCase creates a directory backed by repo with a TTL cache in front of it.
// Only active records are cached.
func NewDirectoryUseCase(
	repo DirectoryRepository,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
	opts ...DirectoryOption,
) DirectoryUseCase {
	u := &directoryUseCase{
		repo:          repo,
		cache:         expirable.NewLRU[string, *tenantDomain.TenantRecord](cacheSize, nil, cacheTTL),
		lookupTimeout: defaultLookupTimeout,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ResolveLocator collapses concurrent misses for one tenant into a single lookup.
// The lookup runs detached from every caller so one caller giving up never fails
// the others; each caller waits only as long as its own ctx allows.
func (d *directoryUseCase) ResolveLocator(
	ctx context.Context,
	tenantID string,
) (tenantDomain.StoreLocator, error) {
	if record, ok := d.cache.Get(tenantID); ok {
		return record.Locator, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := d.group.DoChan(tenantID, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(detached, d.lookupTimeout)
		defer cancel()
		return d.lookup(lookupCtx, tenantID)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", tenantDomain.ErrDirectoryUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*tenantDomain.TenantRecord).Locator, nil
	}
}

// lookup queries the store and classifies the outcome. Only the not-found class
// maps to ErrTenantNotFound; every other failure is a directory outage.
func (d *directoryUseCase) lookup(ctx context.Context, tenantID string) (*tenantDomain.TenantRecord, error) {
	record, err := d.repo.Lookup(ctx, tenantID)
	if err != nil {
		if apperrors.Is(err, tenantDomain.ErrTenantNotFound) {
			return nil, tenantDomain.ErrTenantNotFound
		}
		d.logger.Error("tenant directory lookup failed",
			slog.String("tenant_id", tenantID),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", tenantDomain.ErrDirectoryUnavailable, err)
	}

	if !record.Active() {
		d.logger.Debug("tenant is deactivated", slog.String("tenant_id", tenantID))
		return nil, tenantDomain.ErrTenantNotFound
	}

	if err := record.Locator.Validate(); err != nil {
		d.logger.Error("tenant directory returned an invalid locator",
			slog.String("tenant_id", tenantID),
			slog.String("locator", record.Locator.String()))
		return nil, fmt.Errorf("%w: %w", tenantDomain.ErrDirectoryUnavailable, err)
	}

	d.cache.Add(tenantID, record)
	return record, nil
}

func (d *directoryUseCase) ListActive(ctx context.Context) ([]*tenantDomain.TenantRecord, error) {
	records, err := d.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tenantDomain.ErrDirectoryUnavailable, err)
	}
	return records, nil
}

func (d *directoryUseCase) Create(
	ctx context.Context,
	input *tenantDomain.CreateTenantInput,
) (*tenantDomain.TenantRecord, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &tenantDomain.TenantRecord{
		ID:        input.ID,
		Name:      input.Name,
		Locator:   tenantDomain.StoreLocator(input.Locator),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := d.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	d.logger.Info("tenant created",
		slog.String("tenant_id", record.ID),
		slog.String("locator", record.Locator.String()))

	return record, nil
}

func (d *directoryUseCase) Deactivate(ctx context.Context, tenantID string) error {
	if err := d.repo.SoftDelete(ctx, tenantID); err != nil {
		return err
	}
	d.Invalidate(tenantID)

	d.logger.Info("tenant deactivated", slog.String("tenant_id", tenantID))
	return nil
}

func (d *directoryUseCase) Invalidate(tenantID string) {
	d.cache.Remove(tenantID)
}
