package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	accessRepository "github.com/braidmgr/braidmgr/internal/access/repository"
	accessService "github.com/braidmgr/braidmgr/internal/access/service"
	accessUseCase "github.com/braidmgr/braidmgr/internal/access/usecase"
	auditRepository "github.com/braidmgr/braidmgr/internal/audit/repository"
	auditUseCase "github.com/braidmgr/braidmgr/internal/audit/usecase"
	"github.com/braidmgr/braidmgr/internal/database"
	itemRepository "github.com/braidmgr/braidmgr/internal/item/repository"
	itemUseCase "github.com/braidmgr/braidmgr/internal/item/usecase"
	"github.com/braidmgr/braidmgr/internal/metrics"
	"github.com/braidmgr/braidmgr/internal/orchestrator"
	"github.com/braidmgr/braidmgr/internal/pool"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
	tenantRepository "github.com/braidmgr/braidmgr/internal/tenant/repository"
	tenantUseCase "github.com/braidmgr/braidmgr/internal/tenant/usecase"
)

type tenancyComponents struct {
	directory   tenantUseCase.DirectoryUseCase
	registry    *pool.Registry
	credentials accessService.CredentialService
	resolver    accessUseCase.ContextResolver
	recorder    auditUseCase.Recorder
	reader      auditUseCase.Reader
	items       *itemUseCase.ItemUseCase
	executor    orchestrator.Executor

	directoryInit   sync.Once
	registryInit    sync.Once
	credentialsInit sync.Once
	resolverInit    sync.Once
	auditInit       sync.Once
	itemsInit       sync.Once
	executorInit    sync.Once
}

// Directory returns the cached tenant directory backed by the central database.
func (c *Container) Directory() (tenantUseCase.DirectoryUseCase, error) {
	c.tenancy.directoryInit.Do(func() {
		var err error
		c.tenancy.directory, err = c.initDirectory()
		c.setErr("directory", err)
	})
	return c.tenancy.directory, c.err("directory")
}

// PoolRegistry returns the per-tenant pool registry.
func (c *Container) PoolRegistry() (*pool.Registry, error) {
	c.tenancy.registryInit.Do(func() {
		var err error
		c.tenancy.registry, err = c.initPoolRegistry()
		c.setErr("registry", err)
	})
	return c.tenancy.registry, c.err("registry")
}

// CredentialService returns the credential signer and verifier.
func (c *Container) CredentialService(ctx context.Context) (accessService.CredentialService, error) {
	c.tenancy.credentialsInit.Do(func() {
		var err error
		c.tenancy.credentials, err = c.initCredentialService(ctx)
		c.setErr("credentials", err)
	})
	return c.tenancy.credentials, c.err("credentials")
}

// ContextResolver returns the resolver that turns credentials into request contexts.
func (c *Container) ContextResolver() (accessUseCase.ContextResolver, error) {
	c.tenancy.resolverInit.Do(func() {
		var err error
		c.tenancy.resolver, err = c.initContextResolver()
		c.setErr("resolver", err)
	})
	return c.tenancy.resolver, c.err("resolver")
}

// AuditRecorder returns the audit writer used inside mutation transactions.
func (c *Container) AuditRecorder() (auditUseCase.Recorder, error) {
	c.initAudit()
	return c.tenancy.recorder, c.err("audit")
}

// AuditReader returns the audit trail reader.
func (c *Container) AuditReader() (auditUseCase.Reader, error) {
	c.initAudit()
	return c.tenancy.reader, c.err("audit")
}

// ItemUseCase returns the item operations.
func (c *Container) ItemUseCase() *itemUseCase.ItemUseCase {
	c.tenancy.itemsInit.Do(func() {
		var repo itemUseCase.ItemRepository = itemRepository.NewPostgreSQLItemRepository()
		if database.Dialect(c.config.TenantDBDriver) == "mysql" {
			repo = itemRepository.NewMySQLItemRepository()
		}
		c.tenancy.items = itemUseCase.NewItemUseCase(repo)
	})
	return c.tenancy.items
}

// Executor returns the request orchestrator wrapped with operation metrics.
func (c *Container) Executor() (orchestrator.Executor, error) {
	c.tenancy.executorInit.Do(func() {
		var err error
		c.tenancy.executor, err = c.initExecutor()
		c.setErr("executor", err)
	})
	return c.tenancy.executor, c.err("executor")
}

// WarmPools builds the pools of the tenants listed in POOL_PREWARM_TENANTS. Failures
// are logged and never abort startup.
func (c *Container) WarmPools(ctx context.Context) {
	tenants := c.config.PrewarmTenants()
	if len(tenants) == 0 {
		return
	}
	logger := c.Logger()

	directory, err := c.Directory()
	if err != nil {
		logger.Warn("skipping pool pre-warm", slog.Any("error", err))
		return
	}
	registry, err := c.PoolRegistry()
	if err != nil {
		logger.Warn("skipping pool pre-warm", slog.Any("error", err))
		return
	}

	locators := make([]tenantDomain.StoreLocator, 0, len(tenants))
	for _, tenantID := range tenants {
		locator, err := directory.ResolveLocator(ctx, tenantID)
		if err != nil {
			logger.Warn("cannot pre-warm tenant", slog.String("tenant_id", tenantID), slog.Any("error", err))
			continue
		}
		locators = append(locators, locator)
	}

	for _, res := range registry.Warm(ctx, locators) {
		if res.Err != nil || !res.Healthy {
			logger.Warn("tenant pool pre-warm failed",
				slog.String("locator", res.Locator.String()),
				slog.Any("error", res.Err))
			continue
		}
		logger.Info("tenant pool pre-warmed", slog.String("locator", res.Locator.String()))
	}
}

func (c *Container) initDirectory() (tenantUseCase.DirectoryUseCase, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for directory: %w", err)
	}

	var repo tenantUseCase.DirectoryRepository
	switch database.Dialect(c.config.DBDriver) {
	case "mysql":
		repo = tenantRepository.NewMySQLDirectoryRepository(db)
	default:
		repo = tenantRepository.NewPostgreSQLDirectoryRepository(db)
	}

	return tenantUseCase.NewDirectoryUseCase(
		repo,
		c.config.DirectoryCacheSize,
		c.config.DirectoryCacheTTL,
		c.Logger(),
		tenantUseCase.WithLookupTimeout(c.config.DirectoryLookupTimeout),
	), nil
}

func (c *Container) initPoolRegistry() (*pool.Registry, error) {
	bm, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for pool registry: %w", err)
	}

	connector := database.NewTemplateConnector(database.PoolConfig{
		Driver:          c.config.TenantDBDriver,
		DSNTemplate:     c.config.TenantDBDSNTemplate,
		MinConnections:  c.config.PoolMinConnections,
		MaxConnections:  c.config.PoolMaxConnections,
		ConnMaxIdleTime: c.config.PoolConnMaxIdleTime,
		ConnMaxLifetime: c.config.PoolConnMaxLifetime,
	})

	registry := pool.NewRegistry(connector, pool.Config{
		ConstructTimeout: c.config.PoolConstructTimeout,
		ProbeTimeout:     c.config.PoolProbeTimeout,
		IdleThreshold:    c.config.PoolIdleThreshold,
		SweepInterval:    c.config.PoolSweepInterval,
	}, c.Logger(), pool.WithMetrics(bm))

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider != nil {
		err := metrics.RegisterPoolGauges(provider.MeterProvider(), c.config.MetricsNamespace, registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register pool gauges: %w", err)
		}
	}

	return registry, nil
}

func (c *Container) initCredentialService(ctx context.Context) (accessService.CredentialService, error) {
	key, err := accessService.LoadSigningKey(ctx, c.config.AuthJWTSecret, c.config.AuthJWTSecretKeeperURI)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	return accessService.NewCredentialService(key, c.config.AuthJWTIssuer, c.config.AuthTokenExpiration), nil
}

func (c *Container) initContextResolver() (accessUseCase.ContextResolver, error) {
	credentials, err := c.CredentialService(context.Background())
	if err != nil {
		return nil, err
	}

	directory, err := c.Directory()
	if err != nil {
		return nil, err
	}

	return accessUseCase.NewContextResolver(credentials, directory, c.Logger()), nil
}

func (c *Container) initAudit() {
	c.tenancy.auditInit.Do(func() {
		var repo auditUseCase.AuditRepository = auditRepository.NewPostgreSQLAuditRepository()
		if database.Dialect(c.config.TenantDBDriver) == "mysql" {
			repo = auditRepository.NewMySQLAuditRepository()
		}
		c.tenancy.recorder, c.tenancy.reader = auditUseCase.NewAuditUseCase(repo, c.Logger())
	})
}

func (c *Container) initExecutor() (orchestrator.Executor, error) {
	resolver, err := c.ContextResolver()
	if err != nil {
		return nil, fmt.Errorf("failed to get context resolver for executor: %w", err)
	}

	registry, err := c.PoolRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get pool registry for executor: %w", err)
	}

	recorder, err := c.AuditRecorder()
	if err != nil {
		return nil, err
	}

	bm, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	var roles accessUseCase.ProjectRoleRepository = accessRepository.NewPostgreSQLProjectRoleRepository()
	if database.Dialect(c.config.TenantDBDriver) == "mysql" {
		roles = accessRepository.NewMySQLProjectRoleRepository()
	}

	executor := orchestrator.New(resolver, registry, roles, recorder, orchestrator.Config{
		AcquireTimeout: c.config.PoolAcquireTimeout,
		CommandTimeout: c.config.PoolCommandTimeout,
		ProbeOnAcquire: c.config.PoolProbeOnAcquire,
	}, c.Logger())

	return orchestrator.NewExecutorWithMetrics(executor, bm), nil
}
