package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/braidmgr/braidmgr/internal/database"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// Migration sets.
const (
	CentralMigrations = "central"
	TenantMigrations  = "tenant"
)

// TenantLister returns the tenants whose stores should be migrated.
type TenantLister interface {
	ListActive(ctx context.Context) ([]*tenantDomain.TenantRecord, error)
}

// DSNRenderer renders a tenant store connection string from its locator.
type DSNRenderer interface {
	DSN(locator string) string
}

// migrationsPath returns the source URL of a migration set for driver.
func migrationsPath(set, driver string) string {
	return fmt.Sprintf("file://migrations/%s/%s", set, database.Dialect(driver))
}

// migrationURL adapts a driver DSN to the URL form golang-migrate expects.
func migrationURL(driver, dsn string) string {
	if database.Dialect(driver) == "mysql" && !strings.HasPrefix(dsn, "mysql://") {
		return "mysql://" + dsn
	}
	return dsn
}

// RunMigrations applies the central directory migrations.
func RunMigrations(logger *slog.Logger, driver, connectionString string) error {
	logger.Info("running central database migrations", slog.String("driver", driver))

	if err := migrateUp(logger, migrationsPath(CentralMigrations, driver), migrationURL(driver, connectionString)); err != nil {
		return err
	}

	logger.Info("migrations completed successfully")
	return nil
}

// RunTenantMigrations applies the tenant store migrations to one tenant, or to every
// active tenant when tenantID is empty. Every tenant is attempted; failures are
// reported together at the end.
func RunTenantMigrations(
	ctx context.Context,
	tenants TenantLister,
	dsn DSNRenderer,
	driver string,
	logger *slog.Logger,
	writer io.Writer,
	tenantID string,
) error {
	records, err := tenants.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	if tenantID != "" {
		records = filterTenant(records, tenantID)
		if len(records) == 0 {
			return fmt.Errorf("%w: %s", tenantDomain.ErrTenantNotFound, tenantID)
		}
	}

	source := migrationsPath(TenantMigrations, driver)
	var errs []error
	for _, record := range records {
		logger.Info("migrating tenant store",
			slog.String("tenant_id", record.ID),
			slog.String("locator", record.Locator.String()))

		if err := migrateUp(logger, source, migrationURL(driver, dsn.DSN(record.Locator.String()))); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", record.ID, err))
			_, _ = fmt.Fprintf(writer, "FAILED  %s (%s): %v\n", record.ID, record.Locator, err)
			continue
		}
		_, _ = fmt.Fprintf(writer, "OK      %s (%s)\n", record.ID, record.Locator)
	}

	return errors.Join(errs...)
}

func filterTenant(records []*tenantDomain.TenantRecord, tenantID string) []*tenantDomain.TenantRecord {
	for _, record := range records {
		if record.ID == tenantID {
			return []*tenantDomain.TenantRecord{record}
		}
	}
	return nil
}

func migrateUp(logger *slog.Logger, source, databaseURL string) error {
	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
