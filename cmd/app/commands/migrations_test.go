package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

type staticTenants struct {
	records []*tenantDomain.TenantRecord
	err     error
}

func (s staticTenants) ListActive(ctx context.Context) ([]*tenantDomain.TenantRecord, error) {
	return s.records, s.err
}

type templateDSN string

func (t templateDSN) DSN(locator string) string {
	return strings.ReplaceAll(string(t), "{locator}", locator)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunMigrations(t *testing.T) {
	t.Run("invalid-connection-string", func(t *testing.T) {
		err := RunMigrations(discardLogger(), "postgres", "invalid-connection-string")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to create migrate instance")
	})
}

func TestMigrationHelpers(t *testing.T) {
	assert.Equal(t, "file://migrations/central/postgresql", migrationsPath(CentralMigrations, "pgx"))
	assert.Equal(t, "file://migrations/tenant/mysql", migrationsPath(TenantMigrations, "mysql"))
	assert.Equal(t, "mysql://u:p@tcp(db:3306)/acme", migrationURL("mysql", "u:p@tcp(db:3306)/acme"))
	assert.Equal(t, "mysql://u:p@tcp(db:3306)/acme", migrationURL("mysql", "mysql://u:p@tcp(db:3306)/acme"))
	assert.Equal(t, "postgres://db/acme", migrationURL("postgres", "postgres://db/acme"))
}

func TestRunTenantMigrations(t *testing.T) {
	ctx := context.Background()
	tenants := staticTenants{records: []*tenantDomain.TenantRecord{
		{ID: "acme", Locator: "acme_db"},
		{ID: "globex", Locator: "globex_db"},
	}}

	t.Run("unknown-tenant", func(t *testing.T) {
		err := RunTenantMigrations(ctx, tenants, templateDSN("x"), "postgres", discardLogger(), &bytes.Buffer{}, "initech")
		assert.ErrorIs(t, err, tenantDomain.ErrTenantNotFound)
	})

	t.Run("list-fails", func(t *testing.T) {
		err := RunTenantMigrations(
			ctx, staticTenants{err: assert.AnError}, templateDSN("x"), "postgres", discardLogger(), &bytes.Buffer{}, "",
		)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("every-tenant-attempted", func(t *testing.T) {
		var out bytes.Buffer
		err := RunTenantMigrations(
			ctx, tenants, templateDSN("invalid-{locator}"), "postgres", discardLogger(), &out, "",
		)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "tenant acme")
		assert.Contains(t, err.Error(), "tenant globex")
		assert.Contains(t, out.String(), "FAILED  acme (acme_db)")
		assert.Contains(t, out.String(), "FAILED  globex (globex_db)")
	})
}
