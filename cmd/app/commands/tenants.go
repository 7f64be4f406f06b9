package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// TenantAdmin is the directory surface used by the tenant commands.
type TenantAdmin interface {
	ListActive(ctx context.Context) ([]*tenantDomain.TenantRecord, error)
	Create(ctx context.Context, input *tenantDomain.CreateTenantInput) (*tenantDomain.TenantRecord, error)
	Deactivate(ctx context.Context, tenantID string) error
}

type tenantOutput struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Locator   string    `json:"locator"`
	CreatedAt time.Time `json:"created_at"`
}

func mapTenant(record *tenantDomain.TenantRecord) tenantOutput {
	return tenantOutput{
		ID:        record.ID,
		Name:      record.Name,
		Locator:   record.Locator.String(),
		CreatedAt: record.CreatedAt,
	}
}

// RunCreateTenant registers a tenant in the central directory. The tenant store
// itself must be created and migrated separately.
func RunCreateTenant(
	ctx context.Context,
	directory TenantAdmin,
	logger *slog.Logger,
	writer io.Writer,
	input *tenantDomain.CreateTenantInput,
	format string,
) error {
	record, err := directory.Create(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	logger.Info("tenant created",
		slog.String("tenant_id", record.ID),
		slog.String("locator", record.Locator.String()))

	if format == "json" {
		writeJSON(writer, mapTenant(record))
		return nil
	}

	_, _ = fmt.Fprintln(writer, "Tenant created successfully!")
	_, _ = fmt.Fprintf(writer, "Tenant ID: %s\n", record.ID)
	_, _ = fmt.Fprintf(writer, "Store locator: %s\n", record.Locator)
	_, _ = fmt.Fprintf(writer, "\nRun 'migrate-tenant --tenant %s' once the store exists.\n", record.ID)
	return nil
}

// RunDeactivateTenant soft-deletes a tenant. Requests for it fail from then on; its
// store is left untouched.
func RunDeactivateTenant(
	ctx context.Context,
	directory TenantAdmin,
	logger *slog.Logger,
	writer io.Writer,
	tenantID string,
) error {
	if err := directory.Deactivate(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to deactivate tenant: %w", err)
	}

	logger.Info("tenant deactivated", slog.String("tenant_id", tenantID))
	_, _ = fmt.Fprintf(writer, "Tenant %s deactivated\n", tenantID)
	return nil
}

// RunListTenants prints every active tenant.
func RunListTenants(ctx context.Context, directory TenantAdmin, writer io.Writer, format string) error {
	records, err := directory.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	if format == "json" {
		out := make([]tenantOutput, 0, len(records))
		for _, record := range records {
			out = append(out, mapTenant(record))
		}
		writeJSON(writer, out)
		return nil
	}

	for _, record := range records {
		_, _ = fmt.Fprintf(writer, "%-24s %-32s %s\n", record.ID, record.Locator, record.Name)
	}
	return nil
}
