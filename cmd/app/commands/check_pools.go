package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/braidmgr/braidmgr/internal/pool"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// PoolWarmer builds and health-checks tenant pools.
type PoolWarmer interface {
	Warm(ctx context.Context, locators []tenantDomain.StoreLocator) []pool.WarmResult
}

type poolCheck struct {
	TenantID string `json:"tenant_id"`
	Locator  string `json:"locator"`
	Healthy  bool   `json:"healthy"`
	Error    string `json:"error,omitempty"`
}

// RunCheckPools opens a pool for every active tenant and pings it. It fails when
// any tenant store is unreachable.
func RunCheckPools(
	ctx context.Context,
	tenants TenantLister,
	warmer PoolWarmer,
	writer io.Writer,
	format string,
) error {
	records, err := tenants.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	locators := make([]tenantDomain.StoreLocator, len(records))
	for i, record := range records {
		locators[i] = record.Locator
	}

	results := warmer.Warm(ctx, locators)
	checks := make([]poolCheck, len(results))
	unhealthy := 0
	for i, res := range results {
		checks[i] = poolCheck{TenantID: records[i].ID, Locator: res.Locator.String(), Healthy: res.Healthy}
		if res.Err != nil {
			checks[i].Error = res.Err.Error()
		}
		if !res.Healthy {
			unhealthy++
		}
	}

	if format == "json" {
		writeJSON(writer, checks)
	} else {
		for _, check := range checks {
			status := "OK"
			if !check.Healthy {
				status = "UNHEALTHY"
			}
			_, _ = fmt.Fprintf(writer, "%-10s %-24s %s %s\n", status, check.TenantID, check.Locator, check.Error)
		}
	}

	if unhealthy > 0 {
		return fmt.Errorf("%d of %d tenant pools unhealthy", unhealthy, len(checks))
	}
	return nil
}
