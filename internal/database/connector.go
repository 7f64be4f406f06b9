package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PoolConfig describes how per-tenant pools are opened.
type PoolConfig struct {
	Driver          string
	DSNTemplate     string
	MinConnections  int
	MaxConnections  int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Connector opens a live pool for a tenant store locator.
type Connector interface {
	Connect(ctx context.Context, locator string) (*sql.DB, error)
}

// TemplateConnector renders the locator into a DSN template and opens a pool with it.
type TemplateConnector struct {
	cfg PoolConfig
}

// NewTemplateConnector creates a connector for the given pool configuration.
func NewTemplateConnector(cfg PoolConfig) *TemplateConnector {
	return &TemplateConnector{cfg: cfg}
}

// DSN returns the connection string for locator.
func (t *TemplateConnector) DSN(locator string) string {
	return strings.ReplaceAll(t.cfg.DSNTemplate, "{locator}", locator)
}

// Connect opens the pool, verifies it with a round trip and pre-opens MinConnections
// connections so they sit idle in the pool.
func (t *TemplateConnector) Connect(ctx context.Context, locator string) (*sql.DB, error) {
	db, err := Connect(ctx, Config{
		Driver:             t.cfg.Driver,
		ConnectionString:   t.DSN(locator),
		MaxOpenConnections: t.cfg.MaxConnections,
		MaxIdleConnections: t.cfg.MaxConnections,
		ConnMaxLifetime:    t.cfg.ConnMaxLifetime,
		ConnMaxIdleTime:    t.cfg.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}

	if err := Prefill(ctx, db, t.cfg.MinConnections); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Prefill opens n connections and returns them to the idle set.
func Prefill(ctx context.Context, db *sql.DB, n int) error {
	conns := make([]*sql.Conn, 0, n)
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	for i := 0; i < n; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			return fmt.Errorf("failed to open connection %d of %d: %w", i+1, n, err)
		}
		conns = append(conns, conn)
	}

	return nil
}
