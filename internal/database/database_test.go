package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Error(t *testing.T) {
	cfg := Config{
		Driver:             "invalid",
		ConnectionString:   "invalid",
		MaxOpenConnections: 10,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    time.Hour,
	}

	db, err := Connect(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "sql: unknown driver")
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "mysql", Dialect("mysql"))
	assert.Equal(t, "postgresql", Dialect("postgres"))
	assert.Equal(t, "postgresql", Dialect("pgx"))
}

func TestTemplateConnector_DSN(t *testing.T) {
	connector := NewTemplateConnector(PoolConfig{
		DSNTemplate: "postgres://u:p@db:5432/{locator}?sslmode=disable",
	})

	assert.Equal(t, "postgres://u:p@db:5432/org_acme?sslmode=disable", connector.DSN("org_acme"))
}

func TestTemplateConnector_Connect(t *testing.T) {
	t.Run("Success_OpensAndPrefills", func(t *testing.T) {
		mockDB, _, err := sqlmock.NewWithDSN("connector_test_org_acme")
		require.NoError(t, err)
		defer func() { _ = mockDB.Close() }()

		connector := NewTemplateConnector(PoolConfig{
			Driver:          "sqlmock",
			DSNTemplate:     "connector_test_{locator}",
			MinConnections:  2,
			MaxConnections:  4,
			ConnMaxLifetime: time.Minute,
		})

		db, err := connector.Connect(context.Background(), "org_acme")
		require.NoError(t, err)
		require.NotNil(t, db)

		stats := db.Stats()
		assert.Equal(t, 4, stats.MaxOpenConnections)
		assert.GreaterOrEqual(t, stats.Idle, 1)
	})

	t.Run("Error_UnknownStore", func(t *testing.T) {
		connector := NewTemplateConnector(PoolConfig{
			Driver:         "sqlmock",
			DSNTemplate:    "connector_test_{locator}",
			MaxConnections: 2,
		})

		db, err := connector.Connect(context.Background(), "org_missing")
		assert.Error(t, err)
		assert.Nil(t, db)
		assert.Contains(t, err.Error(), "failed to ping database")
	})
}
