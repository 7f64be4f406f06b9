package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	accessService "github.com/braidmgr/braidmgr/internal/access/service"
	"github.com/braidmgr/braidmgr/internal/pool"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

type mockTenantAdmin struct {
	mock.Mock
}

func (m *mockTenantAdmin) ListActive(ctx context.Context) ([]*tenantDomain.TenantRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*tenantDomain.TenantRecord), args.Error(1)
}

func (m *mockTenantAdmin) Create(
	ctx context.Context,
	input *tenantDomain.CreateTenantInput,
) (*tenantDomain.TenantRecord, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenantDomain.TenantRecord), args.Error(1)
}

func (m *mockTenantAdmin) Deactivate(ctx context.Context, tenantID string) error {
	return m.Called(ctx, tenantID).Error(0)
}

func TestRunCreateTenant(t *testing.T) {
	ctx := context.Background()
	input := &tenantDomain.CreateTenantInput{ID: "acme", Name: "Acme", Locator: "acme_db"}
	record := &tenantDomain.TenantRecord{ID: "acme", Name: "Acme", Locator: "acme_db", CreatedAt: time.Now().UTC()}

	t.Run("text-output", func(t *testing.T) {
		directory := &mockTenantAdmin{}
		directory.On("Create", ctx, input).Return(record, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunCreateTenant(ctx, directory, discardLogger(), &out, input, "text"))
		assert.Contains(t, out.String(), "Store locator: acme_db")
		assert.Contains(t, out.String(), "migrate-tenant --tenant acme")
	})

	t.Run("json-output", func(t *testing.T) {
		directory := &mockTenantAdmin{}
		directory.On("Create", ctx, input).Return(record, nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunCreateTenant(ctx, directory, discardLogger(), &out, input, "json"))
		var got map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, "acme_db", got["locator"])
	})

	t.Run("conflict", func(t *testing.T) {
		directory := &mockTenantAdmin{}
		directory.On("Create", ctx, input).Return(nil, tenantDomain.ErrTenantAlreadyExists).Once()

		err := RunCreateTenant(ctx, directory, discardLogger(), &bytes.Buffer{}, input, "text")
		assert.ErrorIs(t, err, tenantDomain.ErrTenantAlreadyExists)
	})
}

func TestRunDeactivateTenant(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		directory := &mockTenantAdmin{}
		directory.On("Deactivate", ctx, "acme").Return(nil).Once()

		var out bytes.Buffer
		require.NoError(t, RunDeactivateTenant(ctx, directory, discardLogger(), &out, "acme"))
		assert.Equal(t, "Tenant acme deactivated\n", out.String())
	})

	t.Run("not-found", func(t *testing.T) {
		directory := &mockTenantAdmin{}
		directory.On("Deactivate", ctx, "acme").Return(tenantDomain.ErrTenantNotFound).Once()

		err := RunDeactivateTenant(ctx, directory, discardLogger(), &bytes.Buffer{}, "acme")
		assert.ErrorIs(t, err, tenantDomain.ErrTenantNotFound)
	})
}

func TestRunListTenants(t *testing.T) {
	ctx := context.Background()
	directory := &mockTenantAdmin{}
	directory.On("ListActive", ctx).Return([]*tenantDomain.TenantRecord{
		{ID: "acme", Name: "Acme", Locator: "acme_db"},
	}, nil)

	var out bytes.Buffer
	require.NoError(t, RunListTenants(ctx, directory, &out, "json"))
	assert.Contains(t, out.String(), `"locator": "acme_db"`)

	out.Reset()
	require.NoError(t, RunListTenants(ctx, directory, &out, "text"))
	assert.Contains(t, out.String(), "acme")
}

func TestRunIssueToken(t *testing.T) {
	credentials := accessService.NewCredentialService(
		[]byte("0123456789abcdef0123456789abcdef"), "braidmgr", time.Hour,
	)
	input := &accessDomain.IssueCredentialInput{
		SubjectID: uuid.Must(uuid.NewV7()),
		Email:     "pm@acme.test",
		TenantID:  "acme",
		OrgRole:   accessDomain.OrgRoleMember,
	}

	t.Run("json-output", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunIssueToken(credentials, &out, input, "json"))

		var got map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		token, _ := got["token"].(string)
		claims, err := credentials.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, input.SubjectID, claims.SubjectID)
	})

	t.Run("invalid-input", func(t *testing.T) {
		err := RunIssueToken(credentials, &bytes.Buffer{}, &accessDomain.IssueCredentialInput{}, "text")
		assert.Error(t, err)
	})
}

type staticWarmer map[tenantDomain.StoreLocator]pool.WarmResult

func (s staticWarmer) Warm(ctx context.Context, locators []tenantDomain.StoreLocator) []pool.WarmResult {
	out := make([]pool.WarmResult, len(locators))
	for i, locator := range locators {
		out[i] = s[locator]
		out[i].Locator = locator
	}
	return out
}

func TestRunCheckPools(t *testing.T) {
	ctx := context.Background()
	tenants := staticTenants{records: []*tenantDomain.TenantRecord{
		{ID: "acme", Locator: "acme_db"},
		{ID: "globex", Locator: "globex_db"},
	}}

	t.Run("all-healthy", func(t *testing.T) {
		warmer := staticWarmer{"acme_db": {Healthy: true}, "globex_db": {Healthy: true}}

		var out bytes.Buffer
		require.NoError(t, RunCheckPools(ctx, tenants, warmer, &out, "text"))
		assert.Contains(t, out.String(), "OK")
		assert.NotContains(t, out.String(), "UNHEALTHY")
	})

	t.Run("one-unreachable", func(t *testing.T) {
		warmer := staticWarmer{"acme_db": {Healthy: true}, "globex_db": {Err: pool.ErrPoolUnavailable}}

		var out bytes.Buffer
		err := RunCheckPools(ctx, tenants, warmer, &out, "json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2")
		assert.Contains(t, out.String(), `"tenant_id": "globex"`)
		assert.Contains(t, out.String(), "tenant pool unavailable")
	})
}
