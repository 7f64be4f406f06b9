package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accessDomain "github.com/braidmgr/braidmgr/internal/access/domain"
	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

type mockCredentialService struct {
	mock.Mock
}

func (m *mockCredentialService) Issue(
	input *accessDomain.IssueCredentialInput,
) (string, *accessDomain.Claims, error) {
	args := m.Called(input)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*accessDomain.Claims), args.Error(2)
}

func (m *mockCredentialService) Verify(credential string) (*accessDomain.Claims, error) {
	args := m.Called(credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accessDomain.Claims), args.Error(1)
}

type mockLocatorResolver struct {
	mock.Mock
}

func (m *mockLocatorResolver) ResolveLocator(ctx context.Context, tenantID string) (tenantDomain.StoreLocator, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(tenantDomain.StoreLocator), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestContextResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	claims := &accessDomain.Claims{
		SubjectID: uuid.Must(uuid.NewV7()),
		TenantID:  "acme",
		OrgRole:   accessDomain.OrgRoleMember,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	t.Run("Success", func(t *testing.T) {
		credentials := &mockCredentialService{}
		directory := &mockLocatorResolver{}
		credentials.On("Verify", "good-token").Return(claims, nil).Once()
		directory.On("ResolveLocator", ctx, "acme").Return(tenantDomain.StoreLocator("org_acme"), nil).Once()

		resolver := NewContextResolver(credentials, directory, testLogger())
		rc, err := resolver.Resolve(ctx, "good-token", "corr-42")

		require.NoError(t, err)
		assert.Equal(t, claims.SubjectID, rc.SubjectID)
		assert.Equal(t, tenantDomain.StoreLocator("org_acme"), rc.Locator)
		assert.Equal(t, "corr-42", rc.CorrelationID)
		credentials.AssertExpectations(t)
		directory.AssertExpectations(t)
	})

	t.Run("Success_GeneratesCorrelationID", func(t *testing.T) {
		credentials := &mockCredentialService{}
		directory := &mockLocatorResolver{}
		credentials.On("Verify", "good-token").Return(claims, nil).Once()
		directory.On("ResolveLocator", ctx, "acme").Return(tenantDomain.StoreLocator("org_acme"), nil).Once()

		rc, err := NewContextResolver(credentials, directory, testLogger()).Resolve(ctx, "good-token", "")

		require.NoError(t, err)
		_, err = uuid.Parse(rc.CorrelationID)
		assert.NoError(t, err)
	})

	t.Run("Error_InvalidCredentialSkipsDirectory", func(t *testing.T) {
		credentials := &mockCredentialService{}
		directory := &mockLocatorResolver{}
		credentials.On("Verify", "bad").Return(nil, accessDomain.ErrCredentialInvalid).Once()

		rc, err := NewContextResolver(credentials, directory, testLogger()).Resolve(ctx, "bad", "corr")

		assert.Nil(t, rc)
		assert.ErrorIs(t, err, accessDomain.ErrCredentialInvalid)
		directory.AssertNotCalled(t, "ResolveLocator", mock.Anything, mock.Anything)
	})

	t.Run("Error_TenantNotFound", func(t *testing.T) {
		credentials := &mockCredentialService{}
		directory := &mockLocatorResolver{}
		credentials.On("Verify", "good-token").Return(claims, nil).Once()
		directory.On("ResolveLocator", ctx, "acme").
			Return(tenantDomain.StoreLocator(""), tenantDomain.ErrTenantNotFound).Once()

		_, err := NewContextResolver(credentials, directory, testLogger()).Resolve(ctx, "good-token", "corr")
		assert.ErrorIs(t, err, tenantDomain.ErrTenantNotFound)
	})

	t.Run("Error_DirectoryUnavailable", func(t *testing.T) {
		credentials := &mockCredentialService{}
		directory := &mockLocatorResolver{}
		credentials.On("Verify", "good-token").Return(claims, nil).Once()
		directory.On("ResolveLocator", ctx, "acme").
			Return(tenantDomain.StoreLocator(""), tenantDomain.ErrDirectoryUnavailable).Once()

		_, err := NewContextResolver(credentials, directory, testLogger()).Resolve(ctx, "good-token", "corr")
		assert.ErrorIs(t, err, tenantDomain.ErrDirectoryUnavailable)
	})
}
