package domain

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequestContext(orgRole OrgRole) *RequestContext {
	now := time.Now().UTC()
	return NewRequestContext(&Claims{
		SubjectID: uuid.Must(uuid.NewV7()),
		TenantID:  "acme",
		OrgRole:   orgRole,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}, "org_acme", "corr-1")
}

func TestNewRequestContext(t *testing.T) {
	rc := newTestRequestContext(OrgRoleMember)

	assert.Equal(t, "acme", rc.TenantID)
	assert.Equal(t, OrgRoleMember, rc.OrgRole)
	assert.Equal(t, "org_acme", rc.Locator.String())
	assert.Equal(t, "corr-1", rc.CorrelationID)
}

func TestRequestContext_ProjectRole(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV7())

	t.Run("Success_MemoizedPerRequest", func(t *testing.T) {
		rc := newTestRequestContext(OrgRoleMember)
		var calls atomic.Int32
		load := func(ctx context.Context, subjectID, pid uuid.UUID) (ProjectRole, bool, error) {
			calls.Add(1)
			assert.Equal(t, rc.SubjectID, subjectID)
			assert.Equal(t, projectID, pid)
			return ProjectRoleTeamMember, true, nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				role, ok, err := rc.ProjectRole(ctx, projectID, load)
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, ProjectRoleTeamMember, role)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Success_MissingRoleIsMemoized", func(t *testing.T) {
		rc := newTestRequestContext(OrgRoleMember)
		calls := 0
		load := func(ctx context.Context, subjectID, pid uuid.UUID) (ProjectRole, bool, error) {
			calls++
			return "", false, nil
		}

		_, ok, err := rc.ProjectRole(ctx, projectID, load)
		require.NoError(t, err)
		assert.False(t, ok)
		_, _, _ = rc.ProjectRole(ctx, projectID, load)
		assert.Equal(t, 1, calls)
	})

	t.Run("Error_FailureIsNotMemoized", func(t *testing.T) {
		rc := newTestRequestContext(OrgRoleMember)
		calls := 0
		load := func(ctx context.Context, subjectID, pid uuid.UUID) (ProjectRole, bool, error) {
			calls++
			if calls == 1 {
				return "", false, assert.AnError
			}
			return ProjectRoleViewer, true, nil
		}

		_, _, err := rc.ProjectRole(ctx, projectID, load)
		assert.ErrorIs(t, err, assert.AnError)

		role, ok, err := rc.ProjectRole(ctx, projectID, load)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, ProjectRoleViewer, role)
	})
}

func TestRequestContext_Authorize(t *testing.T) {
	ctx := context.Background()
	projectID := uuid.Must(uuid.NewV7())

	t.Run("Success_OrgOverrideSkipsLookup", func(t *testing.T) {
		rc := newTestRequestContext(OrgRoleOwner)
		load := func(ctx context.Context, subjectID, pid uuid.UUID) (ProjectRole, bool, error) {
			t.Fatal("project role must not be loaded for org owners")
			return "", false, nil
		}

		decision, err := rc.Authorize(ctx, projectID, ActionDeleteProject, load)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, RuleOrgOverride, decision.Rule)
	})

	t.Run("Success_Denied", func(t *testing.T) {
		rc := newTestRequestContext(OrgRoleMember)
		load := func(ctx context.Context, subjectID, pid uuid.UUID) (ProjectRole, bool, error) {
			return ProjectRoleViewer, true, nil
		}

		decision, err := rc.Authorize(ctx, projectID, ActionDeleteItem, load)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Equal(t, ProjectRoleViewer, decision.ProjectRole)
	})

	t.Run("Error_LookupFails", func(t *testing.T) {
		rc := newTestRequestContext(OrgRoleMember)
		load := func(ctx context.Context, subjectID, pid uuid.UUID) (ProjectRole, bool, error) {
			return "", false, assert.AnError
		}

		decision, err := rc.Authorize(ctx, projectID, ActionViewItem, load)
		assert.ErrorIs(t, err, assert.AnError)
		assert.False(t, decision.Allowed)
	})
}
