package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/braidmgr/braidmgr/internal/errors"
)

var (
	allOrgRoles     = []OrgRole{OrgRoleOwner, OrgRoleAdmin, OrgRoleMember, OrgRoleViewer}
	allProjectRoles = []ProjectRole{
		ProjectRoleViewer,
		ProjectRoleTeamMember,
		ProjectRoleProjectManager,
		ProjectRoleAdmin,
	}
)

func allActions() []Action {
	out := make([]Action, 0, len(actions))
	for action := range actions {
		out = append(out, action)
	}
	return out
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name        string
		orgRole     OrgRole
		projectRole ProjectRole
		hasRole     bool
		action      Action
		allowed     bool
		rule        string
	}{
		{"viewer can view items", OrgRoleMember, ProjectRoleViewer, true, ActionViewItem, true, RuleProjectRole},
		{"viewer cannot delete", OrgRoleMember, ProjectRoleViewer, true, ActionDeleteItem, false, RuleInsufficient},
		{"viewer cannot create", OrgRoleMember, ProjectRoleViewer, true, ActionCreateItem, false, RuleInsufficient},
		{"team member creates", OrgRoleMember, ProjectRoleTeamMember, true, ActionCreateItem, true, RuleProjectRole},
		{"team member updates", OrgRoleMember, ProjectRoleTeamMember, true, ActionUpdateItem, true, RuleProjectRole},
		{"team member cannot delete", OrgRoleMember, ProjectRoleTeamMember, true, ActionDeleteItem, false, RuleInsufficient},
		{"manager deletes", OrgRoleMember, ProjectRoleProjectManager, true, ActionDeleteItem, true, RuleProjectRole},
		{"manager views audit", OrgRoleMember, ProjectRoleProjectManager, true, ActionViewAudit, true, RuleProjectRole},
		{"manager cannot manage members", OrgRoleMember, ProjectRoleProjectManager, true, ActionManageMembers, false, RuleInsufficient},
		{"project admin manages members", OrgRoleMember, ProjectRoleAdmin, true, ActionManageMembers, true, RuleProjectRole},
		{"project admin deletes project", OrgRoleViewer, ProjectRoleAdmin, true, ActionDeleteProject, true, RuleProjectRole},
		{"org owner overrides", OrgRoleOwner, "", false, ActionDeleteProject, true, RuleOrgOverride},
		{"org admin overrides viewer role", OrgRoleAdmin, ProjectRoleViewer, true, ActionDeleteItem, true, RuleOrgOverride},
		{"no role reads as viewer", OrgRoleMember, "", false, ActionViewProject, true, RuleImplicitViewer},
		{"no role exports as viewer", OrgRoleMember, "", false, ActionExportProject, true, RuleImplicitViewer},
		{"no role cannot view audit", OrgRoleMember, "", false, ActionViewAudit, false, RuleNoProjectRole},
		{"no role cannot mutate", OrgRoleMember, "", false, ActionUpdateItem, false, RuleNoProjectRole},
		{"unknown action", OrgRoleOwner, ProjectRoleAdmin, true, Action("drop_tables"), false, RuleUnknownAction},
		{"unknown org role", OrgRole("superuser"), ProjectRoleAdmin, true, ActionViewItem, false, RuleUnknownRole},
		{"unknown project role", OrgRoleMember, ProjectRole("guest"), true, ActionViewItem, false, RuleUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Evaluate(tt.orgRole, tt.projectRole, tt.hasRole, tt.action)
			assert.Equal(t, tt.allowed, decision.Allowed)
			assert.Equal(t, tt.rule, decision.Rule)
			assert.Equal(t, tt.action, decision.Action)
			assert.Equal(t, tt.orgRole, decision.OrgRole)
		})
	}
}

func TestEvaluate_OrgOverrideAllowsEveryKnownAction(t *testing.T) {
	for _, orgRole := range []OrgRole{OrgRoleOwner, OrgRoleAdmin} {
		for _, action := range allActions() {
			for _, projectRole := range allProjectRoles {
				decision := Evaluate(orgRole, projectRole, true, action)
				assert.True(t, decision.Allowed, "%s/%s/%s", orgRole, projectRole, action)
			}
			assert.True(t, Evaluate(orgRole, "", false, action).Allowed)
		}
	}
}

func TestEvaluate_ProjectRolesAreCumulative(t *testing.T) {
	for _, orgRole := range []OrgRole{OrgRoleMember, OrgRoleViewer} {
		for _, action := range allActions() {
			for i := 1; i < len(allProjectRoles); i++ {
				lower := Evaluate(orgRole, allProjectRoles[i-1], true, action)
				higher := Evaluate(orgRole, allProjectRoles[i], true, action)
				if lower.Allowed {
					assert.True(t, higher.Allowed, "%s allows %s but %s does not",
						allProjectRoles[i-1], action, allProjectRoles[i])
				}
			}
		}
	}
}

func TestEvaluate_NoProjectRoleNeverMutates(t *testing.T) {
	for _, orgRole := range []OrgRole{OrgRoleMember, OrgRoleViewer} {
		for _, action := range allActions() {
			decision := Evaluate(orgRole, "", false, action)
			if action.Mutating() {
				assert.False(t, decision.Allowed, action)
				continue
			}
			assert.Equal(t, Evaluate(orgRole, ProjectRoleViewer, true, action).Allowed, decision.Allowed, action)
		}
	}
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	for _, orgRole := range allOrgRoles {
		for _, projectRole := range allProjectRoles {
			for _, action := range allActions() {
				first := Evaluate(orgRole, projectRole, true, action)
				second := Evaluate(orgRole, projectRole, true, action)
				assert.Equal(t, first, second)
			}
		}
	}
}

func TestAction_Mutating(t *testing.T) {
	assert.False(t, ActionViewItem.Mutating())
	assert.False(t, ActionViewAudit.Mutating())
	assert.True(t, ActionDeleteItem.Mutating())
	assert.True(t, Action("unknown").Mutating())
	assert.False(t, Action("unknown").Known())
}

func TestActions(t *testing.T) {
	viewer := Actions(ProjectRoleViewer)
	assert.ElementsMatch(t, []Action{
		ActionViewProject, ActionViewItem, ActionViewBudget, ActionExportProject, ActionChat,
	}, viewer)

	assert.Len(t, Actions(ProjectRoleAdmin), len(actions))
	assert.Empty(t, Actions(ProjectRole("guest")))
}

func TestAccessErrors(t *testing.T) {
	assert.True(t, errors.Is(ErrCredentialInvalid, errors.ErrUnauthorized))
	assert.True(t, errors.Is(ErrCredentialExpired, errors.ErrUnauthorized))
	assert.True(t, errors.Is(ErrPermissionDenied, errors.ErrForbidden))
	assert.False(t, errors.IsRetryable(ErrPermissionDenied))
}
