package domain

// Rules name the branch of the permission table that produced a decision.
const (
	RuleOrgOverride    = "org_override"
	RuleProjectRole    = "project_role"
	RuleImplicitViewer = "implicit_viewer"
	RuleNoProjectRole  = "no_project_role"
	RuleInsufficient   = "insufficient_role"
	RuleUnknownAction  = "unknown_action"
	RuleUnknownRole    = "unknown_role"
)

// PermissionDecision is the outcome of one permission check. It is never stored.
type PermissionDecision struct {
	Allowed     bool
	Rule        string
	OrgRole     OrgRole
	ProjectRole ProjectRole
	Action      Action
}

// Evaluate decides whether a subject holding orgRole, and projectRole when
// hasProjectRole is true, may perform action. It performs no I/O.
//
// A subject with no project role is treated as a viewer for read actions and is
// denied every mutating action.
func Evaluate(orgRole OrgRole, projectRole ProjectRole, hasProjectRole bool, action Action) PermissionDecision {
	decision := PermissionDecision{
		OrgRole:     orgRole,
		ProjectRole: projectRole,
		Action:      action,
	}

	req, known := actions[action]
	if !known {
		decision.Rule = RuleUnknownAction
		return decision
	}

	if !orgRole.Valid() {
		decision.Rule = RuleUnknownRole
		return decision
	}

	if orgRole.Overrides() {
		decision.Allowed = true
		decision.Rule = RuleOrgOverride
		return decision
	}

	if !hasProjectRole {
		decision.ProjectRole = ""
		if req.mutating {
			decision.Rule = RuleNoProjectRole
			return decision
		}
		decision.Allowed = ProjectRoleViewer.AtLeast(req.minRole)
		decision.Rule = RuleImplicitViewer
		if !decision.Allowed {
			decision.Rule = RuleNoProjectRole
		}
		return decision
	}

	if !projectRole.Valid() {
		decision.Rule = RuleUnknownRole
		return decision
	}

	if projectRole.AtLeast(req.minRole) {
		decision.Allowed = true
		decision.Rule = RuleProjectRole
		return decision
	}

	decision.Rule = RuleInsufficient
	return decision
}
