// Package domain defines the access-control model: roles, actions, the permission
// table and the per-request context derived from a verified credential.
//
// Permissions are two-level. The organization role comes from the credential and
// the project role from the tenant store. Owners and admins of the organization are
// allowed everything; everyone else is bound by their project role.
package domain

// OrgRole is a subject's role within its organization.
type OrgRole string

const (
	OrgRoleOwner  OrgRole = "owner"
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"
	OrgRoleViewer OrgRole = "viewer"
)

// Valid reports whether r is a known organization role.
func (r OrgRole) Valid() bool {
	switch r {
	case OrgRoleOwner, OrgRoleAdmin, OrgRoleMember, OrgRoleViewer:
		return true
	}
	return false
}

// Overrides reports whether r grants every action regardless of project role.
func (r OrgRole) Overrides() bool {
	return r == OrgRoleOwner || r == OrgRoleAdmin
}

// ProjectRole is a subject's role within one project. Roles are cumulative:
// each one holds every permission of the roles below it.
type ProjectRole string

const (
	ProjectRoleViewer         ProjectRole = "viewer"
	ProjectRoleTeamMember     ProjectRole = "team_member"
	ProjectRoleProjectManager ProjectRole = "project_manager"
	ProjectRoleAdmin          ProjectRole = "admin"
)

// rank orders project roles from least to most privileged. Unknown roles rank 0.
var rank = map[ProjectRole]int{
	ProjectRoleViewer:         1,
	ProjectRoleTeamMember:     2,
	ProjectRoleProjectManager: 3,
	ProjectRoleAdmin:          4,
}

// Valid reports whether r is a known project role.
func (r ProjectRole) Valid() bool {
	_, ok := rank[r]
	return ok
}

// AtLeast reports whether r is at least as privileged as other.
func (r ProjectRole) AtLeast(other ProjectRole) bool {
	return r.Valid() && rank[r] >= rank[other]
}

// Action is an operation a subject may attempt on a project.
type Action string

const (
	ActionViewProject       Action = "view_project"
	ActionViewItem          Action = "view_item"
	ActionViewBudget        Action = "view_budget"
	ActionExportProject     Action = "export_project"
	ActionChat              Action = "chat"
	ActionCreateItem        Action = "create_item"
	ActionUpdateItem        Action = "update_item"
	ActionDeleteItem        Action = "delete_item"
	ActionManageWorkstreams Action = "manage_workstreams"
	ActionManageBudget      Action = "manage_budget"
	ActionImportItems       Action = "import_items"
	ActionViewAudit         Action = "view_audit"
	ActionManageMembers     Action = "manage_members"
	ActionUpdateProject     Action = "update_project"
	ActionDeleteProject     Action = "delete_project"
)

// actionRequirement is the minimum project role for an action and whether it mutates state.
type actionRequirement struct {
	minRole  ProjectRole
	mutating bool
}

var actions = map[Action]actionRequirement{
	ActionViewProject:       {ProjectRoleViewer, false},
	ActionViewItem:          {ProjectRoleViewer, false},
	ActionViewBudget:        {ProjectRoleViewer, false},
	ActionExportProject:     {ProjectRoleViewer, false},
	ActionChat:              {ProjectRoleViewer, false},
	ActionCreateItem:        {ProjectRoleTeamMember, true},
	ActionUpdateItem:        {ProjectRoleTeamMember, true},
	ActionDeleteItem:        {ProjectRoleProjectManager, true},
	ActionManageWorkstreams: {ProjectRoleProjectManager, true},
	ActionManageBudget:      {ProjectRoleProjectManager, true},
	ActionImportItems:       {ProjectRoleProjectManager, true},
	ActionViewAudit:         {ProjectRoleProjectManager, false},
	ActionManageMembers:     {ProjectRoleAdmin, true},
	ActionUpdateProject:     {ProjectRoleAdmin, true},
	ActionDeleteProject:     {ProjectRoleAdmin, true},
}

// Known reports whether a is in the permission table.
func (a Action) Known() bool {
	_, ok := actions[a]
	return ok
}

// Mutating reports whether a changes tenant data. Unknown actions are treated as mutating.
func (a Action) Mutating() bool {
	req, ok := actions[a]
	return !ok || req.mutating
}

// Actions returns every action granted to role, ignoring org-level overrides.
func Actions(role ProjectRole) []Action {
	granted := make([]Action, 0, len(actions))
	for action, req := range actions {
		if role.AtLeast(req.minRole) {
			granted = append(granted, action)
		}
	}
	return granted
}
