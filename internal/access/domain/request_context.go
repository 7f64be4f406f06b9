package domain

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	tenantDomain "github.com/braidmgr/braidmgr/internal/tenant/domain"
)

// Claims are the verified contents of a credential.
type Claims struct {
	SubjectID uuid.UUID
	Email     string
	Name      string
	TenantID  string
	OrgRole   OrgRole
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssueCredentialInput carries the fields for issuing a credential.
type IssueCredentialInput struct {
	SubjectID uuid.UUID
	Email     string
	Name      string
	TenantID  string
	OrgRole   OrgRole
}

// ProjectRoleLoader reads a subject's role in a project from the tenant store.
type ProjectRoleLoader func(ctx context.Context, subjectID, projectID uuid.UUID) (ProjectRole, bool, error)

type projectRoleEntry struct {
	role ProjectRole
	ok   bool
}

// RequestContext is the identity and routing state of one request. It is built
// per request and never shared across requests.
type RequestContext struct {
	SubjectID     uuid.UUID
	Email         string
	Name          string
	TenantID      string
	OrgRole       OrgRole
	Locator       tenantDomain.StoreLocator
	CorrelationID string
	TokenID       string
	IssuedAt      time.Time
	ExpiresAt     time.Time

	mu           sync.Mutex
	projectRoles map[uuid.UUID]projectRoleEntry
}

// NewRequestContext builds a RequestContext from verified claims and the tenant's locator.
func NewRequestContext(
	claims *Claims,
	locator tenantDomain.StoreLocator,
	correlationID string,
) *RequestContext {
	return &RequestContext{
		SubjectID:     claims.SubjectID,
		Email:         claims.Email,
		Name:          claims.Name,
		TenantID:      claims.TenantID,
		OrgRole:       claims.OrgRole,
		Locator:       locator,
		CorrelationID: correlationID,
		TokenID:       claims.TokenID,
		IssuedAt:      claims.IssuedAt,
		ExpiresAt:     claims.ExpiresAt,
		projectRoles:  make(map[uuid.UUID]projectRoleEntry),
	}
}

// ProjectRole returns the subject's role in projectID, calling load at most once
// per project for the lifetime of this request. Failed loads are not memoized.
func (rc *RequestContext) ProjectRole(
	ctx context.Context,
	projectID uuid.UUID,
	load ProjectRoleLoader,
) (ProjectRole, bool, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.projectRoles == nil {
		rc.projectRoles = make(map[uuid.UUID]projectRoleEntry)
	}
	if cached, ok := rc.projectRoles[projectID]; ok {
		return cached.role, cached.ok, nil
	}

	role, ok, err := load(ctx, rc.SubjectID, projectID)
	if err != nil {
		return "", false, err
	}
	rc.projectRoles[projectID] = projectRoleEntry{role: role, ok: ok}
	return role, ok, nil
}

// Authorize loads the project role and evaluates action.
func (rc *RequestContext) Authorize(
	ctx context.Context,
	projectID uuid.UUID,
	action Action,
	load ProjectRoleLoader,
) (PermissionDecision, error) {
	if rc.OrgRole.Overrides() {
		return Evaluate(rc.OrgRole, "", false, action), nil
	}

	role, ok, err := rc.ProjectRole(ctx, projectID, load)
	if err != nil {
		return PermissionDecision{OrgRole: rc.OrgRole, Action: action}, err
	}
	return Evaluate(rc.OrgRole, role, ok, action), nil
}
