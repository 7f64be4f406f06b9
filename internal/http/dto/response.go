// Package dto holds API request bodies and maps domain values to API responses.
package dto

import (
	"time"

	auditDomain "github.com/braidmgr/braidmgr/internal/audit/domain"
	itemDomain "github.com/braidmgr/braidmgr/internal/item/domain"
	"github.com/braidmgr/braidmgr/internal/metrics"
	"github.com/braidmgr/braidmgr/internal/pool"
	userDomain "github.com/braidmgr/braidmgr/internal/user/domain"
)

// ItemResponse represents an item in API responses.
type ItemResponse struct {
	ID              string     `json:"id"`
	ProjectID       string     `json:"project_id"`
	ItemNum         int        `json:"item_num"`
	Type            string     `json:"type"`
	Title           string     `json:"title"`
	AssignedTo      *string    `json:"assigned_to,omitempty"`
	PercentComplete int        `json:"percent_complete"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// MapItemToResponse converts a domain item to an API response.
func MapItemToResponse(item *itemDomain.Item) ItemResponse {
	return ItemResponse{
		ID:              item.ID.String(),
		ProjectID:       item.ProjectID.String(),
		ItemNum:         item.ItemNum,
		Type:            item.Type,
		Title:           item.Title,
		AssignedTo:      item.AssignedTo,
		PercentComplete: item.PercentComplete,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
		DeletedAt:       item.DeletedAt,
	}
}

// AuditEntryResponse represents an audit entry in API responses.
type AuditEntryResponse struct {
	ID            string         `json:"id"`
	ActorID       *string        `json:"actor_id"`
	ProjectID     *string        `json:"project_id"`
	Action        string         `json:"action"`
	EntityType    string         `json:"entity_type"`
	EntityID      *string        `json:"entity_id"`
	BeforeState   map[string]any `json:"before_state,omitempty"`
	AfterState    map[string]any `json:"after_state,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	CreatedAt     time.Time      `json:"created_at"`
}

// MapAuditEntryToResponse converts a domain audit entry to an API response.
func MapAuditEntryToResponse(entry *auditDomain.AuditEntry) AuditEntryResponse {
	resp := AuditEntryResponse{
		ID:            entry.ID.String(),
		Action:        entry.Action,
		EntityType:    entry.EntityType,
		BeforeState:   entry.BeforeState,
		AfterState:    entry.AfterState,
		CorrelationID: entry.CorrelationID,
		CreatedAt:     entry.CreatedAt,
	}
	if entry.ActorID != nil {
		actor := entry.ActorID.String()
		resp.ActorID = &actor
	}
	if entry.ProjectID != nil {
		project := entry.ProjectID.String()
		resp.ProjectID = &project
	}
	if entry.EntityID != nil {
		entity := entry.EntityID.String()
		resp.EntityID = &entity
	}
	return resp
}

// ListAuditEntriesResponse is a page of audit entries.
type ListAuditEntriesResponse struct {
	Data []AuditEntryResponse `json:"data"`
}

// MapAuditEntriesToListResponse converts audit entries to a list API response.
func MapAuditEntriesToListResponse(entries []*auditDomain.AuditEntry) ListAuditEntriesResponse {
	data := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, MapAuditEntryToResponse(entry))
	}
	return ListAuditEntriesResponse{Data: data}
}

// PoolResponse describes one live tenant pool.
type PoolResponse struct {
	Locator         string    `json:"locator"`
	Refs            int       `json:"refs"`
	OpenConnections int       `json:"open_connections"`
	IdleConnections int       `json:"idle_connections"`
	CreatedAt       time.Time `json:"created_at"`
	LastUsed        time.Time `json:"last_used"`
	IdleSeconds     int64     `json:"idle_seconds"`
}

// PoolsResponse is the registry snapshot served to operators.
type PoolsResponse struct {
	Live     int            `json:"live"`
	InFlight int            `json:"in_flight"`
	Draining int            `json:"draining"`
	Pools    []PoolResponse `json:"pools"`
}

// MapPoolStatsToResponse converts registry gauges and per-pool stats to a response.
// Idle time is only reported for pools nobody holds.
func MapPoolStatsToResponse(gauges metrics.PoolGauges, stats []pool.EntryStats, now time.Time) PoolsResponse {
	pools := make([]PoolResponse, 0, len(stats))
	for _, s := range stats {
		resp := PoolResponse{
			Locator:         s.Locator.String(),
			Refs:            s.Refs,
			OpenConnections: s.OpenConns,
			IdleConnections: s.IdleConns,
			CreatedAt:       s.CreatedAt,
			LastUsed:        s.LastUsed,
		}
		if s.Refs == 0 && now.After(s.LastUsed) {
			resp.IdleSeconds = int64(now.Sub(s.LastUsed) / time.Second)
		}
		pools = append(pools, resp)
	}
	return PoolsResponse{
		Live:     gauges.Live,
		InFlight: gauges.InFlight,
		Draining: gauges.Draining,
		Pools:    pools,
	}
}

// UserResponse represents an account in API responses. The password hash is never rendered.
type UserResponse struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	OrgRole        string    `json:"org_role"`
	CreatedAt      time.Time `json:"created_at"`
}

// MapUserToResponse converts a domain user to an API response.
func MapUserToResponse(user *userDomain.User) UserResponse {
	return UserResponse{
		ID:             user.ID.String(),
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
		Name:           user.Name,
		OrgRole:        string(user.OrgRole),
		CreatedAt:      user.CreatedAt,
	}
}

// SessionResponse is returned by login and refresh.
type SessionResponse struct {
	AccessToken      string       `json:"access_token"`
	TokenType        string       `json:"token_type"`
	ExpiresIn        int64        `json:"expires_in"`
	RefreshToken     string       `json:"refresh_token"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	User             UserResponse `json:"user"`
}

// MapSessionToResponse converts a session to an API response. expires_in counts
// whole seconds from now until the access credential expires.
func MapSessionToResponse(session *userDomain.Session, now time.Time) SessionResponse {
	expiresIn := int64(session.AccessExpiresAt.Sub(now) / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return SessionResponse{
		AccessToken:      session.AccessToken,
		TokenType:        "Bearer",
		ExpiresIn:        expiresIn,
		RefreshToken:     session.RefreshToken,
		RefreshExpiresAt: session.RefreshExpiresAt,
		User:             MapUserToResponse(session.User),
	}
}
