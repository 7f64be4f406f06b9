// Package domain defines project items (risks, actions, issues, decisions and the
// rest of the project log) as stored in a tenant store.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/braidmgr/braidmgr/internal/errors"
)

// ErrItemNotFound indicates the item does not exist in the project or was deleted.
var ErrItemNotFound = errors.Wrap(errors.ErrNotFound, "item not found")

// Item is a project log entry.
type Item struct {
	ID              uuid.UUID
	ProjectID       uuid.UUID
	ItemNum         int
	Type            string
	Title           string
	AssignedTo      *string
	PercentComplete int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

// Snapshot returns the audit representation of the item.
func (i *Item) Snapshot() map[string]any {
	state := map[string]any{
		"id":               i.ID.String(),
		"project_id":       i.ProjectID.String(),
		"item_num":         i.ItemNum,
		"type":             i.Type,
		"title":            i.Title,
		"percent_complete": i.PercentComplete,
	}
	if i.AssignedTo != nil {
		state["assigned_to"] = *i.AssignedTo
	}
	if i.DeletedAt != nil {
		state["deleted_at"] = i.DeletedAt.UTC().Format(time.RFC3339)
	}
	return state
}
