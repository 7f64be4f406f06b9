package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/braidmgr/braidmgr/internal/errors"
)

func TestAuditEntry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		entry   AuditEntry
		wantErr bool
	}{
		{
			name:  "Success",
			entry: AuditEntry{Action: "delete_item", EntityType: "item", CorrelationID: "req-1"},
		},
		{
			name:  "Success_NoCorrelationID",
			entry: AuditEntry{Action: "update_item", EntityType: "item"},
		},
		{
			name:    "Error_MissingAction",
			entry:   AuditEntry{EntityType: "item"},
			wantErr: true,
		},
		{
			name:    "Error_MissingEntityType",
			entry:   AuditEntry{Action: "delete_item"},
			wantErr: true,
		},
		{
			name:    "Error_ActionTooLong",
			entry:   AuditEntry{Action: strings.Repeat("a", 101), EntityType: "item"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}
