// Package repository persists audit entries in tenant stores.
package repository

import (
	"encoding/json"

	apperrors "github.com/braidmgr/braidmgr/internal/errors"
)

// marshalState encodes a state snapshot. A nil map is stored as NULL.
func marshalState(state map[string]any) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal audit state")
	}
	return data, nil
}

func unmarshalState(data []byte) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}
	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal audit state")
	}
	return state, nil
}
