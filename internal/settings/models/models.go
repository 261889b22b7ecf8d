// Package models holds site-wide settings.
package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// KeyLandApplicationsOpen controls whether land applications are accepted.
const KeyLandApplicationsOpen = "land_applications_open"

// Setting is one row of the key/value settings table. Value is raw JSON.
type Setting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OpenState is the land-applications flag as seen by callers. UpdatedAt is
// nil when the flag has never been written.
type OpenState struct {
	Open      bool       `json:"open"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// IsOpen interprets a stored value. Applications are open unless the value is
// exactly the JSON literal false; anything else, including a missing or
// malformed value, leaves them open.
func IsOpen(value json.RawMessage) bool {
	return !bytes.Equal(bytes.TrimSpace(value), []byte("false"))
}

// StateOf converts a stored setting to an OpenState. A nil setting is open.
func StateOf(s *Setting) OpenState {
	if s == nil {
		return OpenState{Open: true}
	}
	updated := s.UpdatedAt
	return OpenState{Open: IsOpen(s.Value), UpdatedAt: &updated}
}

// OpenValue encodes the flag for storage.
func OpenValue(open bool) json.RawMessage {
	if open {
		return json.RawMessage("true")
	}
	return json.RawMessage("false")
}

// SetOpenRequest is the admin payload. Open is a pointer so a missing field
// can be told apart from false.
type SetOpenRequest struct {
	Open *bool `json:"open"`
}
