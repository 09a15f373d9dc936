package broker

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// statusPayload covers the two status message shapes seen on the wire:
// an explicit boolean or an "online"/"offline" string.
type statusPayload struct {
	Status    string `json:"status"`
	Connected *bool  `json:"connected"`
	Timestamp int64  `json:"timestamp"`
}

// parseStatusPayload decodes a status message into a connected flag.
//
// Returns an error for anything that cannot be read as a definite online
// or offline statement; callers drop such messages.
func parseStatusPayload(payload []byte) (bool, error) {
	var p statusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, fmt.Errorf("decoding status payload: %w", err)
	}

	if p.Connected != nil {
		return *p.Connected, nil
	}

	switch p.Status {
	case "online":
		return true, nil
	case "offline":
		return false, nil
	case "":
		return false, fmt.Errorf("status payload carries no state")
	default:
		return false, fmt.Errorf("unknown status %q", p.Status)
	}
}

// isJSONObject reports whether payload is a decodable JSON object.
func isJSONObject(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(trimmed, &obj) == nil
}
