package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SchemaVersion is the envelope version written by this build.
const SchemaVersion = 1

// ErrNewerSchema is returned by Decode for envelopes written by a newer build.
var ErrNewerSchema = errors.New("persisted value has a newer schema version")

type envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	Value         json.RawMessage `json:"value"`
}

// Encode wraps v in the current envelope.
func Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	out, err := json.Marshal(envelope{SchemaVersion: SchemaVersion, Value: raw})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Decode reads s into v. Besides the envelope it accepts the legacy formats written
// before versioning: bare JSON ("[\"secrets\"]") and bare strings ("active.select").
// It returns the schema version found, 0 for legacy values.
func Decode(s string, v any) (int, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") {
		var env envelope
		if err := json.Unmarshal([]byte(trimmed), &env); err == nil && env.SchemaVersion > 0 && env.Value != nil {
			if env.SchemaVersion > SchemaVersion {
				return env.SchemaVersion, fmt.Errorf("%w: %d", ErrNewerSchema, env.SchemaVersion)
			}
			if err := json.Unmarshal(env.Value, v); err != nil {
				return env.SchemaVersion, fmt.Errorf("failed to unmarshal value: %w", err)
			}
			return env.SchemaVersion, nil
		}
	}

	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return 0, nil
	}

	// A bare string was written without JSON quoting.
	quoted, _ := json.Marshal(s)
	if err := json.Unmarshal(quoted, v); err != nil {
		return 0, fmt.Errorf("failed to decode legacy value: %w", err)
	}
	return 0, nil
}
