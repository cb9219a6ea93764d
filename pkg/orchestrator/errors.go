package orchestrator

import (
	"encoding/json"
	"fmt"
)

const maxErrorBody = 64 * 1024

// StatusError is returned when the backend answers an execution request
// with a non-2xx status. The stream never opened.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// errorMessage extracts a human readable message from an error response
// body, falling back to "HTTP <status>".
func errorMessage(status int, body []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			var s string
			if err := json.Unmarshal(obj[key], &s); err == nil && s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
