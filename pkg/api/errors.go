package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrUnauthorized marks responses rejected for a missing or stale session.
// Callers branch on it with errors.Is.
var ErrUnauthorized = errors.New("api: unauthorized")

// APIError is a backend failure translated into a user-presentable message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// newAPIError derives the message from the response body on a best-effort
// basis: a structured detail/error field first, then the first field
// validation error, then the raw text, then just the status code.
func newAPIError(status int, body []byte) *APIError {
	if msg := messageFromBody(body); msg != "" {
		return &APIError{Status: status, Message: msg}
	}
	return &APIError{Status: status, Message: fmt.Sprintf("request failed with status %d", status)}
}

func messageFromBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		// Not JSON, keep the raw text but never a whole HTML page.
		if strings.HasPrefix(trimmed, "<") {
			return ""
		}
		return trimmed
	}

	for _, key := range []string{"detail", "error"} {
		if raw, ok := payload[key]; ok {
			var msg string
			if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
				return msg
			}
		}
	}

	// Field validation errors come back keyed by field name with a list of
	// messages; report the first one deterministically.
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		var msgs []string
		if err := json.Unmarshal(payload[key], &msgs); err == nil && len(msgs) > 0 {
			return fmt.Sprintf("%s: %s", key, msgs[0])
		}
		var msg string
		if err := json.Unmarshal(payload[key], &msg); err == nil && msg != "" {
			return fmt.Sprintf("%s: %s", key, msg)
		}
	}
	return trimmed
}
