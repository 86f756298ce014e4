package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches any 401 from the backend via errors.Is.
var ErrUnauthorized = errors.New("apiclient: unauthorized")

// ErrNotFound matches any 404 from the backend via errors.Is.
var ErrNotFound = errors.New("apiclient: not found")

// APIError is returned for every non-2xx backend response. Use errors.As
// to reach the status code and the backend's message.
type APIError struct {
	StatusCode int
	Method     string
	Path       string

	// Message is the backend's "message" (or "error") field, when present.
	Message string

	RawBody []byte
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("backend %s %s: %d", e.Method, e.Path, e.StatusCode)
	if e.Message != "" {
		msg += " - " + e.Message
	}
	return msg
}

// Unwrap maps well-known statuses onto package sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// Temporary reports whether retrying later could succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Method: method, Path: path, RawBody: body}
	var parsed errorBody
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		e.Message = parsed.Message
		if e.Message == "" {
			e.Message = parsed.Error
		}
	}
	return e
}

// Message returns a short user-facing message for err, preferring the
// backend's own wording.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
