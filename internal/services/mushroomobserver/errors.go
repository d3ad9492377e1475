package mushroomobserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nemfreview/internal/services"
)

var (
	// ErrAuthentication marks rejected or missing API keys.
	ErrAuthentication = errors.New("mushroom observer authentication failed")
	// ErrConflict marks requests that collide with existing upstream data,
	// such as a field slip code that is already taken.
	ErrConflict = errors.New("mushroom observer conflict")
)

// APIError is a failed API call. It always matches one services marker.
type APIError struct {
	Endpoint string
	Status   int
	Code     string
	Message  string
	kind     error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("mushroom observer ")
	b.WriteString(e.Endpoint)
	if e.Status > 0 {
		fmt.Fprintf(&b, " returned %d", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	if e == nil {
		return nil
	}
	switch e.kind {
	case services.ErrNotFound:
		return []error{services.ErrNotFound}
	case nil:
		return []error{services.ErrExternal}
	default:
		return []error{e.kind, services.ErrExternal}
	}
}

// classifyBodyError maps an API2 error entry onto a marker. The upstream
// service reports some failures with a 200 status and an errors array.
func classifyBodyError(endpoint string, status int, entry apiErrorEntry) *APIError {
	apiErr := &APIError{
		Endpoint: endpoint,
		Status:   status,
		Code:     entry.Code,
		Message:  strings.TrimSpace(entry.Details),
	}
	if apiErr.Message == "" {
		apiErr.Message = "unknown error"
	}
	switch {
	case strings.Contains(entry.Code, "MustAuthenticate"), strings.Contains(entry.Code, "Unauthorized"):
		apiErr.kind = ErrAuthentication
	case strings.Contains(entry.Code, "NotFound"):
		apiErr.kind = services.ErrNotFound
	case strings.Contains(entry.Code, "Conflict"):
		apiErr.kind = ErrConflict
	}
	return apiErr
}

func classifyStatus(endpoint string, status int, body string) *APIError {
	apiErr := &APIError{Endpoint: endpoint, Status: status, Message: truncate(body, 200)}
	switch {
	case status == http.StatusUnauthorized:
		apiErr.kind = ErrAuthentication
	case status == http.StatusNotFound:
		apiErr.kind = services.ErrNotFound
	case status == http.StatusConflict:
		apiErr.kind = ErrConflict
	case status < http.StatusBadRequest:
		return nil
	}
	return apiErr
}

// outcome labels err for the external request metric.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, services.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuthentication):
		return "auth"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
