// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is matched by a TransportError carrying HTTP 401.
// Callers can check for it using errors.Is to tell a rejected token apart from other failures.
var ErrUnauthorized = errors.New("unauthorized")

// ErrFlowExpired is returned when the device code expired before the user authorized it.
// A new flow must be started; the expired code is never reused.
var ErrFlowExpired = errors.New("the device code has expired, restart the flow")

// ErrAccessDenied is matched by a ProviderError with code access_denied.
var ErrAccessDenied = errors.New("access denied by user")

// ErrPromptAborted is returned when the user leaves the authorization prompt without confirming.
var ErrPromptAborted = errors.New("authorization prompt aborted")

// TransportError is returned when an endpoint answers with a non-2xx HTTP status.
// Body holds the response body verbatim.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("HTTP %d: %q", e.StatusCode, e.Body)
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Is reports a 401 as ErrUnauthorized.
func (e *TransportError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// ProviderError is an OAuth error code returned inside an otherwise successful response.
type ProviderError struct {
	Code        string
	Description string
	URI         string
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("error polling for token: %s", e.Code)
	}
	return fmt.Sprintf("error polling for token: %s: %s", e.Code, e.Description)
}

// Is reports access_denied as ErrAccessDenied.
func (e *ProviderError) Is(target error) bool {
	return target == ErrAccessDenied && e.Code == "access_denied"
}
