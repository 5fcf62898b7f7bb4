package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthentication is returned (wrapped) for missing credentials, failed
	// token retrieval, and 401/403 responses of the catalog.
	ErrAuthentication = errors.New("authentication failed")
)

// Error is a non-2xx response of the catalog.
type Error struct {
	Method     string `json:"-"`
	URL        string `json:"-"`
	StatusCode int    `json:"-"`
	// Request ID sent in the x-ms-client-request-id header.
	RequestID string `json:"-"`

	// Fields of the Atlas error body, if the catalog sent one.
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	// The raw body, if it could not be decoded as an Atlas error.
	Body string `json:"-"`
}

func (e *Error) Error() string {
	msg := e.ErrorMessage
	if msg == "" {
		msg = e.Body
	}
	if e.ErrorCode != "" {
		msg = e.ErrorCode + ": " + msg
	}
	return fmt.Sprintf("%s %s: %s (request %s): %s", e.Method, e.URL, http.StatusText(e.StatusCode), e.RequestID, msg)
}

// Is lets errors.Is(err, ErrAuthentication) match 401 and 403 responses.
func (e *Error) Is(target error) bool {
	return target == ErrAuthentication &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}
