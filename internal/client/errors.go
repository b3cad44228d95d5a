package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionExpired marks a missing, expired or rejected credential
var ErrSessionExpired = errors.New("session expired")

// ValidationError is raised before any network call for input that cannot be sent
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

// NetworkError is a transport failure where no response was received
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RemoteError is a failure response from the API
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Body)
}

// Is lets errors.Is(err, ErrSessionExpired) match unauthorized responses
func (e *RemoteError) Is(target error) bool {
	return target == ErrSessionExpired && e.Status == http.StatusUnauthorized
}

// IsSessionExpired reports whether err carries an expired or invalid session
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
