package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for well-known failure conditions that cross package
// boundaries. Callers should use [errors.Is] to match these.
var (
	// ErrNotFound means the requested resource does not exist (HTTP 404 or
	// a negative cache entry).
	ErrNotFound = errors.New("resource not found")

	// ErrCacheMiss is returned by force-cache reads with no usable entry.
	ErrCacheMiss = errors.New("cache miss")

	// ErrNotImplemented is returned by guest providers for operations that
	// require an identity.
	ErrNotImplemented = errors.New("not implemented for guest")

	// ErrInvalidKey indicates a key blob that could not be parsed.
	ErrInvalidKey = errors.New("invalid key material")
)

// DomainOfflineError is raised when the liveness gate for a host has
// tripped, or when a request observed a 5xx/connection-level failure and
// marked the host offline.
type DomainOfflineError struct {
	Host string
}

func (e *DomainOfflineError) Error() string {
	return fmt.Sprintf("domain %s is offline", e.Host)
}

// IsDomainOffline reports whether err (or any wrapped error) is a
// [DomainOfflineError].
func IsDomainOffline(err error) bool {
	var doe *DomainOfflineError
	return errors.As(err, &doe)
}

// PermissionError corresponds to an HTTP 403 response.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	if e.Message == "" {
		return "permission denied"
	}
	return "permission denied: " + e.Message
}

// TransportError carries a non-2xx status that has no more specific kind,
// together with a bounded copy of the response body.
type TransportError struct {
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// ApplicationError is a 2xx response whose envelope status is not "ok".
type ApplicationError struct {
	Message string
}

func (e *ApplicationError) Error() string {
	return "application error: " + e.Message
}
