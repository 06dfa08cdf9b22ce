package domain

import (
	"errors"
	"fmt"
)

// Domain errors returned by the public API and the collaborator ports.
// Check with errors.Is; ServerError additionally supports errors.As.
var (
	// ErrNotFound signals a missing resource. On navigation it specifically
	// means the authoritative switch operation is unsupported and the caller
	// should fall back to probing.
	ErrNotFound = errors.New("pulsesync: not found")

	// ErrUnauthorized signals rejected credentials. Surfaced immediately;
	// polling continues so fixed credentials take effect without restart.
	ErrUnauthorized = errors.New("pulsesync: unauthorized")

	// ErrUnreachable signals a connectivity-class failure (timeout, refused,
	// DNS). Retried automatically through the normal backoff cycle.
	ErrUnreachable = errors.New("pulsesync: unreachable")

	// ErrInvalidDirection is returned for a navigation direction other than
	// +1 or -1. Surfaced, never retried.
	ErrInvalidDirection = errors.New("pulsesync: invalid direction")

	// ErrWindowUnchanged is the terminal outcome of a probing pass in which
	// no candidate changed the observed window.
	ErrWindowUnchanged = errors.New("pulsesync: window did not change")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("pulsesync: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("pulsesync: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("pulsesync: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("pulsesync: invalid configuration")
)

// ServerError is a capture-server failure with its status code. Retried like
// a transient network error but logged distinctly.
type ServerError struct {
	Code   int
	Detail string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("pulsesync: server error %d: %s", e.Code, e.Detail)
}

// IsTransient reports whether err should be retried through the normal
// backoff cycle rather than surfaced as fatal.
func IsTransient(err error) bool {
	if errors.Is(err, ErrUnreachable) {
		return true
	}
	var se *ServerError
	return errors.As(err, &se)
}

// IsConnectivity reports whether err is a connectivity-class failure, as
// distinct from a "not found" answer from a live server. Probing aborts on
// connectivity errors instead of burning attempts through a down link.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
