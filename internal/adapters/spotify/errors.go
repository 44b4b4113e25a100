package spotify

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel kinds for Spotify errors.
var (
	ErrAuthRequired        = errors.New("spotify: authorization required")
	ErrProviderUnavailable = errors.New("spotify: provider unavailable")
	ErrNotFound            = errors.New("spotify: not found")
	ErrNoCredentials       = errors.New("spotify: client credentials not configured")
)

// UnavailableError describes a request Spotify could not serve: a transport failure,
// a rate limit, a server error or an open circuit. It matches ErrProviderUnavailable.
type UnavailableError struct {
	Endpoint   string
	StatusCode int
	RetryAfter time.Duration
	Cause      error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("spotify %s unavailable: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("spotify %s unavailable: %v", e.Endpoint, e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrProviderUnavailable.
func (e *UnavailableError) Is(target error) bool { return target == ErrProviderUnavailable }
