package api

import (
	"errors"
	"net/http"

	"github.com/okian/gigmatch/internal/adapters/repository"
	"github.com/okian/gigmatch/internal/adapters/spotify"
	service "github.com/okian/gigmatch/internal/app"
	"github.com/okian/gigmatch/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// Error ties a failed operation to the kind of failure reported to the client.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of kind for op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind returns err classified as kind for op.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// classify maps an error to its HTTP status and machine-readable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidEvent),
		errors.Is(err, repository.ErrInvalidArtist),
		errors.Is(err, model.ErrInvalidFeatures),
		errors.Is(err, service.ErrNothingToSync):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownAuthState):
		return http.StatusBadRequest, "unknown_state"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrSyncInProgress):
		return http.StatusConflict, "sync_in_progress"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, spotify.ErrAuthRequired):
		return http.StatusUnauthorized, "auth_required"
	case errors.Is(err, spotify.ErrProviderUnavailable):
		return http.StatusBadGateway, "provider_unavailable"
	case errors.Is(err, service.ErrSpotifyDisabled),
		errors.Is(err, spotify.ErrNoCredentials),
		errors.Is(err, service.ErrStopped):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
