package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/gigmatch/internal/domain/types"
	"github.com/okian/gigmatch/pkg/logger"
)

// AuthDependencies defines the interface for the Spotify authorization flow.
type AuthDependencies interface {
	BeginSpotifyAuth(userID int64) (string, error)
	CompleteSpotifyAuth(ctx context.Context, state, code string) (int64, string, error)
	SpotifyStatus(ctx context.Context, userID int64) (types.SpotifyStatus, error)
}

// AuthHandler handles the Spotify login redirect and callback.
type AuthHandler struct {
	deps   AuthDependencies
	logger logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(deps AuthDependencies, log logger.Logger) *AuthHandler {
	return &AuthHandler{deps: deps, logger: log}
}

// HandleLogin handles GET /auth/spotify/login?user_id=N by redirecting to the
// Spotify consent page.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.spotify_login"
	userID, err := userIDQuery(op, r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	consent, err := h.deps.BeginSpotifyAuth(userID)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	http.Redirect(w, r, consent, http.StatusFound)
}

// HandleCallback handles GET /auth/spotify/callback. On success a profile sync is
// queued with the granted token.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	const op = "api.spotify_callback"
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, errors.New("authorization denied: "+reason)))
		return
	}
	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, errors.New("missing state or code")))
		return
	}

	userID, jobID, err := h.deps.CompleteSpotifyAuth(r.Context(), state, code)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, syncResponse{Status: "queued", UserID: userID, JobID: jobID})
}

// HandleStatus handles GET /auth/spotify/status?user_id=N.
func (h *AuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.spotify_status"
	userID, err := userIDQuery(op, r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	st, err := h.deps.SpotifyStatus(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func userIDQuery(op string, r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("user_id")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid user_id %q", raw))
	}
	return userID, nil
}
