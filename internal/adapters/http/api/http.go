// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/okian/gigmatch/pkg/logger"
)

const (
	maxBodyBytes        = 1 << 20
	defaultMatchesLimit = 20
	defaultMaxMatches   = 100
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	MatchDependencies
	ProfileDependencies
	AuthDependencies
	EventDependencies
	ArtistDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	matchesHandler *MatchesHandler
	profileHandler *ProfileHandler
	authHandler    *AuthHandler
	eventsHandler  *EventsHandler
	artistsHandler *ArtistsHandler

	maxMatches int
	logger     logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		maxMatches: defaultMaxMatches,
		logger:     logger.GetOrDiscard().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps, s.logger)
	s.matchesHandler = NewMatchesHandler(deps, s.maxMatches, s.logger)
	s.profileHandler = NewProfileHandler(deps, s.logger)
	s.authHandler = NewAuthHandler(deps, s.logger)
	s.eventsHandler = NewEventsHandler(deps, s.logger)
	s.artistsHandler = NewArtistsHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /matches/{user_id}", MetricsMiddleware(s.matchesHandler.HandleGetMatches, "matches"))

	mux.HandleFunc("GET /profiles/{user_id}", MetricsMiddleware(s.profileHandler.HandleGetProfile, "profiles"))
	mux.HandleFunc("PUT /profiles/{user_id}", MetricsMiddleware(s.profileHandler.HandlePutProfile, "profiles"))
	mux.HandleFunc("POST /profiles/{user_id}/sync", MetricsMiddleware(s.profileHandler.HandleSync, "profiles_sync"))

	mux.HandleFunc("GET /auth/spotify/login", MetricsMiddleware(s.authHandler.HandleLogin, "auth_login"))
	mux.HandleFunc("GET /auth/spotify/callback", MetricsMiddleware(s.authHandler.HandleCallback, "auth_callback"))
	mux.HandleFunc("GET /auth/spotify/status", MetricsMiddleware(s.authHandler.HandleStatus, "auth_status"))

	mux.HandleFunc("POST /events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("POST /events/seen", MetricsMiddleware(s.eventsHandler.HandleMarkSeen, "events_seen"))

	mux.HandleFunc("POST /artists", MetricsMiddleware(s.artistsHandler.HandlePostArtist, "artists"))
	mux.HandleFunc("POST /artists/enrich", MetricsMiddleware(s.artistsHandler.HandleEnrich, "artists_enrich"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports err with the status its kind maps to. Server-side failures are
// logged and their details kept from the client.
func writeError(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.Error(err), logger.Int("status", status))
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
func decodeJSON(op string, w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(op, w, r, dst, false)
}

// decodeOptionalJSON is decodeJSON that leaves dst untouched when the body is empty.
func decodeOptionalJSON(op string, w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(op, w, r, dst, true)
}

func decodeBody(op string, w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	if optional && len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return WrapKind(op, ErrBadRequest, fmt.Errorf("invalid JSON: %w", err))
	}
	if err := validate.Struct(dst); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// userIDParam parses the {user_id} path segment.
func userIDParam(op string, r *http.Request) (int64, error) {
	raw := r.PathValue("user_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid user_id %q", raw))
	}
	return id, nil
}
