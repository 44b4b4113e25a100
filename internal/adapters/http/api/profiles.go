package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/internal/domain/types"
	"github.com/okian/gigmatch/pkg/logger"
)

// ProfileDependencies defines the interface for profile operations.
type ProfileDependencies interface {
	Profile(ctx context.Context, userID int64) (types.Profile, bool, error)
	SaveProfile(ctx context.Context, userID int64, p model.UserMusicalProfile) error
	RequestSync(ctx context.Context, userID int64, history *model.ListeningHistory, accessToken string) (string, error)
}

// ProfileHandler handles profile requests.
type ProfileHandler struct {
	deps   ProfileDependencies
	logger logger.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps ProfileDependencies, log logger.Logger) *ProfileHandler {
	return &ProfileHandler{deps: deps, logger: log}
}

// profileRequest mirrors the OpenAPI schema for PUT /profiles/{user_id}.
type profileRequest struct {
	GenreDistribution model.GenreDistribution `json:"genre_distribution"`
	AvgFeatures       model.AudioFeatures     `json:"avg_features"`
	TopArtists        []string                `json:"top_artists" validate:"dive,required"`
	TopGenres         []string                `json:"top_genres" validate:"dive,required"`
	LastCalculated    *time.Time              `json:"last_calculated"`
}

func (p profileRequest) model() (model.UserMusicalProfile, error) {
	if err := p.GenreDistribution.Validate(); err != nil {
		return model.UserMusicalProfile{}, err
	}
	if err := p.AvgFeatures.Validate(); err != nil {
		return model.UserMusicalProfile{}, err
	}
	out := model.UserMusicalProfile{
		GenreDistribution: p.GenreDistribution,
		AvgFeatures:       p.AvgFeatures,
		TopArtists:        p.TopArtists,
		TopGenres:         p.TopGenres,
	}
	if p.LastCalculated != nil {
		out.LastCalculated = p.LastCalculated.UTC()
	}
	return out, nil
}

// syncRequest mirrors the OpenAPI schema for POST /profiles/{user_id}/sync.
type syncRequest struct {
	AccessToken string                  `json:"access_token"`
	History     *model.ListeningHistory `json:"history"`
}

type syncResponse struct {
	Status string `json:"status"`
	UserID int64  `json:"user_id"`
	JobID  string `json:"job_id"`
}

// HandleGetProfile handles GET /profiles/{user_id} requests.
func (h *ProfileHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	userID, err := userIDParam(op, r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	p, ok, err := h.deps.Profile(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	if !ok {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrNotFound, fmt.Errorf("no profile for user %d", userID)))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePutProfile handles PUT /profiles/{user_id} requests.
func (h *ProfileHandler) HandlePutProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_profile"
	userID, err := userIDParam(op, r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	var req profileRequest
	if err := decodeJSON(op, w, r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	p, err := req.model()
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.SaveProfile(r.Context(), userID, p); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	saved, _, err := h.deps.Profile(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// HandleSync handles POST /profiles/{user_id}/sync requests. An empty body syncs
// with the user's stored Spotify connection.
func (h *ProfileHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_profile"
	userID, err := userIDParam(op, r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	var req syncRequest
	if err := decodeOptionalJSON(op, w, r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	jobID, err := h.deps.RequestSync(r.Context(), userID, req.History, req.AccessToken)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, syncResponse{Status: "queued", UserID: userID, JobID: jobID})
}
