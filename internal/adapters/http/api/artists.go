package api

import (
	"context"
	"net/http"

	"github.com/okian/gigmatch/internal/domain/enrich"
	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/pkg/logger"
)

// ArtistDependencies defines the interface for artist operations.
type ArtistDependencies interface {
	UpsertArtist(ctx context.Context, a model.ArtistProfile) (int64, error)
	EnrichPending(ctx context.Context) (enrich.Report, error)
}

// ArtistsHandler handles artist requests.
type ArtistsHandler struct {
	deps   ArtistDependencies
	logger logger.Logger
}

// NewArtistsHandler creates a new artists handler.
func NewArtistsHandler(deps ArtistDependencies, log logger.Logger) *ArtistsHandler {
	return &ArtistsHandler{deps: deps, logger: log}
}

// artistRequest mirrors the OpenAPI schema for POST /artists.
type artistRequest struct {
	Name        string              `json:"name" validate:"required,max=255"`
	SpotifyID   string              `json:"spotify_id" validate:"omitempty,max=64"`
	Genres      []string            `json:"genres" validate:"dive,required"`
	AvgFeatures model.AudioFeatures `json:"avg_features"`
}

// HandlePostArtist handles POST /artists requests.
func (h *ArtistsHandler) HandlePostArtist(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_artist"
	var req artistRequest
	if err := decodeJSON(op, w, r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	genres := req.Genres
	if genres == nil {
		genres = []string{}
	}

	id, err := h.deps.UpsertArtist(r.Context(), model.ArtistProfile{
		Name:        req.Name,
		SpotifyID:   req.SpotifyID,
		Genres:      genres,
		AvgFeatures: req.AvgFeatures,
	})
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, upsertResponse{Status: "stored", ID: id})
}

// HandleEnrich handles POST /artists/enrich requests.
func (h *ArtistsHandler) HandleEnrich(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.EnrichPending(r.Context())
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
