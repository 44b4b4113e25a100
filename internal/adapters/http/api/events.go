package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/internal/domain/types"
	"github.com/okian/gigmatch/pkg/logger"
)

// EventDependencies defines the interface for event ingestion.
type EventDependencies interface {
	UpsertEvent(ctx context.Context, e model.Event) (int64, error)
	MarkEventsSeen(ctx context.Context) (int, error)
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps   EventDependencies
	logger logger.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies, log logger.Logger) *EventsHandler {
	return &EventsHandler{deps: deps, logger: log}
}

// eventRequest mirrors the OpenAPI schema for POST /events.
type eventRequest struct {
	ExternalID     string   `json:"external_id" validate:"omitempty,max=255"`
	ArtistName     string   `json:"artist_name" validate:"required,max=255"`
	EventDate      string   `json:"event_date" validate:"required,datetime=2006-01-02"`
	EventTime      string   `json:"event_time" validate:"omitempty,max=32"`
	Venue          string   `json:"venue" validate:"omitempty,max=255"`
	Description    string   `json:"description"`
	EventURL       string   `json:"event_url" validate:"omitempty,url"`
	ImageURL       string   `json:"image_url" validate:"omitempty,url"`
	SimilarArtists []string `json:"similar_artists" validate:"dive,required"`
	IsNew          *bool    `json:"is_new"`
}

// model converts the request. Events are new unless is_new says otherwise.
func (e eventRequest) model() model.Event {
	date, _ := time.Parse(types.DateLayout, e.EventDate)
	isNew := true
	if e.IsNew != nil {
		isNew = *e.IsNew
	}
	return model.Event{
		ExternalID:     e.ExternalID,
		ArtistName:     e.ArtistName,
		EventDate:      date.UTC(),
		EventTime:      e.EventTime,
		Venue:          e.Venue,
		Description:    e.Description,
		EventURL:       e.EventURL,
		ImageURL:       e.ImageURL,
		SimilarArtists: e.SimilarArtists,
		IsNew:          isNew,
	}
}

type upsertResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

type seenResponse struct {
	Updated int `json:"updated"`
}

// HandlePostEvent handles POST /events requests. Events with a known external_id
// are updated in place.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req eventRequest
	if err := decodeJSON(op, w, r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	id, err := h.deps.UpsertEvent(r.Context(), req.model())
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, upsertResponse{Status: "stored", ID: id})
}

// HandleMarkSeen handles POST /events/seen requests.
func (h *EventsHandler) HandleMarkSeen(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.MarkEventsSeen(r.Context())
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, seenResponse{Updated: n})
}
