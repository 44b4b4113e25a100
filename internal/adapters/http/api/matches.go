package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/gigmatch/internal/domain/types"
	"github.com/okian/gigmatch/pkg/logger"
)

// MatchDependencies defines the interface for match reads.
type MatchDependencies interface {
	Matches(ctx context.Context, userID int64, limit int, fresh bool) ([]types.Match, error)
}

// MatchesHandler handles match requests.
type MatchesHandler struct {
	deps       MatchDependencies
	maxMatches int
	logger     logger.Logger
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies, maxMatches int, log logger.Logger) *MatchesHandler {
	return &MatchesHandler{deps: deps, maxMatches: maxMatches, logger: log}
}

type matchesResponse struct {
	UserID  int64         `json:"user_id"`
	Cached  bool          `json:"cached"`
	Count   int           `json:"count"`
	Matches []types.Match `json:"matches"`
}

// HandleGetMatches handles GET /matches/{user_id}?limit=N&cached=bool requests.
// Matches are scored on every request unless cached is set.
func (h *MatchesHandler) HandleGetMatches(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_matches"
	userID, err := userIDParam(op, r)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	limit := min(defaultMatchesLimit, h.maxMatches)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", raw)))
			return
		}
		limit = min(n, h.maxMatches)
	}

	var cached bool
	if raw := r.URL.Query().Get("cached"); raw != "" {
		cached, err = strconv.ParseBool(raw)
		if err != nil {
			writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid cached %q", raw)))
			return
		}
	}

	matches, err := h.deps.Matches(r.Context(), userID, limit, !cached)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchesResponse{
		UserID:  userID,
		Cached:  cached,
		Count:   len(matches),
		Matches: matches,
	})
}
