package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/gigmatch/internal/domain/scoring"
	"github.com/okian/gigmatch/internal/domain/types"
	"github.com/okian/gigmatch/pkg/logger"
)

// Verification errors.
var (
	ErrNoMatches     = errors.New("no matches returned")
	ErrTooManyRows   = errors.New("more matches than requested")
	ErrNotSorted     = errors.New("matches not sorted by score")
	ErrScoreRange    = errors.New("score out of range")
	ErrTagMismatch   = errors.New("tag does not match score")
	ErrMissingEvent  = errors.New("match without event")
	ErrUnscoredEvent = errors.New("event for an unenriched artist was scored")
)

// matchesResponse mirrors GET /matches/{user_id}.
type matchesResponse struct {
	UserID  int64         `json:"user_id"`
	Cached  bool          `json:"cached"`
	Count   int           `json:"count"`
	Matches []types.Match `json:"matches"`
}

// verifyMatches checks the invariants every match list must hold.
func verifyMatches(ctx context.Context, config *Config, resp matchesResponse) error {
	log := logger.GetOrDiscard()
	log.Info(ctx, "verifying matches", logger.Int("count", len(resp.Matches)))

	if len(resp.Matches) == 0 {
		return ErrNoMatches
	}
	if len(resp.Matches) > config.Limit {
		return fmt.Errorf("%w: %d > %d", ErrTooManyRows, len(resp.Matches), config.Limit)
	}

	var errs []error
	for i, m := range resp.Matches {
		if i > 0 && m.Score > resp.Matches[i-1].Score {
			errs = append(errs, fmt.Errorf("%w: position %d (%.1f > %.1f)", ErrNotSorted, i, m.Score, resp.Matches[i-1].Score))
		}
		if m.Score < 0 || m.GenreScore < 0 || m.GenreScore > 100 || m.FeatureScore < 0 || m.FeatureScore > 100 {
			errs = append(errs, fmt.Errorf("%w: event %d", ErrScoreRange, m.EventID))
		}
		if !m.Tag.Valid() || scoring.AssignTag(m.Score) != m.Tag {
			errs = append(errs, fmt.Errorf("%w: event %d score %.1f tag %q", ErrTagMismatch, m.EventID, m.Score, m.Tag))
		}
		switch {
		case m.Event == nil:
			errs = append(errs, fmt.Errorf("%w: event %d", ErrMissingEvent, m.EventID))
		case !isCatalogArtist(m.Event.ArtistName):
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnscoredEvent, m.Event.ArtistName))
		}
		if config.Verbose {
			log.Debug(ctx, "match",
				logger.Int("position", i+1),
				logger.Int64("event_id", m.EventID),
				logger.Float64("score", m.Score),
				logger.String("tag", string(m.Tag)))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	best := resp.Matches[0]
	fields := []logger.Field{
		logger.Int("matches", len(resp.Matches)),
		logger.Float64("best_score", best.Score),
		logger.String("best_tag", string(best.Tag)),
	}
	if best.Event != nil {
		fields = append(fields, logger.String("best_artist", best.Event.ArtistName))
	}
	log.Info(ctx, "verification passed", fields...)
	return nil
}
