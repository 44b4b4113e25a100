// Package matching scores every upcoming event for a user and ranks the results.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/internal/domain/scoring"
	"github.com/okian/gigmatch/pkg/logger"
	"github.com/okian/gigmatch/pkg/metrics"
)

const defaultConcurrency = 8

// Skip reasons reported in metrics.
const (
	skipNoArtist    = "no_artist"
	skipNotEnriched = "artist_not_enriched"
)

// ProfileReader loads a user's stored musical profile.
type ProfileReader interface {
	GetUserMusicalProfile(ctx context.Context, userID int64) (model.UserMusicalProfile, bool, error)
}

// EventLister lists events whose date is at or after now.
type EventLister interface {
	GetUpcomingEvents(ctx context.Context, now time.Time) ([]model.EventCandidate, error)
}

// ArtistReader loads an enriched artist by name. ok is false when the artist is
// unknown or not yet enriched.
type ArtistReader interface {
	GetArtistProfile(ctx context.Context, name string) (model.ArtistProfile, bool, error)
}

// Orchestrator runs batch matches. It only reads from its stores and is safe for
// concurrent use.
type Orchestrator struct {
	profiles    ProfileReader
	events      EventLister
	artists     ArtistReader
	composer    *scoring.Composer
	concurrency int
	now         func() time.Time
	log         logger.Logger
}

// NewOrchestrator creates an Orchestrator over the three stores.
func NewOrchestrator(profiles ProfileReader, events EventLister, artists ArtistReader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		profiles:    profiles,
		events:      events,
		artists:     artists,
		composer:    scoring.NewComposer(),
		concurrency: defaultConcurrency,
		now:         time.Now,
		log:         logger.GetOrDiscard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ComputeMatches scores all upcoming events for userID and returns them by descending
// score. A user without a profile gets an empty result and no error. Events whose
// artist is not enriched are skipped. Store errors are returned as-is, wrapped.
func (o *Orchestrator) ComputeMatches(ctx context.Context, userID int64) ([]model.MatchResult, error) {
	start := time.Now()
	log := o.log.With(logger.String("run_id", uuid.NewString()), logger.Int64("user_id", userID))

	results, err := o.compute(ctx, log, userID)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		log.Error(ctx, "match run failed", logger.Error(err))
	case results == nil:
		outcome = "profile_missing"
	}
	metrics.RecordMatchRun(outcome, float64(time.Since(start).Microseconds())/1000)
	return results, err
}

func (o *Orchestrator) compute(ctx context.Context, log logger.Logger, userID int64) ([]model.MatchResult, error) {
	profile, ok, err := o.profiles.GetUserMusicalProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if !ok {
		log.Warn(ctx, "no musical profile for user")
		return nil, nil
	}

	events, err := o.events.GetUpcomingEvents(ctx, o.now())
	if err != nil {
		return nil, fmt.Errorf("get upcoming events: %w", err)
	}

	slots := make([]*model.MatchResult, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, ev := range events {
		if ev.ArtistName == "" {
			metrics.RecordEventSkipped(skipNoArtist)
			continue
		}
		g.Go(func() error {
			artist, ok, err := o.artists.GetArtistProfile(gctx, ev.ArtistName)
			if err != nil {
				return fmt.Errorf("get artist %q for event %d: %w", ev.ArtistName, ev.ID, err)
			}
			if !ok {
				metrics.RecordEventSkipped(skipNotEnriched)
				return nil
			}
			res := o.composer.Compose(profile, artist, ev.SimilarArtists)
			slots[i] = &model.MatchResult{
				EventID:            ev.ID,
				Score:              res.Score,
				GenreScore:         res.GenreScore,
				FeatureScore:       res.FeatureScore,
				SimilarArtistBonus: res.SimilarArtistBonus,
				Tag:                res.Tag,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]model.MatchResult, 0, len(events))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
			metrics.RecordMatchResult(string(r.Tag))
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	metrics.RecordEventsScored(len(results))
	log.Info(ctx, "match run complete",
		logger.Int("events", len(events)),
		logger.Int("scored", len(results)),
		logger.Int("skipped", len(events)-len(results)))
	return results, nil
}
