// Package enrich fills in genres and average audio features for the artists of
// upcoming events, so the matcher can score them.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/internal/domain/profile"
	"github.com/okian/gigmatch/pkg/logger"
	"github.com/okian/gigmatch/pkg/metrics"
)

// Enrichment outcomes reported in metrics.
const (
	outcomeEnriched = "enriched"
	outcomeNotFound = "not_found"
	outcomeFailed   = "failed"
)

// Catalog looks artists up in a music catalog.
type Catalog interface {
	// FindArtist returns the catalog's best match for name with genres filled in.
	FindArtist(ctx context.Context, name string) (model.ArtistProfile, bool, error)
	// ArtistFeatures returns audio features of the artist's representative tracks.
	ArtistFeatures(ctx context.Context, catalogID string) ([]model.AudioFeatures, error)
}

// Store lists artists waiting for enrichment and saves the results.
type Store interface {
	ListUnenrichedArtists(ctx context.Context, now time.Time) ([]string, error)
	UpsertArtist(ctx context.Context, a model.ArtistProfile) (int64, error)
}

// Report summarizes one enrichment pass.
type Report struct {
	Pending  int `json:"pending"`
	Enriched int `json:"enriched"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
}

// Enricher runs enrichment passes.
type Enricher struct {
	store Store
	now   func() time.Time
	stop  func(error) bool
	log   logger.Logger
}

// New creates an Enricher over store.
func New(store Store, opts ...Option) *Enricher {
	e := &Enricher{
		store: store,
		now:   time.Now,
		stop:  func(error) bool { return false },
		log:   logger.GetOrDiscard().Named("enrich"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnrichPending enriches every artist of an upcoming event that has no profile yet.
// Artists the catalog does not know are left for a later pass. A failing artist is
// logged and skipped unless the error is fatal for the whole pass (see WithAbortOn),
// in which case the pass stops and returns it.
func (e *Enricher) EnrichPending(ctx context.Context, catalog Catalog) (Report, error) {
	names, err := e.store.ListUnenrichedArtists(ctx, e.now())
	if err != nil {
		return Report{}, fmt.Errorf("list unenriched artists: %w", err)
	}

	report := Report{Pending: len(names)}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		found, err := e.enrichOne(ctx, catalog, name)
		switch {
		case err != nil:
			report.Failed++
			metrics.RecordArtistEnrichment(outcomeFailed)
			if e.stop(err) || errors.Is(err, context.Canceled) {
				return report, fmt.Errorf("enrich %q: %w", name, err)
			}
			e.log.Warn(ctx, "artist enrichment failed", logger.String("artist", name), logger.Error(err))
		case !found:
			report.NotFound++
			metrics.RecordArtistEnrichment(outcomeNotFound)
			e.log.Debug(ctx, "artist not in catalog", logger.String("artist", name))
		default:
			report.Enriched++
			metrics.RecordArtistEnrichment(outcomeEnriched)
		}
	}

	e.log.Info(ctx, "enrichment pass finished",
		logger.Int("pending", report.Pending),
		logger.Int("enriched", report.Enriched),
		logger.Int("not_found", report.NotFound),
		logger.Int("failed", report.Failed))
	return report, nil
}

func (e *Enricher) enrichOne(ctx context.Context, catalog Catalog, name string) (bool, error) {
	artist, ok, err := catalog.FindArtist(ctx, name)
	if err != nil {
		return false, fmt.Errorf("find artist: %w", err)
	}
	if !ok {
		return false, nil
	}

	features, err := catalog.ArtistFeatures(ctx, artist.SpotifyID)
	if err != nil {
		return false, fmt.Errorf("artist features: %w", err)
	}

	artist.Name = name
	artist.AvgFeatures = profile.AverageFeatures(features)
	if _, err := e.store.UpsertArtist(ctx, artist); err != nil {
		return false, fmt.Errorf("save artist: %w", err)
	}
	return true, nil
}
