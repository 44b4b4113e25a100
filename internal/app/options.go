package service

import (
	"time"

	"github.com/okian/gigmatch/internal/adapters/repository"
	"github.com/okian/gigmatch/internal/adapters/spotify"
	"github.com/okian/gigmatch/internal/domain/profile"
	"github.com/okian/gigmatch/internal/domain/scoring"
	"github.com/okian/gigmatch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. The service owns it and closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSpotify enables provider-backed syncs and artist enrichment.
func WithSpotify(client *spotify.Client) Option {
	return func(s *Service) {
		s.spotify = client
	}
}

// WithWorkerCount sets the number of sync workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the sync queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many in-flight syncs are tracked.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMatchConcurrency bounds concurrent artist lookups per match run.
func WithMatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.matchConcurrency = n
		}
	}
}

// WithComposer sets the score composer used by match runs.
func WithComposer(c *scoring.Composer) Option {
	return func(s *Service) {
		if c != nil {
			s.composer = c
		}
	}
}

// WithProfileOptions configures the profile builder used by syncs.
func WithProfileOptions(opts ...profile.Option) Option {
	return func(s *Service) {
		s.profileOpts = append(s.profileOpts, opts...)
	}
}

// WithClock sets the clock used to pick upcoming events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
