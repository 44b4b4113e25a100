package matching

import (
	"time"

	"github.com/okian/gigmatch/internal/domain/scoring"
	"github.com/okian/gigmatch/pkg/logger"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency bounds concurrent artist lookups per run.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithComposer replaces the default score composer.
func WithComposer(c *scoring.Composer) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.composer = c
		}
	}
}

// WithClock sets the clock that decides which events are upcoming.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}
