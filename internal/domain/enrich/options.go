package enrich

import (
	"errors"
	"time"

	"github.com/okian/gigmatch/pkg/logger"
)

// Option configures an Enricher.
type Option func(*Enricher)

// WithClock sets the clock that decides which events are upcoming.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAbortOn makes a pass stop at the first error matching any of targets.
func WithAbortOn(targets ...error) Option {
	return func(e *Enricher) {
		e.stop = func(err error) bool {
			for _, t := range targets {
				if errors.Is(err, t) {
					return true
				}
			}
			return false
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Enricher) {
		if l != nil {
			e.log = l
		}
	}
}
