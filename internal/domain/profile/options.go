package profile

import "time"

// Option configures a Builder.
type Option func(*Builder)

// WithTopGenreLimit sets how many genres are kept in TopGenres.
func WithTopGenreLimit(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.topGenreLimit = n
		}
	}
}

// WithTopArtistLimit sets how many artist names are kept in TopArtists.
func WithTopArtistLimit(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.topArtistLimit = n
		}
	}
}

// WithClock overrides the clock used for LastCalculated.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}
