// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config filled with defaults; Load layers file and env on top.
// - Validate runs once at startup; nothing reads the environment after that.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// DatabasePath is the SQLite file. Empty keeps all data in process memory.
	DatabasePath string `koanf:"database_path"`

	// QueueSize bounds the profile sync queue.
	QueueSize int `koanf:"queue_size" validate:"gt=0"`

	// WorkerCount sets the number of sync workers. Zero picks a CPU-based default.
	WorkerCount int `koanf:"worker_count" validate:"gte=0"`

	// DedupeSize bounds the in-flight sync tracker.
	DedupeSize int `koanf:"dedupe_size" validate:"gt=0"`

	// MatchConcurrency bounds concurrent artist lookups per match run.
	MatchConcurrency int `koanf:"match_concurrency" validate:"gt=0"`

	// TopGenreLimit and TopArtistLimit size the profile summaries.
	TopGenreLimit  int `koanf:"top_genre_limit" validate:"gt=0"`
	TopArtistLimit int `koanf:"top_artist_limit" validate:"gt=0"`

	// MaxMatchesLimit caps GET /matches/{user_id}?limit.
	MaxMatchesLimit int `koanf:"max_matches_limit" validate:"gt=0"`

	Spotify SpotifyConfig `koanf:"spotify"`
	Scoring ScoringConfig `koanf:"scoring"`
}

// SpotifyConfig holds provider credentials and client tuning. The credentials are
// optional as a group: without them only history uploads and user tokens work.
type SpotifyConfig struct {
	ClientID          string  `koanf:"client_id" validate:"required_with=ClientSecret"`
	ClientSecret      string  `koanf:"client_secret" validate:"required_with=ClientID"`
	RedirectURI       string  `koanf:"redirect_uri" validate:"omitempty,url"`
	APIBaseURL        string  `koanf:"api_base_url" validate:"required,url"`
	AccountsURL       string  `koanf:"accounts_url" validate:"required,url"`
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
	TimeoutMS         int     `koanf:"timeout_ms" validate:"gt=0"`
}

// Enabled reports whether application credentials are configured.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// Timeout returns the per-request timeout.
func (s SpotifyConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// ScoringConfig tunes the score composer.
type ScoringConfig struct {
	GenreWeight   float64 `koanf:"genre_weight" validate:"gte=0"`
	FeatureWeight float64 `koanf:"feature_weight" validate:"gte=0"`
	BonusPerMatch float64 `koanf:"bonus_per_match" validate:"gte=0"`
	BonusCap      float64 `koanf:"bonus_cap" validate:"gte=0"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		DatabasePath:     "data/gigmatch.db",
		QueueSize:        1024,
		WorkerCount:      4,
		DedupeSize:       10_000,
		MatchConcurrency: 8,
		TopGenreLimit:    10,
		TopArtistLimit:   20,
		MaxMatchesLimit:  100,
		Spotify: SpotifyConfig{
			APIBaseURL:        "https://api.spotify.com/v1",
			AccountsURL:       "https://accounts.spotify.com",
			RequestsPerSecond: 5,
			TimeoutMS:         10_000,
		},
		Scoring: ScoringConfig{
			GenreWeight:   0.55,
			FeatureWeight: 0.35,
			BonusPerMatch: 15,
			BonusCap:      30,
		},
	}
}
