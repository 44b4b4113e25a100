// Package repository defines the store interfaces used by the matcher and an
// in-memory implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/gigmatch/internal/domain/model"
)

// ProfileStore persists user musical profiles.
type ProfileStore interface {
	// GetUserMusicalProfile returns ok=false when the user never synced.
	GetUserMusicalProfile(ctx context.Context, userID int64) (model.UserMusicalProfile, bool, error)
	// SaveUserMusicalProfile inserts or replaces the user's profile.
	SaveUserMusicalProfile(ctx context.Context, userID int64, p model.UserMusicalProfile) error
}

// EventStore persists venue events.
type EventStore interface {
	// GetUpcomingEvents returns events dated at or after now, ordered by date then id.
	GetUpcomingEvents(ctx context.Context, now time.Time) ([]model.EventCandidate, error)
	// UpsertEvent inserts an event or updates the one with the same ExternalID.
	// Returns the event id.
	UpsertEvent(ctx context.Context, e model.Event) (int64, error)
	// GetEvent returns ErrNotFound for an unknown id.
	GetEvent(ctx context.Context, id int64) (model.Event, error)
	// MarkEventsSeen clears the IsNew flag on all events and returns how many changed.
	MarkEventsSeen(ctx context.Context) (int, error)
}

// ArtistStore persists enriched artist profiles keyed by name.
type ArtistStore interface {
	// GetArtistProfile returns ok=false when the artist is unknown or not enriched.
	GetArtistProfile(ctx context.Context, name string) (model.ArtistProfile, bool, error)
	// UpsertArtist inserts or replaces an enriched artist and returns its id.
	UpsertArtist(ctx context.Context, a model.ArtistProfile) (int64, error)
	// ListUnenrichedArtists returns distinct artist names of upcoming events that have
	// no enriched profile, in event order.
	ListUnenrichedArtists(ctx context.Context, now time.Time) ([]string, error)
}

// MatchStore keeps the latest computed matches per user.
type MatchStore interface {
	// SaveMatches replaces the user's stored matches.
	SaveMatches(ctx context.Context, userID int64, results []model.MatchResult) error
	// GetMatches returns stored matches by descending score.
	GetMatches(ctx context.Context, userID int64) ([]model.MatchResult, error)
}

// ConnectionStore keeps users' Spotify authorizations.
type ConnectionStore interface {
	// SaveSpotifyConnection inserts or replaces the user's connection. Empty
	// SpotifyID, DisplayName and RefreshToken keep the stored values.
	SaveSpotifyConnection(ctx context.Context, c model.SpotifyConnection) error
	// GetSpotifyConnection returns ok=false when the user never connected.
	GetSpotifyConnection(ctx context.Context, userID int64) (model.SpotifyConnection, bool, error)
}

// Stats summarizes store contents.
type Stats struct {
	Profiles        int `json:"profiles"`
	Events          int `json:"events"`
	Artists         int `json:"artists"`
	EnrichedArtists int `json:"enriched_artists"`
	Matches         int `json:"matches"`
	Connections     int `json:"connections"`
}

// Store is the full persistence surface of the service.
type Store interface {
	ProfileStore
	EventStore
	ArtistStore
	MatchStore
	ConnectionStore

	// Stats returns row counts.
	Stats(ctx context.Context) (Stats, error)
	// Close releases resources.
	Close() error
}
