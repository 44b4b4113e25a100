// Package seed loads a demo dataset into a running gigmatch service and checks the
// matches it returns.
package seed

import (
	"time"

	"github.com/okian/gigmatch/internal/domain/model"
)

// Config holds configuration for a seed run.
type Config struct {
	BaseURL     string        // Base URL of the service
	UserID      int64         // Listener whose profile is synced
	NumEvents   int           // Number of events to generate
	Limit       int           // Number of matches to fetch
	Workers     int           // Number of concurrent event uploads
	Timeout     time.Duration // HTTP request timeout
	WaitTimeout time.Duration // How long to wait for the profile sync
	Seed        uint64        // Random seed for the generated dataset
	OutputFile  string        // Optional file for the generated dataset
	Verbose     bool          // Enable verbose logging
}

// Artist is the POST /artists body.
type Artist struct {
	Name        string              `json:"name"`
	SpotifyID   string              `json:"spotify_id,omitempty"`
	Genres      []string            `json:"genres"`
	AvgFeatures model.AudioFeatures `json:"avg_features"`
}

// Event is the POST /events body.
type Event struct {
	ExternalID     string   `json:"external_id"`
	ArtistName     string   `json:"artist_name"`
	EventDate      string   `json:"event_date"`
	EventTime      string   `json:"event_time,omitempty"`
	Venue          string   `json:"venue,omitempty"`
	SimilarArtists []string `json:"similar_artists"`
}

// Dataset is everything a run uploads.
type Dataset struct {
	Artists []Artist               `json:"artists"`
	Events  []Event                `json:"events"`
	History model.ListeningHistory `json:"history"`
}

// Stats holds run statistics.
type Stats struct {
	ArtistsPosted   int
	EventsPosted    int
	EventsFailed    int
	MatchesReturned int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
