// Package model contains domain models passed between layers.
package model

import "time"

// Tag classifies a match score.
type Tag string

// Match tags, from best to worst.
const (
	TagVeryMatch Tag = "very_match"
	TagClose     Tag = "close"
	TagDiscovery Tag = "discovery"
	TagOutOfZone Tag = "out_of_zone"
)

// Valid reports whether t is one of the known tags.
func (t Tag) Valid() bool {
	switch t {
	case TagVeryMatch, TagClose, TagDiscovery, TagOutOfZone:
		return true
	}
	return false
}

// Event is a stored venue event as ingested from the venue listing.
type Event struct {
	ID             int64
	ExternalID     string    // venue-side identifier, used for idempotent ingestion
	ArtistName     string
	EventDate      time.Time // start of the event day (UTC)
	EventTime      string    // free-form door/show time, e.g. "20:30"
	Description    string
	EventURL       string
	ImageURL       string
	Venue          string
	SimilarArtists []string // venue "if you like" suggestions, case as provided
	IsNew          bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Candidate returns the scoring view of the event.
func (e Event) Candidate() EventCandidate {
	return EventCandidate{ID: e.ID, ArtistName: e.ArtistName, SimilarArtists: e.SimilarArtists}
}

// EventCandidate is the part of an event the matcher needs.
type EventCandidate struct {
	ID             int64
	ArtistName     string
	SimilarArtists []string
}

// MatchResult is the outcome of scoring one event for one user.
type MatchResult struct {
	EventID            int64
	Score              float64
	GenreScore         float64
	FeatureScore       float64
	SimilarArtistBonus float64
	Tag                Tag
}
