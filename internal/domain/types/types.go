// Package types contains the JSON views served by the HTTP API.
package types

import (
	"time"

	"github.com/okian/gigmatch/internal/domain/model"
)

// DateLayout is the wire format of event dates.
const DateLayout = "2006-01-02"

// Event is the public view of a stored event.
type Event struct {
	ID             int64    `json:"id"`
	ExternalID     string   `json:"external_id,omitempty"`
	ArtistName     string   `json:"artist_name"`
	EventDate      string   `json:"event_date"`
	EventTime      string   `json:"event_time,omitempty"`
	Venue          string   `json:"venue,omitempty"`
	Description    string   `json:"description,omitempty"`
	EventURL       string   `json:"event_url,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	SimilarArtists []string `json:"similar_artists"`
	IsNew          bool     `json:"is_new"`
}

// NewEvent converts a stored event.
func NewEvent(e model.Event) Event {
	similar := e.SimilarArtists
	if similar == nil {
		similar = []string{}
	}
	return Event{
		ID:             e.ID,
		ExternalID:     e.ExternalID,
		ArtistName:     e.ArtistName,
		EventDate:      e.EventDate.UTC().Format(DateLayout),
		EventTime:      e.EventTime,
		Venue:          e.Venue,
		Description:    e.Description,
		EventURL:       e.EventURL,
		ImageURL:       e.ImageURL,
		SimilarArtists: similar,
		IsNew:          e.IsNew,
	}
}

// Match is one scored event.
type Match struct {
	EventID            int64     `json:"event_id"`
	Score              float64   `json:"score"`
	GenreScore         float64   `json:"genre_score"`
	FeatureScore       float64   `json:"feature_score"`
	SimilarArtistBonus float64   `json:"similar_artist_bonus"`
	Tag                model.Tag `json:"tag"`
	Event              *Event    `json:"event,omitempty"`
}

// NewMatch converts a match result. event may be nil when the event is gone.
func NewMatch(r model.MatchResult, event *model.Event) Match {
	m := Match{
		EventID:            r.EventID,
		Score:              r.Score,
		GenreScore:         r.GenreScore,
		FeatureScore:       r.FeatureScore,
		SimilarArtistBonus: r.SimilarArtistBonus,
		Tag:                r.Tag,
	}
	if event != nil {
		v := NewEvent(*event)
		m.Event = &v
	}
	return m
}

// Profile is the public view of a user's musical profile.
type Profile struct {
	UserID            int64                   `json:"user_id"`
	GenreDistribution model.GenreDistribution `json:"genre_distribution"`
	AvgFeatures       model.AudioFeatures     `json:"avg_features"`
	TopArtists        []string                `json:"top_artists"`
	TopGenres         []string                `json:"top_genres"`
	LastCalculated    *time.Time              `json:"last_calculated,omitempty"`
}

// NewProfile converts a stored profile.
func NewProfile(userID int64, p model.UserMusicalProfile) Profile {
	out := Profile{
		UserID:            userID,
		GenreDistribution: p.GenreDistribution,
		AvgFeatures:       p.AvgFeatures,
		TopArtists:        nonNil(p.TopArtists),
		TopGenres:         nonNil(p.TopGenres),
	}
	if !p.LastCalculated.IsZero() {
		t := p.LastCalculated.UTC()
		out.LastCalculated = &t
	}
	return out
}

// Model converts the view back into a domain profile. LastCalculated is left zero
// when absent.
func (p Profile) Model() model.UserMusicalProfile {
	out := model.UserMusicalProfile{
		GenreDistribution: p.GenreDistribution.Clone(),
		AvgFeatures:       p.AvgFeatures,
		TopArtists:        p.TopArtists,
		TopGenres:         p.TopGenres,
	}
	if p.LastCalculated != nil {
		out.LastCalculated = *p.LastCalculated
	}
	return out
}

// SpotifyStatus reports whether a user has a stored Spotify authorization. Tokens
// are never exposed.
type SpotifyStatus struct {
	UserID      int64      `json:"user_id"`
	Enabled     bool       `json:"enabled"`
	Connected   bool       `json:"connected"`
	SpotifyID   string     `json:"spotify_id,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// NewSpotifyStatus builds the status of a stored connection. A nil conn means the
// user never connected.
func NewSpotifyStatus(userID int64, enabled bool, conn *model.SpotifyConnection) SpotifyStatus {
	st := SpotifyStatus{UserID: userID, Enabled: enabled}
	if conn == nil {
		return st
	}
	st.Connected = true
	st.SpotifyID = conn.SpotifyID
	st.DisplayName = conn.DisplayName
	if !conn.Expiry.IsZero() {
		t := conn.Expiry.UTC()
		st.ExpiresAt = &t
	}
	if !conn.UpdatedAt.IsZero() {
		t := conn.UpdatedAt.UTC()
		st.UpdatedAt = &t
	}
	return st
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
