package model

import (
	"math"
	"time"
)

// AudioFeatures is the six-field audio summary of a track or an average over tracks.
// Tempo is in BPM; the other fields are in [0,1].
type AudioFeatures struct {
	Energy           float64 `json:"energy" validate:"gte=0,lte=1"`
	Tempo            float64 `json:"tempo" validate:"gte=0"`
	Valence          float64 `json:"valence" validate:"gte=0,lte=1"`
	Danceability     float64 `json:"danceability" validate:"gte=0,lte=1"`
	Acousticness     float64 `json:"acousticness" validate:"gte=0,lte=1"`
	Instrumentalness float64 `json:"instrumentalness" validate:"gte=0,lte=1"`
}

// Validate fails with *InvalidFeatureError on the first non-finite or negative field,
// or on a unit field above 1.
func (f AudioFeatures) Validate() error {
	fields := [...]struct {
		name  string
		value float64
		unit  bool
	}{
		{"energy", f.Energy, true},
		{"tempo", f.Tempo, false},
		{"valence", f.Valence, true},
		{"danceability", f.Danceability, true},
		{"acousticness", f.Acousticness, true},
		{"instrumentalness", f.Instrumentalness, true},
	}
	for _, fd := range fields {
		if err := checkValue(fd.value, fd.unit); err != nil {
			return &InvalidFeatureError{Field: fd.name, Value: fd.value, Cause: err}
		}
	}
	return nil
}

// Validate checks every weight of the distribution is finite and in [0,1].
func (d GenreDistribution) Validate() error {
	for _, e := range d.Entries() {
		if err := checkValue(e.Weight, true); err != nil {
			return &InvalidFeatureError{Field: "genre " + e.Genre, Value: e.Weight, Cause: err}
		}
	}
	return nil
}

func checkValue(v float64, unit bool) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return ErrNotFinite
	case v < 0:
		return ErrNegative
	case unit && v > 1:
		return ErrOutOfRange
	}
	return nil
}

// UserMusicalProfile is a user's aggregated taste.
type UserMusicalProfile struct {
	GenreDistribution GenreDistribution
	AvgFeatures       AudioFeatures
	TopArtists        []string // case as provided
	TopGenres         []string
	LastCalculated    time.Time
}

// ArtistProfile is an enriched artist used as a match candidate.
type ArtistProfile struct {
	ID          int64
	Name        string
	SpotifyID   string
	Genres      []string
	AvgFeatures AudioFeatures
	UpdatedAt   time.Time
}

// ArtistGenres is a raw artist as returned by the listening-history provider.
type ArtistGenres struct {
	Name   string   `json:"name" validate:"required"`
	Genres []string `json:"genres"`
}

// ListeningHistory is the raw input of the profile normalizer.
type ListeningHistory struct {
	TopArtists []ArtistGenres  `json:"top_artists" validate:"dive"`
	Features   []AudioFeatures `json:"features" validate:"dive"`
}
