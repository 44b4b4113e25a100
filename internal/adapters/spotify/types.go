package spotify

import "github.com/okian/gigmatch/internal/domain/model"

// Time ranges accepted by the top-items endpoints.
const (
	ShortTerm  = "short_term"
	MediumTerm = "medium_term"
	LongTerm   = "long_term"
)

// Artist is a Spotify artist object.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
}

// User is the current user's public profile.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// ArtistRef is the abbreviated artist embedded in tracks.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track is a Spotify track object.
type Track struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Artists []ArtistRef `json:"artists"`
}

// AudioFeatures is one track's audio analysis.
type AudioFeatures struct {
	ID               string  `json:"id"`
	Energy           float64 `json:"energy"`
	Tempo            float64 `json:"tempo"`
	Valence          float64 `json:"valence"`
	Danceability     float64 `json:"danceability"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
}

// Model converts the reading into the domain vector.
func (f AudioFeatures) Model() model.AudioFeatures {
	return model.AudioFeatures{
		Energy:           f.Energy,
		Tempo:            f.Tempo,
		Valence:          f.Valence,
		Danceability:     f.Danceability,
		Acousticness:     f.Acousticness,
		Instrumentalness: f.Instrumentalness,
	}
}

type pagingArtists struct {
	Items []Artist `json:"items"`
}

type pagingTracks struct {
	Items []Track `json:"items"`
}

type savedTracksResponse struct {
	Items []struct {
		Track Track `json:"track"`
	} `json:"items"`
}

type audioFeaturesResponse struct {
	AudioFeatures []*AudioFeatures `json:"audio_features"`
}

type searchResponse struct {
	Artists pagingArtists `json:"artists"`
}

type topTracksResponse struct {
	Tracks []Track `json:"tracks"`
}
