package profile

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/gigmatch/internal/domain/model"
)

// StoredProfile is the serialized form of a UserMusicalProfile, one text value per column.
// An empty string means the field was never written.
type StoredProfile struct {
	GenreDistribution   string
	TopArtists          string
	TopGenres           string
	AvgEnergy           string
	AvgTempo            string
	AvgValence          string
	AvgDanceability     string
	AvgAcousticness     string
	AvgInstrumentalness string
	LastCalculated      string
}

// StoredArtist is the serialized form of an ArtistProfile. Genres is empty until the
// artist has been enriched; "[]" is an enriched artist without tags.
type StoredArtist struct {
	ID                  int64
	Name                string
	SpotifyID           string
	Genres              string
	AvgEnergy           string
	AvgTempo            string
	AvgValence          string
	AvgDanceability     string
	AvgAcousticness     string
	AvgInstrumentalness string
	UpdatedAt           string
}

// Parse converts a stored profile into domain values. Any field that is present but
// cannot be parsed fails with *model.MalformedProfileError.
func Parse(rec StoredProfile) (model.UserMusicalProfile, error) {
	var p model.UserMusicalProfile

	dist, err := parseDistribution(rec.GenreDistribution)
	if err != nil {
		return p, &model.MalformedProfileError{Field: "genre_distribution", Cause: err}
	}
	p.GenreDistribution = dist

	if p.TopArtists, err = ParseStringList("top_artists", rec.TopArtists); err != nil {
		return p, err
	}
	if p.TopGenres, err = ParseStringList("top_genres", rec.TopGenres); err != nil {
		return p, err
	}

	if p.AvgFeatures, err = parseFeatures(rec.AvgEnergy, rec.AvgTempo, rec.AvgValence,
		rec.AvgDanceability, rec.AvgAcousticness, rec.AvgInstrumentalness); err != nil {
		return p, err
	}

	if p.LastCalculated, err = parseTime("last_calculated", rec.LastCalculated); err != nil {
		return p, err
	}
	return p, nil
}

// Encode serializes a profile. Features keep three decimals, tempo one. Values that
// could not be read back fail with *model.InvalidFeatureError.
func Encode(p model.UserMusicalProfile) (StoredProfile, error) {
	if err := p.AvgFeatures.Validate(); err != nil {
		return StoredProfile{}, err
	}
	if err := p.GenreDistribution.Validate(); err != nil {
		return StoredProfile{}, err
	}
	dist, err := json.Marshal(p.GenreDistribution)
	if err != nil {
		return StoredProfile{}, fmt.Errorf("encode genre distribution: %w", err)
	}
	artists, err := EncodeStringList(p.TopArtists)
	if err != nil {
		return StoredProfile{}, fmt.Errorf("encode top artists: %w", err)
	}
	genres, err := EncodeStringList(p.TopGenres)
	if err != nil {
		return StoredProfile{}, fmt.Errorf("encode top genres: %w", err)
	}
	f := encodeFeatures(p.AvgFeatures)
	rec := StoredProfile{
		GenreDistribution:   string(dist),
		TopArtists:          artists,
		TopGenres:           genres,
		AvgEnergy:           f[0],
		AvgTempo:            f[1],
		AvgValence:          f[2],
		AvgDanceability:     f[3],
		AvgAcousticness:     f[4],
		AvgInstrumentalness: f[5],
	}
	if !p.LastCalculated.IsZero() {
		rec.LastCalculated = p.LastCalculated.UTC().Format(time.RFC3339)
	}
	return rec, nil
}

// ParseArtist converts a stored artist. ok is false when the artist has not been enriched.
func ParseArtist(rec StoredArtist) (a model.ArtistProfile, ok bool, err error) {
	a = model.ArtistProfile{ID: rec.ID, Name: rec.Name, SpotifyID: rec.SpotifyID}
	if rec.Genres == "" {
		return a, false, nil
	}
	if a.Genres, err = ParseStringList("genres", rec.Genres); err != nil {
		return a, false, err
	}
	if a.AvgFeatures, err = parseFeatures(rec.AvgEnergy, rec.AvgTempo, rec.AvgValence,
		rec.AvgDanceability, rec.AvgAcousticness, rec.AvgInstrumentalness); err != nil {
		return a, false, err
	}
	if a.UpdatedAt, err = parseTime("updated_at", rec.UpdatedAt); err != nil {
		return a, false, err
	}
	return a, true, nil
}

// EncodeArtist serializes an enriched artist. A nil Genres slice is written as "[]".
func EncodeArtist(a model.ArtistProfile) (StoredArtist, error) {
	if err := a.AvgFeatures.Validate(); err != nil {
		return StoredArtist{}, err
	}
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}
	g, err := EncodeStringList(genres)
	if err != nil {
		return StoredArtist{}, fmt.Errorf("encode artist genres: %w", err)
	}
	f := encodeFeatures(a.AvgFeatures)
	rec := StoredArtist{
		ID:                  a.ID,
		Name:                a.Name,
		SpotifyID:           a.SpotifyID,
		Genres:              g,
		AvgEnergy:           f[0],
		AvgTempo:            f[1],
		AvgValence:          f[2],
		AvgDanceability:     f[3],
		AvgAcousticness:     f[4],
		AvgInstrumentalness: f[5],
	}
	if !a.UpdatedAt.IsZero() {
		rec.UpdatedAt = a.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return rec, nil
}

// ParseStringList parses a stored JSON string array. Empty input is an absent list.
func ParseStringList(field, raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &model.MalformedProfileError{Field: field, Cause: err}
	}
	return out, nil
}

// EncodeStringList serializes a string list. A nil list is written as "".
func EncodeStringList(list []string) (string, error) {
	if list == nil {
		return "", nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func parseDistribution(raw string) (model.GenreDistribution, error) {
	var dist model.GenreDistribution
	if raw == "" {
		return dist, nil
	}
	if err := json.Unmarshal([]byte(raw), &dist); err != nil {
		return model.GenreDistribution{}, err
	}
	for _, e := range dist.Entries() {
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return model.GenreDistribution{}, fmt.Errorf("genre %q: %w", e.Genre, model.ErrNotFinite)
		}
		if e.Weight < 0 || e.Weight > 1 {
			return model.GenreDistribution{}, fmt.Errorf("genre %q: %w", e.Genre, model.ErrOutOfRange)
		}
	}
	return dist, nil
}

var featureFields = [6]string{
	"avg_energy", "avg_tempo", "avg_valence",
	"avg_danceability", "avg_acousticness", "avg_instrumentalness",
}

func parseFeatures(raw ...string) (model.AudioFeatures, error) {
	var vals [6]float64
	for i, s := range raw {
		v, err := parseFeature(s)
		if err != nil {
			return model.AudioFeatures{}, &model.MalformedProfileError{Field: featureFields[i], Cause: err}
		}
		vals[i] = v
	}
	return model.AudioFeatures{
		Energy:           vals[0],
		Tempo:            vals[1],
		Valence:          vals[2],
		Danceability:     vals[3],
		Acousticness:     vals[4],
		Instrumentalness: vals[5],
	}, nil
}

func parseFeature(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, model.ErrNotFinite
	}
	if v < 0 {
		return 0, model.ErrNegative
	}
	return v, nil
}

func encodeFeatures(f model.AudioFeatures) [6]string {
	return [6]string{
		strconv.FormatFloat(f.Energy, 'f', 3, 64),
		strconv.FormatFloat(f.Tempo, 'f', 1, 64),
		strconv.FormatFloat(f.Valence, 'f', 3, 64),
		strconv.FormatFloat(f.Danceability, 'f', 3, 64),
		strconv.FormatFloat(f.Acousticness, 'f', 3, 64),
		strconv.FormatFloat(f.Instrumentalness, 'f', 3, 64),
	}
}

func parseTime(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &model.MalformedProfileError{Field: field, Cause: err}
	}
	return t, nil
}
