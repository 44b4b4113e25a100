// Package profile turns raw listening data into a UserMusicalProfile and parses
// stored profiles back into domain values.
package profile

import (
	"sort"
	"strings"
	"time"

	"github.com/okian/gigmatch/internal/domain/model"
)

// Default limits used by Build.
const (
	DefaultTopGenreLimit  = 10
	DefaultTopArtistLimit = 20
)

// GenreDistributionFrom counts every genre tag across artists and divides each count by
// the total number of tags. Tags are lowercased and trimmed; empty tags are ignored.
func GenreDistributionFrom(artists []model.ArtistGenres) model.GenreDistribution {
	var (
		order  []string
		counts = make(map[string]int)
		total  int
	)
	for _, a := range artists {
		for _, g := range a.Genres {
			g = strings.ToLower(strings.TrimSpace(g))
			if g == "" {
				continue
			}
			if _, seen := counts[g]; !seen {
				order = append(order, g)
			}
			counts[g]++
			total++
		}
	}

	var dist model.GenreDistribution
	if total == 0 {
		return dist
	}
	for _, g := range order {
		dist.Set(g, float64(counts[g])/float64(total))
	}
	return dist
}

// AverageFeatures returns the per-field mean of readings, or the zero vector when empty.
func AverageFeatures(readings []model.AudioFeatures) model.AudioFeatures {
	if len(readings) == 0 {
		return model.AudioFeatures{}
	}
	var sum model.AudioFeatures
	for _, r := range readings {
		sum.Energy += r.Energy
		sum.Tempo += r.Tempo
		sum.Valence += r.Valence
		sum.Danceability += r.Danceability
		sum.Acousticness += r.Acousticness
		sum.Instrumentalness += r.Instrumentalness
	}
	n := float64(len(readings))
	return model.AudioFeatures{
		Energy:           sum.Energy / n,
		Tempo:            sum.Tempo / n,
		Valence:          sum.Valence / n,
		Danceability:     sum.Danceability / n,
		Acousticness:     sum.Acousticness / n,
		Instrumentalness: sum.Instrumentalness / n,
	}
}

// TopGenres returns up to limit genre names by descending weight. Ties keep insertion
// order. A limit <= 0 means DefaultTopGenreLimit.
func TopGenres(dist model.GenreDistribution, limit int) []string {
	if limit <= 0 {
		limit = DefaultTopGenreLimit
	}
	entries := dist.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Weight > entries[j].Weight
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Genre
	}
	return out
}

// Builder builds profiles from listening history.
type Builder struct {
	topGenreLimit  int
	topArtistLimit int
	now            func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		topGenreLimit:  DefaultTopGenreLimit,
		topArtistLimit: DefaultTopArtistLimit,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build normalizes history into a profile. It never fails; empty history yields an
// empty distribution and the zero feature vector.
func (b *Builder) Build(history model.ListeningHistory) model.UserMusicalProfile {
	dist := GenreDistributionFrom(history.TopArtists)

	n := len(history.TopArtists)
	if n > b.topArtistLimit {
		n = b.topArtistLimit
	}
	names := make([]string, 0, n)
	for _, a := range history.TopArtists[:n] {
		names = append(names, a.Name)
	}

	return model.UserMusicalProfile{
		GenreDistribution: dist,
		AvgFeatures:       AverageFeatures(history.Features),
		TopArtists:        names,
		TopGenres:         TopGenres(dist, b.topGenreLimit),
		LastCalculated:    b.now().UTC(),
	}
}

// Build normalizes history with default limits.
func Build(history model.ListeningHistory) model.UserMusicalProfile {
	return NewBuilder().Build(history)
}
