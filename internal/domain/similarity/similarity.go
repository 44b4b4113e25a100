// Package similarity holds the pure comparison functions used by match scoring.
package similarity

import (
	"math"
	"strings"

	"github.com/okian/gigmatch/internal/domain/model"
)

const (
	// TempoScale brings BPM onto roughly the same unit scale as the bounded features.
	TempoScale = 250.0
	// MaxFeatureDistance is the divisor for the 6-D distance (sqrt(6), rounded to two decimals).
	MaxFeatureDistance = 2.45
)

// Genre returns 0.5*Jaccard + 0.5*weighted preference between a user's distribution and
// an artist's genre tags. Names are compared lowercased. The weighted term is the sum of
// user weights over the shared genres and is not clamped.
func Genre(user model.GenreDistribution, artistGenres []string) float64 {
	if len(artistGenres) == 0 {
		return 0
	}

	artistSet := make(map[string]struct{}, len(artistGenres))
	for _, g := range artistGenres {
		artistSet[strings.ToLower(g)] = struct{}{}
	}
	// Sum in the user's insertion order so the weighted term is reproducible.
	userSet := make(map[string]struct{}, user.Len())
	var intersection int
	var weighted float64
	for _, e := range user.Entries() {
		g := strings.ToLower(e.Genre)
		_, shared := artistSet[g]
		if shared {
			weighted += e.Weight
		}
		if _, dup := userSet[g]; dup {
			continue
		}
		userSet[g] = struct{}{}
		if shared {
			intersection++
		}
	}
	union := len(userSet) + len(artistSet) - intersection
	if union == 0 {
		return 0
	}

	jaccard := float64(intersection) / float64(union)
	return 0.5*jaccard + 0.5*weighted
}

// Features returns 1 minus the normalized Euclidean distance between two feature
// vectors, floored at 0. Tempo is divided by TempoScale before comparing.
func Features(user, artist model.AudioFeatures) float64 {
	d := distance(user, artist) / MaxFeatureDistance
	return math.Max(0, 1-d)
}

func distance(a, b model.AudioFeatures) float64 {
	deltas := [6]float64{
		a.Energy - b.Energy,
		a.Tempo/TempoScale - b.Tempo/TempoScale,
		a.Valence - b.Valence,
		a.Danceability - b.Danceability,
		a.Acousticness - b.Acousticness,
		a.Instrumentalness - b.Instrumentalness,
	}
	var sum float64
	for _, d := range deltas {
		sum += d * d
	}
	return math.Sqrt(sum)
}
