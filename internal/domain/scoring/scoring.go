// Package scoring combines genre and audio-feature similarity into a match score.
package scoring

import (
	"math"
	"strings"

	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/internal/domain/similarity"
)

// Default scoring configuration constants.
const (
	DefaultGenreWeight   = 0.55
	DefaultFeatureWeight = 0.35
	DefaultBonusPerMatch = 15.0
	DefaultBonusCap      = 30.0
)

// Tag thresholds, inclusive lower bounds.
const (
	veryMatchThreshold = 70
	closeThreshold     = 50
	discoveryThreshold = 30
)

// Result is the score breakdown for one user/artist pair.
type Result struct {
	Score              float64
	GenreScore         float64
	FeatureScore       float64
	SimilarArtistBonus float64
	Tag                model.Tag
}

// Composer computes match scores. The zero value is not usable; use NewComposer.
type Composer struct {
	genreWeight   float64
	featureWeight float64
	bonusPerMatch float64
	bonusCap      float64
}

// NewComposer creates a Composer with the default weights.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{
		genreWeight:   DefaultGenreWeight,
		featureWeight: DefaultFeatureWeight,
		bonusPerMatch: DefaultBonusPerMatch,
		bonusCap:      DefaultBonusCap,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

var defaultComposer = NewComposer()

// Compose scores an artist for a user with the default weights.
func Compose(user model.UserMusicalProfile, artist model.ArtistProfile, similarArtists []string) Result {
	return defaultComposer.Compose(user, artist, similarArtists)
}

// Compose scores an artist for a user. It never fails. The final score is not
// clamped to 100 so that similar-artist bonuses stand out.
func (c *Composer) Compose(user model.UserMusicalProfile, artist model.ArtistProfile, similarArtists []string) Result {
	genreSim := similarity.Genre(user.GenreDistribution, artist.Genres)
	featureSim := similarity.Features(user.AvgFeatures, artist.AvgFeatures)
	bonus := c.Bonus(user.TopArtists, similarArtists)

	base := genreSim*c.genreWeight*100 + featureSim*c.featureWeight*100
	score := Round1(base + bonus)

	return Result{
		Score:              score,
		GenreScore:         Round1(genreSim * 100),
		FeatureScore:       Round1(featureSim * 100),
		SimilarArtistBonus: Round1(bonus),
		Tag:                AssignTag(score),
	}
}

// Bonus counts how many of the event's similar artists appear among the user's top
// artists (case-insensitive, trimmed) and converts the count into bonus points.
// Each occurrence in similarArtists counts on its own.
func (c *Composer) Bonus(topArtists, similarArtists []string) float64 {
	if len(similarArtists) == 0 || len(topArtists) == 0 {
		return 0
	}
	top := make(map[string]struct{}, len(topArtists))
	for _, a := range topArtists {
		top[normalizeName(a)] = struct{}{}
	}
	var matches int
	for _, a := range similarArtists {
		if _, ok := top[normalizeName(a)]; ok {
			matches++
		}
	}
	return math.Min(float64(matches)*c.bonusPerMatch, c.bonusCap)
}

// AssignTag maps a final score to its tag.
func AssignTag(score float64) model.Tag {
	switch {
	case score >= veryMatchThreshold:
		return model.TagVeryMatch
	case score >= closeThreshold:
		return model.TagClose
	case score >= discoveryThreshold:
		return model.TagDiscovery
	default:
		return model.TagOutOfZone
	}
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
