package scoring_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gigmatch/internal/domain/model"
	scoring "github.com/okian/gigmatch/internal/domain/scoring"
)

var neutral = model.AudioFeatures{Energy: 0.5, Tempo: 120, Valence: 0.5, Danceability: 0.5, Acousticness: 0.5, Instrumentalness: 0.5}

func userProfile(top ...string) model.UserMusicalProfile {
	return model.UserMusicalProfile{
		GenreDistribution: model.NewGenreDistribution(
			model.GenreWeight{Genre: "rock", Weight: 0.6},
			model.GenreWeight{Genre: "jazz", Weight: 0.4},
		),
		AvgFeatures: neutral,
		TopArtists:  top,
	}
}

func TestCompose(t *testing.T) {
	Convey("Given a user and an artist", t, func() {
		user := userProfile("Radiohead", "Portishead")
		artist := model.ArtistProfile{Name: "Band", Genres: []string{"rock", "pop"}, AvgFeatures: neutral}

		Convey("When no similar artists are supplied", func() {
			res := scoring.Compose(user, artist, nil)

			Convey("Then the score follows the weighted formula", func() {
				So(res.GenreScore, ShouldEqual, 46.7)
				So(res.FeatureScore, ShouldEqual, 100.0)
				So(res.SimilarArtistBonus, ShouldEqual, 0)
				So(res.Score, ShouldEqual, 60.7)
				So(res.Tag, ShouldEqual, model.TagClose)
			})
		})

		Convey("When a similar artist matches a top artist", func() {
			res := scoring.Compose(user, artist, []string{"  RADIOHEAD ", "Muse"})

			Convey("Then a bonus of 15 is added", func() {
				So(res.SimilarArtistBonus, ShouldEqual, 15)
				So(res.Score, ShouldEqual, 75.7)
				So(res.Tag, ShouldEqual, model.TagVeryMatch)
			})
		})

		Convey("When bonuses push past 100", func() {
			perfect := model.ArtistProfile{Genres: []string{"rock", "jazz"}, AvgFeatures: neutral}
			res := scoring.Compose(user, perfect, []string{"radiohead", "portishead"})

			Convey("Then the score is not clamped", func() {
				So(res.Score, ShouldEqual, 120.0)
			})
		})

		Convey("When the artist has no genres and the user an empty profile", func() {
			empty := model.UserMusicalProfile{}
			res := scoring.Compose(empty, model.ArtistProfile{AvgFeatures: model.AudioFeatures{}}, nil)

			Convey("Then genre contributes nothing and features match the zero vector", func() {
				So(res.GenreScore, ShouldEqual, 0)
				So(res.FeatureScore, ShouldEqual, 100)
				So(res.Score, ShouldEqual, 35)
				So(res.Tag, ShouldEqual, model.TagDiscovery)
			})
		})
	})
}

func TestBonus(t *testing.T) {
	Convey("Given the default composer", t, func() {
		c := scoring.NewComposer()
		top := []string{"A", "B", "C", "D", "E"}

		Convey("The bonus is monotonic and capped", func() {
			So(c.Bonus(top, nil), ShouldEqual, 0)
			So(c.Bonus(top, []string{"x"}), ShouldEqual, 0)
			So(c.Bonus(top, []string{"a"}), ShouldEqual, 15)
			So(c.Bonus(top, []string{"a", "b"}), ShouldEqual, 30)
			So(c.Bonus(top, []string{"a", "b", "c", "d", "e"}), ShouldEqual, 30)
		})

		Convey("Repeated similar artists count per occurrence", func() {
			So(c.Bonus(top, []string{"a", "A "}), ShouldEqual, 30)
		})

		Convey("No top artists means no bonus", func() {
			So(c.Bonus(nil, []string{"a"}), ShouldEqual, 0)
		})
	})

	Convey("Given a composer with custom bonus settings", t, func() {
		c := scoring.NewComposer(scoring.WithBonus(10, 25))
		So(c.Bonus([]string{"a", "b", "c"}, []string{"a", "b", "c"}), ShouldEqual, 25)
		So(c.Bonus([]string{"a"}, []string{"a"}), ShouldEqual, 10)
	})
}

func TestComposerWeights(t *testing.T) {
	Convey("Given custom weights", t, func() {
		c := scoring.NewComposer(scoring.WithWeights(0.5, 0.5))
		res := c.Compose(
			model.UserMusicalProfile{AvgFeatures: neutral},
			model.ArtistProfile{Genres: []string{"rock"}, AvgFeatures: neutral},
			nil,
		)
		So(res.Score, ShouldEqual, 50)
		So(res.Tag, ShouldEqual, model.TagClose)
	})

	Convey("Negative weights keep the defaults", t, func() {
		c := scoring.NewComposer(scoring.WithWeights(-1, -1))
		res := c.Compose(
			model.UserMusicalProfile{AvgFeatures: neutral},
			model.ArtistProfile{AvgFeatures: neutral},
			nil,
		)
		So(res.Score, ShouldEqual, 35)
	})

	Convey("A zero weight drops its term", t, func() {
		user := model.UserMusicalProfile{
			GenreDistribution: model.NewGenreDistribution(model.GenreWeight{Genre: "rock", Weight: 1}),
			AvgFeatures:       neutral,
		}
		artist := model.ArtistProfile{Genres: []string{"rock"}, AvgFeatures: neutral}

		featureOnly := scoring.NewComposer(scoring.WithWeights(0, 1)).Compose(user, artist, nil)
		So(featureOnly.Score, ShouldEqual, 100)
		So(featureOnly.GenreScore, ShouldEqual, 100)

		genreOnly := scoring.NewComposer(scoring.WithWeights(1, 0)).Compose(user, model.ArtistProfile{Genres: []string{"rock"}}, nil)
		So(genreOnly.Score, ShouldEqual, 100)
	})
}

func TestAssignTag(t *testing.T) {
	Convey("Tags are a step function with inclusive lower bounds", t, func() {
		cases := []struct {
			score float64
			tag   model.Tag
		}{
			{120, model.TagVeryMatch},
			{70, model.TagVeryMatch},
			{69.9, model.TagClose},
			{50, model.TagClose},
			{49.9, model.TagDiscovery},
			{30, model.TagDiscovery},
			{29.9, model.TagOutOfZone},
			{0, model.TagOutOfZone},
		}
		for _, tc := range cases {
			So(scoring.AssignTag(tc.score), ShouldEqual, tc.tag)
		}
	})
}

func TestRound1(t *testing.T) {
	Convey("Round1 rounds halves away from zero", t, func() {
		So(scoring.Round1(60.666), ShouldEqual, 60.7)
		So(scoring.Round1(0.25), ShouldEqual, 0.3)
		So(scoring.Round1(-0.25), ShouldEqual, -0.3)
		So(scoring.Round1(46.6666), ShouldEqual, 46.7)
	})
}
