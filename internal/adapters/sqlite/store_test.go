package sqlite

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gigmatch/internal/adapters/repository"
	"github.com/okian/gigmatch/internal/domain/model"
)

var (
	day0 = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	day1 = day0.Add(24 * time.Hour)
	day2 = day0.Add(48 * time.Hour)
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, MemoryPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewWithDB(db, WithClock(func() time.Time { return day0 }))
}

func TestStoreProfiles(t *testing.T) {
	Convey("Given a migrated store", t, func() {
		ctx := context.Background()
		s := newTestStore(t)
		Reset(func() { _ = s.Close() })

		Convey("An unknown user has no profile", func() {
			_, ok, err := s.GetUserMusicalProfile(ctx, 7)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("A saved profile round-trips through the text columns", func() {
			p := model.UserMusicalProfile{
				GenreDistribution: model.NewGenreDistribution(
					model.GenreWeight{Genre: "rock", Weight: 0.6},
					model.GenreWeight{Genre: "jazz", Weight: 0.4}),
				AvgFeatures:    model.AudioFeatures{Energy: 0.81234, Tempo: 121.26, Valence: 0.5},
				TopArtists:     []string{"Blur", "Pulp"},
				TopGenres:      []string{"rock", "jazz"},
				LastCalculated: day1,
			}
			So(s.SaveUserMusicalProfile(ctx, 7, p), ShouldBeNil)

			got, ok, err := s.GetUserMusicalProfile(ctx, 7)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(got.GenreDistribution.Genres(), ShouldResemble, []string{"rock", "jazz"})
			So(got.AvgFeatures.Energy, ShouldEqual, 0.812)
			So(got.AvgFeatures.Tempo, ShouldEqual, 121.3)
			So(got.TopArtists, ShouldResemble, []string{"Blur", "Pulp"})
			So(got.LastCalculated.Equal(day1), ShouldBeTrue)

			Convey("And saving again replaces it", func() {
				p.TopArtists = []string{"Suede"}
				So(s.SaveUserMusicalProfile(ctx, 7, p), ShouldBeNil)
				got, _, err := s.GetUserMusicalProfile(ctx, 7)
				So(err, ShouldBeNil)
				So(got.TopArtists, ShouldResemble, []string{"Suede"})
				st, err := s.Stats(ctx)
				So(err, ShouldBeNil)
				So(st.Profiles, ShouldEqual, 1)
			})
		})

		Convey("A profile with a negative feature is refused and nothing is written", func() {
			err := s.SaveUserMusicalProfile(ctx, 11, model.UserMusicalProfile{
				AvgFeatures: model.AudioFeatures{Energy: -0.2, Tempo: 120},
			})
			So(errors.Is(err, model.ErrInvalidFeatures), ShouldBeTrue)

			_, ok, err := s.GetUserMusicalProfile(ctx, 11)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("An artist with a non-finite feature is refused", func() {
			_, err := s.UpsertArtist(ctx, model.ArtistProfile{Name: "Broken", AvgFeatures: model.AudioFeatures{Tempo: math.Inf(1)}})
			So(errors.Is(err, model.ErrInvalidFeatures), ShouldBeTrue)

			_, ok, err := s.GetArtistProfile(ctx, "Broken")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("A malformed stored field is reported", func() {
			_, err := s.db.ExecContext(ctx, `INSERT INTO musical_profiles (user_id, avg_energy) VALUES (9, 'loud')`)
			So(err, ShouldBeNil)

			_, _, err = s.GetUserMusicalProfile(ctx, 9)
			So(errors.Is(err, model.ErrMalformedProfile), ShouldBeTrue)
			var mpe *model.MalformedProfileError
			So(errors.As(err, &mpe), ShouldBeTrue)
			So(mpe.Field, ShouldEqual, "avg_energy")
		})

		Convey("A row with only empty columns is an empty profile", func() {
			_, err := s.db.ExecContext(ctx, `INSERT INTO musical_profiles (user_id) VALUES (10)`)
			So(err, ShouldBeNil)
			got, ok, err := s.GetUserMusicalProfile(ctx, 10)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(got.GenreDistribution.Len(), ShouldEqual, 0)
			So(got.AvgFeatures, ShouldResemble, model.AudioFeatures{})
		})
	})
}

func TestStoreEvents(t *testing.T) {
	Convey("Given a store with events", t, func() {
		ctx := context.Background()
		s := newTestStore(t)
		Reset(func() { _ = s.Close() })

		idLate, err := s.UpsertEvent(ctx, model.Event{ExternalID: "late", ArtistName: "Late", EventDate: day2, IsNew: true})
		So(err, ShouldBeNil)
		idEarly, err := s.UpsertEvent(ctx, model.Event{
			ExternalID: "early", ArtistName: "Early", EventDate: day1, IsNew: true,
			SimilarArtists: []string{"Blur", "Pulp"}, Venue: "Le Bikini",
		})
		So(err, ShouldBeNil)
		_, err = s.UpsertEvent(ctx, model.Event{ArtistName: "Past", EventDate: day0.Add(-time.Hour)})
		So(err, ShouldBeNil)

		Convey("Upcoming events are ordered by date and exclude the past", func() {
			evs, err := s.GetUpcomingEvents(ctx, day0)
			So(err, ShouldBeNil)
			So(evs, ShouldHaveLength, 2)
			So(evs[0].ID, ShouldEqual, idEarly)
			So(evs[0].SimilarArtists, ShouldResemble, []string{"Blur", "Pulp"})
			So(evs[1].ID, ShouldEqual, idLate)
			So(evs[1].SimilarArtists, ShouldBeNil)
		})

		Convey("Upserting the same external id updates in place", func() {
			id, err := s.UpsertEvent(ctx, model.Event{ExternalID: "early", ArtistName: "Early Renamed", EventDate: day1})
			So(err, ShouldBeNil)
			So(id, ShouldEqual, idEarly)
			e, err := s.GetEvent(ctx, id)
			So(err, ShouldBeNil)
			So(e.ArtistName, ShouldEqual, "Early Renamed")
			So(e.ExternalID, ShouldEqual, "early")
			So(e.EventDate.Equal(day1), ShouldBeTrue)
		})

		Convey("Events without an external id always insert", func() {
			a, err := s.UpsertEvent(ctx, model.Event{ArtistName: "Twice", EventDate: day1})
			So(err, ShouldBeNil)
			b, err := s.UpsertEvent(ctx, model.Event{ArtistName: "Twice", EventDate: day1})
			So(err, ShouldBeNil)
			So(a, ShouldNotEqual, b)
		})

		Convey("GetEvent returns the full record", func() {
			e, err := s.GetEvent(ctx, idEarly)
			So(err, ShouldBeNil)
			So(e.Venue, ShouldEqual, "Le Bikini")
			So(e.IsNew, ShouldBeTrue)
			So(e.CreatedAt.Equal(day0), ShouldBeTrue)

			_, err = s.GetEvent(ctx, 999)
			So(err, ShouldEqual, repository.ErrNotFound)
		})

		Convey("Invalid events are rejected", func() {
			_, err := s.UpsertEvent(ctx, model.Event{EventDate: day1})
			So(err, ShouldEqual, repository.ErrInvalidEvent)
		})

		Convey("MarkEventsSeen clears the new flag once", func() {
			n, err := s.MarkEventsSeen(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			n, err = s.MarkEventsSeen(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})
	})
}

func TestStoreArtists(t *testing.T) {
	Convey("Given a store with upcoming events", t, func() {
		ctx := context.Background()
		s := newTestStore(t)
		Reset(func() { _ = s.Close() })

		for i, name := range []string{"Air", "Phoenix", "Air", "Justice"} {
			_, err := s.UpsertEvent(ctx, model.Event{ArtistName: name, EventDate: day1.Add(time.Duration(i) * time.Hour)})
			So(err, ShouldBeNil)
		}

		Convey("Every artist starts unenriched, in event order", func() {
			names, err := s.ListUnenrichedArtists(ctx, day0)
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"Air", "Phoenix", "Justice"})
		})

		Convey("An enriched artist is readable and no longer pending", func() {
			id, err := s.UpsertArtist(ctx, model.ArtistProfile{
				Name: "Phoenix", SpotifyID: "sp1", Genres: []string{"indie pop"},
				AvgFeatures: model.AudioFeatures{Energy: 0.7, Tempo: 128},
			})
			So(err, ShouldBeNil)

			a, ok, err := s.GetArtistProfile(ctx, "Phoenix")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(a.ID, ShouldEqual, id)
			So(a.Genres, ShouldResemble, []string{"indie pop"})
			So(a.AvgFeatures.Tempo, ShouldEqual, 128)
			So(a.UpdatedAt.Equal(day0), ShouldBeTrue)

			names, err := s.ListUnenrichedArtists(ctx, day0)
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"Air", "Justice"})

			Convey("And re-enriching keeps the id", func() {
				again, err := s.UpsertArtist(ctx, model.ArtistProfile{Name: "Phoenix"})
				So(err, ShouldBeNil)
				So(again, ShouldEqual, id)
				a, ok, err := s.GetArtistProfile(ctx, "Phoenix")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(a.Genres, ShouldBeEmpty)
			})
		})

		Convey("Lookup is by exact name", func() {
			_, err := s.UpsertArtist(ctx, model.ArtistProfile{Name: "Air", Genres: []string{"downtempo"}})
			So(err, ShouldBeNil)
			_, ok, err := s.GetArtistProfile(ctx, "air")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("A placeholder row without genres is not enriched", func() {
			_, err := s.db.ExecContext(ctx, `INSERT INTO artists (name) VALUES ('Justice')`)
			So(err, ShouldBeNil)
			_, ok, err := s.GetArtistProfile(ctx, "Justice")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)

			st, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.Artists, ShouldEqual, 1)
			So(st.EnrichedArtists, ShouldEqual, 0)
		})

		Convey("A nameless artist is rejected", func() {
			_, err := s.UpsertArtist(ctx, model.ArtistProfile{Name: "  "})
			So(err, ShouldEqual, repository.ErrInvalidArtist)
		})
	})
}

func TestStoreMatches(t *testing.T) {
	Convey("Given stored events", t, func() {
		ctx := context.Background()
		s := newTestStore(t)
		Reset(func() { _ = s.Close() })

		var ids []int64
		for _, name := range []string{"A", "B", "C"} {
			id, err := s.UpsertEvent(ctx, model.Event{ArtistName: name, EventDate: day1})
			So(err, ShouldBeNil)
			ids = append(ids, id)
		}

		Convey("Saved matches come back by descending score", func() {
			err := s.SaveMatches(ctx, 1, []model.MatchResult{
				{EventID: ids[0], Score: 40, Tag: model.TagDiscovery},
				{EventID: ids[1], Score: 75.5, GenreScore: 60, FeatureScore: 90, SimilarArtistBonus: 15, Tag: model.TagVeryMatch},
				{EventID: ids[2], Score: 40, Tag: model.TagDiscovery},
			})
			So(err, ShouldBeNil)

			got, err := s.GetMatches(ctx, 1)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 3)
			So(got[0], ShouldResemble, model.MatchResult{
				EventID: ids[1], Score: 75.5, GenreScore: 60, FeatureScore: 90, SimilarArtistBonus: 15, Tag: model.TagVeryMatch,
			})
			So(got[1].EventID, ShouldEqual, ids[0])
			So(got[2].EventID, ShouldEqual, ids[2])

			Convey("And saving again replaces the set", func() {
				So(s.SaveMatches(ctx, 1, []model.MatchResult{{EventID: ids[2], Score: 10, Tag: model.TagOutOfZone}}), ShouldBeNil)
				got, err := s.GetMatches(ctx, 1)
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].EventID, ShouldEqual, ids[2])
			})
		})

		Convey("Other users are unaffected", func() {
			So(s.SaveMatches(ctx, 1, []model.MatchResult{{EventID: ids[0], Score: 1, Tag: model.TagOutOfZone}}), ShouldBeNil)
			got, err := s.GetMatches(ctx, 2)
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
		})
	})
}

func TestNewOpensAndMigrates(t *testing.T) {
	Convey("New on a file path creates the directory and schema", t, func() {
		path := t.TempDir() + "/nested/gigmatch.db"
		s, err := New(context.Background(), path)
		So(err, ShouldBeNil)
		defer s.Close() //nolint:errcheck

		st, err := s.Stats(context.Background())
		So(err, ShouldBeNil)
		So(st, ShouldResemble, repository.Stats{})
	})
}

func TestStoreSpotifyConnections(t *testing.T) {
	Convey("Given a migrated store", t, func() {
		ctx := context.Background()
		s := newTestStore(t)
		Reset(func() { _ = s.Close() })

		Convey("An unknown user has no connection", func() {
			_, ok, err := s.GetSpotifyConnection(ctx, 3)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("A connection without an access token is refused", func() {
			err := s.SaveSpotifyConnection(ctx, model.SpotifyConnection{UserID: 3})
			So(err, ShouldEqual, repository.ErrInvalidConnection)
		})

		Convey("A saved connection round-trips", func() {
			expiry := day1.Add(time.Hour)
			So(s.SaveSpotifyConnection(ctx, model.SpotifyConnection{
				UserID: 3, SpotifyID: "sp-user", DisplayName: "Ana",
				AccessToken: "access-1", RefreshToken: "refresh-1", TokenType: "Bearer", Expiry: expiry,
			}), ShouldBeNil)

			c, ok, err := s.GetSpotifyConnection(ctx, 3)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(c.SpotifyID, ShouldEqual, "sp-user")
			So(c.AccessToken, ShouldEqual, "access-1")
			So(c.RefreshToken, ShouldEqual, "refresh-1")
			So(c.Expiry.Equal(expiry), ShouldBeTrue)
			So(c.UpdatedAt.Equal(day0), ShouldBeTrue)

			Convey("And a renewed token keeps the stored refresh token and identity", func() {
				So(s.SaveSpotifyConnection(ctx, model.SpotifyConnection{UserID: 3, AccessToken: "access-2", TokenType: "Bearer"}), ShouldBeNil)

				c, _, err := s.GetSpotifyConnection(ctx, 3)
				So(err, ShouldBeNil)
				So(c.AccessToken, ShouldEqual, "access-2")
				So(c.RefreshToken, ShouldEqual, "refresh-1")
				So(c.SpotifyID, ShouldEqual, "sp-user")
				So(c.Expiry.IsZero(), ShouldBeTrue)

				st, err := s.Stats(ctx)
				So(err, ShouldBeNil)
				So(st.Connections, ShouldEqual, 1)
			})
		})
	})
}
