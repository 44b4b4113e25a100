package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gigmatch/internal/domain/model"
)

var (
	day0 = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	day1 = day0.Add(24 * time.Hour)
	day2 = day0.Add(48 * time.Hour)
)

func TestMemoryStoreProfiles(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()

		Convey("An unknown user has no profile", func() {
			_, ok, err := s.GetUserMusicalProfile(ctx, 1)
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("A saved profile is returned as an independent copy", func() {
			p := model.UserMusicalProfile{
				GenreDistribution: model.NewGenreDistribution(model.GenreWeight{Genre: "rock", Weight: 1}),
				TopArtists:        []string{"Blur"},
			}
			So(s.SaveUserMusicalProfile(ctx, 1, p), ShouldBeNil)
			p.TopArtists[0] = "Oasis"
			p.GenreDistribution.Set("rock", 0)

			got, ok, err := s.GetUserMusicalProfile(ctx, 1)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(got.TopArtists, ShouldResemble, []string{"Blur"})
			w, _ := got.GenreDistribution.Weight("rock")
			So(w, ShouldEqual, 1)
		})

		Convey("A cancelled context is honored", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, _, err := s.GetUserMusicalProfile(cctx, 1)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})

		Convey("A closed store refuses work", func() {
			So(s.Close(), ShouldBeNil)
			So(s.SaveUserMusicalProfile(ctx, 1, model.UserMusicalProfile{}), ShouldEqual, ErrClosed)
		})
	})
}

func TestMemoryStoreEvents(t *testing.T) {
	Convey("Given a memory store with events", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(WithClock(func() time.Time { return day0 }))

		idLate, err := s.UpsertEvent(ctx, model.Event{ExternalID: "late", ArtistName: "Late", EventDate: day2, IsNew: true})
		So(err, ShouldBeNil)
		idEarly, err := s.UpsertEvent(ctx, model.Event{ExternalID: "early", ArtistName: "Early", EventDate: day1, IsNew: true})
		So(err, ShouldBeNil)
		_, err = s.UpsertEvent(ctx, model.Event{ExternalID: "past", ArtistName: "Past", EventDate: day0.Add(-time.Hour)})
		So(err, ShouldBeNil)

		Convey("Upcoming events are ordered by date and exclude the past", func() {
			evs, err := s.GetUpcomingEvents(ctx, day0)
			So(err, ShouldBeNil)
			So(evs, ShouldHaveLength, 2)
			So(evs[0].ID, ShouldEqual, idEarly)
			So(evs[1].ID, ShouldEqual, idLate)
		})

		Convey("An event dated exactly now is upcoming", func() {
			evs, err := s.GetUpcomingEvents(ctx, day1)
			So(err, ShouldBeNil)
			So(evs, ShouldHaveLength, 2)
		})

		Convey("Upserting by external id updates in place", func() {
			id, err := s.UpsertEvent(ctx, model.Event{
				ExternalID: "late", ArtistName: "Late Renamed", EventDate: day2,
				SimilarArtists: []string{"X"},
			})
			So(err, ShouldBeNil)
			So(id, ShouldEqual, idLate)

			e, err := s.GetEvent(ctx, idLate)
			So(err, ShouldBeNil)
			So(e.ArtistName, ShouldEqual, "Late Renamed")
			So(e.SimilarArtists, ShouldResemble, []string{"X"})
			So(e.CreatedAt, ShouldEqual, day0)
		})

		Convey("Events without external id are always inserted", func() {
			a, _ := s.UpsertEvent(ctx, model.Event{ArtistName: "Anon", EventDate: day1})
			b, _ := s.UpsertEvent(ctx, model.Event{ArtistName: "Anon", EventDate: day1})
			So(a, ShouldNotEqual, b)
		})

		Convey("Invalid events are rejected", func() {
			_, err := s.UpsertEvent(ctx, model.Event{EventDate: day1})
			So(err, ShouldEqual, ErrInvalidEvent)
			_, err = s.UpsertEvent(ctx, model.Event{ArtistName: "NoDate"})
			So(err, ShouldEqual, ErrInvalidEvent)
		})

		Convey("Unknown events are not found", func() {
			_, err := s.GetEvent(ctx, 999)
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("Marking events seen clears IsNew once", func() {
			n, err := s.MarkEventsSeen(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)
			n, err = s.MarkEventsSeen(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})
	})
}

func TestMemoryStoreArtistsAndMatches(t *testing.T) {
	Convey("Given a memory store with events and artists", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()
		_, _ = s.UpsertEvent(ctx, model.Event{ExternalID: "1", ArtistName: "Known", EventDate: day1})
		_, _ = s.UpsertEvent(ctx, model.Event{ExternalID: "2", ArtistName: "Unknown", EventDate: day1})
		_, _ = s.UpsertEvent(ctx, model.Event{ExternalID: "3", ArtistName: "Unknown", EventDate: day2})
		_, _ = s.UpsertEvent(ctx, model.Event{ExternalID: "4", ArtistName: "Gone", EventDate: day0.Add(-time.Hour)})

		id, err := s.UpsertArtist(ctx, model.ArtistProfile{Name: "Known", Genres: []string{"rock"}})
		So(err, ShouldBeNil)

		Convey("Artists are looked up by exact name", func() {
			a, ok, err := s.GetArtistProfile(ctx, "Known")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(a.ID, ShouldEqual, id)
			_, ok, _ = s.GetArtistProfile(ctx, "Unknown")
			So(ok, ShouldBeFalse)
		})

		Convey("Re-upserting keeps the id", func() {
			again, err := s.UpsertArtist(ctx, model.ArtistProfile{Name: "Known"})
			So(err, ShouldBeNil)
			So(again, ShouldEqual, id)
			a, _, _ := s.GetArtistProfile(ctx, "Known")
			So(a.Genres, ShouldNotBeNil)
			So(a.Genres, ShouldBeEmpty)
		})

		Convey("Nameless artists are rejected", func() {
			_, err := s.UpsertArtist(ctx, model.ArtistProfile{Name: " "})
			So(err, ShouldEqual, ErrInvalidArtist)
		})

		Convey("Unenriched upcoming artists are listed once", func() {
			names, err := s.ListUnenrichedArtists(ctx, day0)
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"Unknown"})
		})

		Convey("Matches are replaced per user and sorted", func() {
			So(s.SaveMatches(ctx, 1, []model.MatchResult{{EventID: 1, Score: 10}, {EventID: 2, Score: 80}}), ShouldBeNil)
			got, err := s.GetMatches(ctx, 1)
			So(err, ShouldBeNil)
			So(got[0].EventID, ShouldEqual, 2)

			So(s.SaveMatches(ctx, 1, []model.MatchResult{{EventID: 3, Score: 5}}), ShouldBeNil)
			got, _ = s.GetMatches(ctx, 1)
			So(got, ShouldHaveLength, 1)

			st, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.Events, ShouldEqual, 4)
			So(st.Artists, ShouldEqual, 1)
			So(st.Matches, ShouldEqual, 1)
		})
	})
}

func TestMemoryStoreStoredPrecision(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(WithClock(func() time.Time { return day0 }))

		Convey("When a profile with fine-grained features is saved", func() {
			So(s.SaveUserMusicalProfile(ctx, 1, model.UserMusicalProfile{
				AvgFeatures: model.AudioFeatures{Energy: 0.81234, Tempo: 121.26},
			}), ShouldBeNil)

			Convey("Then it is read back with stored precision", func() {
				got, _, err := s.GetUserMusicalProfile(ctx, 1)
				So(err, ShouldBeNil)
				So(got.AvgFeatures.Energy, ShouldEqual, 0.812)
				So(got.AvgFeatures.Tempo, ShouldEqual, 121.3)
			})
		})

		Convey("When a profile with a negative feature is saved", func() {
			err := s.SaveUserMusicalProfile(ctx, 2, model.UserMusicalProfile{AvgFeatures: model.AudioFeatures{Energy: -0.2}})

			Convey("Then it is refused and nothing is stored", func() {
				So(errors.Is(err, model.ErrInvalidFeatures), ShouldBeTrue)
				_, ok, err := s.GetUserMusicalProfile(ctx, 2)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When artists are upserted", func() {
			id, err := s.UpsertArtist(ctx, model.ArtistProfile{Name: "A", AvgFeatures: model.AudioFeatures{Tempo: 98.04}})
			So(err, ShouldBeNil)
			_, err = s.UpsertArtist(ctx, model.ArtistProfile{Name: "Bad", AvgFeatures: model.AudioFeatures{Valence: -1}})
			So(errors.Is(err, model.ErrInvalidFeatures), ShouldBeTrue)
			again, err := s.UpsertArtist(ctx, model.ArtistProfile{Name: "A", Genres: []string{"rock"}})
			So(err, ShouldBeNil)
			next, err := s.UpsertArtist(ctx, model.ArtistProfile{Name: "B"})
			So(err, ShouldBeNil)

			Convey("Then ids stay stable and a refused artist uses none", func() {
				So(again, ShouldEqual, id)
				So(next, ShouldEqual, id+1)
				a, ok, err := s.GetArtistProfile(ctx, "B")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(a.Genres, ShouldResemble, []string{})
			})

			Convey("Then features keep stored precision", func() {
				s2 := NewMemoryStore()
				_, err := s2.UpsertArtist(ctx, model.ArtistProfile{Name: "A", AvgFeatures: model.AudioFeatures{Tempo: 98.04}})
				So(err, ShouldBeNil)
				a, _, err := s2.GetArtistProfile(ctx, "A")
				So(err, ShouldBeNil)
				So(a.AvgFeatures.Tempo, ShouldEqual, 98.0)
			})
		})
	})
}

func TestMemoryStoreSpotifyConnections(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(WithClock(func() time.Time { return day0 }))

		Convey("A connection without a user is refused", func() {
			So(s.SaveSpotifyConnection(ctx, model.SpotifyConnection{AccessToken: "t"}), ShouldEqual, ErrInvalidConnection)
		})

		Convey("A renewed token keeps the stored refresh token", func() {
			So(s.SaveSpotifyConnection(ctx, model.SpotifyConnection{UserID: 4, SpotifyID: "sp", AccessToken: "a1", RefreshToken: "r1"}), ShouldBeNil)
			So(s.SaveSpotifyConnection(ctx, model.SpotifyConnection{UserID: 4, AccessToken: "a2"}), ShouldBeNil)

			c, ok, err := s.GetSpotifyConnection(ctx, 4)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(c.AccessToken, ShouldEqual, "a2")
			So(c.RefreshToken, ShouldEqual, "r1")
			So(c.SpotifyID, ShouldEqual, "sp")
			So(c.UpdatedAt.Equal(day0), ShouldBeTrue)

			st, err := s.Stats(ctx)
			So(err, ShouldBeNil)
			So(st.Connections, ShouldEqual, 1)
		})
	})
}
