package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gigmatch/internal/adapters/repository"
	"github.com/okian/gigmatch/internal/adapters/spotify"
	service "github.com/okian/gigmatch/internal/app"
	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/pkg/logger"
)

var day0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func clock() time.Time { return day0 }

func rockFan() model.UserMusicalProfile {
	return model.UserMusicalProfile{
		GenreDistribution: model.NewGenreDistribution(
			model.GenreWeight{Genre: "rock", Weight: 0.6},
			model.GenreWeight{Genre: "indie", Weight: 0.4},
		),
		AvgFeatures: model.AudioFeatures{Energy: 0.7, Tempo: 125, Valence: 0.5, Danceability: 0.5},
		TopArtists:  []string{"Radiohead"},
		TopGenres:   []string{"rock", "indie"},
	}
}

// seed stores three upcoming events: one rock, one jazz and one whose artist is unknown.
func seed(ctx context.Context, svc *service.Service) (rock, jazz, unknown int64) {
	var err error
	_, err = svc.UpsertArtist(ctx, model.ArtistProfile{
		Name:        "The Rockers",
		SpotifyID:   "sp-rock",
		Genres:      []string{"rock", "indie"},
		AvgFeatures: model.AudioFeatures{Energy: 0.7, Tempo: 125, Valence: 0.5, Danceability: 0.5},
	})
	So(err, ShouldBeNil)
	_, err = svc.UpsertArtist(ctx, model.ArtistProfile{
		Name:        "Smooth Trio",
		SpotifyID:   "sp-jazz",
		Genres:      []string{"jazz"},
		AvgFeatures: model.AudioFeatures{Energy: 0.2, Tempo: 80, Valence: 0.3, Acousticness: 0.9},
	})
	So(err, ShouldBeNil)

	date := day0.AddDate(0, 0, 5).Truncate(24 * time.Hour)
	rock, err = svc.UpsertEvent(ctx, model.Event{ExternalID: "ev-1", ArtistName: "The Rockers", EventDate: date, IsNew: true, SimilarArtists: []string{"radiohead"}})
	So(err, ShouldBeNil)
	jazz, err = svc.UpsertEvent(ctx, model.Event{ExternalID: "ev-2", ArtistName: "Smooth Trio", EventDate: date, IsNew: true})
	So(err, ShouldBeNil)
	unknown, err = svc.UpsertEvent(ctx, model.Event{ExternalID: "ev-3", ArtistName: "Nobody Yet", EventDate: date, IsNew: true})
	So(err, ShouldBeNil)
	return rock, jazz, unknown
}

func TestComputeMatches(t *testing.T) {
	Convey("Given a service with events and enriched artists", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(repository.WithClock(clock))
		svc := service.New(service.WithStore(store), service.WithClock(clock))
		defer func() { _ = svc.Stop(ctx) }()
		rock, jazz, _ := seed(ctx, svc)

		Convey("When the user has no profile", func() {
			results, err := svc.ComputeMatches(ctx, 7)

			Convey("Then the result is empty and nothing is stored", func() {
				So(err, ShouldBeNil)
				So(results, ShouldNotBeNil)
				So(results, ShouldBeEmpty)
				stored, err := store.GetMatches(ctx, 7)
				So(err, ShouldBeNil)
				So(stored, ShouldBeEmpty)
			})
		})

		Convey("When the user has a profile", func() {
			So(svc.SaveProfile(ctx, 7, rockFan()), ShouldBeNil)
			results, err := svc.ComputeMatches(ctx, 7)

			Convey("Then enriched events are scored best first", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 2)
				So(results[0].EventID, ShouldEqual, rock)
				So(results[1].EventID, ShouldEqual, jazz)
				So(results[0].Score, ShouldBeGreaterThan, results[1].Score)
				So(results[0].SimilarArtistBonus, ShouldBeGreaterThan, 0)
				So(results[0].Tag.Valid(), ShouldBeTrue)
			})

			Convey("Then the run is stored for cached reads", func() {
				stored, err := store.GetMatches(ctx, 7)
				So(err, ShouldBeNil)
				So(stored, ShouldResemble, results)
			})
		})
	})
}

func TestMatches(t *testing.T) {
	Convey("Given a user with a computed match run", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithClock(clock))
		defer func() { _ = svc.Stop(ctx) }()
		rock, _, _ := seed(ctx, svc)
		So(svc.SaveProfile(ctx, 7, rockFan()), ShouldBeNil)

		Convey("When cached matches are requested with a limit", func() {
			_, err := svc.ComputeMatches(ctx, 7)
			So(err, ShouldBeNil)
			matches, err := svc.Matches(ctx, 7, 1, false)

			Convey("Then the best match comes back with its event", func() {
				So(err, ShouldBeNil)
				So(matches, ShouldHaveLength, 1)
				So(matches[0].EventID, ShouldEqual, rock)
				So(matches[0].Event, ShouldNotBeNil)
				So(matches[0].Event.ArtistName, ShouldEqual, "The Rockers")
				So(matches[0].Event.EventDate, ShouldEqual, "2025-03-06")
			})
		})

		Convey("When fresh matches are requested without a limit", func() {
			matches, err := svc.Matches(ctx, 7, 0, true)

			Convey("Then every scored event is returned", func() {
				So(err, ShouldBeNil)
				So(matches, ShouldHaveLength, 2)
			})
		})

		Convey("When cached matches are requested for an unknown user", func() {
			matches, err := svc.Matches(ctx, 99, 10, false)

			Convey("Then an empty list is returned", func() {
				So(err, ShouldBeNil)
				So(matches, ShouldNotBeNil)
				So(matches, ShouldBeEmpty)
			})
		})
	})
}

func TestProfile(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithClock(clock))
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When no profile is stored", func() {
			_, ok, err := svc.Profile(ctx, 1)

			Convey("Then it is reported missing", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a profile without a timestamp is saved", func() {
			So(svc.SaveProfile(ctx, 1, rockFan()), ShouldBeNil)
			p, ok, err := svc.Profile(ctx, 1)

			Convey("Then it is stamped with the service clock", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(p.UserID, ShouldEqual, 1)
				So(p.TopGenres, ShouldResemble, []string{"rock", "indie"})
				So(p.LastCalculated, ShouldNotBeNil)
				So(p.LastCalculated.Equal(day0), ShouldBeTrue)
			})
		})
	})
}

func TestRequestSync(t *testing.T) {
	Convey("Given a service whose workers are not started", t, func() {
		ctx := context.Background()
		history := &model.ListeningHistory{TopArtists: []model.ArtistGenres{{Name: "Radiohead", Genres: []string{"rock"}}}}

		Convey("When neither a history nor a token is given", func() {
			svc := service.New()
			defer func() { _ = svc.Stop(ctx) }()
			_, err := svc.RequestSync(ctx, 1, nil, "")

			Convey("Then there is nothing to sync", func() {
				So(err, ShouldEqual, service.ErrNothingToSync)
			})
		})

		Convey("When only a token is given and Spotify is not configured", func() {
			svc := service.New()
			defer func() { _ = svc.Stop(ctx) }()
			_, err := svc.RequestSync(ctx, 1, nil, "token")

			Convey("Then the sync is refused", func() {
				So(err, ShouldEqual, service.ErrSpotifyDisabled)
			})
		})

		Convey("When the history carries a negative reading", func() {
			svc := service.New()
			defer func() { _ = svc.Stop(ctx) }()
			bad := &model.ListeningHistory{Features: []model.AudioFeatures{{Energy: 0.5}, {Energy: -0.2}}}
			_, err := svc.RequestSync(ctx, 1, bad, "")

			Convey("Then the sync is refused and the user is not left in progress", func() {
				So(errors.Is(err, model.ErrInvalidFeatures), ShouldBeTrue)
				_, err := svc.RequestSync(ctx, 1, history, "")
				So(err, ShouldBeNil)
			})
		})

		Convey("When a profile with a negative feature is saved", func() {
			svc := service.New()
			defer func() { _ = svc.Stop(ctx) }()
			err := svc.SaveProfile(ctx, 1, model.UserMusicalProfile{AvgFeatures: model.AudioFeatures{Energy: -0.2}})

			Convey("Then it is refused and nothing is stored", func() {
				So(errors.Is(err, model.ErrInvalidFeatures), ShouldBeTrue)
				_, ok, err := svc.Profile(ctx, 1)
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the same user asks twice", func() {
			svc := service.New()
			defer func() { _ = svc.Stop(ctx) }()
			jobID, err := svc.RequestSync(ctx, 1, history, "")
			So(err, ShouldBeNil)
			_, err = svc.RequestSync(ctx, 1, history, "")

			Convey("Then the second request is reported as in progress", func() {
				So(jobID, ShouldNotBeEmpty)
				So(err, ShouldEqual, service.ErrSyncInProgress)
			})

			Convey("Then another user can still sync", func() {
				_, err := svc.RequestSync(ctx, 2, history, "")
				So(err, ShouldBeNil)
			})
		})

		Convey("When the queue is full", func() {
			svc := service.New(service.WithQueueSize(1))
			defer func() { _ = svc.Stop(ctx) }()
			_, err := svc.RequestSync(ctx, 1, history, "")
			So(err, ShouldBeNil)
			_, err = svc.RequestSync(ctx, 2, history, "")
			So(err, ShouldEqual, service.ErrBackpressure)

			Convey("Then the rejected user is not left marked as in progress", func() {
				_, err := svc.RequestSync(ctx, 2, history, "")
				So(err, ShouldEqual, service.ErrBackpressure)
			})

			Convey("Then stats show the queued job", func() {
				stats, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(stats.QueueLength, ShouldEqual, 1)
				So(stats.QueueCapacity, ShouldEqual, 1)
				So(stats.SyncsInFlight, ShouldEqual, 1)
				So(stats.Started, ShouldBeFalse)
			})
		})

		Convey("When the service is stopped", func() {
			svc := service.New()
			So(svc.Stop(ctx), ShouldBeNil)
			_, err := svc.RequestSync(ctx, 1, history, "")

			Convey("Then syncs are refused", func() {
				So(err, ShouldEqual, service.ErrStopped)
				So(svc.Start(ctx), ShouldEqual, service.ErrStopped)
			})
		})
	})
}

func TestSpotifyAuthWithoutClient(t *testing.T) {
	Convey("Given a service without Spotify", t, func() {
		ctx := context.Background()
		svc := service.New()
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Then auth and enrichment report it as disabled", func() {
			_, err := svc.BeginSpotifyAuth(1)
			So(err, ShouldEqual, service.ErrSpotifyDisabled)
			_, _, err = svc.CompleteSpotifyAuth(ctx, "state", "code")
			So(err, ShouldEqual, service.ErrSpotifyDisabled)
			_, err = svc.EnrichPending(ctx)
			So(err, ShouldEqual, service.ErrSpotifyDisabled)
		})
	})

	Convey("Given a service with a Spotify client", t, func() {
		ctx := context.Background()
		client := spotify.New(spotify.WithCredentials("id", "secret", "http://localhost/callback"))
		svc := service.New(service.WithSpotify(client))
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a callback carries an unknown state", func() {
			_, _, err := svc.CompleteSpotifyAuth(ctx, "forged", "code")

			Convey("Then it is rejected", func() {
				So(err, ShouldEqual, service.ErrUnknownAuthState)
			})
		})

		Convey("When a login is started", func() {
			u, err := svc.BeginSpotifyAuth(1)

			Convey("Then a consent URL with a state is returned", func() {
				So(err, ShouldBeNil)
				So(u, ShouldContainSubstring, "/authorize?")
				So(u, ShouldContainSubstring, "state=")
			})
		})
	})
}

func TestEventMaintenance(t *testing.T) {
	Convey("Given stored events", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithClock(clock))
		defer func() { _ = svc.Stop(ctx) }()
		seed(ctx, svc)

		Convey("When events are marked seen twice", func() {
			first, err := svc.MarkEventsSeen(ctx)
			So(err, ShouldBeNil)
			second, err := svc.MarkEventsSeen(ctx)
			So(err, ShouldBeNil)

			Convey("Then only the first call changes anything", func() {
				So(first, ShouldEqual, 3)
				So(second, ShouldEqual, 0)
			})
		})

		Convey("Then stats count the stored rows", func() {
			stats, err := svc.GetStats(ctx)
			So(err, ShouldBeNil)
			So(stats.Store.Events, ShouldEqual, 3)
			So(stats.Store.Artists, ShouldEqual, 2)
		})
	})
}
