package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gigmatch/internal/adapters/http/api"
	"github.com/okian/gigmatch/internal/adapters/spotify"
	service "github.com/okian/gigmatch/internal/app"
	"github.com/okian/gigmatch/internal/domain/enrich"
	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/internal/domain/types"
)

var day0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type matchesBody struct {
	UserID  int64         `json:"user_id"`
	Cached  bool          `json:"cached"`
	Count   int           `json:"count"`
	Matches []types.Match `json:"matches"`
}

func TestAPIEndToEnd(t *testing.T) {
	Convey("Given an API backed by an in-memory service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithClock(func() time.Time { return day0 }))
		defer func() { _ = svc.Stop(ctx) }()
		mux := newMux(svc, api.WithMaxMatches(5))

		w := do(mux, http.MethodPost, "/artists", `{"name":"The Rockers","spotify_id":"sp1","genres":["rock","indie"],"avg_features":{"energy":0.7,"tempo":125}}`)
		So(w.Code, ShouldEqual, http.StatusOK)
		w = do(mux, http.MethodPost, "/artists", `{"name":"Smooth Trio","genres":["jazz"],"avg_features":{"energy":0.2,"tempo":80,"acousticness":0.9}}`)
		So(w.Code, ShouldEqual, http.StatusOK)

		w = do(mux, http.MethodPost, "/events", `{"external_id":"ev-1","artist_name":"The Rockers","event_date":"2025-03-06","venue":"Le Trabendo","similar_artists":["Radiohead"]}`)
		So(w.Code, ShouldEqual, http.StatusOK)
		first := decode[struct {
			Status string `json:"status"`
			ID     int64  `json:"id"`
		}](w)
		So(first.Status, ShouldEqual, "stored")
		w = do(mux, http.MethodPost, "/events", `{"external_id":"ev-2","artist_name":"Smooth Trio","event_date":"2025-03-07"}`)
		So(w.Code, ShouldEqual, http.StatusOK)

		Convey("When the same external id is posted again", func() {
			w := do(mux, http.MethodPost, "/events", `{"external_id":"ev-1","artist_name":"The Rockers","event_date":"2025-03-08"}`)

			Convey("Then the event keeps its id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				again := decode[struct {
					ID int64 `json:"id"`
				}](w)
				So(again.ID, ShouldEqual, first.ID)
			})
		})

		Convey("When events are marked seen", func() {
			w := do(mux, http.MethodPost, "/events/seen", "")

			Convey("Then the count of new events is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"updated":2`)
			})
		})

		Convey("When matches are requested before a profile exists", func() {
			w := do(mux, http.MethodGet, "/matches/7", "")

			Convey("Then an empty list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode[matchesBody](w)
				So(body.Count, ShouldEqual, 0)
				So(body.Matches, ShouldNotBeNil)
				So(w.Body.String(), ShouldContainSubstring, `"matches":[]`)
			})
		})

		Convey("When a profile is saved", func() {
			w := do(mux, http.MethodPut, "/profiles/7", `{"genre_distribution":{"rock":0.6,"indie":0.4},"avg_features":{"energy":0.7,"tempo":125},"top_artists":["Radiohead"],"top_genres":["rock","indie"]}`)
			So(w.Code, ShouldEqual, http.StatusOK)

			Convey("Then it can be read back", func() {
				w := do(mux, http.MethodGet, "/profiles/7", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				p := decode[types.Profile](w)
				So(p.UserID, ShouldEqual, 7)
				So(p.TopArtists, ShouldResemble, []string{"Radiohead"})
				So(p.GenreDistribution.Genres(), ShouldResemble, []string{"rock", "indie"})
				So(p.LastCalculated, ShouldNotBeNil)
			})

			Convey("Then matches come back best first with their events", func() {
				w := do(mux, http.MethodGet, "/matches/7?limit=10", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode[matchesBody](w)
				So(body.Count, ShouldEqual, 2)
				So(body.Cached, ShouldBeFalse)
				So(body.Matches[0].Event.ArtistName, ShouldEqual, "The Rockers")
				So(body.Matches[0].Event.Venue, ShouldEqual, "Le Trabendo")
				So(body.Matches[0].Score, ShouldBeGreaterThanOrEqualTo, body.Matches[1].Score)
				So(body.Matches[0].SimilarArtistBonus, ShouldBeGreaterThan, 0)

				Convey("And the cached run honours the limit", func() {
					w := do(mux, http.MethodGet, "/matches/7?limit=1&cached=true", "")
					So(w.Code, ShouldEqual, http.StatusOK)
					cached := decode[matchesBody](w)
					So(cached.Cached, ShouldBeTrue)
					So(cached.Matches, ShouldHaveLength, 1)
					So(cached.Matches[0].EventID, ShouldEqual, body.Matches[0].EventID)
				})
			})
		})

		Convey("When a profile with a negative feature is saved", func() {
			w := do(mux, http.MethodPut, "/profiles/8", `{"genre_distribution":{"rock":1},"avg_features":{"energy":-0.2,"tempo":120}}`)

			Convey("Then it is rejected and nothing is stored", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Code, ShouldEqual, "bad_request")
				So(do(mux, http.MethodGet, "/profiles/8", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the Spotify status of a user is requested", func() {
			w := do(mux, http.MethodGet, "/auth/spotify/status?user_id=7", "")

			Convey("Then the user is reported as not connected", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				st := decode[types.SpotifyStatus](w)
				So(st.UserID, ShouldEqual, 7)
				So(st.Enabled, ShouldBeFalse)
				So(st.Connected, ShouldBeFalse)
			})
		})

		Convey("When a listening history sync is requested", func() {
			w := do(mux, http.MethodPost, "/profiles/9/sync", `{"history":{"top_artists":[{"name":"Radiohead","genres":["rock"]}],"features":[{"energy":0.6}]}}`)

			Convey("Then the job is queued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				body := decode[struct {
					Status string `json:"status"`
					UserID int64  `json:"user_id"`
					JobID  string `json:"job_id"`
				}](w)
				So(body.Status, ShouldEqual, "queued")
				So(body.UserID, ShouldEqual, 9)
				So(body.JobID, ShouldNotBeEmpty)
			})

			Convey("Then a second request conflicts while the first is pending", func() {
				w := do(mux, http.MethodPost, "/profiles/9/sync", `{"history":{"top_artists":[]}}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decode[errorBody](w).Code, ShouldEqual, "sync_in_progress")
			})
		})

		Convey("When stats are requested", func() {
			w := do(mux, http.MethodGet, "/stats", "")

			Convey("Then store counts are reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				stats := decode[service.Stats](w)
				So(stats.Store.Events, ShouldEqual, 2)
				So(stats.Store.Artists, ShouldEqual, 2)
				So(stats.SpotifyEnabled, ShouldBeFalse)
			})
		})
	})
}

func TestAPIValidation(t *testing.T) {
	Convey("Given an API backed by an in-memory service", t, func() {
		ctx := context.Background()
		svc := service.New()
		defer func() { _ = svc.Stop(ctx) }()
		mux := newMux(svc)

		cases := []struct {
			name, method, target, body string
			status                     int
		}{
			{"non-numeric user id", http.MethodGet, "/matches/abc", "", http.StatusBadRequest},
			{"zero user id", http.MethodGet, "/profiles/0", "", http.StatusBadRequest},
			{"bad limit", http.MethodGet, "/matches/1?limit=-3", "", http.StatusBadRequest},
			{"bad cached flag", http.MethodGet, "/matches/1?cached=maybe", "", http.StatusBadRequest},
			{"missing profile", http.MethodGet, "/profiles/1", "", http.StatusNotFound},
			{"malformed JSON", http.MethodPost, "/events", `{`, http.StatusBadRequest},
			{"event without artist", http.MethodPost, "/events", `{"event_date":"2025-03-06"}`, http.StatusBadRequest},
			{"event with bad date", http.MethodPost, "/events", `{"artist_name":"A","event_date":"06/03/2025"}`, http.StatusBadRequest},
			{"event with bad URL", http.MethodPost, "/events", `{"artist_name":"A","event_date":"2025-03-06","event_url":"nope"}`, http.StatusBadRequest},
			{"artist without name", http.MethodPost, "/artists", `{"genres":["rock"]}`, http.StatusBadRequest},
			{"profile weight out of range", http.MethodPut, "/profiles/1", `{"genre_distribution":{"rock":1.5}}`, http.StatusBadRequest},
			{"negative profile feature", http.MethodPut, "/profiles/1", `{"avg_features":{"energy":-0.2,"tempo":120}}`, http.StatusBadRequest},
			{"profile feature above one", http.MethodPut, "/profiles/1", `{"avg_features":{"valence":1.2}}`, http.StatusBadRequest},
			{"negative tempo", http.MethodPut, "/profiles/1", `{"avg_features":{"tempo":-1}}`, http.StatusBadRequest},
			{"negative artist feature", http.MethodPost, "/artists", `{"name":"A","avg_features":{"energy":-0.2}}`, http.StatusBadRequest},
			{"negative sync reading", http.MethodPost, "/profiles/1/sync", `{"history":{"features":[{"energy":0.5},{"energy":-0.2}]}}`, http.StatusBadRequest},
			{"empty sync", http.MethodPost, "/profiles/1/sync", `{}`, http.StatusBadRequest},
			{"sync without body", http.MethodPost, "/profiles/1/sync", "", http.StatusBadRequest},
			{"token sync without Spotify", http.MethodPost, "/profiles/1/sync", `{"access_token":"t"}`, http.StatusServiceUnavailable},
			{"enrich without Spotify", http.MethodPost, "/artists/enrich", "", http.StatusServiceUnavailable},
			{"login without user", http.MethodGet, "/auth/spotify/login", "", http.StatusBadRequest},
			{"login without Spotify", http.MethodGet, "/auth/spotify/login?user_id=1", "", http.StatusServiceUnavailable},
			{"callback without code", http.MethodGet, "/auth/spotify/callback?state=x", "", http.StatusBadRequest},
			{"callback with denial", http.MethodGet, "/auth/spotify/callback?error=access_denied", "", http.StatusBadRequest},
			{"status without user", http.MethodGet, "/auth/spotify/status", "", http.StatusBadRequest},
			{"wrong method", http.MethodDelete, "/events", "", http.StatusMethodNotAllowed},
			{"unknown route", http.MethodGet, "/unknown", "", http.StatusNotFound},
		}

		for _, tc := range cases {
			Convey("When the request has "+tc.name, func() {
				w := do(mux, tc.method, tc.target, tc.body)

				Convey("Then the status is "+http.StatusText(tc.status), func() {
					So(w.Code, ShouldEqual, tc.status)
				})
			})
		}
	})
}

// stubDeps fails every call with err.
type stubDeps struct {
	err error
}

func (s stubDeps) Matches(context.Context, int64, int, bool) ([]types.Match, error) {
	return nil, s.err
}

func (s stubDeps) Profile(context.Context, int64) (types.Profile, bool, error) {
	return types.Profile{}, false, s.err
}

func (s stubDeps) SaveProfile(context.Context, int64, model.UserMusicalProfile) error {
	return s.err
}

func (s stubDeps) RequestSync(context.Context, int64, *model.ListeningHistory, string) (string, error) {
	return "", s.err
}

func (s stubDeps) BeginSpotifyAuth(int64) (string, error) { return "", s.err }

func (s stubDeps) CompleteSpotifyAuth(context.Context, string, string) (int64, string, error) {
	return 0, "", s.err
}

func (s stubDeps) SpotifyStatus(context.Context, int64) (types.SpotifyStatus, error) {
	return types.SpotifyStatus{}, s.err
}

func (s stubDeps) UpsertEvent(context.Context, model.Event) (int64, error) { return 0, s.err }

func (s stubDeps) MarkEventsSeen(context.Context) (int, error) { return 0, s.err }

func (s stubDeps) UpsertArtist(context.Context, model.ArtistProfile) (int64, error) {
	return 0, s.err
}

func (s stubDeps) EnrichPending(context.Context) (enrich.Report, error) {
	return enrich.Report{}, s.err
}

func (s stubDeps) GetStats(context.Context) (service.Stats, error) {
	return service.Stats{}, s.err
}

func TestErrorMapping(t *testing.T) {
	Convey("Given handlers whose dependencies fail", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{spotify.ErrAuthRequired, http.StatusUnauthorized, "auth_required"},
			{&spotify.UnavailableError{Endpoint: "search", StatusCode: 503}, http.StatusBadGateway, "provider_unavailable"},
			{service.ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
			{service.ErrUnknownAuthState, http.StatusBadRequest, "unknown_state"},
			{&model.InvalidFeatureError{Field: "energy", Value: -0.2, Cause: model.ErrNegative}, http.StatusBadRequest, "bad_request"},
			{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
		}

		for _, tc := range cases {
			Convey("When the failure is "+tc.err.Error(), func() {
				mux := newMux(stubDeps{err: tc.err})
				w := do(mux, http.MethodGet, "/matches/1", "")

				Convey("Then it maps to "+tc.code, func() {
					So(w.Code, ShouldEqual, tc.status)
					body := decode[errorBody](w)
					So(body.Code, ShouldEqual, tc.code)
					if tc.status == http.StatusInternalServerError {
						So(body.Message, ShouldNotContainSubstring, "disk")
					}
				})
			})
		}
	})
}

func TestHealth(t *testing.T) {
	Convey("Given a registered API", t, func() {
		mux := newMux(stubDeps{})

		Convey("When /healthz is requested as JSON", func() {
			w := do(mux, http.MethodGet, "/healthz", "")

			Convey("Then the status is ok", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})
		})

		Convey("When /healthz is requested as text", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set("Accept", "text/plain")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then Prometheus metrics are served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "# HELP")
			})
		})

		Convey("When /metrics is requested", func() {
			w := do(mux, http.MethodGet, "/metrics", "")

			Convey("Then Prometheus metrics are served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "# TYPE")
			})
		})
	})
}
