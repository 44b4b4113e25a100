// Package spotify is a rate-limited Spotify Web API client. It supplies listening
// history for profile syncs and artist data for enrichment.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/pkg/logger"
	"github.com/okian/gigmatch/pkg/metrics"
)

// Defaults for the public Spotify endpoints.
const (
	DefaultBaseURL     = "https://api.spotify.com/v1"
	DefaultAccountsURL = "https://accounts.spotify.com"

	providerName            = "spotify"
	defaultTimeout          = 10 * time.Second
	defaultRequestsPerSec   = 5
	defaultMarket           = "FR"
	defaultFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
	maxResponseBytes        = 2 << 20

	historyLimit       = 50
	audioFeaturesBatch = 100
)

// Scopes requested by the authorization-code flow.
var Scopes = []string{"user-read-private", "user-read-email", "user-top-read", "user-library-read"}

// Client talks to the Spotify Web API. It is safe for concurrent use.
type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[[]byte]
	baseURL     string
	accountsURL string
	market      string

	clientID     string
	clientSecret string
	redirectURI  string

	failureThreshold uint32

	mu        sync.Mutex
	appTokens oauth2.TokenSource

	logger logger.Logger
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:             &http.Client{Timeout: defaultTimeout},
		limiter:          rate.NewLimiter(defaultRequestsPerSec, 1),
		baseURL:          DefaultBaseURL,
		accountsURL:      DefaultAccountsURL,
		market:           defaultMarket,
		failureThreshold: defaultFailureThreshold,
		logger:           logger.GetOrDiscard().Named("spotify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	c.accountsURL = strings.TrimRight(c.accountsURL, "/")

	metrics.UpdateCircuitBreakerState(providerName, int(gobreaker.StateClosed))
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        providerName,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.failureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrProviderUnavailable)
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn(context.Background(), "circuit breaker state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.UpdateCircuitBreakerState(name, int(to))
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})
	return c
}

// HasCredentials reports whether application credentials are configured.
func (c *Client) HasCredentials() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// UserToken wraps a user's access token.
func UserToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

// AppToken returns a cached client-credentials token source for catalog endpoints.
func (c *Client) AppToken() (oauth2.TokenSource, error) {
	if !c.HasCredentials() {
		return nil, ErrNoCredentials
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.appTokens == nil {
		cfg := clientcredentials.Config{
			ClientID:     c.clientID,
			ClientSecret: c.clientSecret,
			TokenURL:     c.accountsURL + "/api/token",
		}
		c.appTokens = cfg.TokenSource(c.oauthContext(context.Background()))
	}
	return c.appTokens, nil
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.accountsURL + "/authorize",
			TokenURL: c.accountsURL + "/api/token",
		},
	}
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

// AuthCodeURL returns the consent page URL for the authorization-code flow.
func (c *Client) AuthCodeURL(state string) (string, error) {
	if !c.HasCredentials() || c.redirectURI == "" {
		return "", ErrNoCredentials
	}
	return c.oauthConfig().AuthCodeURL(state), nil
}

// Exchange trades an authorization code for a user token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !c.HasCredentials() || c.redirectURI == "" {
		return nil, ErrNoCredentials
	}
	token, err := c.oauthConfig().Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, tokenError(err)
	}
	return token, nil
}

// Refresh returns tok, or a renewed token when tok has expired and carries a
// refresh token.
func (c *Client) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if !c.HasCredentials() {
		return nil, ErrNoCredentials
	}
	fresh, err := c.oauthConfig().TokenSource(c.oauthContext(ctx), tok).Token()
	if err != nil {
		return nil, tokenError(err)
	}
	return fresh, nil
}

// Me returns the profile of the user the token belongs to.
func (c *Client) Me(ctx context.Context, ts oauth2.TokenSource) (User, error) {
	var u User
	if err := c.get(ctx, ts, "me", "/me", nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// TopArtists returns the user's top artists for a time range.
func (c *Client) TopArtists(ctx context.Context, ts oauth2.TokenSource, timeRange string, limit int) ([]Artist, error) {
	q := url.Values{"time_range": {timeRange}, "limit": {strconv.Itoa(limit)}}
	var resp pagingArtists
	if err := c.get(ctx, ts, "top_artists", "/me/top/artists", q, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// TopTracks returns the user's top tracks for a time range.
func (c *Client) TopTracks(ctx context.Context, ts oauth2.TokenSource, timeRange string, limit int) ([]Track, error) {
	q := url.Values{"time_range": {timeRange}, "limit": {strconv.Itoa(limit)}}
	var resp pagingTracks
	if err := c.get(ctx, ts, "top_tracks", "/me/top/tracks", q, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SavedTracks returns the user's liked songs.
func (c *Client) SavedTracks(ctx context.Context, ts oauth2.TokenSource, limit int) ([]Track, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var resp savedTracksResponse
	if err := c.get(ctx, ts, "saved_tracks", "/me/tracks", q, &resp); err != nil {
		return nil, err
	}
	tracks := make([]Track, 0, len(resp.Items))
	for _, item := range resp.Items {
		tracks = append(tracks, item.Track)
	}
	return tracks, nil
}

// AudioFeatures fetches features for the given tracks in batches of 100. Tracks
// Spotify has no analysis for are dropped.
func (c *Client) AudioFeatures(ctx context.Context, ts oauth2.TokenSource, trackIDs []string) ([]AudioFeatures, error) {
	var out []AudioFeatures
	for start := 0; start < len(trackIDs); start += audioFeaturesBatch {
		end := min(start+audioFeaturesBatch, len(trackIDs))
		q := url.Values{"ids": {strings.Join(trackIDs[start:end], ",")}}
		var resp audioFeaturesResponse
		if err := c.get(ctx, ts, "audio_features", "/audio-features", q, &resp); err != nil {
			return nil, err
		}
		for _, f := range resp.AudioFeatures {
			if f != nil {
				out = append(out, *f)
			}
		}
	}
	return out, nil
}

// SearchArtist returns the best match for an artist name. ok is false when nothing matches.
func (c *Client) SearchArtist(ctx context.Context, ts oauth2.TokenSource, name string) (Artist, bool, error) {
	q := url.Values{"q": {name}, "type": {"artist"}, "limit": {"1"}}
	var resp searchResponse
	if err := c.get(ctx, ts, "search", "/search", q, &resp); err != nil {
		return Artist{}, false, err
	}
	if len(resp.Artists.Items) == 0 {
		return Artist{}, false, nil
	}
	return resp.Artists.Items[0], true, nil
}

// ArtistTopTracks returns an artist's most popular tracks in the configured market.
func (c *Client) ArtistTopTracks(ctx context.Context, ts oauth2.TokenSource, artistID string) ([]Track, error) {
	q := url.Values{"market": {c.market}}
	var resp topTracksResponse
	if err := c.get(ctx, ts, "artist_top_tracks", "/artists/"+url.PathEscape(artistID)+"/top-tracks", q, &resp); err != nil {
		return nil, err
	}
	return resp.Tracks, nil
}

// ListeningHistory collects a user's top artists and the audio features of their top
// and saved tracks.
func (c *Client) ListeningHistory(ctx context.Context, accessToken string) (model.ListeningHistory, error) {
	ts := UserToken(accessToken)

	artists, err := c.TopArtists(ctx, ts, MediumTerm, historyLimit)
	if err != nil {
		return model.ListeningHistory{}, fmt.Errorf("top artists: %w", err)
	}
	topTracks, err := c.TopTracks(ctx, ts, MediumTerm, historyLimit)
	if err != nil {
		return model.ListeningHistory{}, fmt.Errorf("top tracks: %w", err)
	}
	saved, err := c.SavedTracks(ctx, ts, historyLimit)
	if err != nil {
		return model.ListeningHistory{}, fmt.Errorf("saved tracks: %w", err)
	}

	features, err := c.AudioFeatures(ctx, ts, uniqueTrackIDs(topTracks, saved))
	if err != nil {
		return model.ListeningHistory{}, fmt.Errorf("audio features: %w", err)
	}

	history := model.ListeningHistory{
		TopArtists: make([]model.ArtistGenres, 0, len(artists)),
		Features:   make([]model.AudioFeatures, 0, len(features)),
	}
	for _, a := range artists {
		history.TopArtists = append(history.TopArtists, model.ArtistGenres{Name: a.Name, Genres: a.Genres})
	}
	for _, f := range features {
		history.Features = append(history.Features, f.Model())
	}

	c.logger.Debug(ctx, "fetched listening history",
		logger.Int("artists", len(artists)),
		logger.Int("tracks", len(topTracks)+len(saved)),
		logger.Int("features", len(features)))
	return history, nil
}

func uniqueTrackIDs(lists ...[]Track) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, tracks := range lists {
		for _, t := range tracks {
			if t.ID == "" {
				continue
			}
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func (c *Client) get(ctx context.Context, ts oauth2.TokenSource, endpoint, path string, query url.Values, out any) error {
	if ts == nil {
		return ErrAuthRequired
	}
	token, err := ts.Token()
	if err != nil {
		return tokenError(err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return &UnavailableError{Endpoint: endpoint, Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, token, endpoint, u)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &UnavailableError{Endpoint: endpoint, Cause: err}
		}
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, token *oauth2.Token, endpoint, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	token.SetAuthHeader(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		metrics.RecordProviderRequest(providerName, endpoint, "error", latency)
		return nil, &UnavailableError{Endpoint: endpoint, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	metrics.RecordProviderRequest(providerName, endpoint, strconv.Itoa(resp.StatusCode), latency)

	switch {
	case resp.StatusCode == http.StatusOK:
		return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrAuthRequired
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &UnavailableError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// tokenError maps a failure to obtain a token. Rejected credentials need
// re-authorization; anything else is treated as an outage.
func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < http.StatusInternalServerError {
		return fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	return &UnavailableError{Endpoint: "token", Cause: err}
}

// Catalog binds the artist lookups used by enrichment to one token source.
type Catalog struct {
	client *Client
	tokens oauth2.TokenSource
}

// Catalog returns artist lookups authorized by ts.
func (c *Client) Catalog(ts oauth2.TokenSource) *Catalog {
	return &Catalog{client: c, tokens: ts}
}

// FindArtist searches for an artist by name and returns its Spotify id and genres.
func (k *Catalog) FindArtist(ctx context.Context, name string) (model.ArtistProfile, bool, error) {
	a, ok, err := k.client.SearchArtist(ctx, k.tokens, name)
	if err != nil || !ok {
		return model.ArtistProfile{}, false, err
	}
	return model.ArtistProfile{Name: name, SpotifyID: a.ID, Genres: a.Genres}, true, nil
}

// ArtistFeatures returns the audio features of an artist's top tracks.
func (k *Catalog) ArtistFeatures(ctx context.Context, spotifyID string) ([]model.AudioFeatures, error) {
	tracks, err := k.client.ArtistTopTracks(ctx, k.tokens, spotifyID)
	if err != nil {
		return nil, err
	}
	features, err := k.client.AudioFeatures(ctx, k.tokens, uniqueTrackIDs(tracks))
	if err != nil {
		return nil, err
	}
	out := make([]model.AudioFeatures, 0, len(features))
	for _, f := range features {
		out = append(out, f.Model())
	}
	return out, nil
}
