// Package service wires the stores, the matcher and the sync pipeline into the
// operations served by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gigmatch/internal/adapters/mq/queue"
	"github.com/okian/gigmatch/internal/adapters/mq/worker"
	"github.com/okian/gigmatch/internal/adapters/repository"
	"github.com/okian/gigmatch/internal/adapters/spotify"
	"github.com/okian/gigmatch/internal/domain/dedupe"
	"github.com/okian/gigmatch/internal/domain/enrich"
	"github.com/okian/gigmatch/internal/domain/matching"
	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/internal/domain/profile"
	"github.com/okian/gigmatch/internal/domain/scoring"
	"github.com/okian/gigmatch/internal/domain/types"
	"github.com/okian/gigmatch/pkg/logger"
	"github.com/okian/gigmatch/pkg/metrics"
)

const (
	authStateTTL  = 10 * time.Minute
	stopTimeout   = 30 * time.Second
	syncKeyPrefix = "user:"
)

// Stats is the service snapshot served by GET /stats.
type Stats struct {
	Started        bool             `json:"started"`
	Workers        int              `json:"workers"`
	QueueLength    int              `json:"queue_length"`
	QueueCapacity  int              `json:"queue_capacity"`
	SyncsInFlight  int64            `json:"syncs_in_flight"`
	SpotifyEnabled bool             `json:"spotify_enabled"`
	Store          repository.Stats `json:"store"`
}

type authState struct {
	userID  int64
	expires time.Time
}

// Service implements the API dependencies of the matcher.
type Service struct {
	mu sync.RWMutex

	// Core components
	store        repository.Store
	orchestrator *matching.Orchestrator
	builder      *profile.Builder
	deduper      dedupe.Deduper
	syncQueue    *queue.InMemoryQueue
	pool         *worker.Pool
	enricher     *enrich.Enricher
	spotify      *spotify.Client

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	matchConcurrency int
	composer         *scoring.Composer
	profileOpts      []profile.Option
	now              func() time.Time

	authMu     sync.Mutex
	authStates map[string]authState

	// State
	started bool
	stopped bool

	logger logger.Logger
}

// New constructs a Service. Without WithStore it keeps data in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      4,
		queueSize:        1024,
		dedupeSize:       10_000,
		matchConcurrency: 8,
		composer:         scoring.NewComposer(),
		now:              time.Now,
		authStates:       make(map[string]authState),
		logger:           logger.GetOrDiscard().Named("service"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithClock(s.now))
	}

	s.builder = profile.NewBuilder(append([]profile.Option{profile.WithClock(s.now)}, s.profileOpts...)...)
	s.orchestrator = matching.NewOrchestrator(s.store, s.store, s.store,
		matching.WithConcurrency(s.matchConcurrency),
		matching.WithComposer(s.composer),
		matching.WithClock(s.now),
		matching.WithLogger(s.logger.Named("matching")),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.syncQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.enricher = enrich.New(s.store,
		enrich.WithClock(s.now),
		enrich.WithAbortOn(spotify.ErrAuthRequired),
		enrich.WithLogger(s.logger.Named("enrich")),
	)

	var source worker.HistorySource
	if s.spotify != nil {
		source = s.spotify
	}
	s.pool = worker.NewPool(s.workerCount, s.syncQueue, source, s.builder, s.store,
		worker.WithOnDone(s.syncDone),
	)
	return s
}

// Start launches the sync workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	// Workers outlive the start request.
	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true
	s.logger.Info(ctx, "gigmatch service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Bool("spotify", s.spotify != nil))
	return nil
}

// Stop drains queued syncs and closes the store. A stopped service cannot restart.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true

	var errs []error
	if s.started {
		shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
		defer cancel()
		if err := s.pool.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	} else {
		_ = s.syncQueue.Close()
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.started = false

	s.logger.Info(ctx, "gigmatch service stopped")
	return errors.Join(errs...)
}

// ComputeMatches scores every upcoming event for the user and stores the result.
// A user without a profile gets an empty result and nothing is stored.
func (s *Service) ComputeMatches(ctx context.Context, userID int64) ([]model.MatchResult, error) {
	results, err := s.orchestrator.ComputeMatches(ctx, userID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		return []model.MatchResult{}, nil
	}
	if err := s.store.SaveMatches(ctx, userID, results); err != nil {
		return nil, fmt.Errorf("save matches: %w", err)
	}
	return results, nil
}

// Matches returns up to limit scored events with their event data. When fresh is
// false the last stored run is returned instead of scoring again.
func (s *Service) Matches(ctx context.Context, userID int64, limit int, fresh bool) ([]types.Match, error) {
	var (
		results []model.MatchResult
		err     error
	)
	if fresh {
		results, err = s.ComputeMatches(ctx, userID)
	} else {
		results, err = s.store.GetMatches(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]types.Match, 0, len(results))
	for _, r := range results {
		e, err := s.store.GetEvent(ctx, r.EventID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			out = append(out, types.NewMatch(r, nil))
		case err != nil:
			return nil, fmt.Errorf("load event %d: %w", r.EventID, err)
		default:
			out = append(out, types.NewMatch(r, &e))
		}
	}
	return out, nil
}

// Profile returns the user's stored profile.
func (s *Service) Profile(ctx context.Context, userID int64) (types.Profile, bool, error) {
	p, ok, err := s.store.GetUserMusicalProfile(ctx, userID)
	if err != nil || !ok {
		return types.Profile{}, ok, err
	}
	return types.NewProfile(userID, p), true, nil
}

// SaveProfile stores a pre-built profile. A zero LastCalculated is set to now.
func (s *Service) SaveProfile(ctx context.Context, userID int64, p model.UserMusicalProfile) error {
	if p.LastCalculated.IsZero() {
		p.LastCalculated = s.now().UTC()
	}
	return s.store.SaveUserMusicalProfile(ctx, userID, p)
}

// RequestSync queues a profile rebuild for the user, either from an uploaded
// listening history or from Spotify with accessToken. Without either, the user's
// stored Spotify connection is used and refreshed when expired. At most one sync
// per user is in flight at a time.
func (s *Service) RequestSync(ctx context.Context, userID int64, history *model.ListeningHistory, accessToken string) (string, error) {
	if history != nil {
		for _, f := range history.Features {
			if err := f.Validate(); err != nil {
				return "", err
			}
		}
	}
	if history == nil && accessToken == "" && s.spotify != nil {
		token, err := s.storedAccessToken(ctx, userID)
		if err != nil {
			return "", err
		}
		accessToken = token
	}
	switch {
	case history == nil && accessToken == "":
		return "", ErrNothingToSync
	case history == nil && s.spotify == nil:
		return "", ErrSpotifyDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return "", ErrStopped
	}

	key := syncKeyPrefix + strconv.FormatInt(userID, 10)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordProfileSyncDuplicate()
		return "", ErrSyncInProgress
	}

	job := model.SyncJob{
		JobID:       uuid.NewString(),
		UserID:      userID,
		AccessToken: accessToken,
		History:     history,
		RequestedAt: s.now().UTC(),
	}
	if !s.syncQueue.Enqueue(ctx, job) {
		s.deduper.Unrecord(ctx, key)
		return "", ErrBackpressure
	}

	s.logger.Debug(ctx, "profile sync queued",
		logger.String("job_id", job.JobID),
		logger.Int64("user_id", userID),
		logger.String("source", job.Source()))
	return job.JobID, nil
}

// storedAccessToken returns the access token of the user's Spotify connection, or
// "" when the user never connected. An expired token is refreshed and saved.
func (s *Service) storedAccessToken(ctx context.Context, userID int64) (string, error) {
	conn, ok, err := s.store.GetSpotifyConnection(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load spotify connection: %w", err)
	}
	if !ok {
		return "", nil
	}
	conn, renewed, err := s.spotify.RefreshConnection(ctx, conn)
	if err != nil {
		return "", err
	}
	if renewed {
		if err := s.store.SaveSpotifyConnection(ctx, conn); err != nil {
			return "", fmt.Errorf("save spotify connection: %w", err)
		}
		s.logger.Debug(ctx, "spotify token refreshed", logger.Int64("user_id", userID))
	}
	return conn.AccessToken, nil
}

func (s *Service) syncDone(ctx context.Context, job model.SyncJob, _ error) {
	s.deduper.Unrecord(ctx, syncKeyPrefix+strconv.FormatInt(job.UserID, 10))
}

// BeginSpotifyAuth returns the consent URL that will sync userID once the user
// approves access.
func (s *Service) BeginSpotifyAuth(userID int64) (string, error) {
	if s.spotify == nil {
		return "", ErrSpotifyDisabled
	}

	state := uuid.NewString()
	u, err := s.spotify.AuthCodeURL(state)
	if err != nil {
		return "", err
	}

	now := s.now()
	s.authMu.Lock()
	defer s.authMu.Unlock()
	for k, v := range s.authStates {
		if now.After(v.expires) {
			delete(s.authStates, k)
		}
	}
	s.authStates[state] = authState{userID: userID, expires: now.Add(authStateTTL)}
	return u, nil
}

// CompleteSpotifyAuth exchanges the authorization code, stores the resulting
// token as the user's connection and queues a sync with it.
func (s *Service) CompleteSpotifyAuth(ctx context.Context, state, code string) (int64, string, error) {
	if s.spotify == nil {
		return 0, "", ErrSpotifyDisabled
	}

	s.authMu.Lock()
	pending, ok := s.authStates[state]
	delete(s.authStates, state)
	s.authMu.Unlock()
	if !ok || s.now().After(pending.expires) {
		return 0, "", ErrUnknownAuthState
	}

	token, err := s.spotify.Exchange(ctx, code)
	if err != nil {
		return pending.userID, "", err
	}
	me, err := s.spotify.Me(ctx, spotify.UserToken(token.AccessToken))
	if err != nil {
		s.logger.Warn(ctx, "spotify profile lookup failed",
			logger.Int64("user_id", pending.userID), logger.Error(err))
	}
	conn := spotify.NewConnection(pending.userID, token, me)
	if err := s.store.SaveSpotifyConnection(ctx, conn); err != nil {
		return pending.userID, "", fmt.Errorf("save spotify connection: %w", err)
	}

	jobID, err := s.RequestSync(ctx, pending.userID, nil, token.AccessToken)
	return pending.userID, jobID, err
}

// SpotifyStatus reports whether the user has connected a Spotify account.
func (s *Service) SpotifyStatus(ctx context.Context, userID int64) (types.SpotifyStatus, error) {
	conn, ok, err := s.store.GetSpotifyConnection(ctx, userID)
	if err != nil {
		return types.SpotifyStatus{}, fmt.Errorf("load spotify connection: %w", err)
	}
	if !ok {
		return types.NewSpotifyStatus(userID, s.spotify != nil, nil), nil
	}
	return types.NewSpotifyStatus(userID, s.spotify != nil, &conn), nil
}

// UpsertEvent stores a scraped event.
func (s *Service) UpsertEvent(ctx context.Context, e model.Event) (int64, error) {
	return s.store.UpsertEvent(ctx, e)
}

// MarkEventsSeen clears the new flag on all events.
func (s *Service) MarkEventsSeen(ctx context.Context) (int, error) {
	return s.store.MarkEventsSeen(ctx)
}

// UpsertArtist stores an already enriched artist.
func (s *Service) UpsertArtist(ctx context.Context, a model.ArtistProfile) (int64, error) {
	return s.store.UpsertArtist(ctx, a)
}

// EnrichPending looks up every unenriched artist of an upcoming event on Spotify
// with the application's client credentials.
func (s *Service) EnrichPending(ctx context.Context) (enrich.Report, error) {
	if s.spotify == nil || !s.spotify.HasCredentials() {
		return enrich.Report{}, ErrSpotifyDisabled
	}
	ts, err := s.spotify.AppToken()
	if err != nil {
		return enrich.Report{}, err
	}
	return s.enricher.EnrichPending(ctx, s.spotify.Catalog(ts))
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:        s.started,
		Workers:        s.pool.Size(),
		QueueCapacity:  s.syncQueue.Capacity(),
		SpotifyEnabled: s.spotify != nil,
	}
	if s.stopped {
		return stats, nil
	}

	stats.QueueLength = s.syncQueue.Len(ctx)
	stats.SyncsInFlight = s.deduper.Size()
	st, err := s.store.Stats(ctx)
	if err != nil {
		return stats, fmt.Errorf("store stats: %w", err)
	}
	stats.Store = st

	metrics.UpdateQueueSize(stats.QueueLength)
	metrics.UpdateWorkerCount(stats.Workers)
	return stats, nil
}
