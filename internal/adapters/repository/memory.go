package repository

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/internal/domain/profile"
)

// MemoryStore is an in-memory Store. Values are copied on the way in and out, so
// callers never share state with the store. Profiles and artists pass through the
// stored encoding and keep the precision the SQL store keeps.
type MemoryStore struct {
	mu sync.RWMutex

	profiles   map[int64]model.UserMusicalProfile
	events     map[int64]model.Event
	byExternal map[string]int64
	artists    map[string]model.ArtistProfile
	matches    map[int64][]model.MatchResult
	spotify    map[int64]model.SpotifyConnection

	nextEventID  int64
	nextArtistID int64
	now          func() time.Time
	closed       bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		profiles:   make(map[int64]model.UserMusicalProfile),
		events:     make(map[int64]model.Event),
		byExternal: make(map[string]int64),
		artists:    make(map[string]model.ArtistProfile),
		matches:    make(map[int64][]model.MatchResult),
		spotify:    make(map[int64]model.SpotifyConnection),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetUserMusicalProfile implements ProfileStore.
func (s *MemoryStore) GetUserMusicalProfile(ctx context.Context, userID int64) (model.UserMusicalProfile, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.UserMusicalProfile{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.UserMusicalProfile{}, false, ErrClosed
	}
	p, ok := s.profiles[userID]
	if !ok {
		return model.UserMusicalProfile{}, false, nil
	}
	return cloneProfile(p), true, nil
}

// SaveUserMusicalProfile implements ProfileStore.
func (s *MemoryStore) SaveUserMusicalProfile(ctx context.Context, userID int64, p model.UserMusicalProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := profile.Encode(p)
	if err != nil {
		return err
	}
	stored, err := profile.Parse(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.profiles[userID] = stored
	return nil
}

// GetUpcomingEvents implements EventStore.
func (s *MemoryStore) GetUpcomingEvents(ctx context.Context, now time.Time) ([]model.EventCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	upcoming := s.upcomingLocked(now)
	out := make([]model.EventCandidate, len(upcoming))
	for i, e := range upcoming {
		c := e.Candidate()
		c.SimilarArtists = slices.Clone(c.SimilarArtists)
		out[i] = c
	}
	return out, nil
}

// upcomingLocked returns events dated at or after now ordered by date, then id.
func (s *MemoryStore) upcomingLocked(now time.Time) []model.Event {
	var out []model.Event
	for _, e := range s.events {
		if !e.EventDate.Before(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].EventDate.Before(out[j].EventDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpsertEvent implements EventStore.
func (s *MemoryStore) UpsertEvent(ctx context.Context, e model.Event) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(e.ArtistName) == "" || e.EventDate.IsZero() {
		return 0, ErrInvalidEvent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	now := s.now().UTC()
	e.SimilarArtists = slices.Clone(e.SimilarArtists)
	e.UpdatedAt = now
	if e.ExternalID != "" {
		if id, ok := s.byExternal[e.ExternalID]; ok {
			e.ID = id
			e.CreatedAt = s.events[id].CreatedAt
			s.events[id] = e
			return id, nil
		}
	}

	s.nextEventID++
	e.ID = s.nextEventID
	e.CreatedAt = now
	s.events[e.ID] = e
	if e.ExternalID != "" {
		s.byExternal[e.ExternalID] = e.ID
	}
	return e.ID, nil
}

// GetEvent implements EventStore.
func (s *MemoryStore) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	if err := ctx.Err(); err != nil {
		return model.Event{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Event{}, ErrClosed
	}
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	e.SimilarArtists = slices.Clone(e.SimilarArtists)
	return e, nil
}

// MarkEventsSeen implements EventStore.
func (s *MemoryStore) MarkEventsSeen(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	var n int
	for id, e := range s.events {
		if e.IsNew {
			e.IsNew = false
			s.events[id] = e
			n++
		}
	}
	return n, nil
}

// GetArtistProfile implements ArtistStore.
func (s *MemoryStore) GetArtistProfile(ctx context.Context, name string) (model.ArtistProfile, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.ArtistProfile{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.ArtistProfile{}, false, ErrClosed
	}
	a, ok := s.artists[name]
	if !ok {
		return model.ArtistProfile{}, false, nil
	}
	a.Genres = slices.Clone(a.Genres)
	return a, true, nil
}

// UpsertArtist implements ArtistStore.
func (s *MemoryStore) UpsertArtist(ctx context.Context, a model.ArtistProfile) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(a.Name) == "" {
		return 0, ErrInvalidArtist
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	prev, existed := s.artists[a.Name]
	a.ID = prev.ID
	if !existed {
		a.ID = s.nextArtistID + 1
	}
	a.UpdatedAt = s.now().UTC()
	rec, err := profile.EncodeArtist(a)
	if err != nil {
		return 0, err
	}
	stored, _, err := profile.ParseArtist(rec)
	if err != nil {
		return 0, err
	}
	if !existed {
		s.nextArtistID++
	}
	s.artists[a.Name] = stored
	return stored.ID, nil
}

// ListUnenrichedArtists implements ArtistStore.
func (s *MemoryStore) ListUnenrichedArtists(ctx context.Context, now time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	seen := make(map[string]struct{})
	var out []string
	for _, e := range s.upcomingLocked(now) {
		if _, ok := s.artists[e.ArtistName]; ok {
			continue
		}
		if _, dup := seen[e.ArtistName]; dup {
			continue
		}
		seen[e.ArtistName] = struct{}{}
		out = append(out, e.ArtistName)
	}
	return out, nil
}

// SaveMatches implements MatchStore.
func (s *MemoryStore) SaveMatches(ctx context.Context, userID int64, results []model.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	stored := slices.Clone(results)
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].Score > stored[j].Score })
	s.matches[userID] = stored
	return nil
}

// GetMatches implements MatchStore.
func (s *MemoryStore) GetMatches(ctx context.Context, userID int64) ([]model.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return slices.Clone(s.matches[userID]), nil
}

// SaveSpotifyConnection implements ConnectionStore.
func (s *MemoryStore) SaveSpotifyConnection(ctx context.Context, c model.SpotifyConnection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.UserID <= 0 || c.AccessToken == "" {
		return ErrInvalidConnection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if prev, ok := s.spotify[c.UserID]; ok {
		c.SpotifyID = cmp.Or(c.SpotifyID, prev.SpotifyID)
		c.DisplayName = cmp.Or(c.DisplayName, prev.DisplayName)
		c.RefreshToken = cmp.Or(c.RefreshToken, prev.RefreshToken)
	}
	c.UpdatedAt = s.now().UTC()
	s.spotify[c.UserID] = c
	return nil
}

// GetSpotifyConnection implements ConnectionStore.
func (s *MemoryStore) GetSpotifyConnection(ctx context.Context, userID int64) (model.SpotifyConnection, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.SpotifyConnection{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.SpotifyConnection{}, false, ErrClosed
	}
	c, ok := s.spotify[userID]
	return c, ok, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, ErrClosed
	}
	st := Stats{
		Profiles:        len(s.profiles),
		Events:          len(s.events),
		Artists:         len(s.artists),
		EnrichedArtists: len(s.artists),
		Connections:     len(s.spotify),
	}
	for _, m := range s.matches {
		st.Matches += len(m)
	}
	return st, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneProfile(p model.UserMusicalProfile) model.UserMusicalProfile {
	p.GenreDistribution = p.GenreDistribution.Clone()
	p.TopArtists = slices.Clone(p.TopArtists)
	p.TopGenres = slices.Clone(p.TopGenres)
	return p
}
