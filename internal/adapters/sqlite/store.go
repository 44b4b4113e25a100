package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/gigmatch/internal/adapters/repository"
	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/internal/domain/profile"
	"github.com/okian/gigmatch/pkg/metrics"
)

// Store implements repository.Store on SQLite. Profile and artist columns hold the
// text encoding produced by the profile package.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New opens the database at path, applies migrations and returns a Store.
func New(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db, opts...), nil
}

// NewWithDB wraps an already migrated database.
func NewWithDB(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close implements repository.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) track(op string) func(*error) {
	start := time.Now()
	return func(err *error) {
		metrics.RecordStoreOperation(op, float64(time.Since(start).Microseconds())/1000, *err)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// GetUserMusicalProfile implements repository.ProfileStore.
func (s *Store) GetUserMusicalProfile(ctx context.Context, userID int64) (p model.UserMusicalProfile, ok bool, err error) {
	defer s.track("get_profile")(&err)

	var rec profile.StoredProfile
	err = s.db.QueryRowContext(ctx, `
		SELECT genre_distribution, top_artists, top_genres,
		       avg_energy, avg_tempo, avg_valence, avg_danceability, avg_acousticness, avg_instrumentalness,
		       last_calculated
		FROM musical_profiles WHERE user_id = ?`, userID).Scan(
		&rec.GenreDistribution, &rec.TopArtists, &rec.TopGenres,
		&rec.AvgEnergy, &rec.AvgTempo, &rec.AvgValence, &rec.AvgDanceability, &rec.AvgAcousticness, &rec.AvgInstrumentalness,
		&rec.LastCalculated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserMusicalProfile{}, false, nil
	}
	if err != nil {
		return model.UserMusicalProfile{}, false, fmt.Errorf("query profile: %w", err)
	}

	p, err = profile.Parse(rec)
	if err != nil {
		return model.UserMusicalProfile{}, false, fmt.Errorf("user %d: %w", userID, err)
	}
	return p, true, nil
}

// SaveUserMusicalProfile implements repository.ProfileStore.
func (s *Store) SaveUserMusicalProfile(ctx context.Context, userID int64, p model.UserMusicalProfile) (err error) {
	defer s.track("save_profile")(&err)

	rec, err := profile.Encode(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO musical_profiles (user_id, genre_distribution, top_artists, top_genres,
			avg_energy, avg_tempo, avg_valence, avg_danceability, avg_acousticness, avg_instrumentalness,
			last_calculated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			genre_distribution = excluded.genre_distribution,
			top_artists = excluded.top_artists,
			top_genres = excluded.top_genres,
			avg_energy = excluded.avg_energy,
			avg_tempo = excluded.avg_tempo,
			avg_valence = excluded.avg_valence,
			avg_danceability = excluded.avg_danceability,
			avg_acousticness = excluded.avg_acousticness,
			avg_instrumentalness = excluded.avg_instrumentalness,
			last_calculated = excluded.last_calculated`,
		userID, rec.GenreDistribution, rec.TopArtists, rec.TopGenres,
		rec.AvgEnergy, rec.AvgTempo, rec.AvgValence, rec.AvgDanceability, rec.AvgAcousticness, rec.AvgInstrumentalness,
		rec.LastCalculated)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// GetUpcomingEvents implements repository.EventStore.
func (s *Store) GetUpcomingEvents(ctx context.Context, now time.Time) (out []model.EventCandidate, err error) {
	defer s.track("upcoming_events")(&err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, artist_name, similar_artists FROM events
		WHERE event_date >= ? ORDER BY event_date, id`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("query upcoming events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var c model.EventCandidate
		var similar string
		if err = rows.Scan(&c.ID, &c.ArtistName, &similar); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if c.SimilarArtists, err = profile.ParseStringList("similar_artists", similar); err != nil {
			return nil, fmt.Errorf("event %d: %w", c.ID, err)
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// UpsertEvent implements repository.EventStore.
func (s *Store) UpsertEvent(ctx context.Context, e model.Event) (id int64, err error) {
	defer s.track("upsert_event")(&err)

	if strings.TrimSpace(e.ArtistName) == "" || e.EventDate.IsZero() {
		return 0, repository.ErrInvalidEvent
	}
	similar, err := profile.EncodeStringList(e.SimilarArtists)
	if err != nil {
		return 0, fmt.Errorf("encode similar artists: %w", err)
	}
	var external sql.NullString
	if e.ExternalID != "" {
		external = sql.NullString{String: e.ExternalID, Valid: true}
	}
	now := formatTime(s.now())

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO events (external_id, artist_name, event_date, event_time, description,
			event_url, image_url, venue, similar_artists, is_new, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			artist_name = excluded.artist_name,
			event_date = excluded.event_date,
			event_time = excluded.event_time,
			description = excluded.description,
			event_url = excluded.event_url,
			image_url = excluded.image_url,
			venue = excluded.venue,
			similar_artists = excluded.similar_artists,
			is_new = excluded.is_new,
			updated_at = excluded.updated_at
		RETURNING id`,
		external, e.ArtistName, formatTime(e.EventDate), e.EventTime, e.Description,
		e.EventURL, e.ImageURL, e.Venue, similar, e.IsNew, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert event: %w", err)
	}
	return id, nil
}

// GetEvent implements repository.EventStore.
func (s *Store) GetEvent(ctx context.Context, id int64) (e model.Event, err error) {
	defer s.track("get_event")(&err)

	var external sql.NullString
	var date, similar, created, updated string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, external_id, artist_name, event_date, event_time, description,
		       event_url, image_url, venue, similar_artists, is_new, created_at, updated_at
		FROM events WHERE id = ?`, id).Scan(
		&e.ID, &external, &e.ArtistName, &date, &e.EventTime, &e.Description,
		&e.EventURL, &e.ImageURL, &e.Venue, &similar, &e.IsNew, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("query event: %w", err)
	}

	e.ExternalID = external.String
	if e.SimilarArtists, err = profile.ParseStringList("similar_artists", similar); err != nil {
		return model.Event{}, err
	}
	for _, f := range []struct {
		dst *time.Time
		raw string
	}{{&e.EventDate, date}, {&e.CreatedAt, created}, {&e.UpdatedAt, updated}} {
		if *f.dst, err = time.Parse(time.RFC3339, f.raw); err != nil {
			return model.Event{}, fmt.Errorf("event %d: parse time %q: %w", id, f.raw, err)
		}
	}
	return e, nil
}

// MarkEventsSeen implements repository.EventStore.
func (s *Store) MarkEventsSeen(ctx context.Context) (n int, err error) {
	defer s.track("mark_events_seen")(&err)

	res, err := s.db.ExecContext(ctx, `UPDATE events SET is_new = 0, updated_at = ? WHERE is_new = 1`, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("mark events seen: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// GetArtistProfile implements repository.ArtistStore.
func (s *Store) GetArtistProfile(ctx context.Context, name string) (a model.ArtistProfile, ok bool, err error) {
	defer s.track("get_artist")(&err)

	var rec profile.StoredArtist
	err = s.db.QueryRowContext(ctx, `
		SELECT id, name, spotify_id, genres,
		       avg_energy, avg_tempo, avg_valence, avg_danceability, avg_acousticness, avg_instrumentalness,
		       updated_at
		FROM artists WHERE name = ?`, name).Scan(
		&rec.ID, &rec.Name, &rec.SpotifyID, &rec.Genres,
		&rec.AvgEnergy, &rec.AvgTempo, &rec.AvgValence, &rec.AvgDanceability, &rec.AvgAcousticness, &rec.AvgInstrumentalness,
		&rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ArtistProfile{}, false, nil
	}
	if err != nil {
		return model.ArtistProfile{}, false, fmt.Errorf("query artist: %w", err)
	}

	a, ok, err = profile.ParseArtist(rec)
	if err != nil {
		return model.ArtistProfile{}, false, fmt.Errorf("artist %q: %w", name, err)
	}
	return a, ok, nil
}

// UpsertArtist implements repository.ArtistStore.
func (s *Store) UpsertArtist(ctx context.Context, a model.ArtistProfile) (id int64, err error) {
	defer s.track("upsert_artist")(&err)

	if strings.TrimSpace(a.Name) == "" {
		return 0, repository.ErrInvalidArtist
	}
	a.UpdatedAt = s.now()
	rec, err := profile.EncodeArtist(a)
	if err != nil {
		return 0, err
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO artists (name, spotify_id, genres,
			avg_energy, avg_tempo, avg_valence, avg_danceability, avg_acousticness, avg_instrumentalness,
			updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			spotify_id = excluded.spotify_id,
			genres = excluded.genres,
			avg_energy = excluded.avg_energy,
			avg_tempo = excluded.avg_tempo,
			avg_valence = excluded.avg_valence,
			avg_danceability = excluded.avg_danceability,
			avg_acousticness = excluded.avg_acousticness,
			avg_instrumentalness = excluded.avg_instrumentalness,
			updated_at = excluded.updated_at
		RETURNING id`,
		rec.Name, rec.SpotifyID, rec.Genres,
		rec.AvgEnergy, rec.AvgTempo, rec.AvgValence, rec.AvgDanceability, rec.AvgAcousticness, rec.AvgInstrumentalness,
		rec.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert artist: %w", err)
	}
	return id, nil
}

// ListUnenrichedArtists implements repository.ArtistStore.
func (s *Store) ListUnenrichedArtists(ctx context.Context, now time.Time) (out []string, err error) {
	defer s.track("list_unenriched")(&err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.artist_name FROM events e
		LEFT JOIN artists a ON a.name = e.artist_name
		WHERE e.event_date >= ? AND (a.id IS NULL OR a.genres = '')
		ORDER BY e.event_date, e.id`, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("query unenriched artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	seen := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan artist name: %w", err)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artist names: %w", err)
	}
	return out, nil
}

// SaveMatches implements repository.MatchStore.
func (s *Store) SaveMatches(ctx context.Context, userID int64, results []model.MatchResult) (err error) {
	defer s.track("save_matches")(&err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err = tx.ExecContext(ctx, `DELETE FROM match_scores WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO match_scores (user_id, event_id, score, genre_score, feature_score,
			similar_artist_bonus, tag, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	now := formatTime(s.now())
	for _, r := range results {
		if _, err = stmt.ExecContext(ctx, userID, r.EventID, r.Score, r.GenreScore, r.FeatureScore,
			r.SimilarArtistBonus, string(r.Tag), now); err != nil {
			return fmt.Errorf("insert match for event %d: %w", r.EventID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetMatches implements repository.MatchStore.
func (s *Store) GetMatches(ctx context.Context, userID int64) (out []model.MatchResult, err error) {
	defer s.track("get_matches")(&err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, score, genre_score, feature_score, similar_artist_bonus, tag
		FROM match_scores WHERE user_id = ? ORDER BY score DESC, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var r model.MatchResult
		var tag string
		if err = rows.Scan(&r.EventID, &r.Score, &r.GenreScore, &r.FeatureScore, &r.SimilarArtistBonus, &tag); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		r.Tag = model.Tag(tag)
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

// SaveSpotifyConnection implements repository.ConnectionStore.
func (s *Store) SaveSpotifyConnection(ctx context.Context, c model.SpotifyConnection) (err error) {
	defer s.track("save_spotify_connection")(&err)

	if c.UserID <= 0 || c.AccessToken == "" {
		return repository.ErrInvalidConnection
	}
	var expiry string
	if !c.Expiry.IsZero() {
		expiry = formatTime(c.Expiry)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO spotify_connections (user_id, spotify_id, display_name, access_token,
			refresh_token, token_type, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			spotify_id = CASE WHEN excluded.spotify_id != '' THEN excluded.spotify_id ELSE spotify_id END,
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE display_name END,
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token != '' THEN excluded.refresh_token ELSE refresh_token END,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at`,
		c.UserID, c.SpotifyID, c.DisplayName, c.AccessToken,
		c.RefreshToken, c.TokenType, expiry, formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("save spotify connection: %w", err)
	}
	return nil
}

// GetSpotifyConnection implements repository.ConnectionStore.
func (s *Store) GetSpotifyConnection(ctx context.Context, userID int64) (c model.SpotifyConnection, ok bool, err error) {
	defer s.track("get_spotify_connection")(&err)

	var expiry, updated string
	err = s.db.QueryRowContext(ctx, `
		SELECT user_id, spotify_id, display_name, access_token, refresh_token, token_type, expiry, updated_at
		FROM spotify_connections WHERE user_id = ?`, userID).Scan(
		&c.UserID, &c.SpotifyID, &c.DisplayName, &c.AccessToken, &c.RefreshToken, &c.TokenType, &expiry, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SpotifyConnection{}, false, nil
	}
	if err != nil {
		return model.SpotifyConnection{}, false, fmt.Errorf("query spotify connection: %w", err)
	}

	if expiry != "" {
		if c.Expiry, err = time.Parse(time.RFC3339, expiry); err != nil {
			return model.SpotifyConnection{}, false, fmt.Errorf("user %d: parse expiry %q: %w", userID, expiry, err)
		}
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return model.SpotifyConnection{}, false, fmt.Errorf("user %d: parse updated_at %q: %w", userID, updated, err)
	}
	return c, true, nil
}

// Stats implements repository.Store.
func (s *Store) Stats(ctx context.Context) (st repository.Stats, err error) {
	defer s.track("stats")(&err)

	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM musical_profiles),
			(SELECT COUNT(*) FROM events),
			(SELECT COUNT(*) FROM artists),
			(SELECT COUNT(*) FROM artists WHERE genres != ''),
			(SELECT COUNT(*) FROM match_scores),
			(SELECT COUNT(*) FROM spotify_connections)`).Scan(
		&st.Profiles, &st.Events, &st.Artists, &st.EnrichedArtists, &st.Matches, &st.Connections)
	if err != nil {
		return repository.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}
