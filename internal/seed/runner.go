package seed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/gigmatch/internal/domain/types"
	"github.com/okian/gigmatch/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

const profilePollInterval = 100 * time.Millisecond

// ErrSyncTimeout is returned when the profile is not built within WaitTimeout.
var ErrSyncTimeout = errors.New("profile sync did not complete in time")

// Run executes a complete seed run.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	log := logger.GetOrDiscard()

	log.Info(ctx, "starting gigmatch seed",
		logger.String("baseURL", config.BaseURL),
		logger.Int64("user", config.UserID),
		logger.Int("events", config.NumEvents),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Int("limit", config.Limit),
		logger.Bool("verbose", config.Verbose))

	client := newHTTPClient(config)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the dataset
	ds := generateDataset(ctx, config, stats.StartTime)

	// Step 3: Upload the catalog
	for _, a := range ds.Artists {
		if _, err := client.do(ctx, http.MethodPost, "/artists", a, nil, http.StatusOK); err != nil {
			return fmt.Errorf("artist upload failed: %w", err)
		}
		stats.ArtistsPosted++
	}

	// Step 4: Upload events concurrently
	if err := submitEvents(ctx, client, config, ds.Events, stats); err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}

	// Step 5: Sync the listener and wait for the profile
	if err := syncProfile(ctx, client, config, ds); err != nil {
		return fmt.Errorf("profile sync failed: %w", err)
	}

	// Step 6: Fetch and verify matches
	var resp matchesResponse
	path := fmt.Sprintf("/matches/%d?limit=%d", config.UserID, config.Limit)
	if _, err := client.do(ctx, http.MethodGet, path, nil, &resp, http.StatusOK); err != nil {
		return fmt.Errorf("match retrieval failed: %w", err)
	}
	stats.MatchesReturned = len(resp.Matches)
	if err := verifyMatches(ctx, config, resp); err != nil {
		return fmt.Errorf("match verification failed: %w", err)
	}

	// Step 7: Save the dataset
	if config.OutputFile != "" {
		if err := saveDataset(ctx, config.OutputFile, ds); err != nil {
			log.Warn(ctx, "failed to save dataset", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "seed completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	logger.GetOrDiscard().Info(ctx, "checking service health")
	var body struct {
		Status string `json:"status"`
	}
	if _, err := client.do(ctx, http.MethodGet, "/healthz", nil, &body, http.StatusOK); err != nil {
		return err
	}
	logger.GetOrDiscard().Info(ctx, "service is healthy", logger.String("status", body.Status))
	return nil
}

// syncProfile submits the listening history and polls until a profile calculated
// at or after the request is served. Timestamps have second precision.
func syncProfile(ctx context.Context, client *HTTPClient, config *Config, ds Dataset) error {
	log := logger.GetOrDiscard()
	userPath := "/profiles/" + strconv.FormatInt(config.UserID, 10)
	requested := time.Now().UTC().Truncate(time.Second)

	var queued struct {
		JobID string `json:"job_id"`
	}
	body := map[string]any{"history": ds.History}
	if _, err := client.do(ctx, http.MethodPost, userPath+"/sync", body, &queued, http.StatusAccepted); err != nil {
		return err
	}
	log.Info(ctx, "profile sync queued", logger.String("job_id", queued.JobID))

	ctx, cancel := context.WithTimeout(ctx, config.WaitTimeout)
	defer cancel()
	ticker := time.NewTicker(profilePollInterval)
	defer ticker.Stop()

	for {
		var profile types.Profile
		status, err := client.do(ctx, http.MethodGet, userPath, nil, &profile, http.StatusOK)
		switch {
		case err == nil && (profile.LastCalculated == nil || profile.LastCalculated.Before(requested)):
			log.Debug(ctx, "stale profile, waiting for the sync")
		case err == nil:
			log.Info(ctx, "profile ready",
				logger.Int("top_genres", len(profile.TopGenres)),
				logger.Int("top_artists", len(profile.TopArtists)))
			return nil
		case status != http.StatusNotFound && ctx.Err() == nil:
			return err
		}

		select {
		case <-ctx.Done():
			return ErrSyncTimeout
		case <-ticker.C:
		}
	}
}

// saveDataset writes the generated dataset as indented JSON.
func saveDataset(ctx context.Context, filename string, ds Dataset) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	logger.GetOrDiscard().Info(ctx, "dataset saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsPosted) / stats.Duration.Seconds()
	}

	logger.GetOrDiscard().Info(ctx, "final statistics",
		logger.Int("artistsPosted", stats.ArtistsPosted),
		logger.Int("eventsPosted", stats.EventsPosted),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("matchesReturned", stats.MatchesReturned),
		logger.Duration("duration", stats.Duration),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
