package seed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/okian/gigmatch/pkg/logger"
)

const maxResponseBytes = 4 << 20

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// HTTPClient wraps http.Client for JSON calls against the service.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client for config.
func newHTTPClient(config *Config) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: config.BaseURL,
	}
}

// do sends body (when non-nil) as JSON and decodes the response into out (when
// non-nil). Any status outside want is returned as a *StatusError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any, want ...int) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	ok := false
	for _, s := range want {
		if resp.StatusCode == s {
			ok = true
			break
		}
	}
	if !ok {
		return resp.StatusCode, &StatusError{Method: method, URL: path, Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// submitEvents uploads events with config.Workers concurrent requests. Individual
// failures are counted, not fatal.
func submitEvents(ctx context.Context, client *HTTPClient, config *Config, events []Event, stats *Stats) error {
	log := logger.GetOrDiscard()
	log.Info(ctx, "submitting events", logger.Int("events", len(events)), logger.Int("workers", config.Workers))

	var posted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, config.Workers))
	for _, e := range events {
		g.Go(func() error {
			if _, err := client.do(gctx, http.MethodPost, "/events", e, nil, http.StatusOK); err != nil {
				failed.Add(1)
				if config.Verbose {
					log.Warn(gctx, "event upload failed", logger.String("external_id", e.ExternalID), logger.Error(err))
				}
				return gctx.Err()
			}
			posted.Add(1)
			return nil
		})
	}
	err := g.Wait()

	stats.EventsPosted = int(posted.Load())
	stats.EventsFailed = int(failed.Load())
	log.Info(ctx, "event submission completed",
		logger.Int("posted", stats.EventsPosted),
		logger.Int("failed", stats.EventsFailed))
	return err
}
