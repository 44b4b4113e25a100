package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/gigmatch/internal/adapters/http/api"
	"github.com/okian/gigmatch/internal/adapters/http/swagger"
	"github.com/okian/gigmatch/internal/adapters/repository"
	"github.com/okian/gigmatch/internal/adapters/spotify"
	"github.com/okian/gigmatch/internal/adapters/sqlite"
	app "github.com/okian/gigmatch/internal/app"
	"github.com/okian/gigmatch/internal/config"
	"github.com/okian/gigmatch/internal/domain/profile"
	"github.com/okian/gigmatch/internal/domain/scoring"
	"github.com/okian/gigmatch/pkg/logger"
	"github.com/okian/gigmatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(context.Background())
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "gigmatch exited with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run serves the API until ctx is canceled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	svc := newService(cfg, store, log)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
	}()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("database", storeName(cfg)),
			logger.Bool("spotify_credentials", cfg.Spotify.Enabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// newStore opens the SQLite database, or an in-memory store when no path is configured.
func newStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.DatabasePath == "" {
		return repository.NewMemoryStore(), nil
	}
	return sqlite.New(ctx, cfg.DatabasePath)
}

func storeName(cfg *config.Config) string {
	if cfg.DatabasePath == "" {
		return "memory"
	}
	return cfg.DatabasePath
}

// newSpotify builds the provider client. Without application credentials it still
// serves user-token syncs.
func newSpotify(cfg *config.Config, log logger.Logger) *spotify.Client {
	sc := cfg.Spotify
	return spotify.New(
		spotify.WithBaseURL(sc.APIBaseURL),
		spotify.WithAccountsURL(sc.AccountsURL),
		spotify.WithCredentials(sc.ClientID, sc.ClientSecret, sc.RedirectURI),
		spotify.WithRequestsPerSecond(sc.RequestsPerSecond),
		spotify.WithTimeout(sc.Timeout()),
		spotify.WithLogger(log.Named("spotify")),
	)
}

// newService wires the service from configuration.
func newService(cfg *config.Config, store repository.Store, log logger.Logger) *app.Service {
	composer := scoring.NewComposer(
		scoring.WithWeights(cfg.Scoring.GenreWeight, cfg.Scoring.FeatureWeight),
		scoring.WithBonus(cfg.Scoring.BonusPerMatch, cfg.Scoring.BonusCap),
	)
	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithSpotify(newSpotify(cfg, log)),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMatchConcurrency(cfg.MatchConcurrency),
		app.WithComposer(composer),
		app.WithProfileOptions(
			profile.WithTopGenreLimit(cfg.TopGenreLimit),
			profile.WithTopArtistLimit(cfg.TopArtistLimit),
		),
	)
}

// newMux registers the docs and business routes.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc,
		api.WithMaxMatches(cfg.MaxMatchesLimit),
		api.WithLogger(logger.GetOrDiscard().Named("api")),
	).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that refreshes the
// queue and worker gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the gauges as a side effect.
			_, _ = svc.GetStats(ctx)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
