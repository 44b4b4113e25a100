package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/gigmatch/internal/seed"
)

// Default configuration constants.
const (
	defaultNumEvents   = 200
	defaultLimit       = 20
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultWait        = 30 * time.Second
	defaultSeedTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:8080", "Base URL of the service")
		userID     = flag.Int64("user", 1, "Listener id to sync")
		numEvents  = flag.Int("events", defaultNumEvents, "Number of events to generate and submit")
		limit      = flag.Int("limit", defaultLimit, "Number of matches to fetch")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent uploads")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait       = flag.Duration("wait", defaultWait, "How long to wait for the profile sync")
		seedValue  = flag.Uint64("seed", 1, "Random seed for the generated dataset")
		outputFile = flag.String("output", "", "Write the generated dataset to this JSON file")
		logFile    = flag.String("log", "", "Log file for the run (default: seed_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp()
		return
	}

	if err := seed.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultSeedTimeout)
	defer cancel()

	config := &seed.Config{
		BaseURL:     *baseURL,
		UserID:      *userID,
		NumEvents:   *numEvents,
		Limit:       *limit,
		Workers:     *workers,
		Timeout:     *timeout,
		WaitTimeout: *wait,
		Seed:        *seedValue,
		OutputFile:  *outputFile,
		Verbose:     *verbose,
	}

	if err := seed.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Seed failed: " + err.Error() + "\n")
		cancel()
		stop()
		os.Exit(1)
	}
}
