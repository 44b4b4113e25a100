package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/gigmatch/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "seed_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	os.Stdout.WriteString(`gigmatch seed tool
==================

Loads a demo catalog, upcoming events and a listening history into a running
gigmatch service, waits for the profile sync and checks the returned matches.

Usage:
  go run ./cmd/seed [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -user int
        Listener id to sync (default 1)
  -events int
        Number of events to generate and submit (default 200)
  -limit int
        Number of matches to fetch (default 20)
  -workers int
        Number of concurrent uploads (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -wait duration
        How long to wait for the profile sync (default 30s)
  -seed uint
        Random seed for the generated dataset (default 1)
  -output string
        Write the generated dataset to this JSON file
  -log string
        Log file for the run (default: seed_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Seed a local service
  go run ./cmd/seed

  # Larger dataset against another host
  go run ./cmd/seed -events 2000 -workers 16 -url http://localhost:9090

  # Keep the generated dataset
  go run ./cmd/seed -seed 42 -output dataset.json
`)
}
