package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrNoHistorySource = errors.New("job has no history and no history source is configured")
)
