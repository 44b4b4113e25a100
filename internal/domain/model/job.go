package model

import "time"

// Profile sync sources.
const (
	SyncSourceHistory = "history"
	SyncSourceSpotify = "spotify"
)

// SyncJob asks a worker to rebuild one user's musical profile. Either History is set
// (raw listening data supplied by the caller) or AccessToken is, in which case the
// worker fetches the history from the streaming service.
type SyncJob struct {
	JobID       string
	UserID      int64
	AccessToken string
	History     *ListeningHistory
	RequestedAt time.Time
}

// Source reports where the job's listening history comes from.
func (j SyncJob) Source() string {
	if j.History != nil {
		return SyncSourceHistory
	}
	return SyncSourceSpotify
}
