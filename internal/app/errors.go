package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrSyncInProgress   = errors.New("a profile sync for this user is already in progress")
	ErrBackpressure     = errors.New("sync queue is full")
	ErrNothingToSync    = errors.New("sync needs a listening history, an access token or a connected spotify account")
	ErrSpotifyDisabled  = errors.New("spotify integration is not configured")
	ErrUnknownAuthState = errors.New("unknown or expired authorization state")
	ErrStopped          = errors.New("service stopped")
)
