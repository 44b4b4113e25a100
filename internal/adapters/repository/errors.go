package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidArtist = errors.New("artist name is required")
	ErrInvalidEvent  = errors.New("event requires an artist name and a date")
	ErrClosed        = errors.New("store closed")

	ErrInvalidConnection = errors.New("connection requires a user id and an access token")
)
