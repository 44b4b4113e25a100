package model

import "time"

// SpotifyConnection is a user's stored Spotify authorization.
type SpotifyConnection struct {
	UserID       int64
	SpotifyID    string
	DisplayName  string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time // zero when the token does not expire
	UpdatedAt    time.Time
}
