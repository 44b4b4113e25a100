package spotify

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/okian/gigmatch/internal/domain/model"
)

// NewConnection records tok as userID's authorization.
func NewConnection(userID int64, tok *oauth2.Token, u User) model.SpotifyConnection {
	return model.SpotifyConnection{
		UserID:       userID,
		SpotifyID:    u.ID,
		DisplayName:  u.DisplayName,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
}

// ConnectionToken is the oauth2 token held by a stored connection.
func ConnectionToken(c model.SpotifyConnection) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// RefreshConnection returns conn with a usable access token. renewed is true when
// the token had expired and was replaced.
func (c *Client) RefreshConnection(ctx context.Context, conn model.SpotifyConnection) (_ model.SpotifyConnection, renewed bool, err error) {
	tok, err := c.Refresh(ctx, ConnectionToken(conn))
	if err != nil {
		return conn, false, err
	}
	if tok.AccessToken == conn.AccessToken {
		return conn, false, nil
	}
	conn.AccessToken = tok.AccessToken
	conn.TokenType = tok.TokenType
	conn.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		conn.RefreshToken = tok.RefreshToken
	}
	return conn, true, nil
}
