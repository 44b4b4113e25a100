package spotify

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/gigmatch/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Web API base URL. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithAccountsURL overrides the accounts service URL used for tokens and authorization.
func WithAccountsURL(accountsURL string) Option {
	return func(c *Client) {
		if accountsURL != "" {
			c.accountsURL = accountsURL
		}
	}
}

// WithCredentials sets the application credentials used for client-credentials tokens
// and the authorization-code flow.
func WithCredentials(clientID, clientSecret, redirectURI string) Option {
	return func(c *Client) {
		c.clientID = clientID
		c.clientSecret = clientSecret
		c.redirectURI = redirectURI
	}
}

// WithRequestsPerSecond sets the client-side rate limit.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithMarket sets the market used for artist top tracks.
func WithMarket(market string) Option {
	return func(c *Client) {
		if market != "" {
			c.market = market
		}
	}
}

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n uint32) Option {
	return func(c *Client) {
		if n > 0 {
			c.failureThreshold = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
