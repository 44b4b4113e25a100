package api

import "github.com/okian/gigmatch/pkg/logger"

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxMatches caps the limit query parameter of GET /matches.
func WithMaxMatches(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxMatches = n
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
