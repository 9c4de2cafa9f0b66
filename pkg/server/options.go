package server

import (
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/config"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
)

// Option configures the server at construction time.
type Option func(*Server) error

// WithConfig supplies a pre-built configuration instead of loading from the
// environment.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) error {
		s.config = cfg
		return nil
	}
}

// WithLogger supplies a pre-built logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Server) error {
		s.logger = log
		return nil
	}
}
