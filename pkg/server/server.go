// Package server provides the embeddable HTTP server for the flow engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/engine"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/scheduler"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/config"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/storage"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/tracing"
)

// Server hosts the flow engine: HTTP API, engine components and the delay
// scheduler.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	router     *gin.Engine
	httpServer *http.Server

	data      DataLayer
	engine    EngineLayer
	schedule  ScheduleLayer
	tracerOff func(context.Context) error
}

// New creates a server with the given options.
func New(opts ...Option) (*Server, error) {
	s := &Server{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if s.config == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		s.config = cfg
	}

	if s.logger == nil {
		s.logger = logger.New(logger.Config{
			Level:   s.config.Logging.Level,
			Format:  s.config.Logging.Format,
			LokiURL: s.config.Logging.LokiURL,
		})
		logger.SetDefault(s.logger)
	}

	shutdownTracer, err := tracing.Init(context.Background(), s.config.Tracing, "agentflow")
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracerOff = shutdownTracer
	}

	if err := s.initComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Run starts the server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	s.logger.Info("Starting agentflow service",
		"env", s.config.AppEnv,
		"host", s.config.Server.Host,
		"port", s.config.Server.Port,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- s.httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info("Server shutdown initiated", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		return s.Shutdown(ctx)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.schedule.DelayScheduler != nil {
		s.logger.Info("Stopping delay scheduler...")
		s.schedule.DelayScheduler.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Graceful shutdown failed", "error", err)
		if err := s.httpServer.Close(); err != nil {
			s.logger.Error("Server close failed", "error", err)
		}
	}

	if s.data.Cache != nil {
		if err := s.data.Cache.Close(); err != nil {
			s.logger.Error("Cache close failed", "error", err)
		}
	}

	if s.data.DB != nil {
		if err := s.data.DB.Close(ctx); err != nil {
			s.logger.Error("Store close failed", "error", err)
		}
	}

	if s.tracerOff != nil {
		if err := s.tracerOff(ctx); err != nil {
			s.logger.Error("Tracer shutdown failed", "error", err)
		}
	}

	s.logger.Info("Server stopped")
	return nil
}

// Router returns the Gin router for adding custom endpoints.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Config returns the server configuration.
func (s *Server) Config() *config.Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *logger.Logger {
	return s.logger
}

// DB returns the document store handle.
func (s *Server) DB() *storage.DB {
	return s.data.DB
}

// UserStateService returns the engine entry point.
func (s *Server) UserStateService() *engine.UserStateService {
	return s.engine.UserStateService
}

// DelayScheduler returns the delay scheduler.
func (s *Server) DelayScheduler() *scheduler.DelayScheduler {
	return s.schedule.DelayScheduler
}
