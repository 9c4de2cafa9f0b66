// Package scheduler sweeps expired delay timers and re-injects them as
// synthetic delay_complete events.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/engine"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// EventSink receives the synthetic events produced by the sweep. Satisfied by
// the user state service.
type EventSink interface {
	ProcessEvent(ctx context.Context, metadata models.EventMetadata, msg models.NormalizedMessage, raw map[string]any) (*engine.ProcessResult, error)
}

// DelayScheduler periodically claims expired timers and feeds delay_complete
// events back into the engine entry point.
type DelayScheduler struct {
	delays repository.DelayRepository
	users  repository.UserStateRepository
	sink   EventSink

	interval   time.Duration
	claimLimit int

	cron    *cron.Cron
	entryID cron.EntryID
	logger  *logger.Logger
	tracer  trace.Tracer
}

// Config bundles the scheduler dependencies.
type Config struct {
	Delays     repository.DelayRepository
	Users      repository.UserStateRepository
	Sink       EventSink
	Interval   time.Duration
	ClaimLimit int
	Logger     *logger.Logger
}

// New creates a DelayScheduler.
func New(cfg Config) (*DelayScheduler, error) {
	if cfg.Delays == nil || cfg.Sink == nil {
		return nil, fmt.Errorf("delay repository and event sink are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 20 * time.Second
	}
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = 100
	}

	return &DelayScheduler{
		delays:     cfg.Delays,
		users:      cfg.Users,
		sink:       cfg.Sink,
		interval:   cfg.Interval,
		claimLimit: cfg.ClaimLimit,
		cron:       cron.New(cron.WithSeconds()),
		logger:     cfg.Logger,
		tracer:     otel.Tracer("scheduler"),
	}, nil
}

// Start begins the periodic sweep.
func (s *DelayScheduler) Start() error {
	spec := fmt.Sprintf("@every %ds", int(s.interval.Seconds()))
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()
		s.Tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule delay sweep: %w", err)
	}
	s.entryID = id
	s.cron.Start()

	s.logger.Info("delay scheduler started", "interval", s.interval.String())
	return nil
}

// Stop halts the sweep, waiting for a running tick to finish.
func (s *DelayScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("delay scheduler stopped")
}

// Tick claims expired timers and processes each. A failing timer is released
// for the next sweep; it never blocks the rest of the batch.
func (s *DelayScheduler) Tick(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "DelaySweep")
	defer span.End()

	timers, err := s.delays.ClaimExpired(ctx, time.Now().UTC(), s.claimLimit)
	if err != nil {
		s.logger.Error("failed to claim expired delay timers", "error", err)
	}
	if len(timers) == 0 {
		return
	}

	s.logger.Debug("claimed expired delay timers", "count", len(timers))

	for _, timer := range timers {
		if err := s.processTimer(ctx, timer); err != nil {
			s.logger.Error("delay timer processing failed, releasing for retry",
				"timer_id", timer.ID,
				"user_state_id", timer.UserStateID,
				"error", err,
			)
			if rerr := s.delays.Release(ctx, timer.ID); rerr != nil {
				s.logger.Error("failed to release delay timer", "timer_id", timer.ID, "error", rerr)
			}
		}
	}
}

func (s *DelayScheduler) processTimer(ctx context.Context, timer *models.DelayTimer) error {
	metadata := models.EventMetadata{
		Channel:     models.ChannelSystem,
		MessageType: models.MessageTypeDelayComplete,
	}

	result, err := s.sink.ProcessEvent(ctx, metadata, models.NormalizedMessage{InteractiveType: models.InteractiveNone}, map[string]any{
		"user_state_id": timer.UserStateID,
	})
	if err != nil {
		return err
	}

	if result.Status == engine.StatusDropped {
		// The user advanced past the delay before the sweep got here; the
		// claim stands and the timer stays processed.
		s.logger.Info("stale delay timer dropped",
			"timer_id", timer.ID,
			"user_state_id", timer.UserStateID,
			"detail", result.Detail,
		)
	}

	return nil
}
