package server

import (
	"context"
	"fmt"
	"time"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/channel"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/engine"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/flowapi"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/scheduler"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/trigger"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/cache"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/render"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/storage"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// DataLayer holds storage handles and repositories.
type DataLayer struct {
	DB    *storage.DB
	Cache *cache.RedisCache

	FlowRepo    repository.FlowRepository
	UserRepo    repository.UserStateRepository
	VarRepo     repository.VariableRepository
	TxnRepo     repository.TransactionRepository
	DelayRepo   repository.DelayRepository
	CatalogRepo repository.NodeCatalogRepository
	EventRepo   repository.InboundEventRepository
}

// EngineLayer holds the runtime execution components.
type EngineLayer struct {
	Adapter          *channel.Adapter
	Matcher          *trigger.Matcher
	Renderer         engine.Renderer
	UserStateService *engine.UserStateService
	FlowOps          *flowapi.Operations
}

// ScheduleLayer holds background workers.
type ScheduleLayer struct {
	DelayScheduler *scheduler.DelayScheduler
}

func (s *Server) initComponents() error {
	if err := s.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize document store: %w", err)
	}

	if err := s.initCache(); err != nil {
		s.logger.Warn("Cache not available - trigger caching and rate limiting disabled", "error", err)
	}

	s.initRepositories()

	if err := s.seedCatalog(); err != nil {
		return fmt.Errorf("failed to seed node-type catalog: %w", err)
	}

	s.initEngine()

	if err := s.initScheduler(); err != nil {
		return fmt.Errorf("failed to initialize delay scheduler: %w", err)
	}

	return nil
}

func (s *Server) initDatabase() error {
	dbConfig := &storage.Config{
		URI:            s.config.Mongo.URI(),
		Database:       s.config.Mongo.Database,
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    50,
	}

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	s.data.DB = db
	return nil
}

func (s *Server) initCache() error {
	if s.config.Redis.URL == "" {
		return fmt.Errorf("redis url is not configured")
	}

	redisCache, err := cache.NewRedisCache(s.config.Redis)
	if err != nil {
		return err
	}

	s.data.Cache = redisCache
	s.logger.Info("Cache connected")
	return nil
}

func (s *Server) initRepositories() {
	s.data.FlowRepo = storage.NewFlowRepository(s.data.DB)
	s.data.UserRepo = storage.NewUserStateRepository(s.data.DB)
	s.data.VarRepo = storage.NewVariableRepository(s.data.DB)
	s.data.TxnRepo = storage.NewTransactionRepository(s.data.DB)
	s.data.DelayRepo = storage.NewDelayRepository(s.data.DB)
	s.data.CatalogRepo = storage.NewNodeCatalogRepository(s.data.DB)
	s.data.EventRepo = storage.NewInboundEventRepository(s.data.DB)

	s.logger.Info("Repositories initialized")
}

func (s *Server) seedCatalog() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.data.CatalogRepo.Seed(ctx, models.DefaultNodeTypeCatalog())
}

func (s *Server) initEngine() {
	s.engine.Adapter = channel.NewAdapter(s.logger)
	s.engine.Matcher = trigger.NewMatcher(s.data.FlowRepo, s.data.Cache, s.logger)

	if s.config.Render.URL != "" {
		s.engine.Renderer = render.NewHTTPRenderer(s.config.Render)
	} else {
		s.logger.Warn("No renderer endpoint configured, outbound intents are dropped")
		s.engine.Renderer = engine.NoopRenderer{}
	}

	vars := engine.NewVariableStore(s.data.VarRepo)
	conditions := engine.NewConditionEvaluator(s.logger)
	processor := engine.NewInternalNodeProcessor(conditions, s.logger)
	identifier := engine.NewNodeIdentifier(s.data.TxnRepo, vars, processor, s.engine.Renderer, s.logger)
	validator := engine.NewReplyValidator(s.logger)

	s.engine.UserStateService = engine.NewUserStateService(engine.UserStateServiceConfig{
		Users:      s.data.UserRepo,
		Flows:      s.data.FlowRepo,
		Delays:     s.data.DelayRepo,
		Catalog:    s.data.CatalogRepo,
		Events:     s.data.EventRepo,
		Matcher:    s.engine.Matcher,
		Validator:  validator,
		Identifier: identifier,
		Logger:     s.logger,
	})

	s.engine.FlowOps = flowapi.NewOperations(s.data.FlowRepo, s.data.TxnRepo, s.engine.Matcher, s.logger)

	s.logger.Info("Engine initialized")
}

func (s *Server) initScheduler() error {
	delayScheduler, err := scheduler.New(scheduler.Config{
		Delays:     s.data.DelayRepo,
		Users:      s.data.UserRepo,
		Sink:       s.engine.UserStateService,
		Interval:   s.config.Scheduler.TickInterval,
		ClaimLimit: s.config.Scheduler.ClaimLimit,
		Logger:     s.logger,
	})
	if err != nil {
		return err
	}

	s.schedule.DelayScheduler = delayScheduler

	if err := delayScheduler.Start(); err != nil {
		return err
	}

	return nil
}
