package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// TriggerMatch identifies the flow and trigger node an inbound message starts.
type TriggerMatch struct {
	FlowID        string
	TriggerNodeID string
}

// TriggerMatcher finds the flow a normalized message should start.
type TriggerMatcher interface {
	Match(ctx context.Context, brandID int64, channel string, msg *models.NormalizedMessage) (*TriggerMatch, error)
}

// Event outcome statuses reported to webhook callers.
const (
	StatusAccepted = "accepted"
	StatusDropped  = "dropped"
	StatusError    = "error"
)

// ProcessResult summarizes one event's handling.
type ProcessResult struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// UserStateService is the single entry point for inbound events. It owns the
// per-user state machine and serializes processing per user key.
type UserStateService struct {
	users   repository.UserStateRepository
	flows   repository.FlowRepository
	delays  repository.DelayRepository
	catalog repository.NodeCatalogRepository
	events  repository.InboundEventRepository

	matcher    TriggerMatcher
	validator  *ReplyValidator
	identifier *NodeIdentifier

	locks  *KeyedMutex
	logger *logger.Logger
	tracer trace.Tracer
}

// UserStateServiceConfig bundles the service dependencies.
type UserStateServiceConfig struct {
	Users   repository.UserStateRepository
	Flows   repository.FlowRepository
	Delays  repository.DelayRepository
	Catalog repository.NodeCatalogRepository
	Events  repository.InboundEventRepository

	Matcher    TriggerMatcher
	Validator  *ReplyValidator
	Identifier *NodeIdentifier

	Logger *logger.Logger
}

// NewUserStateService creates a UserStateService.
func NewUserStateService(cfg UserStateServiceConfig) *UserStateService {
	return &UserStateService{
		users:      cfg.Users,
		flows:      cfg.Flows,
		delays:     cfg.Delays,
		catalog:    cfg.Catalog,
		events:     cfg.Events,
		matcher:    cfg.Matcher,
		validator:  cfg.Validator,
		identifier: cfg.Identifier,
		locks:      NewKeyedMutex(),
		logger:     cfg.Logger,
		tracer:     otel.Tracer("engine"),
	}
}

// ProcessEvent handles one inbound event: start a flow, resume one, validate a
// pending reply, or process a timer expiry. Processing for a single user key
// is serialized; distinct users proceed in parallel.
func (s *UserStateService) ProcessEvent(ctx context.Context, metadata models.EventMetadata, msg models.NormalizedMessage, raw map[string]any) (*ProcessResult, error) {
	ctx, span := s.tracer.Start(ctx, "ProcessEvent",
		trace.WithAttributes(
			attribute.String("channel", metadata.Channel),
			attribute.String("message_type", metadata.MessageType),
			attribute.Int64("brand_id", metadata.BrandID),
		))
	defer span.End()

	if metadata.MessageType == models.MessageTypeDelayComplete {
		userStateID, _ := raw["user_state_id"].(string)
		return s.processDelayComplete(ctx, userStateID)
	}

	key := metadata.UserStateKey()
	unlock := s.locks.Lock(key.String())
	defer unlock()

	s.recordInbound(ctx, metadata, msg, raw)

	user, err := s.users.FindByKey(ctx, key)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		user = &models.UserState{
			ID:          uuid.NewString(),
			Key:         key,
			LastEventAt: time.Now().UTC(),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user state: %w", err)
		}
		return s.startByTrigger(ctx, user, metadata, &msg)

	case err != nil:
		return nil, fmt.Errorf("failed to load user state: %w", err)
	}

	user.LastEventAt = time.Now().UTC()

	if !user.IsInAutomation {
		return s.startByTrigger(ctx, user, metadata, &msg)
	}

	if user.DelayNodeData != nil {
		// Delay interrupts are not supported: replies while a timer is
		// pending leave state untouched and the timer fires later as usual.
		s.logger.Info("reply during pending delay ignored",
			"user_state_id", user.ID,
			"flow_id", user.CurrentFlowID,
		)
		return &ProcessResult{Status: StatusDropped, Detail: "delay pending"}, nil
	}

	return s.resumeFlow(ctx, user, metadata, &msg)
}

// startByTrigger matches the message against published flow triggers and, on a
// match, drives the user into the flow.
func (s *UserStateService) startByTrigger(ctx context.Context, user *models.UserState, metadata models.EventMetadata, msg *models.NormalizedMessage) (*ProcessResult, error) {
	match, err := s.matcher.Match(ctx, metadata.BrandID, metadata.Channel, msg)
	if err != nil {
		return nil, fmt.Errorf("trigger matching failed: %w", err)
	}
	if match == nil {
		s.logger.Debug("no trigger matched, event dropped",
			"brand_id", metadata.BrandID,
			"channel", metadata.Channel,
		)
		return &ProcessResult{Status: StatusDropped, Detail: "no trigger matched"}, nil
	}

	flow, err := s.flows.FindByID(ctx, match.FlowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load matched flow: %w", err)
	}

	// The trigger node itself counts as entered.
	s.recordTriggerTransaction(ctx, user, flow, match.TriggerNodeID)

	res, err := s.identifier.IdentifyAndProcess(ctx, IdentifyParams{
		Metadata:      metadata,
		Message:       msg,
		User:          user,
		Flow:          flow,
		CurrentNodeID: match.TriggerNodeID,
	})
	if err != nil {
		s.logger.Error("node identification failed on trigger entry",
			"flow_id", flow.ID,
			"trigger_node_id", match.TriggerNodeID,
			"error", err,
		)
		return nil, err
	}

	return s.reconcile(ctx, user, flow, metadata, msg, res, "", "")
}

// resumeFlow advances a user already inside automation.
func (s *UserStateService) resumeFlow(ctx context.Context, user *models.UserState, metadata models.EventMetadata, msg *models.NormalizedMessage) (*ProcessResult, error) {
	flow, err := s.flows.FindByID(ctx, user.CurrentFlowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current flow %s: %w", user.CurrentFlowID, err)
	}

	node := flow.NodeByID(user.CurrentNodeID)
	if node == nil {
		return nil, fmt.Errorf("current node %s: %w", user.CurrentNodeID, models.ErrNodeNotFound)
	}

	entry, err := s.catalog.FindByType(ctx, node.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog entry for %s: %w", node.Type, err)
	}

	if !entry.UserInputRequired {
		res, err := s.identifier.IdentifyAndProcess(ctx, IdentifyParams{
			Metadata:      metadata,
			Message:       msg,
			User:          user,
			Flow:          flow,
			CurrentNodeID: user.CurrentNodeID,
		})
		if err != nil {
			return nil, err
		}
		return s.reconcile(ctx, user, flow, metadata, msg, res, "", "")
	}

	isText := node.Type == models.NodeTypeQuestion
	verdict, err := s.validator.Validate(flow, msg, user.CurrentNodeID, isText, user.Validation.FailureCount)
	if err != nil {
		return nil, fmt.Errorf("reply validation failed: %w", err)
	}

	params := IdentifyParams{
		Metadata: metadata,
		Message:  msg,
		User:     user,
		Flow:     flow,
	}

	switch verdict.Status {
	case VerdictMatched:
		params.CurrentNodeID = verdict.MatchedAnswerID
	case VerdictMatchedOtherNode:
		params.NodeIDToProcess = verdict.MatchedNodeID
		params.CurrentNodeID = user.CurrentNodeID
	case VerdictUseDefaultEdge:
		params.CurrentNodeID = user.CurrentNodeID
	case VerdictMismatchRetry:
		params.IsValidationError = true
		params.FallbackMessage = verdict.FallbackMessage
		params.NodeIDToProcess = user.CurrentNodeID
		params.CurrentNodeID = user.CurrentNodeID
	case VerdictValidationExit:
		params.IsValidationError = true
		params.FallbackMessage = verdict.FallbackMessage
		params.CurrentNodeID = user.CurrentNodeID
	default:
		return nil, fmt.Errorf("unknown validation verdict %q: %w", verdict.Status, models.ErrNodeProcessingFailed)
	}

	res, err := s.identifier.IdentifyAndProcess(ctx, params)
	if err != nil {
		if verdict.Status == VerdictValidationExit && errors.Is(err, models.ErrNextNodeNotFound) {
			// Exhausted retries on a terminal question: nothing left to
			// render, the exit still happens.
			user.ExitAutomation()
			if uerr := s.users.Update(ctx, user); uerr != nil {
				return nil, fmt.Errorf("failed to persist automation exit: %w", uerr)
			}
			return &ProcessResult{Status: StatusAccepted, Detail: "validation exit"}, nil
		}
		return nil, err
	}

	return s.reconcile(ctx, user, flow, metadata, msg, res, verdict.Status, verdict.FallbackMessage)
}

// processDelayComplete resumes a user whose delay timer expired. Stale events
// (timer raced a state change) are dropped as no-ops.
func (s *UserStateService) processDelayComplete(ctx context.Context, userStateID string) (*ProcessResult, error) {
	if userStateID == "" {
		return &ProcessResult{Status: StatusDropped, Detail: "missing user_state_id"}, nil
	}

	probe, err := s.users.FindByID(ctx, userStateID)
	if errors.Is(err, models.ErrUserNotFound) {
		return &ProcessResult{Status: StatusDropped, Detail: "user not found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user state: %w", err)
	}

	unlock := s.locks.Lock(probe.Key.String())
	defer unlock()

	// Re-read under the lock: an inbound reply may have won the race.
	user, err := s.users.FindByID(ctx, userStateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user state: %w", err)
	}
	if user.DelayNodeData == nil {
		return &ProcessResult{Status: StatusDropped, Detail: "no pending delay"}, nil
	}

	delayNode := user.DelayNodeData
	branch := models.BranchBySuffix(delayNode.DelayResult, branchNotInterrupted)
	if branch == nil || branch.NodeResultID == "" {
		return nil, fmt.Errorf("delay node %s has no %s branch: %w", delayNode.ID, branchNotInterrupted, models.ErrNodeProcessingFailed)
	}

	flow, err := s.flows.FindByID(ctx, user.CurrentFlowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current flow %s: %w", user.CurrentFlowID, err)
	}

	metadata := models.EventMetadata{
		Sender:           user.Key.UserIdentifier,
		BrandID:          user.Key.BrandID,
		Channel:          user.Key.Channel,
		ChannelAccountID: user.Key.ChannelAccountID,
		MessageType:      models.MessageTypeDelayComplete,
	}

	user.DelayNodeData = nil
	user.LastEventAt = time.Now().UTC()

	res, err := s.identifier.IdentifyAndProcess(ctx, IdentifyParams{
		Metadata:        metadata,
		User:            user,
		Flow:            flow,
		NodeIDToProcess: branch.NodeResultID,
		CurrentNodeID:   delayNode.ID,
	})
	if err != nil {
		return nil, err
	}

	return s.reconcile(ctx, user, flow, metadata, nil, res, "", "")
}

// reconcile applies the identification result to the user state: it persists
// validation counters, follows condition branches, schedules delays and exits
// automation at terminal nodes.
func (s *UserStateService) reconcile(
	ctx context.Context,
	user *models.UserState,
	flow *models.Flow,
	metadata models.EventMetadata,
	msg *models.NormalizedMessage,
	res *IdentifyResult,
	verdict ReplyVerdict,
	fallback string,
) (*ProcessResult, error) {
	for {
		if res.LastActionableID != "" {
			user.CurrentNodeID = res.LastActionableID
		}

		if res.Status == IdentifyInternalNode {
			if res.BranchNodeID != "" {
				next, err := s.identifier.IdentifyAndProcess(ctx, IdentifyParams{
					Metadata:        metadata,
					Message:         msg,
					User:            user,
					Flow:            flow,
					NodeIDToProcess: res.BranchNodeID,
					CurrentNodeID:   res.Node.ID,
				})
				if err != nil {
					return nil, err
				}
				res = next
				continue
			}

			if res.Delay == nil {
				return nil, fmt.Errorf("internal node %s produced no value: %w", res.Node.ID, models.ErrNodeProcessingFailed)
			}
			if verdict != VerdictValidationExit {
				return s.enterDelay(ctx, user, flow, res, verdict, fallback)
			}
		}

		s.applyVerdict(user, verdict, fallback)

		if verdict == VerdictValidationExit {
			user.ExitAutomation()
			if err := s.users.Update(ctx, user); err != nil {
				return nil, fmt.Errorf("failed to persist automation exit: %w", err)
			}
			return &ProcessResult{Status: StatusAccepted, Detail: "validation exit"}, nil
		}

		entry, err := s.catalog.FindByType(ctx, res.Node.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog entry for %s: %w", res.Node.Type, err)
		}

		if entry.UserInputRequired {
			user.IsInAutomation = true
			user.CurrentFlowID = flow.ID
			user.CurrentNodeID = res.Node.ID
			if err := s.users.Update(ctx, user); err != nil {
				return nil, fmt.Errorf("failed to persist user state: %w", err)
			}
			return &ProcessResult{Status: StatusAccepted}, nil
		}

		// A rendered node that takes no input and has no successor ends the
		// automation in the same event.
		user.ExitAutomation()
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to persist automation exit: %w", err)
		}
		return &ProcessResult{Status: StatusAccepted, Detail: "flow completed"}, nil
	}
}

// enterDelay persists the timer first, then the user state, so a crash
// between the two leaves a claimable timer rather than a stranded user.
func (s *UserStateService) enterDelay(
	ctx context.Context,
	user *models.UserState,
	flow *models.Flow,
	res *IdentifyResult,
	verdict ReplyVerdict,
	fallback string,
) (*ProcessResult, error) {
	now := time.Now().UTC()
	timer := &models.DelayTimer{
		ID:          uuid.NewString(),
		UserStateID: user.ID,
		FlowID:      flow.ID,
		DelayNodeID: res.Node.ID,
		StartedAt:   now,
		CompletesAt: now.Add(time.Duration(res.Delay.WaitSeconds) * time.Second),
		Processed:   false,
	}

	if err := s.delays.Create(ctx, timer); err != nil {
		return nil, fmt.Errorf("failed to persist delay timer: %w", err)
	}

	s.applyVerdict(user, verdict, fallback)
	user.IsInAutomation = true
	user.CurrentFlowID = flow.ID
	user.DelayNodeData = res.Node

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to persist user state: %w", err)
	}

	s.logger.Info("delay timer scheduled",
		"user_state_id", user.ID,
		"flow_id", flow.ID,
		"delay_node_id", res.Node.ID,
		"wait_seconds", res.Delay.WaitSeconds,
	)

	return &ProcessResult{Status: StatusAccepted, Detail: "delay scheduled"}, nil
}

func (s *UserStateService) applyVerdict(user *models.UserState, verdict ReplyVerdict, fallback string) {
	if verdict == VerdictMismatchRetry {
		user.Validation.ValidationFailed = true
		user.Validation.FailureMessage = fallback
		user.Validation.FailureCount++
		return
	}
	user.ResetValidation()
}

func (s *UserStateService) recordTriggerTransaction(ctx context.Context, user *models.UserState, flow *models.Flow, triggerNodeID string) {
	txn := &models.Transaction{
		ID:          uuid.NewString(),
		FlowID:      flow.ID,
		NodeID:      triggerNodeID,
		UserStateID: user.ID,
		BrandID:     flow.BrandID,
		At:          time.Now().UTC(),
	}
	if err := s.txnsRecord(ctx, txn); err != nil {
		s.logger.Error("failed to record trigger transaction", "flow_id", flow.ID, "node_id", triggerNodeID, "error", err)
	}
}

func (s *UserStateService) txnsRecord(ctx context.Context, txn *models.Transaction) error {
	return s.identifier.txns.Record(ctx, txn)
}

func (s *UserStateService) recordInbound(ctx context.Context, metadata models.EventMetadata, msg models.NormalizedMessage, raw map[string]any) {
	if s.events == nil || metadata.Channel == models.ChannelSystem {
		return
	}
	event := &models.InboundEvent{
		ID:         uuid.NewString(),
		BrandID:    metadata.BrandID,
		Channel:    metadata.Channel,
		Sender:     metadata.Sender,
		Raw:        raw,
		Normalized: msg,
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.events.Record(ctx, event); err != nil {
		s.logger.Warn("failed to record inbound event", "channel", metadata.Channel, "error", err)
	}
}
