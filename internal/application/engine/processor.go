package engine

import (
	"fmt"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// DelayInfo is the computed wait of a delay node.
type DelayInfo struct {
	Duration     int
	Unit         models.DelayUnit
	WaitSeconds  int64
	WaitForReply bool
}

// InternalResult carries the outcome of processing an internal node. Exactly
// one of BranchNodeID (condition) or Delay (delay) is set.
type InternalResult struct {
	BranchNodeID string
	Delay        *DelayInfo
}

// InternalNodeProcessor resolves condition outcomes to branch nodes and
// computes delay durations. It never mutates state; callers act on the
// returned data.
type InternalNodeProcessor struct {
	conditions *ConditionEvaluator
	logger     *logger.Logger
}

// NewInternalNodeProcessor creates an InternalNodeProcessor.
func NewInternalNodeProcessor(conditions *ConditionEvaluator, log *logger.Logger) *InternalNodeProcessor {
	return &InternalNodeProcessor{conditions: conditions, logger: log}
}

// Process evaluates an internal node against the variable snapshot.
func (p *InternalNodeProcessor) Process(node *models.Node, vars map[string]string) (*InternalResult, error) {
	switch node.Type {
	case models.NodeTypeCondition:
		outcome, err := p.conditions.Evaluate(node, vars)
		if err != nil {
			return nil, err
		}
		return &InternalResult{BranchNodeID: outcome.NodeResultID}, nil

	case models.NodeTypeDelay:
		duration := node.DelayDuration
		if duration < 0 {
			p.logger.Warn("delay node has negative duration, treating as zero", "node_id", node.ID)
			duration = 0
		}
		return &InternalResult{Delay: &DelayInfo{
			Duration:     duration,
			Unit:         node.DelayUnit,
			WaitSeconds:  int64(duration) * node.DelayUnit.Seconds(),
			WaitForReply: node.WaitForReply,
		}}, nil
	}

	return nil, fmt.Errorf("node %s of type %s is not internal: %w", node.ID, node.Type, models.ErrNodeProcessingFailed)
}
