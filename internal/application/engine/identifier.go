package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// IdentifyStatus is the outcome class of one identification pass.
type IdentifyStatus string

const (
	// IdentifySuccess means an actionable node was reached and rendered.
	IdentifySuccess IdentifyStatus = "success"

	// IdentifyInternalNode means traversal stopped at a condition or delay
	// node; the result carries its processed value.
	IdentifyInternalNode IdentifyStatus = "internal_node"
)

// IdentifyParams are the inputs of one identification pass.
type IdentifyParams struct {
	Metadata models.EventMetadata
	Message  *models.NormalizedMessage
	User     *models.UserState
	Flow     *models.Flow

	IsValidationError bool
	FallbackMessage   string

	// NodeIDToProcess short-circuits resolution: that node is entered
	// directly. Empty means resolve from CurrentNodeID.
	NodeIDToProcess string
	CurrentNodeID   string
}

// IdentifyResult is the outcome of one identification pass.
type IdentifyResult struct {
	Status IdentifyStatus

	// Node is the node traversal stopped at: the awaiting actionable node on
	// success, the condition or delay node on internal_node.
	Node *models.Node

	// NextNodeID is Node's id, kept separate for callers persisting position.
	NextNodeID string

	// BranchNodeID is the branch target of a processed condition node.
	BranchNodeID string

	// Delay is the computed wait of a processed delay node.
	Delay *DelayInfo

	// LastActionableID is the last actionable node entered during this pass,
	// tracking position through message chains that end in an internal node.
	LastActionableID string

	// Terminal marks an actionable node with no outgoing edge.
	Terminal bool
}

// NodeIdentifier finds the next reachable actionable node from the current
// position, processes internal nodes, records transactions and emits outbound
// intents. Message nodes chain: each renders and traversal continues until the
// first reply-awaiting, internal or terminal node.
type NodeIdentifier struct {
	txns      repository.TransactionRepository
	vars      *VariableStore
	processor *InternalNodeProcessor
	renderer  Renderer
	logger    *logger.Logger
}

// NewNodeIdentifier creates a NodeIdentifier.
func NewNodeIdentifier(
	txns repository.TransactionRepository,
	vars *VariableStore,
	processor *InternalNodeProcessor,
	renderer Renderer,
	log *logger.Logger,
) *NodeIdentifier {
	return &NodeIdentifier{txns: txns, vars: vars, processor: processor, renderer: renderer, logger: log}
}

// IdentifyAndProcess runs one identification pass.
func (ni *NodeIdentifier) IdentifyAndProcess(ctx context.Context, p IdentifyParams) (*IdentifyResult, error) {
	origin, target, viaSuccessor, err := ni.resolve(p)
	if err != nil {
		return nil, err
	}

	// Arriving at a question's successor persists the reply under the
	// question's input variable. Skipped on cross-node jumps (the reply
	// answered a different node), on validation errors (the reply was
	// rejected) and on synthetic events (no reply exists).
	if viaSuccessor && origin != nil && origin.ExpectsReply() && origin.UserInputVariable != "" &&
		p.Message != nil && !p.IsValidationError &&
		p.Metadata.MessageType != models.MessageTypeDelayComplete {
		reply := p.Message.GetTextContent()
		if err := ni.vars.Set(ctx, p.User.ID, p.Flow.ID, origin.UserInputVariable, reply); err != nil {
			return nil, fmt.Errorf("failed to persist reply variable: %w", err)
		}
	}

	snapshot, err := ni.vars.Snapshot(ctx, p.User.ID, p.Flow.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load variable snapshot: %w", err)
	}

	fallback := ""
	if p.IsValidationError {
		fallback = p.FallbackMessage
	}

	result := &IdentifyResult{}

	for {
		if target.IsInternal() {
			internal, err := ni.processor.Process(target, snapshot)
			if err != nil {
				return nil, err
			}
			result.Status = IdentifyInternalNode
			result.Node = target
			result.NextNodeID = target.ID
			result.BranchNodeID = internal.BranchNodeID
			result.Delay = internal.Delay
			return result, nil
		}

		if target.IsTrigger() {
			return nil, fmt.Errorf("traversal reached trigger node %s: %w", target.ID, models.ErrNextNodeNotFound)
		}

		if err := ni.enterNode(ctx, p, target, snapshot, fallback); err != nil {
			return nil, err
		}
		fallback = ""
		result.LastActionableID = target.ID

		if target.ExpectsReply() {
			result.Status = IdentifySuccess
			result.Node = target
			result.NextNodeID = target.ID
			return result, nil
		}

		// Message node: follow its edge and keep going.
		edges := p.Flow.EdgesFrom(target.ID)
		if len(edges) == 0 {
			result.Status = IdentifySuccess
			result.Node = target
			result.NextNodeID = target.ID
			result.Terminal = true
			return result, nil
		}
		if len(edges) > 1 {
			ni.logger.Warn("non-branching node has multiple outgoing edges, taking first by id",
				"flow_id", p.Flow.ID,
				"node_id", target.ID,
				"edge_count", len(edges),
			)
		}

		next := p.Flow.NodeByID(edges[0].TargetNodeID)
		if next == nil {
			return nil, fmt.Errorf("edge %s points at missing node %s: %w", edges[0].ID, edges[0].TargetNodeID, models.ErrNextNodeNotFound)
		}
		target = next
	}
}

// resolve determines the node to enter, the node traversal came from, and
// whether the target is the origin's own successor (as opposed to a direct
// jump via NodeIDToProcess).
func (ni *NodeIdentifier) resolve(p IdentifyParams) (origin, target *models.Node, viaSuccessor bool, err error) {
	if p.NodeIDToProcess != "" {
		target = p.Flow.NodeByID(p.NodeIDToProcess)
		if target == nil {
			return nil, nil, false, fmt.Errorf("node %s: %w", p.NodeIDToProcess, models.ErrNodeNotFound)
		}
		return p.Flow.NodeByID(p.CurrentNodeID), target, false, nil
	}

	if node := p.Flow.NodeByID(p.CurrentNodeID); node != nil {
		edges := p.Flow.EdgesFrom(node.ID)
		if len(edges) == 0 {
			return nil, nil, false, fmt.Errorf("node %s has no outgoing edge: %w", node.ID, models.ErrNextNodeNotFound)
		}
		if len(edges) > 1 {
			ni.logger.Warn("non-branching node has multiple outgoing edges, taking first by id",
				"flow_id", p.Flow.ID,
				"node_id", node.ID,
				"edge_count", len(edges),
			)
		}
		target = p.Flow.NodeByID(edges[0].TargetNodeID)
		if target == nil {
			return nil, nil, false, fmt.Errorf("edge %s points at missing node %s: %w", edges[0].ID, edges[0].TargetNodeID, models.ErrNextNodeNotFound)
		}
		return node, target, true, nil
	}

	// The current position may be an expected-answer id: a matched
	// interactive choice points straight at its result node.
	for i := range p.Flow.Nodes {
		owner := &p.Flow.Nodes[i]
		for _, ans := range owner.ExpectedAnswers {
			if ans.ID != p.CurrentNodeID {
				continue
			}
			target = p.Flow.NodeByID(ans.NodeResultID)
			if target == nil {
				return nil, nil, false, fmt.Errorf("answer %s points at missing node %s: %w", ans.ID, ans.NodeResultID, models.ErrNextNodeNotFound)
			}
			return owner, target, true, nil
		}
	}

	return nil, nil, false, fmt.Errorf("current node %s: %w", p.CurrentNodeID, models.ErrNodeNotFound)
}

// enterNode records the transaction and emits the outbound intent for one
// actionable node. Render failures are logged; state still advances.
func (ni *NodeIdentifier) enterNode(ctx context.Context, p IdentifyParams, node *models.Node, vars map[string]string, fallback string) error {
	txn := &models.Transaction{
		ID:          uuid.NewString(),
		FlowID:      p.Flow.ID,
		NodeID:      node.ID,
		UserStateID: p.User.ID,
		BrandID:     p.Flow.BrandID,
		At:          time.Now().UTC(),
	}
	if err := ni.txns.Record(ctx, txn); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	intent := OutboundIntent{
		Channel:   p.User.Key.Channel,
		Recipient: p.User.Key.UserIdentifier,
		BrandID:   p.Flow.BrandID,
		NodeID:    node.ID,
		NodeType:  node.Type,
	}

	if fallback != "" {
		intent.Replies = append(intent.Replies, models.FlowReply{Type: "text", Text: fallback})
	}
	for _, reply := range node.FlowReplies {
		reply.Text = Interpolate(reply.Text, vars)
		reply.Caption = Interpolate(reply.Caption, vars)
		intent.Replies = append(intent.Replies, reply)
	}

	if node.Interactive != nil {
		interactive := *node.Interactive
		interactive.Header = Interpolate(interactive.Header, vars)
		interactive.Body = Interpolate(interactive.Body, vars)
		interactive.Footer = Interpolate(interactive.Footer, vars)
		intent.Interactive = &interactive
	}
	intent.ExpectedAnswers = node.ExpectedAnswers

	if err := ni.renderer.Render(ctx, intent); err != nil {
		ni.logger.Error("outbound render failed, state advances anyway",
			"flow_id", p.Flow.ID,
			"node_id", node.ID,
			"channel", intent.Channel,
			"error", err,
		)
	}

	return nil
}
