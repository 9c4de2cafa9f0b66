// Package flowapi implements the flow authoring operations behind the REST
// handlers.
package flowapi

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/trigger"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// FlowDetail is a flow enriched with per-node transaction counts.
type FlowDetail struct {
	*models.Flow
	NodeDetails []NodeDetail `json:"node_details"`
}

// NodeDetail pairs a node with its entry count.
type NodeDetail struct {
	NodeID           string `json:"node_id"`
	TransactionCount int64  `json:"transactionCount"`
}

// Operations implements the authoring use-cases.
type Operations struct {
	flows   repository.FlowRepository
	txns    repository.TransactionRepository
	matcher *trigger.Matcher
	logger  *logger.Logger
}

// NewOperations creates the authoring operations.
func NewOperations(flows repository.FlowRepository, txns repository.TransactionRepository, matcher *trigger.Matcher, log *logger.Logger) *Operations {
	return &Operations{flows: flows, txns: txns, matcher: matcher, logger: log}
}

// List returns all flows authored by the given user.
func (o *Operations) List(ctx context.Context, userID string) ([]*models.Flow, error) {
	return o.flows.FindByUserID(ctx, userID)
}

// Detail returns one flow; published and stopped flows carry per-node
// transaction counts.
func (o *Operations) Detail(ctx context.Context, flowID string) (*FlowDetail, error) {
	flow, err := o.flows.FindByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	detail := &FlowDetail{Flow: flow}

	if flow.Status == models.FlowStatusPublished || flow.Status == models.FlowStatusStop {
		counts, err := o.txns.CountByFlow(ctx, flowID)
		if err != nil {
			return nil, fmt.Errorf("failed to count transactions: %w", err)
		}
		for i := range flow.Nodes {
			detail.NodeDetails = append(detail.NodeDetails, NodeDetail{
				NodeID:           flow.Nodes[i].ID,
				TransactionCount: counts[flow.Nodes[i].ID],
			})
		}
	}

	return detail, nil
}

// Create inserts a new draft flow owned by userID.
func (o *Operations) Create(ctx context.Context, userID string, flow *models.Flow) (*models.Flow, error) {
	if flow.Name == "" {
		return nil, &models.ValidationError{Field: "name", Message: "flow name is required"}
	}

	flow.ID = uuid.NewString()
	flow.UserID = userID
	flow.Status = models.FlowStatusDraft

	if err := o.flows.Create(ctx, flow); err != nil {
		return nil, err
	}

	o.logger.Info("flow created", "flow_id", flow.ID, "user_id", userID)
	return flow, nil
}

// Update replaces the nodes and edges of a draft flow. Only the owner may
// edit, and only drafts are editable.
func (o *Operations) Update(ctx context.Context, userID, flowID string, update *models.Flow) (*models.Flow, error) {
	existing, err := o.flows.FindByID(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, models.ErrNotFlowOwner
	}
	if existing.Status != models.FlowStatusDraft {
		return nil, models.ErrFlowNotEditable
	}

	if update.Name != "" {
		existing.Name = update.Name
	}
	existing.Nodes = update.Nodes
	existing.Edges = update.Edges
	existing.Transform = update.Transform

	if err := o.flows.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// UpdateStatus transitions a flow's lifecycle state. Legal transitions:
// draft→published, published→stop, stop→published. Returning to draft is
// rejected.
func (o *Operations) UpdateStatus(ctx context.Context, userID, flowID string, status models.FlowStatus) (*models.Flow, error) {
	flow, err := o.flows.FindByID(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if flow.UserID != userID {
		return nil, models.ErrNotFlowOwner
	}

	if !transitionAllowed(flow.Status, status) {
		return nil, fmt.Errorf("%s -> %s: %w", flow.Status, status, models.ErrInvalidStatusTransition)
	}

	if err := o.flows.UpdateStatus(ctx, flowID, status); err != nil {
		return nil, err
	}

	// Unpublishing must stop matching immediately.
	if o.matcher != nil {
		o.matcher.Invalidate(ctx, flow.BrandID, flow)
	}

	flow.Status = status
	flow.UpdatedAt = time.Now().UTC()

	o.logger.Info("flow status changed", "flow_id", flowID, "status", status)
	return flow, nil
}

func transitionAllowed(from, to models.FlowStatus) bool {
	switch {
	case from == models.FlowStatusDraft && to == models.FlowStatusPublished:
		return true
	case from == models.FlowStatusPublished && to == models.FlowStatusStop:
		return true
	case from == models.FlowStatusStop && to == models.FlowStatusPublished:
		return true
	}
	return false
}
