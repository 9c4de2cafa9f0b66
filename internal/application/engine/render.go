package engine

import (
	"context"

	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// OutboundIntent is one rendering request emitted by the engine. Delivery is
// fire-and-forget: render failures are logged but never roll back state.
type OutboundIntent struct {
	Channel   string
	Recipient string
	BrandID   int64

	NodeID   string
	NodeType models.NodeType

	// Replies are the node's payloads with variables interpolated. For a
	// failed validation retry the fallback message is prepended.
	Replies []models.FlowReply

	Interactive     *models.InteractiveSpec
	ExpectedAnswers []models.ExpectedAnswer
}

// Renderer delivers outbound intents to channel connectors.
type Renderer interface {
	Render(ctx context.Context, intent OutboundIntent) error
}

// NoopRenderer swallows intents. Used when no renderer endpoint is configured.
type NoopRenderer struct{}

// Render implements Renderer.
func (NoopRenderer) Render(context.Context, OutboundIntent) error { return nil }
