package channel

import "github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"

// GenericNormalizer serves channels with no dedicated normalizer. It looks
// for a text field and otherwise returns an empty message without failing.
type GenericNormalizer struct{}

func (n *GenericNormalizer) Channel() string { return "generic" }

func (n *GenericNormalizer) Normalize(messageType string, payload map[string]any) models.NormalizedMessage {
	text := getString(payload, "text")
	if text == "" {
		text = getString(payload, "text", "body")
	}
	if text == "" {
		text = getString(payload, "body")
	}

	return models.NormalizedMessage{
		InteractiveType: models.InteractiveNone,
		Text:            text,
	}
}
