package channel

import "github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"

// SMSNormalizer handles SMS gateway payloads.
//
// Text-content precedence: the message body. SMS carries no interactive or
// media fields.
type SMSNormalizer struct{}

func (n *SMSNormalizer) Channel() string { return "sms" }

func (n *SMSNormalizer) Normalize(messageType string, payload map[string]any) models.NormalizedMessage {
	text := getString(payload, "body")
	if text == "" {
		text = getString(payload, "text")
	}
	if text == "" {
		text = getString(payload, "message")
	}

	return models.NormalizedMessage{
		InteractiveType: models.InteractiveNone,
		Text:            text,
	}
}
