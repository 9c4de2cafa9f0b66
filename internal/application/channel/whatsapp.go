package channel

import "github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"

// WhatsAppNormalizer handles WhatsApp Cloud API payloads.
//
// Text-content precedence: interactive selection title if present, else the
// plain text body, else a quick-reply button text.
type WhatsAppNormalizer struct{}

func (n *WhatsAppNormalizer) Channel() string { return "whatsapp" }

func (n *WhatsAppNormalizer) Normalize(messageType string, payload map[string]any) models.NormalizedMessage {
	msg := models.NormalizedMessage{InteractiveType: models.InteractiveNone}

	switch messageType {
	case "interactive":
		interactive := getMap(payload, "interactive")
		kind := getString(interactive, "type")
		switch kind {
		case "button_reply":
			msg.InteractiveType = models.InteractiveButtonReply
			msg.ButtonPayload = getString(interactive, "button_reply", "id")
			msg.InteractiveValue = getString(interactive, "button_reply", "title")
		case "list_reply":
			msg.InteractiveType = models.InteractiveListReply
			msg.ButtonPayload = getString(interactive, "list_reply", "id")
			msg.InteractiveValue = getString(interactive, "list_reply", "title")
		}

	case "button":
		msg.ButtonText = getString(payload, "button", "text")
		msg.ButtonPayload = getString(payload, "button", "payload")
		msg.Text = msg.ButtonText

	case "image", "video", "audio", "document", "sticker":
		msg.MediaType = messageType
		msg.MediaURL = getString(payload, messageType, "link")
		if msg.MediaURL == "" {
			msg.MediaURL = getString(payload, messageType, "id")
		}
		msg.Text = getString(payload, messageType, "caption")

	default:
		msg.Text = getString(payload, "text", "body")
		if msg.Text == "" {
			msg.Text = getString(payload, "text")
		}
	}

	return msg
}
