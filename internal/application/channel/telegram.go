package channel

import "github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"

// TelegramNormalizer handles Telegram Bot API updates.
//
// Text-content precedence: callback query data (inline-button press) if
// present, else the message text, else a media caption.
type TelegramNormalizer struct{}

func (n *TelegramNormalizer) Channel() string { return "telegram" }

func (n *TelegramNormalizer) Normalize(messageType string, payload map[string]any) models.NormalizedMessage {
	msg := models.NormalizedMessage{InteractiveType: models.InteractiveNone}

	if cb := getMap(payload, "callback_query"); cb != nil {
		msg.InteractiveType = models.InteractiveButtonReply
		msg.ButtonPayload = getString(cb, "data")
		msg.InteractiveValue = getString(cb, "data")
		return msg
	}

	message := getMap(payload, "message")
	if message == nil {
		// Flat payloads arrive without the update envelope.
		message = payload
	}

	msg.Text = getString(message, "text")
	if msg.Text == "" {
		msg.Text = getString(message, "caption")
	}

	if doc := getMap(message, "document"); doc != nil {
		msg.MediaType = "document"
		msg.MediaURL = getString(doc, "file_id")
	} else if photo := getMap(message, "photo"); photo != nil {
		msg.MediaType = "photo"
		msg.MediaURL = getString(photo, "file_id")
	}

	return msg
}
