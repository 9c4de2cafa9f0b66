package channel

import "github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"

// EmailNormalizer handles inbound email payloads.
//
// Text-content precedence: subject + "\n" + body.
type EmailNormalizer struct{}

func (n *EmailNormalizer) Channel() string { return "email" }

func (n *EmailNormalizer) Normalize(messageType string, payload map[string]any) models.NormalizedMessage {
	msg := models.NormalizedMessage{
		InteractiveType: models.InteractiveNone,
		Subject:         getString(payload, "subject"),
		Body:            getString(payload, "body"),
	}
	if msg.Body == "" {
		msg.Body = getString(payload, "text")
	}

	for _, key := range []string{"attachment", "attachments"} {
		if att := getMap(payload, key); att != nil {
			msg.MediaURL = getString(att, "url")
			msg.MediaType = getString(att, "content_type")
			break
		}
	}

	return msg
}
