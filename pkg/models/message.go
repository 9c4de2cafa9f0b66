package models

import "strings"

// InteractiveType classifies an interactive inbound reply.
type InteractiveType string

const (
	InteractiveNone        InteractiveType = "none"
	InteractiveButtonReply InteractiveType = "button_reply"
	InteractiveListReply   InteractiveType = "list_reply"
)

// NormalizedMessage is the canonical shape every channel payload collapses
// into. All engine components treat it as a value; channel differences live
// entirely in the adapter's normalizer set.
type NormalizedMessage struct {
	Text             string          `bson:"text,omitempty" json:"text,omitempty"`
	Subject          string          `bson:"subject,omitempty" json:"subject,omitempty"`
	Body             string          `bson:"body,omitempty" json:"body,omitempty"`
	ButtonText       string          `bson:"button_text,omitempty" json:"button_text,omitempty"`
	ButtonPayload    string          `bson:"button_payload,omitempty" json:"button_payload,omitempty"`
	InteractiveType  InteractiveType `bson:"interactive_type" json:"interactive_type"`
	InteractiveValue string          `bson:"interactive_value,omitempty" json:"interactive_value,omitempty"`
	MediaURL         string          `bson:"media_url,omitempty" json:"media_url,omitempty"`
	MediaType        string          `bson:"media_type,omitempty" json:"media_type,omitempty"`
	Raw              map[string]any  `bson:"raw,omitempty" json:"raw,omitempty"`
}

// GetTextContent returns the single string that participates in trigger
// matching and reply validation. Interactive selections win over plain text;
// email-style messages collapse to subject + body.
func (m *NormalizedMessage) GetTextContent() string {
	if m.InteractiveValue != "" {
		return m.InteractiveValue
	}
	if m.Text != "" {
		return m.Text
	}
	if m.Subject != "" || m.Body != "" {
		if m.Subject == "" {
			return m.Body
		}
		if m.Body == "" {
			return m.Subject
		}
		return m.Subject + "\n" + m.Body
	}
	return m.ButtonText
}

// HasMedia reports whether the message carries a media attachment.
func (m *NormalizedMessage) HasMedia() bool {
	return m.MediaURL != ""
}

// EventMetadata identifies the origin of one inbound event.
type EventMetadata struct {
	Sender            string `json:"sender"`
	BrandID           int64  `json:"brand_id"`
	UserID            string `json:"user_id,omitempty"`
	Channel           string `json:"channel"`
	ChannelIdentifier string `json:"channel_identifier,omitempty"`
	ChannelAccountID  string `json:"channel_account_id"`
	MessageType       string `json:"message_type"`
}

// UserStateKey derives the per-user key from the event origin.
func (m EventMetadata) UserStateKey() UserStateKey {
	return UserStateKey{
		UserIdentifier:   m.Sender,
		BrandID:          m.BrandID,
		Channel:          strings.ToLower(m.Channel),
		ChannelAccountID: m.ChannelAccountID,
	}
}

// MessageTypeDelayComplete is the synthetic message type injected by the
// delay scheduler to resume a user whose timer has expired.
const MessageTypeDelayComplete = "delay_complete"

// ChannelSystem is the pseudo-channel carrying scheduler-synthesized events.
const ChannelSystem = "system"
