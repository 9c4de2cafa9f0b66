// Package channel collapses heterogeneous channel payloads into the canonical
// NormalizedMessage. All channel variance lives here; the engine never looks
// at a raw payload. Adding a channel means adding one normalizer plus outbound
// renderer entries.
package channel

import (
	"strings"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// Normalizer converts one channel's payloads into the canonical message shape.
type Normalizer interface {
	// Channel returns the channel name this normalizer serves.
	Channel() string

	// Normalize converts a raw payload. Normalizers never fail hard: fields
	// they cannot interpret are left empty.
	Normalize(messageType string, payload map[string]any) models.NormalizedMessage
}

// Adapter dispatches payloads to the normalizer registered for their channel,
// falling back to a generic normalizer for unknown channels.
type Adapter struct {
	normalizers map[string]Normalizer
	fallback    Normalizer
	logger      *logger.Logger
}

// NewAdapter creates an adapter with all built-in normalizers registered.
func NewAdapter(log *logger.Logger) *Adapter {
	a := &Adapter{
		normalizers: make(map[string]Normalizer),
		fallback:    &GenericNormalizer{},
		logger:      log,
	}

	for _, n := range []Normalizer{
		&WhatsAppNormalizer{},
		&EmailNormalizer{},
		&SMSNormalizer{},
		&TelegramNormalizer{},
	} {
		a.Register(n)
	}

	return a
}

// Register installs a normalizer, replacing any previous one for the channel.
func (a *Adapter) Register(n Normalizer) {
	a.normalizers[strings.ToLower(n.Channel())] = n
}

// Normalize converts a payload from the given channel. Unknown channels use
// the generic normalizer.
func (a *Adapter) Normalize(channelName, messageType string, payload map[string]any) models.NormalizedMessage {
	n, ok := a.normalizers[strings.ToLower(channelName)]
	if !ok {
		a.logger.Debug("no normalizer for channel, using generic", "channel", channelName)
		n = a.fallback
	}

	msg := n.Normalize(messageType, payload)
	msg.Raw = payload
	if msg.InteractiveType == "" {
		msg.InteractiveType = models.InteractiveNone
	}
	return msg
}

// getString walks a nested map path and returns the string leaf, or "".
func getString(payload map[string]any, path ...string) string {
	cur := any(payload)
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[p]
	}
	s, _ := cur.(string)
	return s
}

// getMap walks a nested map path and returns the map leaf, or nil.
func getMap(payload map[string]any, path ...string) map[string]any {
	cur := any(payload)
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	m, _ := cur.(map[string]any)
	return m
}
