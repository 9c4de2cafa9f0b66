// Package render delivers outbound intents to the channel connector service.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/engine"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/config"
)

// HTTPRenderer posts intents to the connector's render endpoint. The engine
// treats delivery as fire-and-forget; a non-2xx response is an error the
// caller logs without rolling back state.
type HTTPRenderer struct {
	url    string
	client *http.Client
}

// NewHTTPRenderer creates an HTTPRenderer from configuration.
func NewHTTPRenderer(cfg config.RenderConfig) *HTTPRenderer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRenderer{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

// Render implements engine.Renderer.
func (r *HTTPRenderer) Render(ctx context.Context, intent engine.OutboundIntent) error {
	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to encode outbound intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("renderer returned status %d", resp.StatusCode)
	}
	return nil
}
