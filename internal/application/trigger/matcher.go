// Package trigger matches inbound messages against published flow triggers.
package trigger

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/engine"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/domain/repository"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/cache"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

const cacheTTL = 30 * time.Second

// Matcher implements engine.TriggerMatcher over the flow repository, with an
// optional Redis cache in front of the published-flow scan.
type Matcher struct {
	flows  repository.FlowRepository
	cache  *cache.RedisCache
	logger *logger.Logger
}

// NewMatcher creates a Matcher. cache may be nil.
func NewMatcher(flows repository.FlowRepository, c *cache.RedisCache, log *logger.Logger) *Matcher {
	return &Matcher{flows: flows, cache: c, logger: log}
}

// Match finds the published flow whose trigger matches the message. Keyword
// matching is case-insensitive on the trimmed text content; ties across flows
// break by most recent update. Returns nil when nothing matches.
func (m *Matcher) Match(ctx context.Context, brandID int64, channelName string, msg *models.NormalizedMessage) (*engine.TriggerMatch, error) {
	keyword := strings.ToLower(strings.TrimSpace(msg.GetTextContent()))
	templateID := templateIDOf(msg)
	if keyword == "" && templateID == "" {
		return nil, nil
	}

	if hit := m.cacheGet(ctx, brandID, keyword); hit != nil {
		return hit, nil
	}

	flows, err := m.flows.FindPublishedByBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}

	// Flows arrive newest-first, so the first hit wins ties.
	for _, flow := range flows {
		for i := range flow.Nodes {
			node := &flow.Nodes[i]
			switch node.Type {
			case models.NodeTypeTriggerKeyword:
				for _, kw := range node.TriggerKeywords {
					if strings.EqualFold(strings.TrimSpace(kw), keyword) {
						match := &engine.TriggerMatch{FlowID: flow.ID, TriggerNodeID: node.ID}
						m.cacheSet(ctx, brandID, keyword, match)
						return match, nil
					}
				}
			case models.NodeTypeTriggerTemplate:
				if templateID != "" && node.TriggerTemplateID == templateID {
					return &engine.TriggerMatch{FlowID: flow.ID, TriggerNodeID: node.ID}, nil
				}
			}
		}
	}

	return nil, nil
}

// Invalidate drops cached keyword matches for a brand. Called on flow status
// changes so unpublished flows stop matching immediately.
func (m *Matcher) Invalidate(ctx context.Context, brandID int64, flow *models.Flow) {
	if m.cache == nil || flow == nil {
		return
	}
	var keys []string
	for i := range flow.Nodes {
		for _, kw := range flow.Nodes[i].TriggerKeywords {
			keys = append(keys, cacheKey(brandID, strings.ToLower(strings.TrimSpace(kw))))
		}
	}
	if err := m.cache.Delete(ctx, keys...); err != nil {
		m.logger.Warn("failed to invalidate trigger cache", "brand_id", brandID, "error", err)
	}
}

func (m *Matcher) cacheGet(ctx context.Context, brandID int64, keyword string) *engine.TriggerMatch {
	if m.cache == nil || keyword == "" {
		return nil
	}
	raw, err := m.cache.Get(ctx, cacheKey(brandID, keyword))
	if err != nil || raw == "" {
		return nil
	}
	var match engine.TriggerMatch
	if err := json.Unmarshal([]byte(raw), &match); err != nil {
		return nil
	}
	return &match
}

func (m *Matcher) cacheSet(ctx context.Context, brandID int64, keyword string, match *engine.TriggerMatch) {
	if m.cache == nil || keyword == "" {
		return
	}
	raw, err := json.Marshal(match)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, cacheKey(brandID, keyword), string(raw), cacheTTL); err != nil {
		m.logger.Warn("failed to cache trigger match", "brand_id", brandID, "error", err)
	}
}

func cacheKey(brandID int64, keyword string) string {
	return "trigger:" + strconv.FormatInt(brandID, 10) + ":" + keyword
}

// templateIDOf extracts a template trigger id from the raw payload when the
// connector forwards one.
func templateIDOf(msg *models.NormalizedMessage) string {
	if msg.Raw == nil {
		return ""
	}
	if id, ok := msg.Raw["template_id"].(string); ok {
		return id
	}
	return ""
}
