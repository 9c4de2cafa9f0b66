package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/channel"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/engine"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// WebhookRequest is the inbound event body posted by channel connectors.
type WebhookRequest struct {
	Sender            string         `json:"sender" binding:"required"`
	BrandID           int64          `json:"brand_id" binding:"required"`
	UserID            string         `json:"user_id"`
	Channel           string         `json:"channel" binding:"required"`
	ChannelIdentifier string         `json:"channel_identifier"`
	ChannelAccountID  string         `json:"channel_account_id"`
	MessageType       string         `json:"message_type" binding:"required"`
	MessageBody       map[string]any `json:"message_body"`
	Status            string         `json:"status"`
}

// WebhookHandlers provides the inbound event endpoint.
type WebhookHandlers struct {
	adapter *channel.Adapter
	service *engine.UserStateService
	logger  *logger.Logger
}

// NewWebhookHandlers creates a WebhookHandlers instance.
func NewWebhookHandlers(adapter *channel.Adapter, service *engine.UserStateService, log *logger.Logger) *WebhookHandlers {
	return &WebhookHandlers{adapter: adapter, service: service, logger: log}
}

// HandleInbound handles POST /webhook/inbound
func (h *WebhookHandlers) HandleInbound(c *gin.Context) {
	var req WebhookRequest
	if err := bindJSON(c, &req); err != nil {
		return
	}

	metadata := models.EventMetadata{
		Sender:            req.Sender,
		BrandID:           req.BrandID,
		UserID:            req.UserID,
		Channel:           req.Channel,
		ChannelIdentifier: req.ChannelIdentifier,
		ChannelAccountID:  req.ChannelAccountID,
		MessageType:       req.MessageType,
	}

	normalized := h.adapter.Normalize(req.Channel, req.MessageType, req.MessageBody)

	result, err := h.service.ProcessEvent(c.Request.Context(), metadata, normalized, req.MessageBody)
	if err != nil {
		h.logger.Error("event processing failed",
			"channel", req.Channel,
			"brand_id", req.BrandID,
			"sender", req.Sender,
			"error", err,
		)
		respondJSON(c, http.StatusInternalServerError, engine.ProcessResult{
			Status: engine.StatusError,
			Detail: err.Error(),
		})
		return
	}

	respondJSON(c, http.StatusOK, result)
}
