package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/application/flowapi"
	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
	"github.com/abhishekagnith/xpulse-agentflow-service/pkg/models"
)

// FlowHandlers provides the flow authoring endpoints.
type FlowHandlers struct {
	ops    *flowapi.Operations
	logger *logger.Logger
}

// NewFlowHandlers creates a FlowHandlers instance.
func NewFlowHandlers(ops *flowapi.Operations, log *logger.Logger) *FlowHandlers {
	return &FlowHandlers{ops: ops, logger: log}
}

// HandleList handles GET /flow/list
func (h *FlowHandlers) HandleList(c *gin.Context) {
	flows, err := h.ops.List(c.Request.Context(), GetUserID(c))
	if err != nil {
		h.logger.Error("failed to list flows", "user_id", GetUserID(c), "error", err)
		respondAPIError(c, TranslateError(err))
		return
	}
	if flows == nil {
		flows = []*models.Flow{}
	}
	respondJSON(c, http.StatusOK, flows)
}

// HandleDetail handles GET /flow/detail/:flow_id
func (h *FlowHandlers) HandleDetail(c *gin.Context) {
	flowID := c.Param("flow_id")
	if flowID == "" {
		respondAPIError(c, ErrMissingParameter)
		return
	}

	detail, err := h.ops.Detail(c.Request.Context(), flowID)
	if err != nil {
		h.logger.Error("failed to load flow detail", "flow_id", flowID, "error", err)
		respondAPIError(c, TranslateError(err))
		return
	}
	respondJSON(c, http.StatusOK, detail)
}

// HandleCreate handles POST /flow
func (h *FlowHandlers) HandleCreate(c *gin.Context) {
	var req struct {
		Name      string        `json:"name" binding:"required"`
		BrandID   int64         `json:"brand_id"`
		Nodes     []models.Node `json:"nodes"`
		Edges     []models.Edge `json:"edges"`
		Transform string        `json:"transform"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	flow, err := h.ops.Create(c.Request.Context(), GetUserID(c), &models.Flow{
		Name:      req.Name,
		BrandID:   req.BrandID,
		Nodes:     req.Nodes,
		Edges:     req.Edges,
		Transform: req.Transform,
	})
	if err != nil {
		h.logger.Error("failed to create flow", "user_id", GetUserID(c), "error", err)
		respondAPIError(c, TranslateError(err))
		return
	}
	respondJSON(c, http.StatusCreated, flow)
}

// HandleUpdate handles PUT /flow/:flow_id
func (h *FlowHandlers) HandleUpdate(c *gin.Context) {
	flowID := c.Param("flow_id")
	if flowID == "" {
		respondAPIError(c, ErrMissingParameter)
		return
	}

	var req struct {
		Name      string        `json:"name"`
		Nodes     []models.Node `json:"nodes"`
		Edges     []models.Edge `json:"edges"`
		Transform string        `json:"transform"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	flow, err := h.ops.Update(c.Request.Context(), GetUserID(c), flowID, &models.Flow{
		Name:      req.Name,
		Nodes:     req.Nodes,
		Edges:     req.Edges,
		Transform: req.Transform,
	})
	if err != nil {
		h.logger.Error("failed to update flow", "flow_id", flowID, "error", err)
		respondAPIError(c, TranslateError(err))
		return
	}
	respondJSON(c, http.StatusOK, flow)
}

// HandleUpdateStatus handles POST /flow/status/:flow_id
func (h *FlowHandlers) HandleUpdateStatus(c *gin.Context) {
	flowID := c.Param("flow_id")
	if flowID == "" {
		respondAPIError(c, ErrMissingParameter)
		return
	}

	var req struct {
		Status models.FlowStatus `json:"status" binding:"required,oneof=published stop"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	flow, err := h.ops.UpdateStatus(c.Request.Context(), GetUserID(c), flowID, req.Status)
	if err != nil {
		h.logger.Error("failed to change flow status", "flow_id", flowID, "status", req.Status, "error", err)
		respondAPIError(c, TranslateError(err))
		return
	}
	respondJSON(c, http.StatusOK, flow)
}
