package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/api/rest"
)

func (s *Server) setupRoutes() error {
	if s.config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/healthz", s.handleHealth)

	flowHandlers := rest.NewFlowHandlers(s.engine.FlowOps, s.logger)
	webhookHandlers := rest.NewWebhookHandlers(s.engine.Adapter, s.engine.UserStateService, s.logger)
	rateLimiter := rest.NewWebhookRateLimiter(s.data.Cache, 120, time.Minute, s.logger)

	flow := router.Group("/flow", rest.RequireUserID())
	{
		flow.GET("/list", flowHandlers.HandleList)
		flow.GET("/detail/:flow_id", flowHandlers.HandleDetail)
		flow.POST("", flowHandlers.HandleCreate)
		flow.PUT("/:flow_id", flowHandlers.HandleUpdate)
		flow.POST("/status/:flow_id", flowHandlers.HandleUpdateStatus)
	}

	webhook := router.Group("/webhook", rateLimiter.Middleware())
	{
		webhook.POST("/inbound", webhookHandlers.HandleInbound)
	}

	s.router = router
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok"}

	ctx := c.Request.Context()
	if err := s.data.DB.Ping(ctx); err != nil {
		status["status"] = "degraded"
		status["store"] = err.Error()
	}
	if s.data.Cache != nil {
		if err := s.data.Cache.Ping(ctx); err != nil {
			status["cache"] = err.Error()
		}
	}

	code := http.StatusOK
	if status["status"] != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
