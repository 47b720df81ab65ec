package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/metrics"
	"hyperwatch/internal/monitor"
	"hyperwatch/internal/monitor/alerts"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Version is reported by the health endpoints
var Version = "dev"

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Reuse the binding tags gin already understands
	validate.SetTagName("binding")
}

// Server represents the monitoring agent HTTP API server
type Server struct {
	config *monitor.Config
	logger *logging.Logger
	server *http.Server
	agent  *Agent
	router *gin.Engine

	auth    *TokenAuth
	limiter *RateLimiter
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type settingsResponse struct {
	Thresholds    alerts.ThresholdSet `json:"thresholds"`
	AlertsEnabled bool                `json:"alerts_enabled"`
}

type snapshotResponse struct {
	Events        []alerts.NotificationEvent `json:"events"`
	Notifications []*alerts.Notification     `json:"notifications"`
}

// NewServer creates a new monitoring API server
func NewServer(config *monitor.Config, logger *logging.Logger, agent *Agent) *Server {
	s := &Server{
		config:  config,
		logger:  logger,
		agent:   agent,
		auth:    NewTokenAuth(config.Agent.AuthSecret),
		limiter: NewRateLimiter(rate.Limit(config.Agent.RateLimit), config.Agent.RateBurst),
	}
	s.router = s.routes()
	return s
}

// Handler returns the router serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.metricsMiddleware(), corsMiddleware())

	api := r.Group("/api/v1")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)

		api.GET("/settings/resource_thresholds", s.handleGetThresholds)
		api.GET("/settings/resource_alerts_enabled", s.handleGetAlertsEnabled)

		write := api.Group("", s.limiter.Middleware(), s.auth.Require())
		write.PATCH("/settings/resource_thresholds", s.handlePatchThresholds)
		write.PUT("/settings/resource_alerts_enabled", s.handleToggleAlerts)
		write.POST("/snapshots", s.handleSnapshot)

		api.GET("/notifications", s.handleNotifications)
		api.GET("/notifications/ws", s.handleNotificationStream)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Start starts the HTTP API server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.config.Agent.ListenAddr,
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	s.logger.Info("Starting monitoring API server", "addr", s.config.Agent.ListenAddr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Stopping monitoring API server")
	return s.server.Shutdown(ctx)
}

// metricsMiddleware records request counts and latency per route
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		duration := time.Since(start)
		status := c.Writer.Status()

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration.Seconds())

		s.logger.Debug("request completed",
			"method", c.Request.Method, "path", c.Request.URL.Path, "status", status, "duration", duration)
	}
}

// corsMiddleware lets dashboards on another origin call the API
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// handleHealth returns the health status of the monitoring agent
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	storageStatus := "ok"
	if err := s.agent.Store().Health(c.Request.Context()); err != nil {
		status = "degraded"
		storageStatus = err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now(),
		"version":   Version,
		"uptime":    s.agent.GetUptime().String(),
		"storage":   storageStatus,
	})
}

// handleStatus returns detailed status information
func (s *Server) handleStatus(c *gin.Context) {
	engine := s.agent.Engine()

	c.JSON(http.StatusOK, gin.H{
		"agent": gin.H{
			"status":              "running",
			"started_at":          s.agent.GetStartTime(),
			"uptime":              s.agent.GetUptime().String(),
			"version":             Version,
			"snapshots_evaluated": s.agent.GetSnapshotsEvaluated(),
		},
		"sources": s.agent.GetSourceStatuses(),
		"storage": gin.H{
			"type": s.config.Storage.Type,
		},
		"alerts": gin.H{
			"enabled":      engine.Store.AlertsEnabled(),
			"active_count": len(engine.Dispatcher.Active()),
			"containers":   engine.Dispatcher.Containers(),
		},
		"websocket_clients": s.agent.Hub().ClientCount(""),
	})
}

func (s *Server) settings() settingsResponse {
	store := s.agent.Engine().Store
	return settingsResponse{
		Thresholds:    store.Thresholds(),
		AlertsEnabled: store.AlertsEnabled(),
	}
}

func (s *Server) handleGetThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, s.settings())
}

// handlePatchThresholds merges a partial threshold update
func (s *Server) handlePatchThresholds(c *gin.Context) {
	var patch alerts.ThresholdSetPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid threshold update", "details": err.Error()})
		return
	}
	if patch.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No threshold fields supplied"})
		return
	}

	if _, err := s.agent.Engine().Store.UpdateThresholds(c.Request.Context(), patch); err != nil {
		if errors.Is(err, alerts.ErrInvalidThreshold) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
			return
		}
		s.logger.Error("Failed to update thresholds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update thresholds"})
		return
	}

	c.JSON(http.StatusOK, s.settings())
}

func (s *Server) handleGetAlertsEnabled(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts_enabled": s.agent.Engine().Store.AlertsEnabled()})
}

// handleToggleAlerts switches every notification on or off
func (s *Server) handleToggleAlerts(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	store := s.agent.Engine().Store
	store.ToggleAlerts(c.Request.Context(), *req.Enabled)
	s.logger.Info("Alerts toggled via API", "enabled", *req.Enabled, "by", c.GetString("subject"))
	c.JSON(http.StatusOK, gin.H{"alerts_enabled": store.AlertsEnabled()})
}

// handleSnapshot evaluates a snapshot pushed by a dashboard or script
func (s *Server) handleSnapshot(c *gin.Context) {
	var snapshot monitor.Snapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid snapshot", "details": err.Error()})
		return
	}
	for id := range snapshot.Disks {
		if err := validate.Var(id, "required,max=64"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid disk identifier", "details": err.Error()})
			return
		}
	}

	events, shown := s.agent.Evaluate(c.Request.Context(), &snapshot)
	if events == nil {
		events = []alerts.NotificationEvent{}
	}
	if shown == nil {
		shown = []*alerts.Notification{}
	}
	c.JSON(http.StatusOK, snapshotResponse{Events: events, Notifications: shown})
}

// handleNotifications lists notifications still on screen, optionally for one container
func (s *Server) handleNotifications(c *gin.Context) {
	container := c.Query("container")
	active := s.agent.Engine().Dispatcher.Active()

	filtered := make([]alerts.Notification, 0, len(active))
	for _, n := range active {
		if container == "" || n.Container == container {
			filtered = append(filtered, n)
		}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": filtered})
}

// handleNotificationStream upgrades to a websocket streaming one container
func (s *Server) handleNotificationStream(c *gin.Context) {
	container := c.DefaultQuery("container", alerts.DefaultContainer)
	if !s.hasContainer(container) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown container", "container": container})
		return
	}

	dispatcher := s.agent.Engine().Dispatcher
	backlog := func() []alerts.Notification {
		var pending []alerts.Notification
		for _, n := range dispatcher.Active() {
			if n.Container == container {
				pending = append(pending, n)
			}
		}
		return pending
	}
	s.agent.Hub().HandleWebSocket(container, backlog)(c)
}

func (s *Server) hasContainer(container string) bool {
	for _, registered := range s.agent.Engine().Dispatcher.Containers() {
		if registered == container {
			return true
		}
	}
	return false
}
