// Package api provides the thin HTTP surface over the pipeline: alert
// listing/feedback, cross-source correlation, cluster-metrics readback,
// automations CRUD, data-source CRUD, and a push-ingestion endpoint for
// agentless sources (Telegraf). Out-of-scope per §1 for the pipeline core,
// but carried here as the ambient API layer every deployment needs. Grounded
// on the teacher's pkg/api server/handlers, rebuilt on gin instead of echo.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rhordoan/logpulse/pkg/automations"
	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/clustermetrics"
	"github.com/rhordoan/logpulse/pkg/correlation"
	"github.com/rhordoan/logpulse/pkg/datasource"
	"github.com/rhordoan/logpulse/pkg/normalizers"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	broker      *broker.Broker
	datasources datasource.Repository
	correlator  *correlation.Correlator
	tracker     *clustermetrics.Tracker
	rules       *automations.Store
	automations *automations.Runner
	normalizers *normalizers.Registry
	alertsTTL   time.Duration
}

// NewServer wires a Server from its dependencies and registers every route.
func NewServer(
	b *broker.Broker,
	datasources datasource.Repository,
	correlator *correlation.Correlator,
	tracker *clustermetrics.Tracker,
	rules *automations.Store,
	runner *automations.Runner,
	registry *normalizers.Registry,
	alertsTTL time.Duration,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine:      engine,
		broker:      b,
		datasources: datasources,
		correlator:  correlator,
		tracker:     tracker,
		rules:       rules,
		automations: runner,
		normalizers: registry,
		alertsTTL:   alertsTTL,
	}
	s.setupRoutes()
	return s
}

// requestLogger is a minimal slog-backed replacement for gin's default
// text logger, matching the structured logging used across the pipeline.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.health)

	v1 := s.engine.Group("/api/v1")

	v1.GET("/alerts", s.listAlerts)
	v1.POST("/alerts/:id/feedback", s.submitFeedback)
	v1.POST("/alerts/:id/persist", s.persistAlert)

	v1.GET("/correlation", s.correlate)
	v1.GET("/correlation/graph", s.correlateGraph)

	v1.GET("/cluster-metrics/:os", s.clusterMetrics)

	v1.GET("/automations/rules", s.listRules)
	v1.PUT("/automations/rules/:id", s.upsertRule)
	v1.DELETE("/automations/rules/:id", s.deleteRule)
	v1.GET("/automations/status", s.automationStatus)
	v1.POST("/automations/enabled", s.setAutomationsEnabled)
	v1.POST("/automations/dry-run", s.setAutomationsDryRun)

	v1.GET("/datasources", s.listDataSources)
	v1.GET("/datasources/:id", s.getDataSource)
	v1.POST("/datasources", s.createDataSource)
	v1.PUT("/datasources/:id", s.updateDataSource)
	v1.DELETE("/datasources/:id", s.deleteDataSource)

	v1.POST("/ingest/telegraf", s.ingestTelegraf)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
