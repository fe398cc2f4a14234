package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const metricsStream = "metrics"

// ingestTelegraf is the push ingestion endpoint for the telegraf DataSource
// type, which is push-only and therefore skipped by the producer supervisor
// (§4.1). Telegraf's HTTP output plugin posts either a single JSON metric
// line or a {"metrics":[...]} batch; both shapes are accepted.
func (s *Server) ingestTelegraf(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payloads := []map[string]any{body}
	if batch, ok := body["metrics"].([]any); ok {
		payloads = payloads[:0]
		for _, item := range batch {
			if m, ok := item.(map[string]any); ok {
				payloads = append(payloads, m)
			}
		}
	}

	ctx := c.Request.Context()
	published := 0
	for _, payload := range payloads {
		for _, point := range s.normalizers.Normalize("telegraf", payload, nil) {
			data, err := json.Marshal(point)
			if err != nil {
				slog.Error("api: marshal metric point failed", "error", err)
				continue
			}
			if _, err := s.broker.Append(ctx, metricsStream, map[string]any{
				"name": point.Name,
				"data": string(data),
			}); err != nil {
				slog.Error("api: metrics append failed", "error", err)
				continue
			}
			published++
		}
	}

	c.JSON(http.StatusOK, gin.H{"published": published})
}
