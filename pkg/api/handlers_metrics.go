package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// clusterMetrics reports the latest aggregated-prototype snapshot and batch
// quality snapshot for an OS, backing a dashboard's quality/drift panel.
func (s *Server) clusterMetrics(c *gin.Context) {
	osName := c.Param("os")
	ctx := c.Request.Context()

	raw, err := s.broker.Get(ctx, "cluster_metrics:aggregated:"+osName+":latest")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var aggregated any
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &aggregated)
	}

	snapshot, ok, err := s.tracker.LatestBatchSnapshot(ctx, osName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"os": osName, "aggregated": aggregated}
	if ok {
		resp["batch_quality"] = snapshot
	}
	c.JSON(http.StatusOK, resp)
}
