package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rhordoan/logpulse/pkg/correlation"
)

func queryIntOr(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryFloatOr(c *gin.Context, name string, def float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

// correlate runs either single_pass or hdbscan cross-source correlation,
// selected via ?algorithm=.
func (s *Server) correlate(c *gin.Context) {
	algorithm := c.DefaultQuery("algorithm", "single_pass")
	includeLogs := queryIntOr(c, "include_logs_per_cluster", 5)

	switch algorithm {
	case "hdbscan":
		minClusterSize := queryIntOr(c, "min_cluster_size", 5)
		minSamples := queryIntOr(c, "min_samples", 5)
		result, err := s.correlator.HDBSCAN(c.Request.Context(), minClusterSize, minSamples, includeLogs)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	case "single_pass":
		limitPerSource := queryIntOr(c, "limit_per_source", 500)
		threshold := queryFloatOr(c, "threshold", 0.3)
		minSize := queryIntOr(c, "min_size", 3)
		result := s.correlator.SinglePass(c.Request.Context(), limitPerSource, threshold, minSize, includeLogs)
		c.JSON(http.StatusOK, result)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown algorithm: " + algorithm})
	}
}

// correlateGraph runs single_pass correlation and projects the result onto a
// source/cluster graph for visualization.
func (s *Server) correlateGraph(c *gin.Context) {
	limitPerSource := queryIntOr(c, "limit_per_source", 500)
	threshold := queryFloatOr(c, "threshold", 0.3)
	minSize := queryIntOr(c, "min_size", 3)
	includeLogs := queryIntOr(c, "include_logs_per_cluster", 5)

	result := s.correlator.SinglePass(c.Request.Context(), limitPerSource, threshold, minSize, includeLogs)
	graph := correlation.BuildGraph(result)
	c.JSON(http.StatusOK, graph)
}
