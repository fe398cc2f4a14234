package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rhordoan/logpulse/pkg/automations"
)

func (s *Server) listRules(c *gin.Context) {
	rules, err := s.rules.Rules()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (s *Server) upsertRule(c *gin.Context) {
	id := c.Param("id")
	var rule automations.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = id
	if err := s.rules.Upsert(rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	id := c.Param("id")
	ok, err := s.rules.Delete(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) automationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.automations.Status())
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) setAutomationsEnabled(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.automations.SetEnabled(req.Enabled)
	c.JSON(http.StatusOK, s.automations.Status())
}

func (s *Server) setAutomationsDryRun(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.automations.SetDryRun(req.Enabled)
	c.JSON(http.StatusOK, s.automations.Status())
}
