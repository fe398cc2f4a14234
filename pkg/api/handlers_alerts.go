package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const alertsStream = "alerts"
const alertsPersistedSet = "alerts:persisted"

// alertView is the JSON shape returned by the alerts list endpoint,
// decoded back out of the alert:<id> hash fields.
type alertView struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	OS                string  `json:"os"`
	IssueKey          string  `json:"issue_key,omitempty"`
	IsHardwareFailure bool    `json:"is_hardware_failure"`
	FailureType       string  `json:"failure_type"`
	Confidence        float64 `json:"confidence"`
	Result            any     `json:"result"`
	Severity          string  `json:"severity,omitempty"`
	Metric            string  `json:"metric,omitempty"`
	Value             float64 `json:"value,omitempty"`
	Threshold         float64 `json:"threshold,omitempty"`
	Persisted         bool    `json:"persisted"`
	Feedback          string  `json:"feedback,omitempty"`
}

func alertFromFields(fields map[string]string) alertView {
	var result any
	if raw := fields["result"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &result)
	}
	return alertView{
		ID:                fields["id"],
		Type:              fields["type"],
		OS:                fields["os"],
		IssueKey:          fields["issue_key"],
		IsHardwareFailure: fields["is_hardware_failure"] == "true" || fields["is_hardware_failure"] == "1",
		FailureType:       fields["failure_type"],
		Confidence:        parseFloatOr(fields["confidence"], 0),
		Result:            result,
		Severity:          fields["severity"],
		Metric:            fields["metric"],
		Value:             parseFloatOr(fields["value"], 0),
		Threshold:         parseFloatOr(fields["threshold"], 0),
		Feedback:          fields["feedback"],
	}
}

func parseFloatOr(s string, def float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// listAlerts returns the alerts among the 200 newest alerts-stream entries
// whose alert:<id> hash has not expired, unioned with the persisted set.
// Older stream entries are not scanned.
func (s *Server) listAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	seen := map[string]bool{}
	out := make([]alertView, 0, 64)

	recent, err := s.broker.RevRange(ctx, alertsStream, "+", "-", 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, msg := range recent {
		id := msg.Fields["id"]
		if id == "" || seen[id] {
			continue
		}
		fields, err := s.broker.HGetAll(ctx, "alert:"+id)
		if err != nil || len(fields) == 0 {
			continue // expired or mirror write failed; not a hard error
		}
		seen[id] = true
		out = append(out, alertFromFields(fields))
	}

	persisted, err := s.broker.SMembers(ctx, alertsPersistedSet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, id := range persisted {
		if seen[id] {
			for i := range out {
				if out[i].ID == id {
					out[i].Persisted = true
				}
			}
			continue
		}
		fields, err := s.broker.HGetAll(ctx, "alert:"+id)
		if err != nil || len(fields) == 0 {
			continue
		}
		seen[id] = true
		view := alertFromFields(fields)
		view.Persisted = true
		out = append(out, view)
	}

	c.JSON(http.StatusOK, gin.H{"alerts": out})
}

type feedbackRequest struct {
	Feedback string `json:"feedback" binding:"required,oneof=correct incorrect"`
}

// submitFeedback records a correct/incorrect verdict against an alert,
// 404ing on unknown ids per §6.
func (s *Server) submitFeedback(c *gin.Context) {
	id := c.Param("id")
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	key := "alert:" + id
	fields, err := s.broker.HGetAll(ctx, key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(fields) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}

	ttl := s.alertsTTL
	if persisted, err := s.broker.SIsMember(ctx, alertsPersistedSet, id); err == nil && persisted {
		ttl = 0 // a persisted alert keeps no expiry
	}
	if err := s.broker.HSetTTL(ctx, key, map[string]any{"feedback": req.Feedback}, ttl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// persistAlert removes the TTL on an alert's hash and adds it to the
// persisted set, so it survives ALERTS_TTL_SEC expiry.
func (s *Server) persistAlert(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	key := "alert:" + id

	fields, err := s.broker.HGetAll(ctx, key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(fields) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}

	if err := s.broker.Persist(ctx, key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.broker.SAdd(ctx, alertsPersistedSet, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "persisted"})
}
