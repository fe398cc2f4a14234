// Package enricher implements the issue enricher (§4.6) and cluster
// enricher (§4.7): both retrieve nearest neighbors via HyDE-generated
// queries, call an LLM classifier, and publish the structured verdict as an
// Alert mirrored to a TTL'd hash.
package enricher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/models"
)

const alertsStream = "alerts"

// publishAlert appends to the alerts stream and mirrors the same payload to
// hash alert:<id> with the configured TTL, per §4.6 step 5.
func publishAlert(ctx context.Context, b *broker.Broker, alert models.Alert, ttl time.Duration) {
	if alert.ID == "" {
		alert.ID = "alert_" + uuid.NewString()
	}

	resultJSON, err := json.Marshal(alert.Result)
	if err != nil {
		resultJSON = []byte("{}")
	}

	fields := map[string]any{
		"id":                  alert.ID,
		"type":                string(alert.Type),
		"os":                  alert.OS,
		"issue_key":           alert.IssueKey,
		"is_hardware_failure": alert.IsHardwareFailure,
		"failure_type":        string(alert.FailureType),
		"confidence":          alert.Confidence,
		"result":              string(resultJSON),
		"severity":            alert.Severity,
		"metric":              alert.Metric,
		"value":               alert.Value,
		"threshold":           alert.Threshold,
	}

	if _, err := b.Append(ctx, alertsStream, fields); err != nil {
		slog.Error("enricher: alerts append failed", "error", err)
	}
	if err := b.HSetTTL(ctx, "alert:"+alert.ID, fields, ttl); err != nil {
		slog.Error("enricher: alert hash mirror failed", "id", alert.ID, "error", err)
	}
}

// parseClassifyResult decodes the LLM classifier output, tolerating the
// {error, raw} failure shape the provider returns instead of an error.
func parseClassifyResult(raw map[string]any) models.ClassifyResult {
	data, err := json.Marshal(raw)
	if err != nil {
		return models.ClassifyResult{Error: "marshal failed", Raw: err.Error()}
	}
	var result models.ClassifyResult
	if err := json.Unmarshal(data, &result); err != nil {
		return models.ClassifyResult{Error: "decode failed", Raw: string(data)}
	}
	if result.FailureType == "" {
		result.FailureType = models.FailureUnknown
	}
	return result
}

// hydeQueries asks the LLM for up to 3 search queries seeded by seedText,
// tolerating either a bare JSON array or {"queries":[...]}.
func hydeQueries(ctx context.Context, llm llmChatter, seedText string) []string {
	system := "You generate up to 3 short search queries that would retrieve log lines similar in root cause to the given text. Respond with strict JSON: either a JSON array of strings, or {\"queries\": [...]}."
	raw := llm.ChatJSON(ctx, system, seedText, 0.2)

	if errMsg, ok := raw["error"]; ok {
		// ChatJSON decodes objects only, so a bare JSON array comes back
		// undecoded under "raw".
		if text, ok := raw["raw"].(string); ok {
			var arr []any
			if json.Unmarshal([]byte(text), &arr) == nil && arr != nil {
				return toStringSlice(arr, 3)
			}
		}
		slog.Info("enricher: hyde query generation failed", "error", errMsg)
		return nil
	}

	if queries, ok := raw["queries"].([]any); ok {
		return toStringSlice(queries, 3)
	}
	// Some models put the list under another key; check common alternates.
	for _, key := range []string{"result", "data"} {
		if queries, ok := raw[key].([]any); ok {
			return toStringSlice(queries, 3)
		}
	}
	return nil
}

func toStringSlice(items []any, max int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
		if len(out) >= max {
			break
		}
	}
	return out
}

// llmChatter is the narrow seam enricher depends on (satisfied by
// llmprovider.Provider), kept local so this package doesn't need to import
// llmprovider just for the interface name.
type llmChatter interface {
	ChatJSON(ctx context.Context, system, user string, temperature float64) map[string]any
}
