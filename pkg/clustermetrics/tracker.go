// Package clustermetrics implements the cluster-metrics tracker (§4.8) and
// periodic metrics aggregator (§4.9): persisting per-OS quality snapshots and
// hourly online/LLM counters to the broker, then deriving low-quality and
// high-drift alerts from them. Grounded on
// original_source/app/services/cluster_metrics_service.py.
package clustermetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/clustering"
)

const sevenDays = 7 * 24 * time.Hour

// Tracker records the raw counters and snapshots that feed the aggregator.
type Tracker struct {
	broker    *broker.Broker
	costPer1K float64
}

// NewTracker builds a Tracker. costPer1K is LLM_COST_PER_1K_TOKENS.
func NewTracker(b *broker.Broker, costPer1K float64) *Tracker {
	return &Tracker{broker: b, costPer1K: costPer1K}
}

func hourBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02-15")
}

// RecordOnlineAssignment increments the hourly online-clustering counters
// for an OS: total_assignments always, new_clusters only when isNew.
func (t *Tracker) RecordOnlineAssignment(ctx context.Context, osName string, isNew bool) {
	key := fmt.Sprintf("cluster_metrics:online:%s:%s", osName, hourBucket(time.Now()))
	if _, err := t.broker.HIncrBy(ctx, key, "total_assignments", 1, sevenDays); err != nil {
		slog.Error("clustermetrics: online counter failed", "os", osName, "error", err)
		return
	}
	if isNew {
		if _, err := t.broker.HIncrBy(ctx, key, "new_clusters", 1, sevenDays); err != nil {
			slog.Error("clustermetrics: online new_clusters counter failed", "os", osName, "error", err)
		}
	}
}

// RecordLLMCall increments the hourly LLM counters: total_calls plus either
// successful_calls or failed_calls, total_tokens, total_latency_ms, and the
// derived total_cost_usd.
func (t *Tracker) RecordLLMCall(ctx context.Context, success bool, tokens, latencyMs int64) {
	key := "cluster_metrics:llm:" + hourBucket(time.Now())
	if _, err := t.broker.HIncrBy(ctx, key, "total_calls", 1, sevenDays); err != nil {
		slog.Error("clustermetrics: llm counter failed", "error", err)
		return
	}
	field := "failed_calls"
	if success {
		field = "successful_calls"
	}
	if _, err := t.broker.HIncrBy(ctx, key, field, 1, sevenDays); err != nil {
		slog.Error("clustermetrics: llm outcome counter failed", "error", err)
	}
	if _, err := t.broker.HIncrBy(ctx, key, "total_tokens", tokens, sevenDays); err != nil {
		slog.Error("clustermetrics: llm tokens counter failed", "error", err)
	}
	if _, err := t.broker.HIncrBy(ctx, key, "total_latency_ms", latencyMs, sevenDays); err != nil {
		slog.Error("clustermetrics: llm latency counter failed", "error", err)
	}
	cost := float64(tokens) / 1000.0 * t.costPer1K
	if _, err := t.broker.HIncrByFloat(ctx, key, "total_cost_usd", cost); err != nil {
		slog.Error("clustermetrics: llm cost counter failed", "error", err)
	}
}

// BatchSnapshot is the JSON shape persisted at cluster_metrics:batch:<os>:<ts>.
type BatchSnapshot struct {
	OS         string         `json:"os"`
	Timestamp  int64          `json:"ts"`
	Silhouette float64        `json:"silhouette"`
	Cohesion   float64        `json:"cohesion"`
	Separation float64        `json:"separation"`
	Sizes      map[string]int `json:"sizes"`
}

// SaveBatchSnapshot persists a quality report under the timestamped key (TTL
// 7 days) and updates the untyped "latest" pointer used by the aggregator.
func (t *Tracker) SaveBatchSnapshot(ctx context.Context, osName string, report clustering.QualityReport, at time.Time) error {
	snapshot := BatchSnapshot{
		OS:         osName,
		Timestamp:  at.Unix(),
		Silhouette: report.Silhouette,
		Cohesion:   report.Cohesion,
		Separation: report.Separation,
		Sizes:      report.Sizes,
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal batch snapshot: %w", err)
	}

	tsKey := fmt.Sprintf("cluster_metrics:batch:%s:%d", osName, at.Unix())
	if err := t.broker.SetJSON(ctx, tsKey, string(data), sevenDays); err != nil {
		return err
	}
	latestKey := "cluster_metrics:latest:batch:" + osName
	return t.broker.SetJSON(ctx, latestKey, string(data), 0)
}

// LatestBatchSnapshot reads back the most recent snapshot for osName, if any.
func (t *Tracker) LatestBatchSnapshot(ctx context.Context, osName string) (BatchSnapshot, bool, error) {
	raw, err := t.broker.Get(ctx, "cluster_metrics:latest:batch:"+osName)
	if err != nil {
		return BatchSnapshot{}, false, err
	}
	if raw == "" {
		return BatchSnapshot{}, false, nil
	}
	var snapshot BatchSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return BatchSnapshot{}, false, fmt.Errorf("decode latest batch snapshot: %w", err)
	}
	return snapshot, true, nil
}

// OnlineCounters reads the hourly online-clustering counters for osName at
// hour t, defaulting missing fields to zero.
func (t *Tracker) OnlineCounters(ctx context.Context, osName string, at time.Time) (totalAssignments, newClusters int64, err error) {
	key := fmt.Sprintf("cluster_metrics:online:%s:%s", osName, hourBucket(at))
	fields, err := t.broker.HGetAll(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	return parseInt(fields["total_assignments"]), parseInt(fields["new_clusters"]), nil
}

func parseInt(s string) int64 {
	var v int64
	_, _ = fmt.Sscanf(s, "%d", &v)
	return v
}
