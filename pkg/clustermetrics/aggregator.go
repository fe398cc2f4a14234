package clustermetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/config"
	"github.com/rhordoan/logpulse/pkg/models"
	"github.com/rhordoan/logpulse/pkg/vectorstore"
)

// AggregatedPrototypes is the JSON shape persisted at
// cluster_metrics:aggregated:<os>:latest, per §4.9.
type AggregatedPrototypes struct {
	TotalClusters     int            `json:"total_clusters"`
	Labeled           int            `json:"labeled"`
	Unlabeled         int            `json:"unlabeled"`
	MinSize           int            `json:"min_size"`
	MaxSize           int            `json:"max_size"`
	MeanSize          float64        `json:"mean_size"`
	LabelDistribution map[string]int `json:"label_distribution"`
}

// Aggregator periodically aggregates prototype collections per OS and emits
// low_quality/high_drift alerts when thresholds are crossed.
type Aggregator struct {
	broker     *broker.Broker
	store      *vectorstore.Store
	tracker    *Tracker
	embedderID string
	thresholds config.Thresholds
	oses       []string
}

// NewAggregator builds an Aggregator watching the given OS keys.
func NewAggregator(b *broker.Broker, store *vectorstore.Store, tracker *Tracker, embedderID string, thresholds config.Thresholds, oses []string) *Aggregator {
	return &Aggregator{broker: b, store: store, tracker: tracker, embedderID: embedderID, thresholds: thresholds, oses: oses}
}

// Run loops every MetricsAggregationInterval until ctx ends.
func (a *Aggregator) Run(ctx context.Context) error {
	interval := a.thresholds.MetricsAggregationInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *Aggregator) runOnce(ctx context.Context) {
	for _, osName := range a.oses {
		if err := a.aggregateOS(ctx, osName); err != nil {
			slog.Error("clustermetrics: aggregate failed", "os", osName, "error", err)
		}
	}
}

func (a *Aggregator) aggregateOS(ctx context.Context, osName string) error {
	collection := vectorstore.CollectionName(vectorstore.CollectionForOS("proto_", osName), a.embedderID)
	rows, err := a.store.Get(ctx, collection, vectorstore.GetRequest{Include: []string{"metadatas"}})
	if err != nil {
		return fmt.Errorf("get prototypes %s: %w", osName, err)
	}

	agg := AggregatedPrototypes{LabelDistribution: map[string]int{}}
	agg.TotalClusters = len(rows.IDs)
	for _, meta := range rows.Metadatas {
		label, _ := meta["label"].(string)
		if label == "" || label == "unknown" {
			agg.Unlabeled++
			label = "unknown"
		} else {
			agg.Labeled++
		}
		agg.LabelDistribution[label]++

		size := 0
		switch v := meta["size"].(type) {
		case float64:
			size = int(v)
		case int:
			size = v
		}
		if agg.MinSize == 0 || size < agg.MinSize {
			agg.MinSize = size
		}
		if size > agg.MaxSize {
			agg.MaxSize = size
		}
		agg.MeanSize += float64(size)
	}
	if agg.TotalClusters > 0 {
		agg.MeanSize /= float64(agg.TotalClusters)
	}

	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("marshal aggregated prototypes: %w", err)
	}
	if err := a.broker.SetJSON(ctx, "cluster_metrics:aggregated:"+osName+":latest", string(data), 0); err != nil {
		return err
	}

	a.checkQuality(ctx, osName)
	a.checkDrift(ctx, osName)
	return nil
}

func (a *Aggregator) checkQuality(ctx context.Context, osName string) {
	snapshot, ok, err := a.tracker.LatestBatchSnapshot(ctx, osName)
	if err != nil || !ok {
		return
	}
	if snapshot.Silhouette >= a.thresholds.ClusterQualityThreshold {
		return
	}
	alert := models.Alert{
		Type:      models.AlertTypeLowQuality,
		OS:        osName,
		Severity:  "warning",
		Metric:    "silhouette",
		Value:     snapshot.Silhouette,
		Threshold: a.thresholds.ClusterQualityThreshold,
	}
	if _, err := a.broker.Append(ctx, "alerts", alertFields(alert)); err != nil {
		slog.Error("clustermetrics: low_quality alert append failed", "os", osName, "error", err)
	}
}

func (a *Aggregator) checkDrift(ctx context.Context, osName string) {
	window := a.thresholds.DriftDetectionWindow
	if window <= 0 {
		window = time.Hour
	}
	hours := int(window / time.Hour)
	if hours < 1 {
		hours = 1
	}

	var totalAssignments, newClusters int64
	now := time.Now()
	for i := 0; i < hours; i++ {
		at := now.Add(-time.Duration(i) * time.Hour)
		total, fresh, err := a.tracker.OnlineCounters(ctx, osName, at)
		if err != nil {
			continue
		}
		totalAssignments += total
		newClusters += fresh
	}
	if totalAssignments == 0 {
		return
	}
	rate := float64(newClusters) / float64(totalAssignments)
	if rate <= a.thresholds.DriftRateThreshold {
		return
	}

	alert := models.Alert{
		Type:      models.AlertTypeHighDrift,
		OS:        osName,
		Severity:  "warning",
		Metric:    "new_cluster_rate",
		Value:     rate,
		Threshold: a.thresholds.DriftRateThreshold,
	}
	if _, err := a.broker.Append(ctx, "alerts", alertFields(alert)); err != nil {
		slog.Error("clustermetrics: high_drift alert append failed", "os", osName, "error", err)
	}
}

func alertFields(alert models.Alert) map[string]any {
	return map[string]any{
		"type":      string(alert.Type),
		"os":        alert.OS,
		"severity":  alert.Severity,
		"metric":    alert.Metric,
		"value":     alert.Value,
		"threshold": alert.Threshold,
	}
}
