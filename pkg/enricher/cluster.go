package enricher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/embedding"
	"github.com/rhordoan/logpulse/pkg/models"
	"github.com/rhordoan/logpulse/pkg/vectorstore"
)

const (
	clusterGroup    = "clusters_enrichers"
	clusterConsumer = "cluster-enricher-1"
	clusterBatch    = 20
	clusterTopK     = 10
)

// ClusterEnricher implements §4.7: consumer group over clusters_candidates.
type ClusterEnricher struct {
	broker   *broker.Broker
	store    *vectorstore.Store
	embedder embedding.Provider
	llm      llmChatter
	alertTTL time.Duration
}

// NewClusterEnricher builds a ClusterEnricher.
func NewClusterEnricher(b *broker.Broker, store *vectorstore.Store, embedder embedding.Provider, llm llmChatter, alertTTL time.Duration) *ClusterEnricher {
	return &ClusterEnricher{broker: b, store: store, embedder: embedder, llm: llm, alertTTL: alertTTL}
}

// Run creates the consumer group and processes cluster candidates until ctx ends.
func (e *ClusterEnricher) Run(ctx context.Context) error {
	if err := e.broker.CreateGroup(ctx, "clusters_candidates", clusterGroup, "0"); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := e.broker.ReadGroup(ctx, broker.ReadGroupArgs{
			Group:    clusterGroup,
			Consumer: clusterConsumer,
			Streams:  []string{"clusters_candidates"},
			Count:    clusterBatch,
			Block:    time.Second,
		})
		if err != nil {
			return err
		}
		msgs := streams["clusters_candidates"]
		if len(msgs) == 0 {
			continue
		}

		ackIDs := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			e.processCandidate(ctx, msg)
			ackIDs = append(ackIDs, msg.ID)
		}
		if err := e.broker.Ack(ctx, "clusters_candidates", clusterGroup, ackIDs...); err != nil {
			slog.Error("cluster enricher: ack failed", "error", err)
		}
	}
}

func (e *ClusterEnricher) processCandidate(ctx context.Context, msg broker.Message) {
	osName := msg.Fields["os"]
	clusterID := msg.Fields["cluster_id"]
	if osName == "" || clusterID == "" {
		return
	}

	protoCollection := vectorstore.CollectionName(vectorstore.CollectionForOS("proto_", osName), e.embedder.ID())
	protoRows, err := e.store.Get(ctx, protoCollection, vectorstore.GetRequest{
		IDs:     []string{clusterID},
		Include: []string{"documents", "embeddings", "metadatas"},
	})
	if err != nil || len(protoRows.IDs) == 0 {
		slog.Warn("cluster enricher: prototype not found", "os", osName, "cluster_id", clusterID)
		return
	}
	medoidText := ""
	if len(protoRows.Documents) > 0 {
		medoidText = protoRows.Documents[0]
	}

	neighbors, _ := e.store.Query(ctx, protoCollection, vectorstore.QueryRequest{
		QueryTexts: []string{medoidText},
		NResults:   5,
		Include:    []string{"documents"},
	})
	var neighborDocs []string
	if len(neighbors.Documents) > 0 {
		neighborDocs = neighbors.Documents[0]
	}

	queries := hydeQueries(ctx, e.llm, medoidText)
	if len(queries) == 0 {
		queries = []string{medoidText}
	}

	logsCollection := vectorstore.CollectionName(vectorstore.CollectionForOS("logs_", osName), e.embedder.ID())
	seen := map[string]struct{}{}
	var clusterLogs []string
	for _, q := range queries {
		res, err := e.store.Query(ctx, logsCollection, vectorstore.QueryRequest{
			QueryTexts: []string{q},
			NResults:   clusterTopK,
			Where:      map[string]any{"cluster_id": clusterID},
			Include:    []string{"documents"},
		})
		if err != nil || len(res.Documents) == 0 {
			continue
		}
		for _, doc := range res.Documents[0] {
			if _, ok := seen[doc]; !ok {
				seen[doc] = struct{}{}
				clusterLogs = append(clusterLogs, doc)
			}
		}
	}

	result := e.classify(ctx, medoidText, neighborDocs, clusterLogs)

	alert := models.Alert{
		Type:              models.AlertTypeCluster,
		OS:                osName,
		IsHardwareFailure: result.IsHardwareFailure,
		FailureType:       result.FailureType,
		Confidence:        result.Confidence,
		Result:            result,
	}
	publishAlert(ctx, e.broker, alert, e.alertTTL)

	e.updatePrototypeLabel(ctx, protoCollection, clusterID, protoRows, result)
}

func (e *ClusterEnricher) updatePrototypeLabel(ctx context.Context, collection, clusterID string, existing vectorstore.GetResult, result models.ClassifyResult) {
	meta := vectorstore.Metadata{}
	if len(existing.Metadatas) > 0 && existing.Metadatas[0] != nil {
		for k, v := range existing.Metadatas[0] {
			meta[k] = v
		}
	}
	meta["label"] = string(result.FailureType)
	meta["rationale"] = "llm_cluster"
	if result.Solution != "" {
		meta["solution"] = result.Solution
	}
	if err := e.store.Update(ctx, collection, []string{clusterID}, []vectorstore.Metadata{meta}); err != nil {
		slog.Error("cluster enricher: prototype label update failed", "cluster_id", clusterID, "error", err)
	}
}

func (e *ClusterEnricher) classify(ctx context.Context, medoid string, neighbors, logs []string) models.ClassifyResult {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Cluster medoid:\n%s\n", medoid)
	sb.WriteString("\nNeighboring cluster medoids:\n")
	for _, n := range neighbors {
		fmt.Fprintf(&sb, "- %s\n", n)
	}
	sb.WriteString("\nMember logs:\n")
	for _, l := range logs {
		fmt.Fprintf(&sb, "- %s\n", l)
	}

	system := `Classify this log cluster. Respond with strict JSON matching:
{"is_hardware_failure": bool, "failure_type": one of [disk, storage, raid, nvme, filesystem, io, cpu, memory, network, power, thermal, wifi, windows_update, service_failure, sandbox, application, configuration, security, dependency, kernel, driver, os_update, unknown], "confidence": 0..1, "top_signals": [string], "summary": string, "recommendation": string, "solution": string}`

	raw := e.llm.ChatJSON(ctx, system, sb.String(), 0.1)
	return parseClassifyResult(raw)
}
