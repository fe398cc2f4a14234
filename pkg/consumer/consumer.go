// Package consumer implements the log-ingestion consumer group (§4.2): it
// reads raw log/metric lines off the shared stream, routes metric-shaped
// payloads through the vendor normalizer registry, parses and templates
// everything else, upserts into the per-OS vector store, and flags
// candidate lines for the issue pipeline when a rule-based signal fires or
// the nearest prototype is too far away.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/config"
	"github.com/rhordoan/logpulse/pkg/datasource"
	"github.com/rhordoan/logpulse/pkg/embedding"
	"github.com/rhordoan/logpulse/pkg/failurerules"
	"github.com/rhordoan/logpulse/pkg/models"
	"github.com/rhordoan/logpulse/pkg/normalizers"
	"github.com/rhordoan/logpulse/pkg/parsing"
	"github.com/rhordoan/logpulse/pkg/templating"
	"github.com/rhordoan/logpulse/pkg/vectorstore"
)

const (
	group    = "log_consumers"
	consumer = "consumer-1"
	batch    = 50
)

// metricKinds maps a LogRecord kind prefix onto the normalizer registry key
// used to dispatch its payload, per §4.2 step 2.
var metricKinds = map[string]string{
	"snmp":         "snmp",
	"redfish":      "redfish",
	"telegraf":     "telegraf",
	"catalyst":     "catalyst",
	"bluecat":      "bluecat",
	"dcim_http":    "dcim_http",
	"scom":         "scom",
	"squaredup":    "squaredup",
	"thousandeyes": "thousandeyes",
}

// Consumer owns the log_consumers group's independent cursor over the raw
// stream.
type Consumer struct {
	broker      *broker.Broker
	store       *vectorstore.Store
	embedder    embedding.Provider
	rules       *failurerules.Library
	normalizers *normalizers.Registry
	dsRepo      datasource.Repository
	thresholds  config.Thresholds
	toggles     config.Toggles
}

// New builds a Consumer; rules and normalizers use their own defaults if
// nil is passed for brevity at call sites that don't need to override them.
func New(b *broker.Broker, store *vectorstore.Store, embedder embedding.Provider, rules *failurerules.Library, reg *normalizers.Registry, dsRepo datasource.Repository, thresholds config.Thresholds, toggles config.Toggles) *Consumer {
	if rules == nil {
		rules = failurerules.Load()
	}
	if reg == nil {
		reg = normalizers.NewRegistry()
	}
	return &Consumer{
		broker:      b,
		store:       store,
		embedder:    embedder,
		rules:       rules,
		normalizers: reg,
		dsRepo:      dsRepo,
		thresholds:  thresholds,
		toggles:     toggles,
	}
}

// Run creates the consumer group and loops until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.broker.CreateGroup(ctx, broker.StreamName, group, "0"); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := c.broker.ReadGroup(ctx, broker.ReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{broker.StreamName},
			Count:    batch,
			Block:    time.Second,
		})
		if err != nil {
			return err
		}
		msgs := streams[broker.StreamName]
		if len(msgs) == 0 {
			continue
		}
		c.processBatch(ctx, msgs)
	}
}

func (c *Consumer) processBatch(ctx context.Context, msgs []broker.Message) {
	ackIDs := make([]string, 0, len(msgs))
	type logDocBatch struct {
		os   string
		docs []models.LogDoc
	}
	byOS := map[string]*logDocBatch{}

	for _, msg := range msgs {
		ackIDs = append(ackIDs, msg.ID)

		record := models.LogRecord{
			Source:   msg.Fields["source"],
			Line:     msg.Fields["line"],
			SourceID: msg.Fields["source_id"],
		}
		kind := record.Kind()

		if normKey, ok := c.metricKind(kind); ok {
			c.handleMetric(ctx, record, normKey)
			continue
		}

		osName := parsing.InferOS(kind, record.Source)
		parsed := parsing.Parse(osName, record.Line)
		templated := templating.Line(parsed.Component, parsed.PID, parsed.Content)

		docText := templated
		if templated == "" {
			docText = record.Line
		}

		batchEntry, ok := byOS[osName]
		if !ok {
			batchEntry = &logDocBatch{os: osName}
			byOS[osName] = batchEntry
		}
		batchEntry.docs = append(batchEntry.docs, models.LogDoc{
			ID:       msg.ID,
			Document: docText,
			Metadata: models.LogDocMetadata{
				OS:        osName,
				Source:    record.Source,
				Raw:       record.Line,
				Component: parsed.Component,
				PID:       parsed.PID,
				Level:     parsed.Level,
			},
		})

		c.evaluateCandidate(ctx, osName, record, parsed, templated)
	}

	for _, b := range byOS {
		c.upsertLogs(ctx, b.os, b.docs)
	}

	if err := c.broker.Ack(ctx, broker.StreamName, group, ackIDs...); err != nil {
		slog.Error("consumer: ack failed", "error", err)
	}
}

func (c *Consumer) metricKind(kind string) (string, bool) {
	for prefix, norm := range metricKinds {
		if len(kind) >= len(prefix) && kind[:len(prefix)] == prefix {
			return norm, true
		}
	}
	return "", false
}

func (c *Consumer) handleMetric(ctx context.Context, record models.LogRecord, normKey string) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(record.Line), &payload); err != nil {
		slog.Info("consumer: metric payload not json", "kind", normKey, "error", err)
		return
	}

	var dsConfig map[string]any
	if record.SourceID != "" {
		if row, err := c.dsRepo.Get(ctx, record.SourceID); err == nil {
			dsConfig = row.Config
		}
	}

	points := c.normalizers.Normalize(normKey, payload, dsConfig)
	for _, p := range points {
		attrs, err := json.Marshal(p.Attributes)
		if err != nil {
			attrs = []byte("{}")
		}
		resource, err := json.Marshal(p.Resource)
		if err != nil {
			resource = []byte("{}")
		}
		fields := map[string]any{
			"name":       p.Name,
			"type":       p.Type,
			"value":      p.Value,
			"unit":       p.Unit,
			"time":       p.TimeUnixNano,
			"resource":   string(resource),
			"attributes": string(attrs),
		}
		if _, err := c.broker.Append(ctx, "metrics", fields); err != nil {
			slog.Error("consumer: metrics append failed", "error", err)
		}
	}
}

func (c *Consumer) upsertLogs(ctx context.Context, osName string, docs []models.LogDoc) {
	if len(docs) == 0 {
		return
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Document
	}
	embeddings, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		slog.Error("consumer: embed failed", "os", osName, "count", len(docs), "error", err)
		return
	}

	collection := vectorstore.CollectionName(vectorstore.CollectionForOS("logs_", osName), c.embedder.ID())
	req := vectorstore.UpsertRequest{
		IDs:        make([]string, len(docs)),
		Documents:  texts,
		Embeddings: embeddings,
		Metadatas:  make([]vectorstore.Metadata, len(docs)),
	}
	for i, d := range docs {
		req.IDs[i] = d.ID
		req.Metadatas[i] = vectorstore.Metadata{
			"os":         d.Metadata.OS,
			"source":     d.Metadata.Source,
			"raw":        d.Metadata.Raw,
			"component":  d.Metadata.Component,
			"pid":        d.Metadata.PID,
			"level":      d.Metadata.Level,
			"cluster_id": d.Metadata.ClusterID,
		}
	}

	if err := c.store.Upsert(ctx, collection, req); err != nil {
		slog.Error("consumer: collection upsert failed", "collection", collection, "error", err)
	}
}

func (c *Consumer) evaluateCandidate(ctx context.Context, osName string, record models.LogRecord, parsed models.ParsedLog, templated string) {
	if !c.toggles.EnablePerLineCandidates {
		return
	}

	signal := c.rules.Match(templated + " " + record.Line)

	isCandidate := signal.HasSignal
	if !isCandidate {
		nearest, distance, found := c.nearestPrototype(ctx, osName, templated)
		if !found || distance > c.thresholds.NearestProtoThreshold {
			isCandidate = true
		}
		_ = nearest
	}
	if !isCandidate {
		return
	}

	candidateID := "cand_" + uuid.NewString()
	payload := map[string]any{
		"os":                osName,
		"issue_key":         models.IssueKey(osName, parsed.Component, parsed.PID),
		"templated_summary": templated,
		"raw":               record.Line,
		"id":                candidateID,
	}
	if _, err := c.broker.Append(ctx, "issues_candidates", payload); err != nil {
		slog.Error("consumer: issues_candidates append failed", "error", err)
	}
}

func (c *Consumer) nearestPrototype(ctx context.Context, osName, templated string) (id string, distance float64, found bool) {
	collection := vectorstore.CollectionName(vectorstore.CollectionForOS("proto_", osName), c.embedder.ID())
	result, err := c.store.Query(ctx, collection, vectorstore.QueryRequest{
		QueryTexts: []string{templated},
		NResults:   1,
		Include:    []string{"distances", "documents"},
	})
	if err != nil || len(result.IDs) == 0 || len(result.IDs[0]) == 0 {
		return "", 0, false
	}
	d := result.Distances[0][0]
	if d != d { // NaN guard: non-finite distances are treated as missing.
		return "", 0, false
	}
	return result.IDs[0][0], d, true
}
