// Package aggregator implements the issue aggregator (§4.3): a second,
// independent consumer group over the raw log stream that runs the online
// clusterer, maintains an in-memory Issue map keyed by os|component|pid,
// and flushes idle issues as IssueCandidates.
package aggregator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/clustering"
	"github.com/rhordoan/logpulse/pkg/models"
	"github.com/rhordoan/logpulse/pkg/parsing"
	"github.com/rhordoan/logpulse/pkg/templating"
	"github.com/rhordoan/logpulse/pkg/vectorstore"
)

const (
	group    = "issues_aggregator"
	consumer = "aggregator-1"
	batch    = 50
)

// Aggregator owns the single-threaded in-memory Issue map; it must run as
// exactly one instance per the concurrency model's single-writer semantics.
type Aggregator struct {
	broker     *broker.Broker
	store      *vectorstore.Store
	online     *clustering.Online
	embedderID string

	clusterMinLogs int64
	issueIdle      time.Duration
	issueMaxLogs   int
	sweepEvery     time.Duration

	issues map[string]*models.Issue

	// publishFn defaults to publishCandidate; overridable in tests so
	// sweepIdle can be exercised without a live broker.
	publishFn func(ctx context.Context, candidate models.IssueCandidate)
}

// New builds an Aggregator.
func New(b *broker.Broker, store *vectorstore.Store, online *clustering.Online, embedderID string, clusterMinLogs int64, issueIdle time.Duration, issueMaxLogs int) *Aggregator {
	a := &Aggregator{
		broker:         b,
		store:          store,
		online:         online,
		embedderID:     embedderID,
		clusterMinLogs: clusterMinLogs,
		issueIdle:      issueIdle,
		issueMaxLogs:   issueMaxLogs,
		sweepEvery:     time.Second,
		issues:         make(map[string]*models.Issue),
	}
	a.publishFn = a.publishCandidate
	return a
}

// Run creates the group and processes batches, sweeping idle issues between
// reads.
func (a *Aggregator) Run(ctx context.Context) error {
	if err := a.broker.CreateGroup(ctx, broker.StreamName, group, "0"); err != nil {
		return err
	}

	ticker := time.NewTicker(a.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.sweepIdle(ctx)
		default:
		}

		streams, err := a.broker.ReadGroup(ctx, broker.ReadGroupArgs{
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

		ackIDs := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			a.processMessage(ctx, msg)
			ackIDs = append(ackIDs, msg.ID)
		}
		if err := a.broker.Ack(ctx, broker.StreamName, group, ackIDs...); err != nil {
			slog.Error("aggregator: ack failed", "error", err)
		}
	}
}

func (a *Aggregator) processMessage(ctx context.Context, msg broker.Message) {
	record := models.LogRecord{
		Source:   msg.Fields["source"],
		Line:     msg.Fields["line"],
		SourceID: msg.Fields["source_id"],
	}
	osName := parsing.InferOS(record.Kind(), record.Source)
	parsed := parsing.Parse(osName, record.Line)
	templated := templating.Line(parsed.Component, parsed.PID, parsed.Content)

	assignment, err := a.online.Assign(ctx, osName, templated, 0)
	if err != nil {
		slog.Error("aggregator: online assign failed", "os", osName, "error", err)
		return
	}

	a.updateLogMetadata(ctx, osName, msg.ID, assignment.ClusterID)

	key := models.IssueKey(osName, parsed.Component, parsed.PID)
	issue, ok := a.issues[key]
	if !ok {
		issue = &models.Issue{OS: osName, Key: key, CreatedAt: time.Now()}
		a.issues[key] = issue
	}
	issue.Append(models.IssueLogEntry{
		Raw:       record.Line,
		Templated: templated,
		Parsed:    parsed,
		Timestamp: time.Now(),
	})

	a.incrementClusterCount(ctx, osName, assignment.ClusterID)
}

func (a *Aggregator) updateLogMetadata(ctx context.Context, osName, streamID, clusterID string) {
	collection := vectorstore.CollectionName(vectorstore.CollectionForOS("logs_", osName), a.embedderID)
	existing, err := a.store.Get(ctx, collection, vectorstore.GetRequest{IDs: []string{streamID}, Include: []string{"metadatas"}})
	if err != nil || len(existing.Metadatas) == 0 {
		return // best-effort: silent if the row is not yet persisted.
	}
	meta := existing.Metadatas[0]
	meta["cluster_id"] = clusterID
	_ = a.store.Update(ctx, collection, []string{streamID}, []vectorstore.Metadata{meta})
}

func (a *Aggregator) incrementClusterCount(ctx context.Context, osName, clusterID string) {
	key := "cluster:count:" + osName + ":" + clusterID
	count, err := a.broker.Incr(ctx, key)
	if err != nil {
		slog.Error("aggregator: incr failed", "key", key, "error", err)
		return
	}
	if count == a.clusterMinLogs {
		payload := map[string]any{"os": osName, "cluster_id": clusterID}
		if _, err := a.broker.Append(ctx, "clusters_candidates", payload); err != nil {
			slog.Error("aggregator: clusters_candidates append failed", "error", err)
		}
	}
}

func (a *Aggregator) sweepIdle(ctx context.Context) {
	now := time.Now()
	for key, issue := range a.issues {
		if !issue.Idle(now, a.issueIdle) {
			continue
		}
		logs := models.CapLogs(issue.Logs, a.issueMaxLogs)
		summary := ""
		if len(logs) > 0 {
			summary = logs[len(logs)-1].Templated
		}
		candidate := models.IssueCandidate{
			OS:               issue.OS,
			IssueKey:         issue.Key,
			TemplatedSummary: summary,
			Logs:             logs,
		}
		a.publishFn(ctx, candidate)
		delete(a.issues, key)
	}
}

func (a *Aggregator) publishCandidate(ctx context.Context, candidate models.IssueCandidate) {
	data, err := json.Marshal(candidate.Logs)
	if err != nil {
		slog.Error("aggregator: marshal issue candidate logs failed", "error", err)
		return
	}
	payload := map[string]any{
		"os":                candidate.OS,
		"issue_key":         candidate.IssueKey,
		"templated_summary": candidate.TemplatedSummary,
		"logs":              string(data),
	}
	if _, err := a.broker.Append(ctx, "issues_candidates", payload); err != nil {
		slog.Error("aggregator: issues_candidates append failed", "error", err)
	}
}
