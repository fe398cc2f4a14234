package enricher

import (
	"context"
	"encoding/json"
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
	issueGroup    = "issues_enrichers"
	issueConsumer = "issue-enricher-1"
	issueBatch    = 20
	topK          = 5
)

// IssueEnricher implements §4.6: consumer group over issues_candidates.
type IssueEnricher struct {
	broker   *broker.Broker
	store    *vectorstore.Store
	embedder embedding.Provider
	llm      llmChatter
	alertTTL time.Duration
}

// NewIssueEnricher builds an IssueEnricher.
func NewIssueEnricher(b *broker.Broker, store *vectorstore.Store, embedder embedding.Provider, llm llmChatter, alertTTL time.Duration) *IssueEnricher {
	return &IssueEnricher{broker: b, store: store, embedder: embedder, llm: llm, alertTTL: alertTTL}
}

// Run creates the consumer group and processes candidates until ctx ends.
func (e *IssueEnricher) Run(ctx context.Context) error {
	if err := e.broker.CreateGroup(ctx, "issues_candidates", issueGroup, "0"); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := e.broker.ReadGroup(ctx, broker.ReadGroupArgs{
			Group:    issueGroup,
			Consumer: issueConsumer,
			Streams:  []string{"issues_candidates"},
			Count:    issueBatch,
			Block:    time.Second,
		})
		if err != nil {
			return err
		}
		msgs := streams["issues_candidates"]
		if len(msgs) == 0 {
			continue
		}

		ackIDs := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			e.processCandidate(ctx, msg)
			ackIDs = append(ackIDs, msg.ID)
		}
		if err := e.broker.Ack(ctx, "issues_candidates", issueGroup, ackIDs...); err != nil {
			slog.Error("issue enricher: ack failed", "error", err)
		}
	}
}

func (e *IssueEnricher) processCandidate(ctx context.Context, msg broker.Message) {
	osName := msg.Fields["os"]
	issueKey := msg.Fields["issue_key"]
	summary := msg.Fields["templated_summary"]

	var logs []models.IssueLogEntry
	if raw := msg.Fields["logs"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &logs)
	}
	seedText := summary
	if seedText == "" && len(logs) > 0 {
		seedText = logs[0].Templated
	}

	templatesCollection := vectorstore.CollectionName(vectorstore.CollectionForOS("templates_", osName), e.embedder.ID())
	neighbors, _ := e.store.Query(ctx, templatesCollection, vectorstore.QueryRequest{
		QueryTexts: []string{seedText},
		NResults:   topK,
		Include:    []string{"documents"},
	})

	queries := hydeQueries(ctx, e.llm, seedText)

	logsCollection := vectorstore.CollectionName(vectorstore.CollectionForOS("logs_", osName), e.embedder.ID())
	retrieved := map[string]struct{}{}
	var retrievedDocs []string
	for _, q := range queries {
		res, err := e.store.Query(ctx, logsCollection, vectorstore.QueryRequest{
			QueryTexts: []string{q},
			NResults:   topK,
			Include:    []string{"documents"},
		})
		if err != nil || len(res.Documents) == 0 {
			continue
		}
		for _, doc := range res.Documents[0] {
			if _, seen := retrieved[doc]; !seen {
				retrieved[doc] = struct{}{}
				retrievedDocs = append(retrievedDocs, doc)
			}
		}
	}

	var neighborDocs []string
	if len(neighbors.Documents) > 0 {
		neighborDocs = neighbors.Documents[0]
	}

	result := e.classify(ctx, logs, neighborDocs, retrievedDocs)

	alert := models.Alert{
		Type:              models.AlertTypeIssue,
		OS:                osName,
		IssueKey:          issueKey,
		IsHardwareFailure: result.IsHardwareFailure,
		FailureType:       result.FailureType,
		Confidence:        result.Confidence,
		Result:            result,
	}
	publishAlert(ctx, e.broker, alert, e.alertTTL)
}

func (e *IssueEnricher) classify(ctx context.Context, logs []models.IssueLogEntry, neighbors, retrieved []string) models.ClassifyResult {
	var sb strings.Builder
	sb.WriteString("Issue logs:\n")
	for _, l := range logs {
		fmt.Fprintf(&sb, "- %s\n", l.Templated)
	}
	sb.WriteString("\nNearest known templates:\n")
	for _, n := range neighbors {
		fmt.Fprintf(&sb, "- %s\n", n)
	}
	sb.WriteString("\nRetrieved related logs:\n")
	for _, r := range retrieved {
		fmt.Fprintf(&sb, "- %s\n", r)
	}

	system := `Classify this issue. Respond with strict JSON matching:
{"is_hardware_failure": bool, "failure_type": one of [disk, storage, raid, nvme, filesystem, io, cpu, memory, network, power, thermal, wifi, windows_update, service_failure, sandbox, application, configuration, security, dependency, kernel, driver, os_update, unknown], "confidence": 0..1, "top_signals": [string], "summary": string, "recommendation": string}`

	raw := e.llm.ChatJSON(ctx, system, sb.String(), 0.1)
	return parseClassifyResult(raw)
}
