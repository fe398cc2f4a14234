package automations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rhordoan/logpulse/pkg/broker"
)

const (
	group    = "automations"
	consumer = "auto_1"
	batch    = 50
)

// Alert is the normalized shape matched against rules, built from the raw
// alerts stream fields.
type Alert struct {
	ID          string
	OS          string
	IssueKey    string
	FailureType string
	Confidence  float64
	Result      map[string]any
}

// providerFunc dispatches one automation action; params come from the
// matched rule, alert is the triggering alert.
type providerFunc func(ctx context.Context, client *http.Client, params map[string]any, alert Alert) error

var providers = map[string]providerFunc{
	"ansible_tower":   ansibleTower,
	"terraform_cloud": terraformCloud,
	"servicenow":      serviceNow,
}

// Status reports the runner's live counters, mirroring the teacher's
// get_status() shape for the API to surface.
type Status struct {
	Enabled         bool             `json:"enabled"`
	DryRun          bool             `json:"dry_run"`
	TotalTriggered  int64            `json:"total_triggered"`
	ProviderCounts  map[string]int64 `json:"provider_counts"`
	LastTriggeredAt time.Time        `json:"last_triggered_at"`
}

// Runner consumes the alerts stream, matches rules, and dispatches actions.
type Runner struct {
	broker *broker.Broker
	rules  *Store
	client *http.Client

	mu      sync.Mutex
	enabled bool
	dryRun  bool
	status  Status
}

// NewRunner builds a Runner. enabled/dryRun seed the initial runtime state
// (overridable at runtime via SetEnabled/SetDryRun, mirroring the teacher's
// API-controlled toggles).
func NewRunner(b *broker.Broker, rules *Store, enabled, dryRun bool) *Runner {
	return &Runner{
		broker:  b,
		rules:   rules,
		client:  &http.Client{Timeout: 30 * time.Second},
		enabled: enabled,
		dryRun:  dryRun,
		status:  Status{Enabled: enabled, DryRun: dryRun, ProviderCounts: map[string]int64{}},
	}
}

// SetEnabled toggles whether the runner dispatches actions at all.
func (r *Runner) SetEnabled(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = v
	r.status.Enabled = v
}

// SetDryRun toggles whether matched actions are only logged.
func (r *Runner) SetDryRun(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dryRun = v
	r.status.DryRun = v
}

// Status returns a snapshot of the runner's counters.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64, len(r.status.ProviderCounts))
	for k, v := range r.status.ProviderCounts {
		counts[k] = v
	}
	return Status{
		Enabled:         r.enabled,
		DryRun:          r.dryRun,
		TotalTriggered:  r.status.TotalTriggered,
		ProviderCounts:  counts,
		LastTriggeredAt: r.status.LastTriggeredAt,
	}
}

// Run creates the consumer group and processes alerts until ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.broker.CreateGroup(ctx, "alerts", group, "$"); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.mu.Lock()
		enabled := r.enabled
		r.mu.Unlock()
		if !enabled {
			time.Sleep(time.Second)
			continue
		}

		streams, err := r.broker.ReadGroup(ctx, broker.ReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{"alerts"},
			Count:    batch,
			Block:    time.Second,
		})
		if err != nil {
			return err
		}
		msgs := streams["alerts"]
		if len(msgs) == 0 {
			continue
		}

		ackIDs := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			r.processAlert(ctx, msg)
			ackIDs = append(ackIDs, msg.ID)
		}
		if err := r.broker.Ack(ctx, "alerts", group, ackIDs...); err != nil {
			slog.Error("automations: ack failed", "error", err)
		}
	}
}

func (r *Runner) processAlert(ctx context.Context, msg broker.Message) {
	alert := Alert{
		ID:          msg.ID,
		OS:          msg.Fields["os"],
		IssueKey:    msg.Fields["issue_key"],
		FailureType: msg.Fields["failure_type"],
		Result:      map[string]any{},
	}
	if v, err := strconv.ParseFloat(msg.Fields["confidence"], 64); err == nil {
		alert.Confidence = v
	}
	if raw := msg.Fields["result"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &alert.Result)
	}
	if alert.FailureType == "" {
		if ft, ok := alert.Result["failure_type"].(string); ok {
			alert.FailureType = ft
		}
	}

	rules, err := r.rules.Rules()
	if err != nil {
		slog.Error("automations: load rules failed", "error", err)
		return
	}

	for _, rule := range rules {
		if !matches(rule, alert) {
			continue
		}
		key := alert.IssueKey
		if key == "" {
			key = alert.ID
		}
		acquired, err := r.broker.SetNXTTL(ctx, fmt.Sprintf("auto:cooldown:%s:%s", rule.ID, key), "1", cooldownDuration(rule.Cooldown))
		if err != nil {
			slog.Error("automations: cooldown check failed", "rule", rule.ID, "error", err)
			continue
		}
		if !acquired {
			continue
		}
		r.trigger(ctx, rule, alert)
	}
}

func matches(rule Rule, alert Alert) bool {
	if rule.Match.FailureType != "" && rule.Match.FailureType != alert.FailureType {
		return false
	}
	if rule.Match.IssueKey != "" && rule.Match.IssueKey != alert.IssueKey {
		return false
	}
	return alert.Confidence >= rule.Match.MinConfidence
}

func cooldownDuration(spec string) time.Duration {
	if spec == "" {
		return 15 * time.Minute
	}
	if n, err := strconv.Atoi(spec); err == nil {
		return time.Duration(n) * time.Second
	}
	unit := spec[len(spec)-1]
	numPart := spec[:len(spec)-1]
	n, err := strconv.Atoi(numPart)
	if err != nil {
		if n2, err2 := strconv.Atoi(spec); err2 == nil {
			return time.Duration(n2) * time.Second
		}
		return 15 * time.Minute
	}
	switch unit {
	case 'm', 'M':
		return time.Duration(n) * time.Minute
	case 'h', 'H':
		return time.Duration(n) * time.Hour
	default:
		return time.Duration(n) * time.Second
	}
}

func (r *Runner) trigger(ctx context.Context, rule Rule, alert Alert) {
	r.mu.Lock()
	dryRun := r.dryRun
	r.mu.Unlock()

	if dryRun {
		slog.Info("automations: dry-run would trigger", "provider", rule.Action.Provider, "rule", rule.ID, "alert", alert.ID)
	} else {
		provider, ok := providers[rule.Action.Provider]
		if !ok {
			slog.Warn("automations: unknown provider", "provider", rule.Action.Provider, "rule", rule.ID)
			return
		}
		if err := provider(ctx, r.client, rule.Action.Params, alert); err != nil {
			slog.Error("automations: provider call failed", "provider", rule.Action.Provider, "rule", rule.ID, "error", err)
			return
		}
	}

	r.mu.Lock()
	r.status.TotalTriggered++
	r.status.ProviderCounts[rule.Action.Provider]++
	r.status.LastTriggeredAt = time.Now()
	r.mu.Unlock()
}

// render substitutes {{ alert.<field> }} and {{ alert.result.<field> }}
// placeholders with scalar values from alert, matching the teacher's
// template shape.
func render(template string, alert Alert) string {
	out := template
	out = strings.ReplaceAll(out, "{{ alert.id }}", alert.ID)
	out = strings.ReplaceAll(out, "{{ alert.os }}", alert.OS)
	out = strings.ReplaceAll(out, "{{ alert.issue_key }}", alert.IssueKey)
	out = strings.ReplaceAll(out, "{{ alert.failure_type }}", alert.FailureType)
	out = strings.ReplaceAll(out, "{{ alert.confidence }}", fmt.Sprintf("%v", alert.Confidence))
	for k, v := range alert.Result {
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		out = strings.ReplaceAll(out, fmt.Sprintf("{{ alert.result.%s }}", k), fmt.Sprintf("%v", v))
	}
	return out
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("provider call to %s returned status %d", url, resp.StatusCode)
	}
	return nil
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func ansibleTower(ctx context.Context, client *http.Client, params map[string]any, alert Alert) error {
	base := strings.TrimRight(stringParam(params, "base_url"), "/")
	jobTemplateID := stringParam(params, "job_template_id")
	if base == "" || jobTemplateID == "" {
		return nil
	}
	url := fmt.Sprintf("%s/api/v2/job_templates/%s/launch/", base, jobTemplateID)
	headers := map[string]string{}
	if token := stringParam(params, "token"); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	extraVars := map[string]any{}
	if raw, ok := params["extra_vars"].(map[string]any); ok {
		for k, v := range raw {
			extraVars[k] = render(fmt.Sprintf("%v", v), alert)
		}
	}
	return postJSON(ctx, client, url, headers, map[string]any{"extra_vars": extraVars})
}

func terraformCloud(ctx context.Context, client *http.Client, params map[string]any, alert Alert) error {
	workspaceID := stringParam(params, "workspace_id")
	if workspaceID == "" {
		return nil
	}
	headers := map[string]string{}
	if token := stringParam(params, "token"); token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	message := stringParam(params, "message")
	if message == "" {
		message = "Automated run"
	}
	payload := map[string]any{
		"data": map[string]any{
			"type":       "runs",
			"attributes": map[string]any{"message": render(message, alert), "plan-only": false},
			"relationships": map[string]any{
				"workspace": map[string]any{"data": map[string]any{"type": "workspaces", "id": workspaceID}},
			},
		},
	}
	return postJSON(ctx, client, "https://app.terraform.io/api/v2/runs", headers, payload)
}

func serviceNow(ctx context.Context, client *http.Client, params map[string]any, alert Alert) error {
	base := strings.TrimRight(stringParam(params, "base_url"), "/")
	if base == "" {
		return nil
	}
	table := stringParam(params, "table")
	if table == "" {
		table = "incident"
	}
	payload := map[string]any{}
	if raw, ok := params["payload"].(map[string]any); ok {
		for k, v := range raw {
			payload[k] = render(fmt.Sprintf("%v", v), alert)
		}
	}
	headers := map[string]string{}
	user, password := stringParam(params, "user"), stringParam(params, "password")
	if user != "" || password != "" {
		req, _ := http.NewRequest(http.MethodPost, "", nil)
		req.SetBasicAuth(user, password)
		headers["Authorization"] = req.Header.Get("Authorization")
	}
	return postJSON(ctx, client, fmt.Sprintf("%s/api/now/table/%s", base, table), headers, payload)
}
