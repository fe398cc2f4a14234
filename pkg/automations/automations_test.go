package automations

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreUpsertAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "automations.yml"))

	rule := Rule{
		ID:       "r1",
		Match:    Match{FailureType: "disk", MinConfidence: 0.8},
		Cooldown: "15m",
		Action:   Action{Provider: "servicenow", Params: map[string]any{"base_url": "https://example.test"}},
	}
	if err := store.Upsert(rule); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	rules, err := store.Rules()
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "r1" {
		t.Fatalf("rules = %+v, want one rule r1", rules)
	}

	updated := rule
	updated.Cooldown = "1h"
	if err := store.Upsert(updated); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	rules, _ = store.Rules()
	if len(rules) != 1 || rules[0].Cooldown != "1h" {
		t.Fatalf("expected replace-in-place, got %+v", rules)
	}

	ok, err := store.Delete("r1")
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	rules, _ = store.Rules()
	if len(rules) != 0 {
		t.Fatalf("expected empty rules after delete, got %+v", rules)
	}
}

func TestStoreMissingFileReturnsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.yml"))
	rules, err := store.Rules()
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("rules = %+v, want empty", rules)
	}
}

func TestMatchesFailureTypeAndConfidence(t *testing.T) {
	rule := Rule{Match: Match{FailureType: "disk", MinConfidence: 0.8}}

	if !matches(rule, Alert{FailureType: "disk", Confidence: 0.9}) {
		t.Error("expected match")
	}
	if matches(rule, Alert{FailureType: "disk", Confidence: 0.5}) {
		t.Error("expected no match on low confidence")
	}
	if matches(rule, Alert{FailureType: "network", Confidence: 0.9}) {
		t.Error("expected no match on different failure_type")
	}
}

func TestMatchesIssueKey(t *testing.T) {
	rule := Rule{Match: Match{IssueKey: "linux|sshd|123"}}
	if !matches(rule, Alert{IssueKey: "linux|sshd|123"}) {
		t.Error("expected match on issue key")
	}
	if matches(rule, Alert{IssueKey: "linux|sshd|456"}) {
		t.Error("expected no match on different issue key")
	}
}

func TestCooldownDurationParsesUnits(t *testing.T) {
	cases := map[string]time.Duration{
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"30":  30 * time.Second,
		"":    15 * time.Minute,
	}
	for spec, want := range cases {
		if got := cooldownDuration(spec); got != want {
			t.Errorf("cooldownDuration(%q) = %v, want %v", spec, got, want)
		}
	}
}

func TestRenderSubstitutesAlertFields(t *testing.T) {
	alert := Alert{ID: "alert_1", OS: "linux", Result: map[string]any{"summary": "disk errors"}}
	got := render("id={{ alert.id }} os={{ alert.os }} summary={{ alert.result.summary }}", alert)
	want := "id=alert_1 os=linux summary=disk errors"
	if got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}
