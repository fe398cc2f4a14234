package enricher

import (
	"context"
	"testing"

	"github.com/rhordoan/logpulse/pkg/models"
)

type fakeLLM struct {
	response map[string]any
}

func (f fakeLLM) ChatJSON(ctx context.Context, system, user string, temperature float64) map[string]any {
	return f.response
}

func TestParseClassifyResultDecodesWellFormedResponse(t *testing.T) {
	raw := map[string]any{
		"is_hardware_failure": true,
		"failure_type":        "disk",
		"confidence":          0.9,
		"summary":             "disk read errors",
	}
	result := parseClassifyResult(raw)
	if !result.IsHardwareFailure {
		t.Error("expected IsHardwareFailure = true")
	}
	if result.FailureType != models.FailureDisk {
		t.Errorf("FailureType = %q, want %q", result.FailureType, models.FailureDisk)
	}
	if result.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", result.Confidence)
	}
}

func TestParseClassifyResultDefaultsMissingFailureType(t *testing.T) {
	result := parseClassifyResult(map[string]any{"confidence": 0.2})
	if result.FailureType != models.FailureUnknown {
		t.Errorf("FailureType = %q, want %q", result.FailureType, models.FailureUnknown)
	}
}

func TestParseClassifyResultCarriesProviderError(t *testing.T) {
	result := parseClassifyResult(map[string]any{"error": "timeout", "raw": "partial response"})
	if result.Error != "timeout" || result.Raw != "partial response" {
		t.Errorf("Error/Raw = %q/%q, want timeout/partial response", result.Error, result.Raw)
	}
	if result.FailureType != models.FailureUnknown {
		t.Errorf("FailureType = %q, want %q", result.FailureType, models.FailureUnknown)
	}
}

func TestHydeQueriesParsesQueriesKey(t *testing.T) {
	llm := fakeLLM{response: map[string]any{
		"queries": []any{"disk read error", "ata bus reset"},
	}}
	got := hydeQueries(context.Background(), llm, "seed")
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0] != "disk read error" {
		t.Errorf("got[0] = %q", got[0])
	}
}

func TestHydeQueriesFallsBackToResultKey(t *testing.T) {
	llm := fakeLLM{response: map[string]any{
		"result": []any{"q1", "q2", "q3", "q4"},
	}}
	got := hydeQueries(context.Background(), llm, "seed")
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3 (capped)", len(got))
	}
}

func TestHydeQueriesReturnsNilOnProviderError(t *testing.T) {
	llm := fakeLLM{response: map[string]any{"error": "rate limited", "raw": ""}}
	got := hydeQueries(context.Background(), llm, "seed")
	if got != nil {
		t.Errorf("got = %v, want nil", got)
	}
}
