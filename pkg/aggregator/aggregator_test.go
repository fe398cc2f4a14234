package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/rhordoan/logpulse/pkg/models"
)

func TestNewAggregatorStartsEmpty(t *testing.T) {
	a := New(nil, nil, nil, "test-model", 5, 30*time.Second, 50)
	if len(a.issues) != 0 {
		t.Errorf("issues = %d, want 0", len(a.issues))
	}
	if a.sweepEvery != time.Second {
		t.Errorf("sweepEvery = %v, want 1s", a.sweepEvery)
	}
}

func TestSweepIdleFlushesAndRemovesIssue(t *testing.T) {
	a := New(nil, nil, nil, "test-model", 5, 0, 50)
	key := models.IssueKey("linux", "sshd", "123")
	a.issues[key] = &models.Issue{
		OS:         "linux",
		Key:        key,
		LastSeenAt: time.Now().Add(-time.Hour),
		Logs: []models.IssueLogEntry{
			{Raw: "line", Templated: "sshd[<*>]: failed", Timestamp: time.Now().Add(-time.Hour)},
		},
	}

	published := false
	a.publishFn = func(ctx context.Context, candidate models.IssueCandidate) {
		published = true
		if candidate.IssueKey != key {
			t.Errorf("IssueKey = %q, want %q", candidate.IssueKey, key)
		}
	}
	a.sweepIdle(context.Background())

	if !published {
		t.Error("expected idle issue to be flushed")
	}
	if _, ok := a.issues[key]; ok {
		t.Error("expected issue to be removed after sweep")
	}
}
