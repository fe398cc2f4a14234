package clustermetrics

import (
	"testing"
	"time"
)

func TestHourBucketFormatsUTCHour(t *testing.T) {
	at := time.Date(2026, 7, 30, 14, 22, 0, 0, time.UTC)
	got := hourBucket(at)
	want := "2026-07-30-14"
	if got != want {
		t.Errorf("hourBucket = %q, want %q", got, want)
	}
}

func TestParseIntHandlesEmptyAndValid(t *testing.T) {
	if got := parseInt(""); got != 0 {
		t.Errorf("parseInt(\"\") = %d, want 0", got)
	}
	if got := parseInt("42"); got != 42 {
		t.Errorf("parseInt(42) = %d, want 42", got)
	}
}
