package producers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rhordoan/logpulse/pkg/models"
)

func TestRegistryBuildUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build(models.DataSource{Type: "does-not-exist"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown producer type")
	}
}

func TestRegistryBuildKnownTypes(t *testing.T) {
	r := NewRegistry()
	for _, kind := range []string{"filetail", "http_poller", "snmp", "splunk", "datadog", "redfish", "scom"} {
		if _, err := r.Build(models.DataSource{Type: kind}, nil); err != nil {
			t.Errorf("Build(%q) error: %v", kind, err)
		}
	}
}

func TestFileTailRunReturnsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	// File starts empty (no lines to emit) so this exercises the
	// wait-for-appends path without requiring a live broker: verify Run
	// respects context cancellation without hanging indefinitely.
	ft := &fileTail{paths: []string{path}, broker: nil}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = ft.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fileTail.Run did not return after context cancellation")
	}
}

func TestStringSliceFromJSONArray(t *testing.T) {
	v := []any{"a", "b", 1}
	got := stringSlice(v)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("stringSlice = %v", got)
	}
}

func TestFloatOrBoolOrDefaults(t *testing.T) {
	if floatOr(nil, 42) != 42 {
		t.Error("floatOr should fall back to default for nil")
	}
	if !boolOr(nil, true) {
		t.Error("boolOr should fall back to default for nil")
	}
	if boolOr(false, true) != false {
		t.Error("boolOr should use explicit false over default")
	}
}
