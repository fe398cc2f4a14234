package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want default", cfg.Redis.Addr)
	}
	if cfg.Thresholds.ClusterMinSize != 3 {
		t.Errorf("ClusterMinSize = %d, want default 3", cfg.Thresholds.ClusterMinSize)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "redis:\n  addr: \"redis.internal:6379\"\nthresholds:\n  cluster_min_size: 7\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Redis.Addr = %q, want override", cfg.Redis.Addr)
	}
	if cfg.Thresholds.ClusterMinSize != 7 {
		t.Errorf("ClusterMinSize = %d, want override 7", cfg.Thresholds.ClusterMinSize)
	}
	if cfg.Thresholds.IssueMaxLogsForLLM != 50 {
		t.Errorf("IssueMaxLogsForLLM = %d, want untouched default 50", cfg.Thresholds.IssueMaxLogsForLLM)
	}
}

func TestLoadRejectsInvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "thresholds:\n  cluster_min_size: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for cluster_min_size=0")
	}
}

func TestExpandEnvSubstitutesVars(t *testing.T) {
	t.Setenv("LOGPULSE_TEST_HOST", "example.internal")
	out := ExpandEnv([]byte("redis:\n  addr: \"${LOGPULSE_TEST_HOST}:6379\"\n"))
	if string(out) != "redis:\n  addr: \"example.internal:6379\"\n" {
		t.Errorf("ExpandEnv output = %q", out)
	}
}
