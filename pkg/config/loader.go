package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load reads path (if present), expands ${VAR}/$VAR references, merges it
// over defaultConfig(), and validates the result. A missing file is not an
// error: defaults plus env expansion still produce a usable Config.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		// Decode over a copy of the defaults so keys absent from the file keep
		// their default while keys present in it win, zero values included.
		fileCfg := cfg
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidYAML, path, err)
		}
		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return Config{}, fmt.Errorf("config: merge failed: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		slog.Warn("config file not found, using defaults", "path", path)
	default:
		return Config{}, fmt.Errorf("%w: %s: %v", ErrConfigNotFound, path, err)
	}

	if err := validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Redis.Addr == "" {
		return &ValidationError{Field: "redis.addr", Err: errors.New("must not be empty")}
	}
	if cfg.Thresholds.ClusterMinSize < 1 {
		return &ValidationError{Field: "thresholds.cluster_min_size", Err: errors.New("must be >= 1")}
	}
	if cfg.Thresholds.IssueMaxLogsForLLM < 1 {
		return &ValidationError{Field: "thresholds.issue_max_logs_for_llm", Err: errors.New("must be >= 1")}
	}
	if cfg.Postgres.MaxIdleConns > cfg.Postgres.MaxOpenConns {
		return &ValidationError{Field: "postgres.max_idle_conns", Err: errors.New("must be <= max_open_conns")}
	}
	return nil
}
