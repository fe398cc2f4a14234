package config

import "time"

// defaultConfig mirrors the spec's enumerated constants; user YAML and env
// vars override these via mergo before validate() runs.
func defaultConfig() Config {
	return Config{
		Redis: RedisConfig{Addr: "localhost:6379", DB: 0},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "logpulse",
			Database:        "logpulse",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		VectorStoreURL: "http://localhost:8000",
		EmbeddingURL:   "http://localhost:11434/v1",
		EmbeddingModel: "text-embedding-3-small",
		LLMURL:         "http://localhost:11434/v1",
		LLMModel:       "gpt-4o-mini",
		HTTPAddr:       ":8080",
		Thresholds: Thresholds{
			NearestProtoThreshold:          0.25,
			OnlineClusterDistanceThreshold: 0.25,
			ClusterDistanceThreshold:       0.3,
			ClusterMinSize:                 3,
			ClusterMinLogsForClassify:      5,
			IssueInactivity:                60 * time.Second,
			IssueMaxLogsForLLM:             50,
			AlertsTTL:                      7 * 24 * time.Hour,
			MetricsAggregationInterval:     5 * time.Minute,
			ClusterQualityThreshold:        0.2,
			DriftDetectionWindow:           time.Hour,
			DriftRateThreshold:             0.15,
		},
		Toggles: Toggles{
			EnablePerLineCandidates: true,
			EnableOTelExport:        false,
			EnableAutomations:       true,
			AutomationsDryRun:       true,
		},
		Costs: Costs{LLMCostPer1KTokens: 0.0005},
	}
}
