// Package config loads the pipeline's tunables from a YAML file with
// environment-variable expansion and built-in defaults merged in via
// dario.cat/mergo, then validates the result. Grounded on the layered
// load()/merge/validate() pattern in the teacher's own config package,
// collapsed from a multi-file agent/chain/MCP registry down to the single
// flat tunable set this pipeline needs.
package config

import "time"

// Config is the full set of tunables enumerated across the pipeline.
type Config struct {
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`

	VectorStoreURL  string `yaml:"vector_store_url"`
	EmbeddingURL    string `yaml:"embedding_url"`
	EmbeddingAPIKey string `yaml:"embedding_api_key"`
	EmbeddingModel  string `yaml:"embedding_model"`
	LLMURL          string `yaml:"llm_url"`
	LLMAPIKey       string `yaml:"llm_api_key"`
	LLMModel        string `yaml:"llm_model"`

	HTTPAddr string `yaml:"http_addr"`

	Thresholds Thresholds `yaml:"thresholds"`
	Toggles    Toggles    `yaml:"toggles"`
	Costs      Costs      `yaml:"costs"`
}

// RedisConfig configures the stream/cache broker.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig configures the DataSource repository.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// Thresholds groups every distance/size/timing constant named in the
// external interface spec (§6 Config keys, bit-exact names retained as
// struct field comments for traceability).
type Thresholds struct {
	NearestProtoThreshold          float64       `yaml:"nearest_proto_threshold"`           // NEAREST_PROTO_THRESHOLD
	OnlineClusterDistanceThreshold float64       `yaml:"online_cluster_distance_threshold"` // ONLINE_CLUSTER_DISTANCE_THRESHOLD
	ClusterDistanceThreshold       float64       `yaml:"cluster_distance_threshold"`        // CLUSTER_DISTANCE_THRESHOLD
	ClusterMinSize                 int           `yaml:"cluster_min_size"`                  // CLUSTER_MIN_SIZE
	ClusterMinLogsForClassify      int64         `yaml:"cluster_min_logs_for_classification"`
	IssueInactivity                time.Duration `yaml:"issue_inactivity"`      // ISSUE_INACTIVITY_SEC
	IssueMaxLogsForLLM             int           `yaml:"issue_max_logs_for_llm"` // ISSUE_MAX_LOGS_FOR_LLM
	AlertsTTL                      time.Duration `yaml:"alerts_ttl"`             // ALERTS_TTL_SEC
	MetricsAggregationInterval     time.Duration `yaml:"metrics_aggregation_interval"`
	ClusterQualityThreshold        float64       `yaml:"cluster_quality_threshold"`
	DriftDetectionWindow           time.Duration `yaml:"drift_detection_window"`
	DriftRateThreshold             float64       `yaml:"drift_rate_threshold"`
}

// Toggles groups the ENABLE_* feature flags.
type Toggles struct {
	EnablePerLineCandidates bool `yaml:"enable_per_line_candidates"`
	EnableOTelExport        bool `yaml:"enable_otel_export"`
	EnableAutomations       bool `yaml:"enable_automations"`
	AutomationsDryRun       bool `yaml:"automations_dry_run"`
}

// Costs groups LLM cost accounting constants.
type Costs struct {
	LLMCostPer1KTokens float64 `yaml:"llm_cost_per_1k_tokens"`
}
