// Command logpulse runs the streaming prototype-clustering pipeline:
// producer manager, log consumer, issue aggregator, issue/cluster
// enrichers, cluster-metrics tracker/aggregator, automations runner, and
// the thin HTTP API, all sharing one broker/vector-store/embedding/LLM
// client set. Grounded on the teacher's cmd/tarsy/main.go bootstrap shape.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rhordoan/logpulse/pkg/aggregator"
	"github.com/rhordoan/logpulse/pkg/api"
	"github.com/rhordoan/logpulse/pkg/automations"
	"github.com/rhordoan/logpulse/pkg/broker"
	"github.com/rhordoan/logpulse/pkg/clustering"
	"github.com/rhordoan/logpulse/pkg/clustermetrics"
	"github.com/rhordoan/logpulse/pkg/config"
	"github.com/rhordoan/logpulse/pkg/consumer"
	"github.com/rhordoan/logpulse/pkg/correlation"
	"github.com/rhordoan/logpulse/pkg/datasource"
	"github.com/rhordoan/logpulse/pkg/embedding"
	"github.com/rhordoan/logpulse/pkg/enricher"
	"github.com/rhordoan/logpulse/pkg/failurerules"
	"github.com/rhordoan/logpulse/pkg/llmprovider"
	"github.com/rhordoan/logpulse/pkg/normalizers"
	"github.com/rhordoan/logpulse/pkg/parsing"
	"github.com/rhordoan/logpulse/pkg/producers"
	"github.com/rhordoan/logpulse/pkg/supervisor"
	"github.com/rhordoan/logpulse/pkg/vectorstore"
	"github.com/rhordoan/logpulse/pkg/version"
)

// pipelineOSes is the fixed set of OS/domain buckets the consumer and
// aggregator route into, per parsing.OSLinux/OSMacOS/OSWindows/OSNetwork.
var pipelineOSes = []string{parsing.OSLinux, parsing.OSMacOS, parsing.OSWindows, parsing.OSNetwork}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to the pipeline config directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no %s file loaded: %v", envPath, err)
	}

	configPath := filepath.Join(*configDir, "logpulse.yaml")
	rulesPath := filepath.Join(*configDir, "automation_rules.yaml")

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	slog.Info("starting logpulse", "version", version.Full())

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := broker.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer b.Close()

	dbCfg := datasource.Config{
		Host: cfg.Postgres.Host, Port: cfg.Postgres.Port, User: cfg.Postgres.User,
		Password: cfg.Postgres.Password, Database: cfg.Postgres.Database, SSLMode: cfg.Postgres.SSLMode,
		MaxOpenConns: cfg.Postgres.MaxOpenConns, MaxIdleConns: cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime, ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
	}
	dbClient, err := datasource.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer dbClient.Close()
	dsRepo := datasource.NewPostgres(dbClient.DB(), 5*time.Second)

	embedder := embedding.NewRemoteProvider(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
	llm := llmprovider.NewRemoteProvider(cfg.LLMURL, cfg.LLMAPIKey, cfg.LLMModel)
	store := vectorstore.New(cfg.VectorStoreURL)

	rules := failurerules.Load()
	normRegistry := normalizers.NewRegistry()
	prodRegistry := producers.NewRegistry()

	online := clustering.NewOnline(store, embedder, cfg.Thresholds.OnlineClusterDistanceThreshold)

	tracker := clustermetrics.NewTracker(b, cfg.Costs.LLMCostPer1KTokens)
	metricsAgg := clustermetrics.NewAggregator(b, store, tracker, embedder.ID(), cfg.Thresholds, pipelineOSes)

	correlator := correlation.New(store, embedder)

	automationStore := automations.NewStore(rulesPath)
	automationRunner := automations.NewRunner(b, automationStore, cfg.Toggles.EnableAutomations, cfg.Toggles.AutomationsDryRun)

	producerManager := producers.NewManager(dsRepo, b, prodRegistry)
	logConsumer := consumer.New(b, store, embedder, rules, normRegistry, dsRepo, cfg.Thresholds, cfg.Toggles)
	issueAggregator := aggregator.New(b, store, online, embedder.ID(), cfg.Thresholds.ClusterMinLogsForClassify, cfg.Thresholds.IssueInactivity, cfg.Thresholds.IssueMaxLogsForLLM)
	issueEnricher := enricher.NewIssueEnricher(b, store, embedder, llm, cfg.Thresholds.AlertsTTL)
	clusterEnricher := enricher.NewClusterEnricher(b, store, embedder, llm, cfg.Thresholds.AlertsTTL)

	apiServer := api.NewServer(b, dsRepo, correlator, tracker, automationStore, automationRunner, normRegistry, cfg.Thresholds.AlertsTTL)

	loops := []*supervisor.Loop{
		supervisor.NewLoop("producer_manager", producerManager.Run, supervisor.DefaultRestartPolicy),
		supervisor.NewLoop("consumer", logConsumer.Run, supervisor.DefaultRestartPolicy),
		supervisor.NewLoop("issue_aggregator", issueAggregator.Run, supervisor.DefaultRestartPolicy),
		supervisor.NewLoop("issue_enricher", issueEnricher.Run, supervisor.DefaultRestartPolicy),
		supervisor.NewLoop("cluster_enricher", clusterEnricher.Run, supervisor.DefaultRestartPolicy),
		supervisor.NewLoop("metrics_aggregator", metricsAgg.Run, supervisor.DefaultRestartPolicy),
		supervisor.NewLoop("automations", automationRunner.Run, supervisor.DefaultRestartPolicy),
	}
	for _, l := range loops {
		l.Start(ctx)
	}

	go func() {
		slog.Info("http api listening", "addr", cfg.HTTPAddr)
		if err := apiServer.Start(cfg.HTTPAddr); err != nil {
			slog.Error("api server exited", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, stopping loops")
	for _, l := range loops {
		l.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("api server shutdown error", "error", err)
	}
	slog.Info("logpulse stopped")
}
