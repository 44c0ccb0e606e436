// Command orderflow-worker hosts the T1 Temporal worker: it registers
// OrderIntakeWorkflow and every Activities method against the
// configured task queue and blocks until asked to drain.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/orderflow/core/internal/config"
	"github.com/orderflow/core/internal/migrations"
	"github.com/orderflow/core/internal/telemetry"
	"github.com/orderflow/core/pkg/casestore"
	"github.com/orderflow/core/pkg/catalog"
	"github.com/orderflow/core/pkg/committee"
	"github.com/orderflow/core/pkg/evidence"
	"github.com/orderflow/core/pkg/eventlog"
	"github.com/orderflow/core/pkg/fingerprint"
	"github.com/orderflow/core/pkg/matching"
	"github.com/orderflow/core/pkg/notifier"
	"github.com/orderflow/core/pkg/parser"
	"github.com/orderflow/core/pkg/workflow"
)

func main() {
	logger, err := telemetry.NewLogger(os.Getenv("ENV") == "production")
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("orderflow-worker exited", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", mustEnv("DATABASE_URL"))
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck
	if err := migrations.Up(db); err != nil {
		return err
	}
	sqlxDB := sqlx.NewDb(db, "postgres")

	redisClient := redis.NewClient(&redis.Options{Addr: envOr("REDIS_ADDR", "localhost:6379")})
	defer redisClient.Close() //nolint:errcheck

	evidenceStore, err := evidence.NewFilesystemStore(envOr("EVIDENCE_ROOT", "./data/evidence"))
	if err != nil {
		return err
	}
	eventStore := eventlog.NewPostgresStore(db, evidenceStore)
	caseStore := casestore.NewSQLStore(sqlxDB)
	fingerprintStore := fingerprint.NewPostgresStore(db)

	tokenSource := (&clientcredentials.Config{
		ClientID:     mustEnv("CATALOG_CLIENT_ID"),
		ClientSecret: mustEnv("CATALOG_CLIENT_SECRET"),
		TokenURL:     mustEnv("CATALOG_TOKEN_URL"),
	}).TokenSource(context.Background())
	catalogClient := catalog.NewHTTPClient(catalog.Config{
		BaseURL:             mustEnv("CATALOG_BASE_URL"),
		GTINFieldID:         cfg.Catalog.GTINFieldID,
		IdempotencyFieldID:  cfg.Catalog.IdempotencyFieldID,
		TokenRefreshTimeout: 10 * time.Second,
		RequestTimeout:      30 * time.Second,
	}, tokenSource)

	matchCache := matching.NewCache(catalogClient, redisClient, matching.DefaultCacheConfig())
	matcher := matching.New(matchCache, matching.Config{
		FuzzyThreshold: cfg.Matcher.FuzzyThreshold,
		AmbiguityGap:   cfg.Matcher.AmbiguityGap,
		FuzzyItemNames: true,
	})

	registry := committee.NewRegistry()
	registerProviders(registry, logger)
	comm := committee.New(registry, committee.Config{
		N:               cfg.Committee.N,
		ProviderTimeout: cfg.Committee.Timeout,
		Aggregation: committee.AggregationConfig{
			MinUsable:           cfg.Committee.MinUsable,
			ConsensusThreshold:  cfg.Committee.ConsensusThreshold,
			ConfidenceThreshold: cfg.Committee.ConfidenceThreshold,
		},
	}, evidenceStore, eventStore)

	notif := buildNotifier(logger)

	activities := &workflow.Activities{
		Evidence:    evidenceStore,
		Events:      eventStore,
		Cases:       caseStore,
		Fingerprint: fingerprintStore,
		Parser: parser.NewExcelParser(parser.Config{
			FormulaPolicy:            cfg.Parser.FormulaPolicy,
			ArithmeticToleranceRatio: cfg.Parser.ArithmeticToleranceRatio,
		}),
		Committee:              comm,
		Matcher:                matcher,
		Catalog:                catalogClient,
		Notifier:               notif,
		Blobs:                  workflow.NewHTTPBlobFetcher(),
		FingerprintGranularity: fingerprint.Granularity(cfg.Fingerprint.BucketGranularity),
	}

	temporalClient, err := client.Dial(client.Options{HostPort: envOr("TEMPORAL_HOST_PORT", "localhost:7233")})
	if err != nil {
		return err
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, cfg.Workflow.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.Workflow.ActivityMaxConcurrency,
		MaxConcurrentWorkflowTaskExecutionSize:  cfg.Workflow.WorkflowMaxConcurrency,
		WorkerStopTimeout:                       30 * time.Second,
	})
	w.RegisterWorkflow(workflow.OrderIntakeWorkflow)
	w.RegisterActivity(activities)

	metrics := telemetry.NewMetrics()
	metricsServer := &http.Server{
		Addr:    envOr("METRICS_ADDR", ":9090"),
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("orderflow-worker starting", zap.String("task_queue", cfg.Workflow.TaskQueue))
	if err := w.Run(ctx.Done()); err != nil {
		return err
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(drainCtx)
	logger.Info("orderflow-worker drained")
	return nil
}

// registerProviders wires every committee family whose credentials are
// present in the environment; a pool with fewer than COMMITTEE_MIN_USABLE
// usable members is a runtime condition the committee itself handles, not
// a startup failure.
func registerProviders(registry *committee.Registry, logger *zap.Logger) {
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		model := anthropic.Model(envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"))
		registry.Register(committee.NewAnthropicProvider("anthropic-primary", "anthropic", 1.0, apiKey, model))
	}
	if os.Getenv("AWS_REGION") != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			logger.Warn("skipping bedrock provider: failed to load AWS config", zap.Error(err))
		} else {
			bedrockClient := bedrockruntime.NewFromConfig(awsCfg)
			registry.Register(committee.NewBedrockProvider("bedrock-secondary", "bedrock", 1.0, envOr("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"), bedrockClient))
		}
	}
	if baseURL := os.Getenv("LANGCHAIN_BASE_URL"); baseURL != "" {
		p, err := committee.NewLangchainProvider("langchain-tertiary", "openai-compatible", 0.8, baseURL, os.Getenv("LANGCHAIN_API_KEY"), envOr("LANGCHAIN_MODEL", "gpt-4o-mini"))
		if err != nil {
			logger.Warn("skipping langchain provider", zap.Error(err))
		} else {
			registry.Register(p)
		}
	}
}

func buildNotifier(logger *zap.Logger) notifier.Notifier {
	var base notifier.Notifier
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		base = notifier.NewSlackNotifier(token)
	} else {
		logger.Warn("SLACK_BOT_TOKEN not set, falling back to file notifier")
		base = notifier.NewFileNotifier(envOr("NOTIFIER_OUTPUT_DIR", "./data/notifications"))
	}
	return notifier.NewSanitizing(base)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic("missing required environment variable " + key)
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
