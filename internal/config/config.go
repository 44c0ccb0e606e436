// Package config loads the core's runtime configuration from the
// environment into a nested grouped struct, one group per collaborator
// (workflow, committee, matcher, parser, catalog, fingerprint, retention).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	orderrs "github.com/orderflow/core/pkg/shared/errors"
)

// Config is the core's complete runtime configuration.
type Config struct {
	Workflow    WorkflowConfig
	Committee   CommitteeConfig
	Matcher     MatcherConfig
	Parser      ParserConfig
	Catalog     CatalogConfig
	Fingerprint FingerprintConfig
	Retention   RetentionConfig
}

type WorkflowConfig struct {
	TaskQueue          string
	ExecutionTimeout   time.Duration
	RunTimeout         time.Duration
	TaskTimeout        time.Duration
	ActivityMaxConcurrency int
	WorkflowMaxConcurrency int
}

type CommitteeConfig struct {
	N                    int
	Pool                 []string
	Timeout              time.Duration
	MinUsable            int
	ConsensusThreshold   float64
	ConfidenceThreshold  float64
	WeightsPath          string
	WeightReloadOn       string
}

type MatcherConfig struct {
	FuzzyThreshold float64
	AmbiguityGap   float64
}

type ParserConfig struct {
	FormulaPolicy          string
	ArithmeticToleranceRatio float64
}

type CatalogConfig struct {
	Region              string
	OrgID               string
	GTINFieldID          string
	IdempotencyFieldID   string
}

type FingerprintConfig struct {
	BucketGranularity string
}

type RetentionConfig struct {
	DaysAudit    int
	DaysOriginal int
}

// Default returns the configuration  names as defaults, used as
// the base that Load overlays environment values onto.
func Default() Config {
	return Config{
		Workflow: WorkflowConfig{
			TaskQueue:              "order-processing",
			ExecutionTimeout:       24 * time.Hour,
			RunTimeout:             12 * time.Hour,
			TaskTimeout:            60 * time.Second,
			ActivityMaxConcurrency: 20,
			WorkflowMaxConcurrency: 10,
		},
		Committee: CommitteeConfig{
			N:                   3,
			Pool:                []string{"anthropic", "bedrock", "localai"},
			Timeout:             30 * time.Second,
			MinUsable:           2,
			ConsensusThreshold:  0.66,
			ConfidenceThreshold: 0.75,
			WeightReloadOn:      "config_changed",
		},
		Matcher: MatcherConfig{
			FuzzyThreshold: 0.75,
			AmbiguityGap:   0.10,
		},
		Parser: ParserConfig{
			FormulaPolicy:            "strict",
			ArithmeticToleranceRatio: 0.005,
		},
		Fingerprint: FingerprintConfig{
			BucketGranularity: "day",
		},
		Retention: RetentionConfig{
			DaysAudit:    1825,
			DaysOriginal: 1825,
		},
	}
}

// Load builds a Config from Default() overlaid with any environment
// variables that are set, and validates the hard floors (retention
// ≥ 1825 days, a closed fingerprint granularity set).
func Load() (Config, error) {
	cfg := Default()

	cfg.Workflow.TaskQueue = envString("WORKFLOW_TASK_QUEUE", cfg.Workflow.TaskQueue)
	if err := envDuration("WORKFLOW_EXECUTION_TIMEOUT", &cfg.Workflow.ExecutionTimeout); err != nil {
		return Config{}, err
	}
	if err := envDuration("WORKFLOW_RUN_TIMEOUT", &cfg.Workflow.RunTimeout); err != nil {
		return Config{}, err
	}
	if err := envDuration("WORKFLOW_TASK_TIMEOUT", &cfg.Workflow.TaskTimeout); err != nil {
		return Config{}, err
	}
	if err := envInt("ACTIVITY_MAX_CONCURRENCY", &cfg.Workflow.ActivityMaxConcurrency); err != nil {
		return Config{}, err
	}
	if err := envInt("WORKFLOW_MAX_CONCURRENCY", &cfg.Workflow.WorkflowMaxConcurrency); err != nil {
		return Config{}, err
	}

	if err := envInt("COMMITTEE_N", &cfg.Committee.N); err != nil {
		return Config{}, err
	}
	if raw := os.Getenv("COMMITTEE_POOL"); raw != "" {
		cfg.Committee.Pool = strings.Split(raw, ",")
	}
	// COMMITTEE_TIMEOUT_MS is a bare millisecond count, not
	// a Go duration string.
	ms, err := envMillis("COMMITTEE_TIMEOUT_MS", cfg.Committee.Timeout)
	if err != nil {
		return Config{}, err
	}
	cfg.Committee.Timeout = ms
	if err := envInt("COMMITTEE_MIN_USABLE", &cfg.Committee.MinUsable); err != nil {
		return Config{}, err
	}
	if err := envFloat("COMMITTEE_CONSENSUS_THRESHOLD", &cfg.Committee.ConsensusThreshold); err != nil {
		return Config{}, err
	}
	if err := envFloat("COMMITTEE_CONFIDENCE_THRESHOLD", &cfg.Committee.ConfidenceThreshold); err != nil {
		return Config{}, err
	}
	cfg.Committee.WeightsPath = envString("COMMITTEE_WEIGHTS_PATH", cfg.Committee.WeightsPath)
	cfg.Committee.WeightReloadOn = envString("COMMITTEE_WEIGHT_RELOAD_ON", cfg.Committee.WeightReloadOn)

	if err := envFloat("MATCHER_FUZZY_THRESHOLD", &cfg.Matcher.FuzzyThreshold); err != nil {
		return Config{}, err
	}
	if err := envFloat("MATCHER_AMBIGUITY_GAP", &cfg.Matcher.AmbiguityGap); err != nil {
		return Config{}, err
	}

	cfg.Parser.FormulaPolicy = envString("PARSER_FORMULA_POLICY", cfg.Parser.FormulaPolicy)
	if err := envFloat("ARITHMETIC_TOLERANCE_RATIO", &cfg.Parser.ArithmeticToleranceRatio); err != nil {
		return Config{}, err
	}

	cfg.Catalog.Region = envString("CATALOG_REGION", cfg.Catalog.Region)
	cfg.Catalog.OrgID = envString("CATALOG_ORG_ID", cfg.Catalog.OrgID)
	cfg.Catalog.GTINFieldID = envString("CATALOG_GTIN_FIELD_ID", cfg.Catalog.GTINFieldID)
	cfg.Catalog.IdempotencyFieldID = envString("CATALOG_IDEMPOTENCY_FIELD_ID", cfg.Catalog.IdempotencyFieldID)

	cfg.Fingerprint.BucketGranularity = envString("FINGERPRINT_BUCKET_GRANULARITY", cfg.Fingerprint.BucketGranularity)
	switch cfg.Fingerprint.BucketGranularity {
	case "hour", "day", "week", "month":
	default:
		return Config{}, orderrs.New("load config", "config", "FINGERPRINT_BUCKET_GRANULARITY", orderrs.CodeInvalidRequest,
			fmt.Errorf("unknown granularity %q", cfg.Fingerprint.BucketGranularity))
	}

	if err := envInt("RETENTION_DAYS_AUDIT", &cfg.Retention.DaysAudit); err != nil {
		return Config{}, err
	}
	if err := envInt("RETENTION_DAYS_ORIGINAL", &cfg.Retention.DaysOriginal); err != nil {
		return Config{}, err
	}
	if cfg.Retention.DaysAudit < 1825 || cfg.Retention.DaysOriginal < 1825 {
		return Config{}, orderrs.New("load config", "config", "RETENTION_DAYS", orderrs.CodeInvalidRequest,
			fmt.Errorf("retention must be at least 1825 days, got audit=%d original=%d", cfg.Retention.DaysAudit, cfg.Retention.DaysOriginal))
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return orderrs.New("load config", "config", key, orderrs.CodeInvalidRequest, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return orderrs.New("load config", "config", key, orderrs.CodeInvalidRequest, err)
	}
	*dst = f
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return orderrs.New("load config", "config", key, orderrs.CodeInvalidRequest, err)
	}
	*dst = d
	return nil
}

func envMillis(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, orderrs.New("load config", "config", key, orderrs.CodeInvalidRequest, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
