// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml and applies env overrides.
// CONFIG_PATH names an explicit file instead.
func Load() (*Config, error) {
	loadEnvFile()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return LoadFromFile(path)
	}

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return build(v)
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setScoringDefaults(v)
	return v
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setScoringDefaults registers scoring defaults so a partial YAML section still yields complete weights.
func setScoringDefaults(v *viper.Viper) {
	d := DefaultScoring()
	e := d.Eligibility
	v.SetDefault("scoring.eligibility.weights.income", e.Weights.Income)
	v.SetDefault("scoring.eligibility.weights.assets", e.Weights.Assets)
	v.SetDefault("scoring.eligibility.weights.family", e.Weights.Family)
	v.SetDefault("scoring.eligibility.weights.employment", e.Weights.Employment)
	v.SetDefault("scoring.eligibility.weights.residency", e.Weights.Residency)
	v.SetDefault("scoring.eligibility.weights.data_quality", e.Weights.DataQuality)
	v.SetDefault("scoring.eligibility.threshold", e.Threshold)
	v.SetDefault("scoring.eligibility.max_monthly_income", e.MaxMonthlyIncome)
	v.SetDefault("scoring.eligibility.max_total_assets", e.MaxTotalAssets)
	v.SetDefault("scoring.eligibility.base_support_amount", e.BaseSupportAmount)
	v.SetDefault("scoring.eligibility.income_target", e.IncomeTarget)
	v.SetDefault("scoring.eligibility.max_support_amount", e.MaxSupportAmount)

	v.SetDefault("scoring.decision.approve_validation", d.Decision.ApproveValidation)
	v.SetDefault("scoring.decision.approve_eligibility", d.Decision.ApproveEligibility)
	v.SetDefault("scoring.decision.conditional_validation", d.Decision.ConditionalValidation)
	v.SetDefault("scoring.decision.conditional_eligibility", d.Decision.ConditionalEligibility)
	v.SetDefault("scoring.decision.full_approval_validation", d.Decision.FullApprovalValidation)
	v.SetDefault("scoring.decision.conditional_factor", d.Decision.ConditionalFactor)
	v.SetDefault("scoring.decision.review_amount_threshold", d.Decision.ReviewAmountThreshold)
}

// loadEnvFile loads the first .env found walking up towards the module root.
func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets and endpoints from well-known env vars when YAML left them empty.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty := func(dst *string, env string) {
		if *dst == "" {
			if val := os.Getenv(env); val != "" {
				*dst = val
			}
		}
	}

	setIfEmpty(&cfg.Camunda.BrokerAddress, "ZEEBE_ADDRESS")
	setIfEmpty(&cfg.Database.Postgres.Host, "POSTGRES_HOST")
	setIfEmpty(&cfg.Database.Postgres.Database, "POSTGRES_DB")
	setIfEmpty(&cfg.Database.Postgres.User, "POSTGRES_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "POSTGRES_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Address, "REDIS_ADDRESS")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Database.Elasticsearch.URL, "ELASTICSEARCH_URL")
	setIfEmpty(&cfg.APIs.Extractor.BaseURL, "EXTRACTOR_URL")
	setIfEmpty(&cfg.APIs.Extractor.APIKey, "EXTRACTOR_API_KEY")
	setIfEmpty(&cfg.APIs.Reasoning.BaseURL, "REASONING_URL")
	setIfEmpty(&cfg.APIs.Reasoning.APIKey, "REASONING_API_KEY")
	setIfEmpty(&cfg.APIs.Embeddings.APIKey, "GEMINI_API_KEY")
	setIfEmpty(&cfg.Notifications.Region, "AWS_REGION")
	setIfEmpty(&cfg.Notifications.ReviewTopicARN, "REVIEW_TOPIC_ARN")
	setIfEmpty(&cfg.Notifications.SenderEmail, "NOTIFICATION_SENDER_EMAIL")
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "social-support-workers"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.SummaryIndex == "" {
		cfg.Database.Elasticsearch.SummaryIndex = "application-summaries"
	}

	if cfg.Pipeline.ExtractionConcurrency <= 0 {
		cfg.Pipeline.ExtractionConcurrency = 4
	}
	if cfg.Pipeline.StatusTTL <= 0 {
		cfg.Pipeline.StatusTTL = 86400
	}
	if cfg.Pipeline.EstimatedBaseMinutes <= 0 {
		cfg.Pipeline.EstimatedBaseMinutes = 2
	}
	if cfg.Pipeline.EstimatedPerDocumentSeconds <= 0 {
		cfg.Pipeline.EstimatedPerDocumentSeconds = 30
	}

	if cfg.APIs.Extractor.Timeout == 0 {
		cfg.APIs.Extractor.Timeout = 30000
	}
	if cfg.APIs.Extractor.MaxRetries == 0 {
		cfg.APIs.Extractor.MaxRetries = 2
	}
	if cfg.APIs.Reasoning.Timeout == 0 {
		cfg.APIs.Reasoning.Timeout = 60000
	}
	if cfg.APIs.Embeddings.Model == "" {
		cfg.APIs.Embeddings.Model = "gemini-embedding-001"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 300000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if err := cfg.Scoring.Validate(); err != nil {
		return err
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig returns the worker's settings or the defaults when it is not configured.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       300000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled reports whether a worker should be registered; unknown workers are enabled.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
