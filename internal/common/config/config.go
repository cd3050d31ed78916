// internal/common/config/config.go
package config

import (
	"fmt"
	"math"
)

// Config is the root configuration for the worker manager.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Scoring       ScoringConfig           `mapstructure:"scoring"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Server        ServerConfig            `mapstructure:"server"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the lib/pq connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	URL          string   `mapstructure:"url"`
	SummaryIndex string   `mapstructure:"summary_index"`
}

// GetURL returns the explicit URL or the first address.
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the settings every Zeebe job worker shares.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// APIsConfig holds the external collaborators the pipeline calls.
type APIsConfig struct {
	Extractor struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxRetries int    `mapstructure:"max_retries"`
	} `mapstructure:"extractor"`

	Reasoning struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"reasoning"`

	Embeddings struct {
		Enabled bool   `mapstructure:"enabled"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"embeddings"`
}

// PipelineConfig controls the application pipeline controller.
type PipelineConfig struct {
	ExtractionConcurrency       int     `mapstructure:"extraction_concurrency"`
	StatusTTL                   int     `mapstructure:"status_ttl"` // seconds
	EstimatedBaseMinutes        float64 `mapstructure:"estimated_base_minutes"`
	EstimatedPerDocumentSeconds int     `mapstructure:"estimated_per_document_seconds"`
}

// ScoringConfig is read once at start and never mutated afterwards.
type ScoringConfig struct {
	Eligibility EligibilityScoring `mapstructure:"eligibility"`
	Decision    DecisionScoring    `mapstructure:"decision"`
}

type EligibilityWeights struct {
	Income      float64 `mapstructure:"income"`
	Assets      float64 `mapstructure:"assets"`
	Family      float64 `mapstructure:"family"`
	Employment  float64 `mapstructure:"employment"`
	Residency   float64 `mapstructure:"residency"`
	DataQuality float64 `mapstructure:"data_quality"`
}

// Sum returns the total of all criterion weights.
func (w EligibilityWeights) Sum() float64 {
	return w.Income + w.Assets + w.Family + w.Employment + w.Residency + w.DataQuality
}

type EligibilityScoring struct {
	Weights            EligibilityWeights `mapstructure:"weights"`
	Threshold          float64            `mapstructure:"threshold"`
	MaxMonthlyIncome   float64            `mapstructure:"max_monthly_income"`
	MaxTotalAssets     float64            `mapstructure:"max_total_assets"`
	BaseSupportAmount  float64            `mapstructure:"base_support_amount"`
	IncomeTarget       float64            `mapstructure:"income_target"`
	MaxSupportAmount   float64            `mapstructure:"max_support_amount"`
	ProgramCatalogPath string             `mapstructure:"program_catalog_path"`
}

type DecisionScoring struct {
	ApproveValidation      float64 `mapstructure:"approve_validation"`
	ApproveEligibility     float64 `mapstructure:"approve_eligibility"`
	ConditionalValidation  float64 `mapstructure:"conditional_validation"`
	ConditionalEligibility float64 `mapstructure:"conditional_eligibility"`
	// FullApprovalValidation is the validation score a conditional-band application needs
	// to be approved in full.
	FullApprovalValidation float64 `mapstructure:"full_approval_validation"`
	ConditionalFactor      float64 `mapstructure:"conditional_factor"`
	ReviewAmountThreshold  float64 `mapstructure:"review_amount_threshold"`
}

// NotificationConfig holds the review-queue and applicant email settings.
type NotificationConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Region         string `mapstructure:"region"`
	ReviewTopicARN string `mapstructure:"review_topic_arn"`
	SenderEmail    string `mapstructure:"sender_email"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultScoring returns the weights and thresholds the scorers use when nothing is configured.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		Eligibility: EligibilityScoring{
			Weights: EligibilityWeights{
				Income:      0.25,
				Assets:      0.20,
				Family:      0.15,
				Employment:  0.20,
				Residency:   0.15,
				DataQuality: 0.05,
			},
			Threshold:         0.6,
			MaxMonthlyIncome:  4000,
			MaxTotalAssets:    100000,
			BaseSupportAmount: 2000,
			IncomeTarget:      3000,
			MaxSupportAmount:  5000,
		},
		Decision: DecisionScoring{
			ApproveValidation:      0.7,
			ApproveEligibility:     0.6,
			ConditionalValidation:  0.5,
			ConditionalEligibility: 0.5,
			FullApprovalValidation: 0.6,
			ConditionalFactor:      0.8,
			ReviewAmountThreshold:  4000,
		},
	}
}

// Validate rejects scoring configurations that would produce scores outside [0,1].
func (s ScoringConfig) Validate() error {
	w := s.Eligibility.Weights
	for name, v := range map[string]float64{
		"income": w.Income, "assets": w.Assets, "family": w.Family,
		"employment": w.Employment, "residency": w.Residency, "data_quality": w.DataQuality,
	} {
		if v < 0 {
			return fmt.Errorf("scoring.eligibility.weights.%s must not be negative", name)
		}
	}
	if math.Abs(w.Sum()-1) > 0.001 {
		return fmt.Errorf("scoring.eligibility.weights must sum to 1, got %.3f", w.Sum())
	}

	for name, v := range map[string]float64{
		"eligibility.threshold":             s.Eligibility.Threshold,
		"decision.approve_validation":       s.Decision.ApproveValidation,
		"decision.approve_eligibility":      s.Decision.ApproveEligibility,
		"decision.conditional_validation":   s.Decision.ConditionalValidation,
		"decision.conditional_eligibility":  s.Decision.ConditionalEligibility,
		"decision.full_approval_validation": s.Decision.FullApprovalValidation,
		"decision.conditional_factor":       s.Decision.ConditionalFactor,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("scoring.%s must be within [0,1]", name)
		}
	}

	if s.Eligibility.MaxSupportAmount < 0 || s.Eligibility.BaseSupportAmount < 0 {
		return fmt.Errorf("scoring.eligibility support amounts must not be negative")
	}
	return nil
}
