// internal/pipeline/config.go
package pipeline

import (
	"time"

	"social-support-workers/internal/common/config"
)

type Config struct {
	// EstimatedBase and EstimatedPerDocument drive the estimated completion time.
	EstimatedBase        time.Duration
	EstimatedPerDocument time.Duration
	// StatusTimeout bounds every status-store write, including the ones made after cancellation.
	StatusTimeout time.Duration
	Now           func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		EstimatedBase:        2 * time.Minute,
		EstimatedPerDocument: 30 * time.Second,
		StatusTimeout:        5 * time.Second,
		Now:                  time.Now,
	}
}

// ConfigFrom maps the pipeline section of the service configuration.
func ConfigFrom(cfg config.PipelineConfig) *Config {
	c := LoadConfig()
	if cfg.EstimatedBaseMinutes > 0 {
		c.EstimatedBase = time.Duration(cfg.EstimatedBaseMinutes * float64(time.Minute))
	}
	if cfg.EstimatedPerDocumentSeconds > 0 {
		c.EstimatedPerDocument = time.Duration(cfg.EstimatedPerDocumentSeconds) * time.Second
	}
	return c
}
