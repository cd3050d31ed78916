// internal/workers/application/process-application/config.go
package processapplication

import (
	"time"

	"social-support-workers/internal/common/camunda"
)

type Config struct {
	// Timeout bounds one pipeline run; it should stay below the job activation timeout.
	Timeout time.Duration
	// CompleteRetry governs re-sending the complete command to the broker.
	CompleteRetry *camunda.RetryConfig
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       4 * time.Minute,
		CompleteRetry: camunda.DefaultRetryConfig,
	}
}
