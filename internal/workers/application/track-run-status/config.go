// internal/workers/application/track-run-status/config.go
package trackrunstatus

import "time"

type Config struct {
	KeyPrefix string
	TTL       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		KeyPrefix: "pipeline:run:",
		TTL:       24 * time.Hour,
	}
}
