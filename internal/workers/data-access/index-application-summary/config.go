// internal/workers/data-access/index-application-summary/config.go
package indexapplicationsummary

import "time"

type Config struct {
	Index          string
	Timeout        time.Duration
	EmbedTimeout   time.Duration
	EmbeddingModel string
	Now            func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		Index:          "application-summaries",
		Timeout:        10 * time.Second,
		EmbedTimeout:   20 * time.Second,
		EmbeddingModel: "gemini-embedding-001",
		Now:            time.Now,
	}
}
