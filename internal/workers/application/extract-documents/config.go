// internal/workers/application/extract-documents/config.go
package extractdocuments

import "time"

type Config struct {
	// Concurrency bounds how many documents are extracted at once.
	Concurrency        int
	PerDocumentTimeout time.Duration

	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

func LoadConfig() *Config {
	return &Config{
		Concurrency:        4,
		PerDocumentTimeout: 45 * time.Second,
		Timeout:            30 * time.Second,
		MaxRetries:         2,
	}
}
