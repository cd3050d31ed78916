// internal/workers/ai/decision-reasoning/config.go
package decisionreasoning

import "time"

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
	// MaxReasoningChars bounds reasoning text taken from a plain-text answer.
	MaxReasoningChars int
	MaxListItems      int
}

func LoadConfig() *Config {
	return &Config{
		Model:             "openai/gpt-4o-mini",
		Timeout:           60 * time.Second,
		MaxRetries:        1,
		MaxTokens:         600,
		Temperature:       0.2,
		MaxReasoningChars: 500,
		MaxListItems:      5,
	}
}
