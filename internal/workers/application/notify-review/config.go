// internal/workers/application/notify-review/config.go
package notifyreview

import "time"

type Config struct {
	Enabled        bool
	ReviewTopicARN string
	SenderEmail    string
	Timeout        time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
