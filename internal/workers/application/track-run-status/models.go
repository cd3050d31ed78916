// internal/workers/application/track-run-status/models.go
package trackrunstatus

import "social-support-workers/internal/models"

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	Status models.RunStatusView `json:"status"`
	// Source is "cache" or "database".
	Source string `json:"source"`
}

const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)
