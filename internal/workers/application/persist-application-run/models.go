// internal/workers/application/persist-application-run/models.go
package persistapplicationrun

import (
	"time"

	"social-support-workers/internal/models"
)

type Input struct {
	Run models.PipelineRun `json:"run"`
}

type Output struct {
	RunID          string    `json:"runId"`
	DecisionID     string    `json:"decisionId,omitempty"`
	DecisionStored bool      `json:"decisionStored"`
	PersistedAt    time.Time `json:"persistedAt"`
}
