// internal/workers/application/process-application/models.go
package processapplication

import (
	"context"

	"social-support-workers/internal/common/validation"
	"social-support-workers/internal/models"
)

type Input struct {
	ApplicationID string                  `json:"applicationId"`
	Form          models.ApplicantForm    `json:"form"`
	Documents     []models.DocumentUpload `json:"documents"`
}

type Output struct {
	RunID           string           `json:"runId"`
	Status          models.RunStatus `json:"status"`
	CurrentStage    models.Stage     `json:"currentStage"`
	FailedStage     models.Stage     `json:"failedStage,omitempty"`
	ProgressPercent int              `json:"progressPercent"`
	Decision        *models.Decision `json:"decision,omitempty"`
	Errors          []string         `json:"errors"`
}

// Runner is the pipeline entrypoint the worker drives.
type Runner interface {
	Process(ctx context.Context, applicationID string, form models.ApplicantForm, documents []models.DocumentUpload) (models.PipelineRun, error)
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["applicationId", "form"],
	"properties": {
		"applicationId": {"type": "string", "minLength": 1},
		"form": {
			"type": "object",
			"properties": {
				"application_id": {"type": "string"},
				"emirates_id": {"type": "string"},
				"first_name": {"type": "string"},
				"last_name": {"type": "string"},
				"email": {"type": "string"},
				"phone": {"type": "string"},
				"family_size": {"type": "integer", "minimum": 0},
				"dependents": {"type": "integer", "minimum": 0},
				"employment_status": {"type": "string"},
				"monthly_income": {"type": "number", "minimum": 0}
			}
		},
		"documents": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["id", "document_type"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"document_type": {"type": "string", "minLength": 1},
					"file_path": {"type": "string"},
					"metadata": {"type": "object", "additionalProperties": {"type": "string"}}
				}
			}
		}
	}
}`)
