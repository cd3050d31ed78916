// internal/workers/application/notify-review/models.go
package notifyreview

import (
	"context"

	"social-support-workers/internal/models"
)

type Input struct {
	ApplicationID string               `json:"applicationId"`
	RunID         string               `json:"runId"`
	Form          models.ApplicantForm `json:"form"`
	Decision      *models.Decision     `json:"decision"`
}

type Output struct {
	Status           string `json:"status"`
	ReviewPublished  bool   `json:"reviewPublished"`
	ReviewMessageID  string `json:"reviewMessageId,omitempty"`
	ApplicantEmailed bool   `json:"applicantEmailed"`
	EmailMessageID   string `json:"emailMessageId,omitempty"`
}

// Statuses
const (
	StatusSent     = "sent"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
	StatusDisabled = "disabled"
)

// Publisher posts review requests to the case-worker queue.
type Publisher interface {
	PublishToTopic(ctx context.Context, topicARN, subject, message string, attrs map[string]string) (string, error)
}

// Mailer emails the applicant.
type Mailer interface {
	SendText(ctx context.Context, to, subject, body string) (string, error)
}

type reviewMessage struct {
	ApplicationID  string         `json:"applicationId"`
	RunID          string         `json:"runId"`
	Outcome        models.Outcome `json:"outcome"`
	PriorityLevel  string         `json:"priorityLevel"`
	ReviewSchedule string         `json:"reviewSchedule,omitempty"`
	SupportAmount  float64        `json:"supportAmount"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
}
