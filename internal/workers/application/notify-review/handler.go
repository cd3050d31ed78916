// internal/workers/application/notify-review/handler.go
package notifyreview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/models"
)

const (
	TaskType = "notify-review"
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

type Handler struct {
	config    *Config
	publisher Publisher
	mailer    Mailer
	logger    logger.Logger
}

// NewHandler wires the review queue and applicant mailer. Either may be nil, which
// disables that channel.
func NewHandler(config *Config, publisher Publisher, mailer Mailer, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:    config,
		publisher: publisher,
		mailer:    mailer,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// execute tries every applicable channel. The returned Output is always populated; the
// error reports channels that failed.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if !h.config.Enabled {
		return &Output{Status: StatusDisabled}, nil
	}
	if input == nil || input.Decision == nil {
		return &Output{Status: StatusSkipped}, nil
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	out := &Output{}
	var failures []string
	attempted := 0

	if input.Decision.RequiresHumanReview && h.publisher != nil && h.config.ReviewTopicARN != "" {
		attempted++
		id, err := h.publishReview(ctx, input)
		if err != nil {
			failures = append(failures, fmt.Sprintf("review queue: %v", err))
			h.logger.Error("review publish failed", map[string]interface{}{
				"applicationId": input.ApplicationID,
				"error":         err.Error(),
			})
		} else {
			out.ReviewPublished = true
			out.ReviewMessageID = id
		}
	}

	email := strings.TrimSpace(input.Form.Email)
	if email != "" && h.mailer != nil && h.config.SenderEmail != "" {
		attempted++
		subject, body := applicantEmail(input)
		id, err := h.mailer.SendText(ctx, email, subject, body)
		if err != nil {
			failures = append(failures, fmt.Sprintf("applicant email: %v", err))
			h.logger.Error("applicant email failed", map[string]interface{}{
				"applicationId": input.ApplicationID,
				"error":         err.Error(),
			})
		} else {
			out.ApplicantEmailed = true
			out.EmailMessageID = id
		}
	}

	switch {
	case attempted == 0:
		out.Status = StatusSkipped
	case len(failures) == 0:
		out.Status = StatusSent
	case len(failures) == attempted:
		out.Status = StatusFailed
	default:
		out.Status = StatusPartial
	}

	h.logger.Info("notifications processed", map[string]interface{}{
		"applicationId":    input.ApplicationID,
		"status":           out.Status,
		"reviewPublished":  out.ReviewPublished,
		"applicantEmailed": out.ApplicantEmailed,
	})

	if len(failures) > 0 {
		return out, fmt.Errorf("%w: %s", ErrNotificationSendFailed, strings.Join(failures, "; "))
	}
	return out, nil
}

func (h *Handler) publishReview(ctx context.Context, input *Input) (string, error) {
	d := input.Decision
	msg, err := json.Marshal(reviewMessage{
		ApplicationID:  input.ApplicationID,
		RunID:          input.RunID,
		Outcome:        d.Outcome,
		PriorityLevel:  d.PriorityLevel,
		ReviewSchedule: d.ReviewSchedule,
		SupportAmount:  d.SupportAmount,
		Confidence:     d.Confidence,
		Reasoning:      d.ReasoningText,
	})
	if err != nil {
		return "", err
	}

	// SNS subjects are limited to 100 characters.
	subject := "Application review required: " + input.ApplicationID
	if len(subject) > 100 {
		subject = subject[:100]
	}

	return h.publisher.PublishToTopic(ctx, h.config.ReviewTopicARN, subject, string(msg), map[string]string{
		"priority": d.PriorityLevel,
		"outcome":  string(d.Outcome),
	})
}

func applicantEmail(input *Input) (string, string) {
	d := input.Decision
	name := input.Form.FullName()
	if name == "" {
		name = "Applicant"
	}

	var subject, summary string
	switch d.Outcome {
	case models.OutcomeApprove:
		subject = "Your social support application has been approved"
		summary = fmt.Sprintf("Your application has been approved for AED %.2f per month for %d months.", d.SupportAmount, d.DurationMonths)
	case models.OutcomeConditionalApprove:
		subject = "Your social support application has been conditionally approved"
		summary = fmt.Sprintf("Your application has been conditionally approved for AED %.2f per month for %d months.", d.SupportAmount, d.DurationMonths)
	case models.OutcomeDecline:
		subject = "Update on your social support application"
		summary = "After careful assessment we are unable to approve financial support at this time."
	default:
		subject = "Your social support application is under review"
		summary = "A case worker will review your application and contact you."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n%s\n", name, summary)
	if len(d.Conditions) > 0 {
		b.WriteString("\nConditions:\n")
		for _, c := range d.Conditions {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if len(d.NextSteps) > 0 {
		b.WriteString("\nNext steps:\n")
		for _, s := range d.NextSteps {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	fmt.Fprintf(&b, "\nReference: %s\n", input.ApplicationID)
	return subject, b.String()
}
