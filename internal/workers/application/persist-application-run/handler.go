// internal/workers/application/persist-application-run/handler.go
package persistapplicationrun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/models"

	"github.com/google/uuid"
)

const (
	TaskType = "persist-application-run"
)

var (
	ErrPersistenceFailed = errors.New("PERSISTENCE_FAILED")
)

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Run.RunID == "" || input.Run.ApplicationID == "" {
		return nil, fmt.Errorf("%w: run id and application id are required", ErrPersistenceFailed)
	}
	if h.db == nil {
		return nil, fmt.Errorf("%w: database not configured", ErrPersistenceFailed)
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	run := input.Run
	now := h.config.Now().UTC()

	errorsJSON, err := json.Marshal(nonNilStrings(run.Errors))
	if err != nil {
		return nil, fmt.Errorf("%w: marshal errors: %v", ErrPersistenceFailed, err)
	}
	responsesJSON, err := json.Marshal(run.AgentResponses)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal agent responses: %v", ErrPersistenceFailed, err)
	}

	var outcome sql.NullString
	if run.Decision != nil {
		outcome = sql.NullString{String: string(run.Decision.Outcome), Valid: true}
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", ErrPersistenceFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO application_runs (
			run_id, application_id, status, current_stage, failed_stage,
			progress_percent, errors, agent_responses, outcome,
			started_at, completed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			current_stage = EXCLUDED.current_stage,
			failed_stage = EXCLUDED.failed_stage,
			progress_percent = EXCLUDED.progress_percent,
			errors = EXCLUDED.errors,
			agent_responses = EXCLUDED.agent_responses,
			outcome = EXCLUDED.outcome,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`,
		run.RunID,
		run.ApplicationID,
		string(run.Status),
		string(run.CurrentStage),
		string(run.FailedStage),
		run.ProgressPercent,
		errorsJSON,
		responsesJSON,
		outcome,
		run.StartTime.UTC(),
		run.CompletedAt,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: upsert run: %v", ErrPersistenceFailed, err)
	}

	out := &Output{RunID: run.RunID, PersistedAt: now}

	if d := run.Decision; d != nil {
		decisionJSON, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal decision: %v", ErrPersistenceFailed, err)
		}
		out.DecisionID = uuid.New().String()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO application_decisions (
				id, run_id, application_id, outcome, support_amount, duration_months,
				priority_level, requires_human_review, confidence, reasoning_source,
				decision, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			out.DecisionID,
			run.RunID,
			run.ApplicationID,
			string(d.Outcome),
			d.SupportAmount,
			d.DurationMonths,
			d.PriorityLevel,
			d.RequiresHumanReview,
			d.Confidence,
			d.ReasoningSource,
			decisionJSON,
			now,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: insert decision: %v", ErrPersistenceFailed, err)
		}
		out.DecisionStored = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrPersistenceFailed, err)
	}

	h.writeAudit(ctx, run, out, now)

	h.logger.Info("application run persisted", map[string]interface{}{
		"applicationId":  run.ApplicationID,
		"runId":          run.RunID,
		"status":         run.Status,
		"decisionStored": out.DecisionStored,
	})

	return out, nil
}

// writeAudit records the persisted run. Failures are logged and never fail the call.
func (h *Handler) writeAudit(ctx context.Context, run models.PipelineRun, out *Output, now time.Time) {
	details := map[string]interface{}{
		"applicationId":   run.ApplicationID,
		"status":          run.Status,
		"progressPercent": run.ProgressPercent,
		"errorCount":      len(run.Errors),
	}
	if run.Decision != nil {
		details["outcome"] = run.Decision.Outcome
		details["supportAmount"] = run.Decision.SupportAmount
		details["requiresHumanReview"] = run.Decision.RequiresHumanReview
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	eventType := "application_run_persisted"
	if out.DecisionStored {
		eventType = "application_decided"
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		eventType,
		"application_run",
		run.RunID,
		detailsJSON,
		now,
	)
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error": err.Error(),
			"runId": run.RunID,
		})
	}
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
