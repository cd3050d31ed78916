// internal/models/run.go
package models

import "time"

type Stage string

const (
	StageInitialization     Stage = "initialization"
	StageDocumentProcessing Stage = "document_processing"
	StageDataExtraction     Stage = "data_extraction"
	StageValidation         Stage = "validation"
	StageEligibilityCheck   Stage = "eligibility_check"
	StageDecisionMaking     Stage = "decision_making"
	StageFinalization       Stage = "finalization"
	StageCompleted          Stage = "completed"
	StageFailed             Stage = "failed"
)

// Progress is the percentage reported once a stage has run.
func (s Stage) Progress() int {
	switch s {
	case StageInitialization:
		return 5
	case StageDocumentProcessing:
		return 20
	case StageDataExtraction:
		return 40
	case StageValidation:
		return 60
	case StageEligibilityCheck:
		return 80
	case StageDecisionMaking:
		return 90
	case StageFinalization:
		return 95
	case StageCompleted:
		return 100
	default:
		return 0
	}
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the run can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// StageResponse is the structured outcome recorded for every stage that ran.
type StageResponse struct {
	Stage      Stage   `json:"stage"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
	DurationMs int64   `json:"duration_ms"`
}

// PipelineRun is the run state threaded through the stages. Stages return a new value
// instead of mutating the one they received.
type PipelineRun struct {
	RunID               string               `json:"run_id"`
	ApplicationID       string               `json:"application_id"`
	Status              RunStatus            `json:"status"`
	CurrentStage        Stage                `json:"current_stage"`
	FailedStage         Stage                `json:"failed_stage,omitempty"`
	ProgressPercent     int                  `json:"progress_percent"`
	Errors              []string             `json:"errors"`
	AgentResponses      []StageResponse      `json:"agent_responses"`
	StartTime           time.Time            `json:"start_time"`
	EstimatedCompletion time.Time            `json:"estimated_completion"`
	CompletedAt         *time.Time           `json:"completed_at,omitempty"`
	Form                ApplicantForm        `json:"form"`
	Documents           []DocumentUpload     `json:"documents"`
	Extractions         []DocumentExtraction `json:"extractions,omitempty"`

	Record      *ConsolidatedRecord    `json:"consolidated_record,omitempty"`
	Validation  *ValidationReport      `json:"validation,omitempty"`
	Eligibility *EligibilityAssessment `json:"eligibility,omitempty"`
	Decision    *Decision              `json:"decision,omitempty"`
}

// WithError returns a copy of r with msg appended to the error list.
func (r PipelineRun) WithError(msg string) PipelineRun {
	errs := make([]string, len(r.Errors), len(r.Errors)+1)
	copy(errs, r.Errors)
	r.Errors = append(errs, msg)
	return r
}

// WithResponse returns a copy of r with resp appended to the stage responses.
func (r PipelineRun) WithResponse(resp StageResponse) PipelineRun {
	out := make([]StageResponse, len(r.AgentResponses), len(r.AgentResponses)+1)
	copy(out, r.AgentResponses)
	r.AgentResponses = append(out, resp)
	return r
}

// RunStatusView is the persisted and pollable projection of a run.
type RunStatusView struct {
	ApplicationID   string          `json:"application_id"`
	RunID           string          `json:"run_id"`
	Status          RunStatus       `json:"status"`
	CurrentStage    Stage           `json:"current_stage"`
	ProgressPercent int             `json:"progress_percent"`
	Errors          []string        `json:"errors"`
	AgentResponses  []StageResponse `json:"agent_responses"`
	Outcome         Outcome         `json:"outcome,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// StatusView projects r for the status store.
func (r PipelineRun) StatusView(now time.Time) RunStatusView {
	view := RunStatusView{
		ApplicationID:   r.ApplicationID,
		RunID:           r.RunID,
		Status:          r.Status,
		CurrentStage:    r.CurrentStage,
		ProgressPercent: r.ProgressPercent,
		Errors:          append([]string{}, r.Errors...),
		AgentResponses:  append([]StageResponse{}, r.AgentResponses...),
		UpdatedAt:       now.UTC(),
	}
	if r.Decision != nil {
		view.Outcome = r.Decision.Outcome
	}
	return view
}
