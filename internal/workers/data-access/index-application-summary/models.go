// internal/workers/data-access/index-application-summary/models.go
package indexapplicationsummary

import (
	"context"
	"time"

	"social-support-workers/internal/models"
)

type Input struct {
	Run models.PipelineRun `json:"run"`
}

type Output struct {
	Index      string `json:"index"`
	DocumentID string `json:"documentId"`
	Result     string `json:"result"`
	Embedded   bool   `json:"embedded"`
}

// Embedder turns the summary text into a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SummaryDocument is what gets indexed per application. The latest run overwrites earlier ones.
type SummaryDocument struct {
	ApplicationID       string         `json:"application_id"`
	RunID               string         `json:"run_id"`
	Status              string         `json:"status"`
	Outcome             models.Outcome `json:"outcome,omitempty"`
	SupportAmount       float64        `json:"support_amount"`
	DurationMonths      int            `json:"duration_months"`
	PriorityLevel       string         `json:"priority_level,omitempty"`
	RequiresHumanReview bool           `json:"requires_human_review"`
	Confidence          float64        `json:"confidence"`
	EligibilityScore    float64        `json:"eligibility_score"`
	EligiblePrograms    []string       `json:"eligible_programs"`
	RiskLevel           string         `json:"risk_level,omitempty"`
	MonthlyIncome       *float64       `json:"monthly_income,omitempty"`
	FamilySize          *int           `json:"family_size,omitempty"`
	EmploymentStatus    string         `json:"employment_status,omitempty"`
	Skills              []string       `json:"skills,omitempty"`
	SummaryText         string         `json:"summary_text"`
	Embedding           []float32      `json:"embedding,omitempty"`
	IndexedAt           time.Time      `json:"indexed_at"`
}
