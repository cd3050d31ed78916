// internal/models/decision.go
package models

type Outcome string

const (
	OutcomeApprove            Outcome = "approve"
	OutcomeConditionalApprove Outcome = "conditional_approve"
	OutcomeDecline            Outcome = "decline"
	OutcomeReviewRequired     Outcome = "review_required"
)

// Priority levels.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Review schedules.
const (
	ReviewWithin24h  = "within_24h"
	ReviewWithin48h  = "within_48h"
	ReviewWithinWeek = "within_1_week"
)

// Reasoning sources.
const (
	ReasoningGenerator = "generator"
	ReasoningFallback  = "fallback"
)

type ProgramRecommendation struct {
	Program            string   `json:"program"`
	Score              float64  `json:"score"`
	Priority           float64  `json:"priority"`
	Timeline           string   `json:"timeline"`
	SuccessProbability float64  `json:"success_probability"`
	NextSteps          []string `json:"next_steps"`
}

type Decision struct {
	Outcome             Outcome                 `json:"outcome"`
	SupportAmount       float64                 `json:"support_amount"`
	DurationMonths      int                     `json:"duration_months"`
	RecommendedPrograms []ProgramRecommendation `json:"recommended_programs"`
	PriorityLevel       string                  `json:"priority_level"`
	RequiresHumanReview bool                    `json:"requires_human_review"`
	Confidence          float64                 `json:"confidence"`
	ReasoningText       string                  `json:"reasoning_text"`
	NextSteps           []string                `json:"next_steps"`
	Conditions          []string                `json:"conditions"`
	ReasoningSource     string                  `json:"reasoning_source"`
	ReviewSchedule      string                  `json:"review_schedule,omitempty"`
}

// ReasoningContext is the compact summary handed to the reasoning generator.
type ReasoningContext struct {
	ApplicantName        string   `json:"applicant_name"`
	Outcome              Outcome  `json:"outcome"`
	SupportAmount        float64  `json:"support_amount"`
	DurationMonths       int      `json:"duration_months"`
	TopPrograms          []string `json:"top_programs"`
	PriorityLevel        string   `json:"priority_level"`
	RequiresHumanReview  bool     `json:"requires_human_review"`
	MonthlyIncome        *float64 `json:"monthly_income,omitempty"`
	FamilySize           *int     `json:"family_size,omitempty"`
	EmploymentStatus     string   `json:"employment_status,omitempty"`
	EligibilityScore     float64  `json:"eligibility_score"`
	Eligible             bool     `json:"eligible"`
	EligibleProgramCount int      `json:"eligible_program_count"`
}

// Reasoning is the explanation attached to a decision.
type Reasoning struct {
	Text       string   `json:"reasoning"`
	NextSteps  []string `json:"next_steps"`
	Conditions []string `json:"conditions"`
	Source     string   `json:"source"`
}
