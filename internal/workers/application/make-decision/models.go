// internal/workers/application/make-decision/models.go
package makedecision

import (
	"context"

	"social-support-workers/internal/models"
)

type Input struct {
	Form   models.ApplicantForm      `json:"form"`
	Record models.ConsolidatedRecord `json:"consolidated_record"`
	// Validation and Eligibility are nil when their stage degraded.
	Validation  *models.ValidationReport      `json:"validation_report,omitempty"`
	Eligibility *models.EligibilityAssessment `json:"eligibility_assessment,omitempty"`
}

type Output struct {
	Decision models.Decision `json:"decision"`
}

// Reasoner produces the explanation text for a decision. Implementations may fail;
// the decision never depends on them.
type Reasoner interface {
	Explain(ctx context.Context, rc models.ReasoningContext) (models.Reasoning, error)
}

var fallbackNextSteps = []string{"Complete document verification", "Schedule follow-up"}
