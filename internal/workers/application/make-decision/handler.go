// internal/workers/application/make-decision/handler.go
package makedecision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/common/normalize"
	"social-support-workers/internal/models"
)

const (
	TaskType = "make-decision"
)

var (
	ErrDecisionFailed = errors.New("DECISION_FAILED")
)

type Handler struct {
	config   *Config
	reasoner Reasoner
	logger   logger.Logger
}

// NewHandler builds the synthesizer. reasoner may be nil, in which case every decision
// carries the templated explanation.
func NewHandler(config *Config, reasoner Reasoner, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:   config,
		reasoner: reasoner,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input is nil", ErrDecisionFailed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if input.Validation == nil || input.Eligibility == nil {
		decision := h.reviewRequired(input)
		decision = h.attachReasoning(ctx, input, decision)
		h.logDecision(input, decision)
		return &Output{Decision: decision}, nil
	}

	validation := *input.Validation
	eligibility := *input.Eligibility
	support := eligibility.FinancialSupport
	v, e := validation.ValidationScore, support.Score
	s := h.config.Scoring

	decision := models.Decision{Conditions: []string{}}

	switch {
	case support.Eligible && v >= s.ApproveValidation && e >= s.ApproveEligibility:
		decision.Outcome = models.OutcomeApprove
		decision.SupportAmount = support.SupportAmount
	case support.Eligible && v >= s.ConditionalValidation && e >= s.ConditionalEligibility:
		if v < s.FullApprovalValidation || e < s.ApproveEligibility {
			decision.Outcome = models.OutcomeConditionalApprove
			decision.SupportAmount = math.Round(support.SupportAmount*s.ConditionalFactor*100) / 100
		} else {
			decision.Outcome = models.OutcomeApprove
			decision.SupportAmount = support.SupportAmount
		}
	default:
		decision.Outcome = models.OutcomeDecline
	}

	if decision.Outcome != models.OutcomeDecline {
		decision.DurationMonths = h.duration(input.Record.FamilyInfo.FamilySize, e)
	}

	decision.RecommendedPrograms = h.recommendPrograms(input.Record, eligibility)
	decision.PriorityLevel = priorityLevel(eligibility)

	critical := validation.CriticalIssueCount()
	decision.RequiresHumanReview = critical > 0 ||
		v < h.config.ReviewValidationScore ||
		eligibility.RequiresVerification ||
		decision.Outcome == models.OutcomeConditionalApprove ||
		decision.SupportAmount > s.ReviewAmountThreshold ||
		validation.RequiresManualReview

	confidence := (v + e) / 2
	if decision.RequiresHumanReview {
		confidence *= 0.8
	}
	confidence *= 1 - math.Min(0.3, 0.1*float64(critical))
	decision.Confidence = normalize.Round3(normalize.Clamp01(confidence))

	if decision.RequiresHumanReview {
		decision.ReviewSchedule = reviewSchedule(decision.PriorityLevel)
	}

	decision = h.attachReasoning(ctx, input, decision)
	h.logDecision(input, decision)
	return &Output{Decision: decision}, nil
}

// reviewRequired is the decision issued when validation or eligibility output is missing.
func (h *Handler) reviewRequired(input *Input) models.Decision {
	decision := NewReviewRequiredDecision()

	var scores []float64
	if input.Validation != nil {
		scores = append(scores, input.Validation.ValidationScore)
	}
	if input.Eligibility != nil {
		scores = append(scores, input.Eligibility.FinancialSupport.Score)
		decision.RecommendedPrograms = h.recommendPrograms(input.Record, *input.Eligibility)
	}
	if len(scores) > 0 {
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		decision.Confidence = normalize.Round3(sum / float64(len(scores)) * 0.8)
	}
	return decision
}

// NewReviewRequiredDecision is the zero-amount, high-priority decision that routes an
// application to a case worker.
func NewReviewRequiredDecision() models.Decision {
	return models.Decision{
		Outcome:             models.OutcomeReviewRequired,
		RecommendedPrograms: []models.ProgramRecommendation{},
		PriorityLevel:       models.PriorityHigh,
		RequiresHumanReview: true,
		ReviewSchedule:      models.ReviewWithin24h,
		NextSteps:           append([]string{}, fallbackNextSteps...),
		Conditions:          []string{},
		ReasoningText:       "Automated assessment was incomplete; a case worker will review this application.",
		ReasoningSource:     models.ReasoningFallback,
	}
}

func (h *Handler) duration(familySize *int, eligibilityScore float64) int {
	d := h.config.BaseDurationMonths
	if familySize != nil && *familySize > 4 {
		d += 3
	}
	switch {
	case eligibilityScore > 0.8:
		d += 3
	case eligibilityScore < 0.6:
		d -= 3
	}
	if d < h.config.MinDurationMonths {
		d = h.config.MinDurationMonths
	}
	if d > h.config.MaxDurationMonths {
		d = h.config.MaxDurationMonths
	}
	return d
}

func (h *Handler) recommendPrograms(record models.ConsolidatedRecord, eligibility models.EligibilityAssessment) []models.ProgramRecommendation {
	status := normalize.Text(record.FinancialInfo.EmploymentStatus)
	unemployed := strings.Contains(status, "unemployed")
	underemployed := strings.Contains(status, "underemployed")

	businessSkill := false
	for _, skill := range record.EmploymentInfo.Skills {
		if strings.Contains(strings.ToLower(skill), "business") {
			businessSkill = true
			break
		}
	}

	education := normalize.Text(record.EmploymentInfo.Education)
	educated := strings.Contains(education, "bachelor") ||
		strings.Contains(education, "master") ||
		strings.Contains(education, "diploma")

	recs := []models.ProgramRecommendation{}
	for _, p := range eligibility.EligiblePrograms() {
		priority := p.Score
		switch p.Program {
		case "job_placement":
			if unemployed {
				priority += 0.2
			}
		case "skills_development":
			if underemployed || p.Score > 0.7 {
				priority += 0.15
			}
		case "entrepreneurship_support":
			if businessSkill {
				priority += 0.1
			}
		}

		profile, ok := h.config.Programs[p.Program]
		if !ok {
			profile = h.config.DefaultProgram
		}
		success := profile.BaseSuccess
		if educated {
			success += 0.1
		}

		recs = append(recs, models.ProgramRecommendation{
			Program:            p.Program,
			Score:              p.Score,
			Priority:           normalize.Round3(math.Min(1, priority)),
			Timeline:           profile.Timeline,
			SuccessProbability: normalize.Round3(math.Min(1, success)),
			NextSteps:          append([]string{}, p.NextSteps...),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority > recs[j].Priority
		}
		return recs[i].Score > recs[j].Score
	})
	return recs
}

func priorityLevel(a models.EligibilityAssessment) string {
	vulnerabilities := len(a.DemographicAnalysis.VulnerabilityIndicators)
	switch {
	case a.OverallPriorityScore > 0.8 || vulnerabilities > 3 || a.RiskLevel == models.RiskHigh:
		return models.PriorityHigh
	case a.OverallPriorityScore > 0.6 || vulnerabilities > 1 || a.RiskLevel == models.RiskMedium:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func reviewSchedule(priority string) string {
	switch priority {
	case models.PriorityHigh:
		return models.ReviewWithin24h
	case models.PriorityMedium:
		return models.ReviewWithin48h
	default:
		return models.ReviewWithinWeek
	}
}

// ==========================
// Reasoning
// ==========================

func reasoningContext(input *Input, d models.Decision) models.ReasoningContext {
	name := input.Record.FullName()
	if name == "" {
		name = input.Form.FullName()
	}
	rc := models.ReasoningContext{
		ApplicantName:       name,
		Outcome:             d.Outcome,
		SupportAmount:       d.SupportAmount,
		DurationMonths:      d.DurationMonths,
		TopPrograms:         []string{},
		PriorityLevel:       d.PriorityLevel,
		RequiresHumanReview: d.RequiresHumanReview,
		MonthlyIncome:       input.Record.FinancialInfo.MonthlyIncome,
		FamilySize:          input.Record.FamilyInfo.FamilySize,
		EmploymentStatus:    input.Record.FinancialInfo.EmploymentStatus,
	}
	for i, p := range d.RecommendedPrograms {
		if i == 3 {
			break
		}
		rc.TopPrograms = append(rc.TopPrograms, p.Program)
	}
	if input.Eligibility != nil {
		rc.EligibilityScore = input.Eligibility.FinancialSupport.Score
		rc.Eligible = input.Eligibility.FinancialSupport.Eligible
		rc.EligibleProgramCount = len(input.Eligibility.EligiblePrograms())
	}
	return rc
}

func (h *Handler) attachReasoning(ctx context.Context, input *Input, d models.Decision) models.Decision {
	rc := reasoningContext(input, d)

	reasoning := FallbackReasoning(rc)
	if h.reasoner != nil {
		generated, err := h.reasoner.Explain(ctx, rc)
		switch {
		case err != nil:
			h.logger.Warn("reasoning generator unavailable, using fallback", map[string]interface{}{
				"applicationId": input.Record.ApplicationID,
				"error":         err.Error(),
			})
		case strings.TrimSpace(generated.Text) == "":
			h.logger.Warn("reasoning generator returned empty text, using fallback", map[string]interface{}{
				"applicationId": input.Record.ApplicationID,
			})
		default:
			reasoning = generated
			reasoning.Source = models.ReasoningGenerator
			if len(reasoning.NextSteps) == 0 {
				reasoning.NextSteps = append([]string{}, fallbackNextSteps...)
			}
			if reasoning.Conditions == nil {
				reasoning.Conditions = []string{}
			}
		}
	}

	d.ReasoningText = reasoning.Text
	d.NextSteps = reasoning.NextSteps
	d.Conditions = reasoning.Conditions
	d.ReasoningSource = reasoning.Source
	return d
}

// FallbackReasoning is the templated explanation used when no generator answer is available.
func FallbackReasoning(rc models.ReasoningContext) models.Reasoning {
	name := rc.ApplicantName
	if name == "" {
		name = "the applicant"
	}

	var text string
	switch rc.Outcome {
	case models.OutcomeApprove:
		text = fmt.Sprintf("Application approved for %s. Eligibility score %.2f meets the support criteria; "+
			"monthly support of AED %.2f is granted for %d months.", name, rc.EligibilityScore, rc.SupportAmount, rc.DurationMonths)
	case models.OutcomeConditionalApprove:
		text = fmt.Sprintf("Application conditionally approved for %s. Eligibility score %.2f meets the minimum criteria; "+
			"monthly support of AED %.2f for %d months is subject to verification.", name, rc.EligibilityScore, rc.SupportAmount, rc.DurationMonths)
	case models.OutcomeDecline:
		text = fmt.Sprintf("Application declined for %s. Eligibility score %.2f does not meet the support criteria.", name, rc.EligibilityScore)
	default:
		text = fmt.Sprintf("Application for %s requires human review because the automated assessment was incomplete.", name)
	}
	if len(rc.TopPrograms) > 0 {
		text += " Recommended programs: " + strings.Join(rc.TopPrograms, ", ") + "."
	}

	conditions := []string{}
	if rc.Outcome == models.OutcomeConditionalApprove {
		conditions = append(conditions, "Verification of reported income and assets")
	}

	return models.Reasoning{
		Text:       text,
		NextSteps:  append([]string{}, fallbackNextSteps...),
		Conditions: conditions,
		Source:     models.ReasoningFallback,
	}
}

func (h *Handler) logDecision(input *Input, d models.Decision) {
	h.logger.Info("decision made", map[string]interface{}{
		"applicationId":   input.Record.ApplicationID,
		"outcome":         d.Outcome,
		"supportAmount":   d.SupportAmount,
		"durationMonths":  d.DurationMonths,
		"priority":        d.PriorityLevel,
		"humanReview":     d.RequiresHumanReview,
		"confidence":      d.Confidence,
		"reasoningSource": d.ReasoningSource,
	})
}
