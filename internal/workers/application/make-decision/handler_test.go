// internal/workers/application/make-decision/handler_test.go
package makedecision

import (
	"context"
	"errors"
	"testing"

	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

type mockReasoner struct {
	mock.Mock
}

func (m *mockReasoner) Explain(ctx context.Context, rc models.ReasoningContext) (models.Reasoning, error) {
	args := m.Called(ctx, rc)
	return args.Get(0).(models.Reasoning), args.Error(1)
}

// ==========================
// Fixtures
// ==========================

func scenarioRecord() models.ConsolidatedRecord {
	return models.ConsolidatedRecord{
		ApplicationID: "APP-4001",
		PersonalInfo:  models.PersonalInfo{FirstName: "Ahmed", LastName: "Hassan"},
		FinancialInfo: models.FinancialInfo{
			MonthlyIncome:    models.FloatPtr(1500),
			EmploymentStatus: "unemployed",
		},
		FamilyInfo: models.FamilyInfo{FamilySize: models.IntPtr(5)},
	}
}

func scenarioValidation() *models.ValidationReport {
	return &models.ValidationReport{ValidationScore: 0.8, CompletenessScore: 1}
}

func scenarioEligibility() *models.EligibilityAssessment {
	return &models.EligibilityAssessment{
		FinancialSupport: models.FinancialSupport{
			Eligible:      true,
			Score:         0.79,
			Threshold:     0.6,
			SupportAmount: 2100,
		},
		EconomicPrograms: []models.ProgramAssessment{
			{Program: "skills_development", Score: 0.64, Eligible: true},
			{Program: "entrepreneurship_support", Score: 0.58},
			{Program: "job_placement", Score: 0.7, Eligible: true, NextSteps: []string{"Upload an updated CV"}},
			{Program: "financial_literacy", Score: 0.76, Eligible: true},
		},
		DemographicAnalysis: models.DemographicAnalysis{
			VulnerabilityIndicators: []string{"multiple_dependents", "low_per_capita_income"},
		},
		OverallPriorityScore: 0.696,
		RiskLevel:            models.RiskMedium,
	}
}

func decide(t *testing.T, h *Handler, input *Input) models.Decision {
	t.Helper()
	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out.Decision
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_Scenario(t *testing.T) {
	h := NewHandler(nil, nil, newTestLogger(t))
	d := decide(t, h, &Input{
		Record:      scenarioRecord(),
		Validation:  scenarioValidation(),
		Eligibility: scenarioEligibility(),
	})

	assert.Equal(t, models.OutcomeApprove, d.Outcome)
	assert.InDelta(t, 2100, d.SupportAmount, 1e-9)
	assert.Equal(t, 9, d.DurationMonths)
	assert.Equal(t, models.PriorityMedium, d.PriorityLevel)
	assert.False(t, d.RequiresHumanReview)
	assert.Empty(t, d.ReviewSchedule)
	assert.InDelta(t, 0.795, d.Confidence, 1e-9)

	require.Len(t, d.RecommendedPrograms, 3)
	assert.Equal(t, "job_placement", d.RecommendedPrograms[0].Program)
	assert.InDelta(t, 0.9, d.RecommendedPrograms[0].Priority, 1e-9)
	assert.Equal(t, "2-4 weeks", d.RecommendedPrograms[0].Timeline)
	assert.InDelta(t, 0.75, d.RecommendedPrograms[0].SuccessProbability, 1e-9)
	assert.Equal(t, []string{"Upload an updated CV"}, d.RecommendedPrograms[0].NextSteps)
	assert.Equal(t, "financial_literacy", d.RecommendedPrograms[1].Program)
	assert.Equal(t, "skills_development", d.RecommendedPrograms[2].Program)

	assert.Equal(t, models.ReasoningFallback, d.ReasoningSource)
	assert.Contains(t, d.ReasoningText, "Ahmed Hassan")
	assert.Equal(t, []string{"Complete document verification", "Schedule follow-up"}, d.NextSteps)
}

func TestHandler_Execute_BranchTable(t *testing.T) {
	tests := []struct {
		name        string
		eligible    bool
		validation  float64
		eligibility float64
		wantOutcome models.Outcome
		wantAmount  float64
	}{
		{"strong approval", true, 0.8, 0.7, models.OutcomeApprove, 1000},
		{"approval at exact thresholds", true, 0.7, 0.6, models.OutcomeApprove, 1000},
		{"weak validation is conditional", true, 0.55, 0.65, models.OutcomeConditionalApprove, 800},
		{"weak eligibility is conditional", true, 0.65, 0.55, models.OutcomeConditionalApprove, 800},
		{"middle band approval", true, 0.65, 0.65, models.OutcomeApprove, 1000},
		{"validation too low", true, 0.45, 0.9, models.OutcomeDecline, 0},
		{"eligibility too low", true, 0.9, 0.45, models.OutcomeDecline, 0},
		{"not eligible", false, 0.9, 0.9, models.OutcomeDecline, 0},
	}

	h := NewHandler(nil, nil, newTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eligibility := &models.EligibilityAssessment{
				FinancialSupport: models.FinancialSupport{
					Eligible:      tt.eligible,
					Score:         tt.eligibility,
					SupportAmount: 1000,
				},
			}
			d := decide(t, h, &Input{
				Record:      scenarioRecord(),
				Validation:  &models.ValidationReport{ValidationScore: tt.validation},
				Eligibility: eligibility,
			})

			assert.Equal(t, tt.wantOutcome, d.Outcome)
			assert.InDelta(t, tt.wantAmount, d.SupportAmount, 1e-9)
			if tt.wantOutcome == models.OutcomeDecline {
				assert.Zero(t, d.DurationMonths)
			} else {
				assert.GreaterOrEqual(t, d.DurationMonths, 3)
				assert.LessOrEqual(t, d.DurationMonths, 12)
			}
			if tt.wantOutcome == models.OutcomeConditionalApprove {
				assert.True(t, d.RequiresHumanReview)
				assert.NotEmpty(t, d.Conditions)
			}
		})
	}
}

func TestHandler_Execute_FullApprovalBoundsAreIndependent(t *testing.T) {
	tests := []struct {
		name         string
		fullApproval float64
		approveElig  float64
		validation   float64
		eligibility  float64
		wantOutcome  models.Outcome
	}{
		{"validation below its own bound", 0.68, 0.55, 0.65, 0.65, models.OutcomeConditionalApprove},
		{"validation clears its own bound", 0.62, 0.68, 0.65, 0.69, models.OutcomeApprove},
		{"eligibility below its bound", 0.6, 0.68, 0.65, 0.65, models.OutcomeConditionalApprove},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			cfg.Scoring.FullApprovalValidation = tt.fullApproval
			cfg.Scoring.ApproveEligibility = tt.approveElig
			h := NewHandler(cfg, nil, newTestLogger(t))

			d := decide(t, h, &Input{
				Record:     scenarioRecord(),
				Validation: &models.ValidationReport{ValidationScore: tt.validation},
				Eligibility: &models.EligibilityAssessment{
					FinancialSupport: models.FinancialSupport{
						Eligible:      true,
						Score:         tt.eligibility,
						SupportAmount: 1000,
					},
				},
			})

			assert.Equal(t, tt.wantOutcome, d.Outcome)
		})
	}
}

func TestHandler_Execute_ReviewTriggers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(v *models.ValidationReport, e *models.EligibilityAssessment)
	}{
		{
			name: "critical validation issue",
			mutate: func(v *models.ValidationReport, e *models.EligibilityAssessment) {
				v.Issues = []models.Issue{{Kind: models.IssueIncomeInconsistency, Severity: models.SeverityHigh}}
			},
		},
		{
			name:   "validator asked for review",
			mutate: func(v *models.ValidationReport, e *models.EligibilityAssessment) { v.RequiresManualReview = true },
		},
		{
			name:   "eligibility asked for verification",
			mutate: func(v *models.ValidationReport, e *models.EligibilityAssessment) { e.RequiresVerification = true },
		},
		{
			name:   "amount above review threshold",
			mutate: func(v *models.ValidationReport, e *models.EligibilityAssessment) { e.FinancialSupport.SupportAmount = 4500 },
		},
	}

	h := NewHandler(nil, nil, newTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, e := scenarioValidation(), scenarioEligibility()
			tt.mutate(v, e)

			d := decide(t, h, &Input{Record: scenarioRecord(), Validation: v, Eligibility: e})

			assert.True(t, d.RequiresHumanReview)
			assert.Equal(t, models.ReviewWithin48h, d.ReviewSchedule)
		})
	}
}

func TestHandler_Execute_ConfidenceScaling(t *testing.T) {
	v := &models.ValidationReport{
		ValidationScore: 0.8,
		Issues:          []models.Issue{{Kind: models.IssueInvalidNumber, Severity: models.SeverityHigh}},
	}
	e := scenarioEligibility()
	e.FinancialSupport.Score = 0.8

	h := NewHandler(nil, nil, newTestLogger(t))
	d := decide(t, h, &Input{Record: scenarioRecord(), Validation: v, Eligibility: e})

	// 0.8 average, review factor 0.8, one critical issue 0.9
	assert.InDelta(t, 0.576, d.Confidence, 1e-9)
}

func TestHandler_Execute_ReviewRequiredWhenStageOutputMissing(t *testing.T) {
	tests := []struct {
		name           string
		validation     *models.ValidationReport
		eligibility    *models.EligibilityAssessment
		wantConfidence float64
		wantPrograms   int
	}{
		{"no validation", nil, scenarioEligibility(), 0.632, 3},
		{"no eligibility", scenarioValidation(), nil, 0.64, 0},
		{"neither", nil, nil, 0, 0},
	}

	h := NewHandler(nil, nil, newTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decide(t, h, &Input{Record: scenarioRecord(), Validation: tt.validation, Eligibility: tt.eligibility})

			assert.Equal(t, models.OutcomeReviewRequired, d.Outcome)
			assert.Zero(t, d.SupportAmount)
			assert.Zero(t, d.DurationMonths)
			assert.True(t, d.RequiresHumanReview)
			assert.Equal(t, models.PriorityHigh, d.PriorityLevel)
			assert.Equal(t, models.ReviewWithin24h, d.ReviewSchedule)
			assert.InDelta(t, tt.wantConfidence, d.Confidence, 1e-9)
			assert.Len(t, d.RecommendedPrograms, tt.wantPrograms)
			assert.Equal(t, models.ReasoningFallback, d.ReasoningSource)
		})
	}
}

func TestHandler_Execute_NilInput(t *testing.T) {
	h := NewHandler(nil, nil, newTestLogger(t))
	_, err := h.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDecisionFailed)
}

// ==========================
// Reasoning
// ==========================

func TestHandler_Execute_GeneratedReasoning(t *testing.T) {
	reasoner := &mockReasoner{}
	reasoner.On("Explain", mock.Anything, mock.MatchedBy(func(rc models.ReasoningContext) bool {
		return rc.Outcome == models.OutcomeApprove &&
			rc.ApplicantName == "Ahmed Hassan" &&
			rc.EligibleProgramCount == 3 &&
			len(rc.TopPrograms) == 3 &&
			rc.TopPrograms[0] == "job_placement"
	})).Return(models.Reasoning{
		Text:      "Approved because household income is well below the threshold.",
		NextSteps: []string{"Sign the support agreement"},
	}, nil)

	h := NewHandler(nil, reasoner, newTestLogger(t))
	d := decide(t, h, &Input{Record: scenarioRecord(), Validation: scenarioValidation(), Eligibility: scenarioEligibility()})

	assert.Equal(t, models.ReasoningGenerator, d.ReasoningSource)
	assert.Equal(t, "Approved because household income is well below the threshold.", d.ReasoningText)
	assert.Equal(t, []string{"Sign the support agreement"}, d.NextSteps)
	assert.NotNil(t, d.Conditions)
	reasoner.AssertExpectations(t)
}

func TestHandler_Execute_ReasoningFailureDoesNotChangeDecision(t *testing.T) {
	baseline := decide(t, NewHandler(nil, nil, newTestLogger(t)), &Input{
		Record: scenarioRecord(), Validation: scenarioValidation(), Eligibility: scenarioEligibility(),
	})

	tests := []struct {
		name      string
		reasoning models.Reasoning
		err       error
	}{
		{"generator error", models.Reasoning{}, errors.New("connection refused")},
		{"empty answer", models.Reasoning{Text: "   "}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasoner := &mockReasoner{}
			reasoner.On("Explain", mock.Anything, mock.Anything).Return(tt.reasoning, tt.err)

			d := decide(t, NewHandler(nil, reasoner, newTestLogger(t)), &Input{
				Record: scenarioRecord(), Validation: scenarioValidation(), Eligibility: scenarioEligibility(),
			})

			assert.Equal(t, models.ReasoningFallback, d.ReasoningSource)
			assert.Equal(t, baseline, d)
		})
	}
}

func TestFallbackReasoning(t *testing.T) {
	tests := []struct {
		outcome        models.Outcome
		wantFragment   string
		wantConditions int
	}{
		{models.OutcomeApprove, "approved", 0},
		{models.OutcomeConditionalApprove, "conditionally approved", 1},
		{models.OutcomeDecline, "declined", 0},
		{models.OutcomeReviewRequired, "requires human review", 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			r := FallbackReasoning(models.ReasoningContext{Outcome: tt.outcome, TopPrograms: []string{"job_placement"}})
			assert.Contains(t, r.Text, tt.wantFragment)
			assert.Contains(t, r.Text, "the applicant")
			assert.Contains(t, r.Text, "job_placement")
			assert.Len(t, r.Conditions, tt.wantConditions)
			assert.Equal(t, models.ReasoningFallback, r.Source)
		})
	}
}

// ==========================
// Helpers
// ==========================

func TestHandler_Duration(t *testing.T) {
	h := NewHandler(nil, nil, newTestLogger(t))
	tests := []struct {
		name  string
		size  *int
		score float64
		want  int
	}{
		{"base", models.IntPtr(3), 0.7, 6},
		{"large family", models.IntPtr(5), 0.7, 9},
		{"strong score", models.IntPtr(3), 0.85, 9},
		{"large family strong score", models.IntPtr(6), 0.9, 12},
		{"weak score", models.IntPtr(3), 0.55, 3},
		{"unknown family weak score", nil, 0.5, 3},
		{"large family weak score", models.IntPtr(7), 0.5, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.duration(tt.size, tt.score))
		})
	}
}

func TestHandler_RecommendPrograms_Bumps(t *testing.T) {
	h := NewHandler(nil, nil, newTestLogger(t))
	record := scenarioRecord()
	record.FinancialInfo.EmploymentStatus = "underemployed"
	record.EmploymentInfo.Skills = []string{"Business Planning"}
	record.EmploymentInfo.Education = "Master of Science"

	recs := h.recommendPrograms(record, models.EligibilityAssessment{
		EconomicPrograms: []models.ProgramAssessment{
			{Program: "job_placement", Score: 0.7, Eligible: true},
			{Program: "skills_development", Score: 0.6, Eligible: true},
			{Program: "entrepreneurship_support", Score: 0.95, Eligible: true},
			{Program: "community_mentoring", Score: 0.5, Eligible: true},
		},
	})

	require.Len(t, recs, 4)
	assert.Equal(t, "entrepreneurship_support", recs[0].Program)
	assert.Equal(t, 1.0, recs[0].Priority)
	assert.InDelta(t, 0.65, recs[0].SuccessProbability, 1e-9)
	assert.Equal(t, "skills_development", recs[1].Program)
	assert.InDelta(t, 0.75, recs[1].Priority, 1e-9)
	assert.Equal(t, "job_placement", recs[2].Program)
	assert.InDelta(t, 0.7, recs[2].Priority, 1e-9)
	assert.Equal(t, "community_mentoring", recs[3].Program)
	assert.Equal(t, "to be scheduled", recs[3].Timeline)
}

func TestPriorityLevelAndSchedule(t *testing.T) {
	tests := []struct {
		name         string
		assessment   models.EligibilityAssessment
		wantLevel    string
		wantSchedule string
	}{
		{"high priority score", models.EligibilityAssessment{OverallPriorityScore: 0.85, RiskLevel: models.RiskHigh}, models.PriorityHigh, models.ReviewWithin24h},
		{"many vulnerabilities", models.EligibilityAssessment{
			DemographicAnalysis: models.DemographicAnalysis{VulnerabilityIndicators: []string{"a", "b", "c", "d"}},
			RiskLevel:           models.RiskLow,
		}, models.PriorityHigh, models.ReviewWithin24h},
		{"medium risk", models.EligibilityAssessment{OverallPriorityScore: 0.5, RiskLevel: models.RiskMedium}, models.PriorityMedium, models.ReviewWithin48h},
		{"low", models.EligibilityAssessment{OverallPriorityScore: 0.2, RiskLevel: models.RiskLow}, models.PriorityLow, models.ReviewWithinWeek},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := priorityLevel(tt.assessment)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantSchedule, reviewSchedule(level))
		})
	}
}
