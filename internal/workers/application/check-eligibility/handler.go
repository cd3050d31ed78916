// internal/workers/application/check-eligibility/handler.go
package checkeligibility

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/common/normalize"
	"social-support-workers/internal/models"
)

const (
	TaskType = "check-eligibility"
)

var (
	ErrEligibilityCheckFailed = errors.New("ELIGIBILITY_CHECK_FAILED")
)

// scoreTolerance absorbs float error in weighted sums when comparing against a threshold.
const scoreTolerance = 1e-9

var dateLayouts = []string{"2006-01-02", "01/02/2006", "02-01-2006"}

var qualifyingEducation = []string{"bachelor", "master", "diploma", "certificate"}

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input is nil", ErrEligibilityCheckFailed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	validation := models.ValidationReport{}
	if input.Validation != nil {
		validation = *input.Validation
	}

	support := h.assessFinancialSupport(input.Record, validation)
	programs := h.assessPrograms(input.Record)
	demographics := analyzeDemographics(input.Record)
	risk := analyzeFinancialRisk(input.Record.FinancialInfo)

	eligibleCount := 0
	for _, p := range programs {
		if p.Eligible {
			eligibleCount++
		}
	}
	vulnerabilities := len(demographics.VulnerabilityIndicators)

	priority := normalize.Round3(normalize.Clamp01(
		0.4*support.Score +
			0.3*(float64(eligibleCount)/5) +
			0.3*(float64(vulnerabilities)/3)))

	confidence := (validation.ValidationScore + validation.CompletenessScore) / 2
	if validation.CriticalIssueCount() > 0 {
		confidence *= 0.8
	}

	assessment := models.EligibilityAssessment{
		FinancialSupport:      support,
		EconomicPrograms:      programs,
		DemographicAnalysis:   demographics,
		FinancialRiskAnalysis: risk,
		OverallPriorityScore:  priority,
		RiskLevel:             riskLevel(priority),
		RequiresVerification:  support.Score > 0.8 && vulnerabilities > 2,
		Confidence:            normalize.Round3(confidence),
	}

	h.logger.Info("eligibility assessed", map[string]interface{}{
		"applicationId":    input.Record.ApplicationID,
		"score":            support.Score,
		"eligible":         support.Eligible,
		"supportAmount":    support.SupportAmount,
		"eligiblePrograms": eligibleCount,
		"priorityScore":    priority,
	})

	return &Output{Assessment: assessment}, nil
}

// ==========================
// Financial support
// ==========================

func (h *Handler) assessFinancialSupport(record models.ConsolidatedRecord, validation models.ValidationReport) models.FinancialSupport {
	s := h.config.Scoring
	fin := record.FinancialInfo
	var reasons []string

	criteria := models.CriteriaBreakdown{}

	if fin.MonthlyIncome != nil && *fin.MonthlyIncome <= s.MaxMonthlyIncome {
		criteria.Income = 1
		reasons = append(reasons, fmt.Sprintf("Monthly income %.0f within limit of %.0f", *fin.MonthlyIncome, s.MaxMonthlyIncome))
	}

	switch {
	case fin.TotalAssets == nil:
		criteria.Assets = 0.5
	case *fin.TotalAssets <= s.MaxTotalAssets:
		criteria.Assets = 1
		reasons = append(reasons, fmt.Sprintf("Total assets within limit of %.0f", s.MaxTotalAssets))
	}

	if size := record.FamilyInfo.FamilySize; size != nil && *size >= 1 {
		criteria.FamilySize = math.Min(1, float64(*size)/5)
		reasons = append(reasons, fmt.Sprintf("Family size %d", *size))
	} else {
		criteria.FamilySize = 0.3
	}

	criteria.Employment = employmentScore(fin.EmploymentStatus)
	if criteria.Employment == 1 {
		reasons = append(reasons, "Currently without employment")
	}

	if models.ValidEmiratesID(record.PersonalInfo.EmiratesID) {
		criteria.Residency = 1
		reasons = append(reasons, "Valid Emirates ID")
	}

	criteria.DataQuality = normalize.Clamp01(validation.ValidationScore)

	w := s.Weights
	raw := normalize.Clamp01(
		criteria.Income*w.Income +
			criteria.Assets*w.Assets +
			criteria.FamilySize*w.Family +
			criteria.Employment*w.Employment +
			criteria.Residency*w.Residency +
			criteria.DataQuality*w.DataQuality)

	support := models.FinancialSupport{
		Eligible:  meetsThreshold(raw, s.Threshold),
		Score:     normalize.Round3(raw),
		Threshold: s.Threshold,
		Criteria:  criteria,
		Reasons:   reasons,
	}
	if support.Eligible {
		support.SupportAmount = h.supportAmount(fin.MonthlyIncome, record.FamilyInfo.FamilySize)
	}
	return support
}

// meetsThreshold compares the unrounded score; the reported score is rounded separately.
func meetsThreshold(raw, threshold float64) bool {
	return raw >= threshold-scoreTolerance
}

// supportAmount fills the gap to the income target, scaled for large families. It never
// increases with income.
func (h *Handler) supportAmount(income *float64, familySize *int) float64 {
	s := h.config.Scoring
	monthly := 0.0
	if income != nil {
		monthly = *income
	}
	amount := math.Min(s.BaseSupportAmount, math.Max(0, s.IncomeTarget-monthly))
	if familySize != nil && *familySize > 3 {
		amount *= 1 + float64(*familySize-3)*0.2
	}
	amount = math.Min(amount, s.MaxSupportAmount)
	return math.Round(amount*100) / 100
}

func employmentScore(status string) float64 {
	s := normalize.Text(status)
	switch {
	case strings.Contains(s, "unemployed") || strings.Contains(s, "seeking"):
		return 1
	case strings.Contains(s, "employed"):
		return 0.3
	default:
		return 0
	}
}

// ==========================
// Economic programs
// ==========================

func (h *Handler) assessPrograms(record models.ConsolidatedRecord) []models.ProgramAssessment {
	age, hasAge := ageOn(record.PersonalInfo.DateOfBirth, h.config.Now())
	education := educationScore(record.EmploymentInfo.Education)
	status := normalize.Text(record.FinancialInfo.EmploymentStatus)

	held := map[string]bool{}
	for _, skill := range record.EmploymentInfo.Skills {
		if t := normalize.Token(skill); t != "" {
			held[t] = true
		}
	}

	out := make([]models.ProgramAssessment, 0, len(h.config.Programs))
	for _, p := range h.config.Programs {
		var reasons []string

		ageScore := 1.0
		if hasAge && (age < p.MinAge || age > p.MaxAge) {
			ageScore = 0
		} else if hasAge {
			reasons = append(reasons, fmt.Sprintf("Age %d within %d-%d", age, p.MinAge, p.MaxAge))
		}

		if education == 1 {
			reasons = append(reasons, "Education level meets requirement")
		}

		skillsScore := 0.3
		if len(p.RequiredSkills) > 0 && len(held) > 0 {
			matched := 0
			for _, req := range p.RequiredSkills {
				if held[normalize.Token(req)] {
					matched++
				}
			}
			skillsScore = float64(matched) / float64(len(p.RequiredSkills))
			if matched > 0 {
				reasons = append(reasons, fmt.Sprintf("Has %d of %d required skills", matched, len(p.RequiredSkills)))
			}
		}

		employment := 0.3
		for _, target := range p.TargetEmployment {
			if target == "any" || (status != "" && strings.Contains(status, normalize.Text(target))) {
				employment = 1
				reasons = append(reasons, "Employment status matches program target")
				break
			}
		}

		raw := normalize.Clamp01(
			ageScore*p.Weights.Age +
				education*p.Weights.Education +
				skillsScore*p.Weights.Skills +
				employment*p.Weights.Employment)

		assessment := models.ProgramAssessment{
			Program:   p.Name,
			Score:     normalize.Round3(raw),
			Threshold: p.Threshold,
			Eligible:  meetsThreshold(raw, p.Threshold),
			Reasons:   reasons,
		}
		if assessment.Eligible {
			assessment.NextSteps = append([]string{}, p.NextSteps...)
		}
		out = append(out, assessment)
	}
	return out
}

func educationScore(education string) float64 {
	e := normalize.Text(education)
	for _, q := range qualifyingEducation {
		if strings.Contains(e, q) {
			return 1
		}
	}
	return 0.5
}

// ageOn returns completed years between the date of birth and now.
func ageOn(dob string, now time.Time) (int, bool) {
	dob = strings.TrimSpace(dob)
	if dob == "" {
		return 0, false
	}
	for _, layout := range dateLayouts {
		born, err := time.Parse(layout, dob)
		if err != nil {
			continue
		}
		age := now.Year() - born.Year()
		if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
			age--
		}
		if age < 0 {
			return 0, false
		}
		return age, true
	}
	return 0, false
}

// ==========================
// Demographics and risk
// ==========================

func analyzeDemographics(record models.ConsolidatedRecord) models.DemographicAnalysis {
	a := models.DemographicAnalysis{
		Category:                CategoryGeneral,
		PriorityFactors:         []string{},
		VulnerabilityIndicators: []string{},
	}
	size := record.FamilyInfo.FamilySize

	if size != nil && *size > 4 {
		a.Category = FactorLargeFamily
		a.PriorityFactors = append(a.PriorityFactors, FactorLargeFamily)
	}
	if deps := record.FamilyInfo.Dependents; deps != nil && *deps > 2 {
		a.VulnerabilityIndicators = append(a.VulnerabilityIndicators, VulnMultipleDependents)
	}
	if income := record.FinancialInfo.MonthlyIncome; income != nil && size != nil && *size > 0 {
		perCapita := normalize.Round3(*income / float64(*size))
		a.PerCapitaIncome = &perCapita
		if perCapita < 1000 {
			a.VulnerabilityIndicators = append(a.VulnerabilityIndicators, VulnLowPerCapitaIncome)
		}
	}
	status := normalize.Text(record.FinancialInfo.EmploymentStatus)
	if strings.Contains(status, "temporary") || strings.Contains(status, "contract") {
		a.VulnerabilityIndicators = append(a.VulnerabilityIndicators, VulnUnstableEmployment)
	}
	return a
}

func analyzeFinancialRisk(fin models.FinancialInfo) models.FinancialRiskAnalysis {
	r := models.FinancialRiskAnalysis{RiskIndicators: []string{}}
	hasIncome := fin.MonthlyIncome != nil && *fin.MonthlyIncome > 0

	if hasIncome && fin.TotalLiabilities != nil {
		dti := normalize.Round3((*fin.TotalLiabilities / 60) / *fin.MonthlyIncome)
		r.DebtToIncome = &dti
		if dti > 0.4 {
			r.RiskIndicators = append(r.RiskIndicators, RiskHighDebtToIncome)
		}
	}

	if hasIncome && fin.BankBalance != nil {
		months := normalize.Round3(*fin.BankBalance / (0.7 * *fin.MonthlyIncome))
		r.LiquidityMonths = &months
		switch {
		case months < 1:
			r.LiquidityRating = LiquidityPoor
			r.RiskIndicators = append(r.RiskIndicators, RiskLowLiquidity)
		case months < 3:
			r.LiquidityRating = LiquidityFair
		default:
			r.LiquidityRating = LiquidityGood
		}
	}

	switch n := len(r.RiskIndicators); {
	case n == 0:
		r.Stability = StabilityStable
	case n <= 2:
		r.Stability = StabilityModerateRisk
	default:
		r.Stability = StabilityHighRisk
	}
	return r
}

func riskLevel(priority float64) string {
	switch {
	case priority > 0.7:
		return models.RiskHigh
	case priority < 0.3:
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}
