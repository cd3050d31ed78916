// internal/models/eligibility.go
package models

type CriteriaBreakdown struct {
	Income      float64 `json:"income"`
	Assets      float64 `json:"assets"`
	FamilySize  float64 `json:"family_size"`
	Employment  float64 `json:"employment"`
	Residency   float64 `json:"residency"`
	DataQuality float64 `json:"data_quality"`
}

type FinancialSupport struct {
	Eligible      bool              `json:"eligible"`
	Score         float64           `json:"score"`
	Threshold     float64           `json:"threshold"`
	Criteria      CriteriaBreakdown `json:"criteria_breakdown"`
	SupportAmount float64           `json:"support_amount"`
	Reasons       []string          `json:"reasons"`
}

type ProgramAssessment struct {
	Program   string   `json:"program"`
	Score     float64  `json:"score"`
	Threshold float64  `json:"threshold"`
	Eligible  bool     `json:"eligible"`
	Reasons   []string `json:"reasons"`
	NextSteps []string `json:"next_steps"`
}

type DemographicAnalysis struct {
	Category                string   `json:"demographic_category"`
	PriorityFactors         []string `json:"priority_factors"`
	VulnerabilityIndicators []string `json:"vulnerability_indicators"`
	PerCapitaIncome         *float64 `json:"per_capita_income,omitempty"`
}

type FinancialRiskAnalysis struct {
	DebtToIncome    *float64 `json:"debt_to_income,omitempty"`
	LiquidityMonths *float64 `json:"liquidity_months,omitempty"`
	LiquidityRating string   `json:"liquidity_rating,omitempty"`
	RiskIndicators  []string `json:"risk_indicators"`
	Stability       string   `json:"stability"`
}

// Risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

type EligibilityAssessment struct {
	FinancialSupport      FinancialSupport      `json:"financial_support"`
	EconomicPrograms      []ProgramAssessment   `json:"economic_programs"`
	DemographicAnalysis   DemographicAnalysis   `json:"demographic_analysis"`
	FinancialRiskAnalysis FinancialRiskAnalysis `json:"financial_risk_analysis"`
	OverallPriorityScore  float64               `json:"overall_priority_score"`
	RiskLevel             string                `json:"risk_level"`
	RequiresVerification  bool                  `json:"requires_verification"`
	Confidence            float64               `json:"confidence"`
}

// EligiblePrograms returns the programs the applicant qualified for, in catalogue order.
func (a EligibilityAssessment) EligiblePrograms() []ProgramAssessment {
	var out []ProgramAssessment
	for _, p := range a.EconomicPrograms {
		if p.Eligible {
			out = append(out, p)
		}
	}
	return out
}
