// internal/workers/application/check-eligibility/models.go
package checkeligibility

import "social-support-workers/internal/models"

type Input struct {
	Form   models.ApplicantForm      `json:"form"`
	Record models.ConsolidatedRecord `json:"consolidated_record"`
	// Validation is nil when the validation stage degraded.
	Validation *models.ValidationReport `json:"validation_report,omitempty"`
}

type Output struct {
	Assessment models.EligibilityAssessment `json:"eligibility_assessment"`
}

// Demographic labels.
const (
	CategoryGeneral        = "general"
	FactorLargeFamily      = "large_family"
	VulnMultipleDependents = "multiple_dependents"
	VulnLowPerCapitaIncome = "low_per_capita_income"
	VulnUnstableEmployment = "unstable_employment"
)

// Financial risk labels.
const (
	RiskHighDebtToIncome  = "high_debt_to_income"
	RiskLowLiquidity      = "low_liquidity"
	StabilityStable       = "stable"
	StabilityModerateRisk = "moderate_risk"
	StabilityHighRisk     = "high_risk"
	LiquidityPoor         = "poor"
	LiquidityFair         = "fair"
	LiquidityGood         = "good"
)
