// internal/workers/application/consolidate-documents/config.go
package consolidatedocuments

import "social-support-workers/internal/models"

type Config struct {
	IdentityGate          float64
	FinancialGate         float64
	ResumeGate            float64
	UnknownTypeConfidence float64
	DefaultDocumentWeight float64
	DocumentWeights       map[models.DocumentType]float64
	RequiredFields        map[models.DocumentType][]string
	// FinancialAliases maps each canonical field to source field names, first match wins.
	FinancialAliases map[string][]string
}

func LoadConfig() *Config {
	return &Config{
		IdentityGate:          0.7,
		FinancialGate:         0.6,
		ResumeGate:            0.6,
		UnknownTypeConfidence: 0.5,
		DefaultDocumentWeight: 0.5,
		DocumentWeights: map[models.DocumentType]float64{
			models.DocEmiratesID:        1.0,
			models.DocBankStatement:     0.8,
			models.DocCreditReport:      0.7,
			models.DocAssetsLiabilities: 0.8,
			models.DocResume:            0.6,
		},
		RequiredFields: map[models.DocumentType][]string{
			models.DocEmiratesID:        {"id_number", "name_english", "date_of_birth"},
			models.DocBankStatement:     {"closing_balance", "account_holder"},
			models.DocCreditReport:      {"credit_score"},
			models.DocAssetsLiabilities: {"total_assets", "total_liabilities"},
			models.DocResume:            {"name", "work_experience"},
		},
		FinancialAliases: map[string][]string{
			models.FieldMonthlyIncome:    {"monthly_income", "salary", "income"},
			models.FieldBankBalance:      {"closing_balance", "current_balance", "balance"},
			models.FieldTotalAssets:      {"total_assets", "assets"},
			models.FieldTotalLiabilities: {"total_liabilities", "liabilities", "loans"},
			models.FieldCreditScore:      {"credit_score", "score"},
		},
	}
}

func (c *Config) weight(t models.DocumentType) float64 {
	if w, ok := c.DocumentWeights[t]; ok {
		return w
	}
	return c.DefaultDocumentWeight
}
