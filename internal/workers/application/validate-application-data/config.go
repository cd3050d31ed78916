// internal/workers/application/validate-application-data/config.go
package validateapplicationdata

import "social-support-workers/internal/models"

// Range is an inclusive numeric bound for a financial field.
type Range struct {
	Min float64
	Max float64
}

type Config struct {
	NameSimilarityThreshold float64
	Ranges                  map[string]Range
	DebtToAssetLimit        float64
	BalanceToIncomeLimit    float64
	IncomeConflictRatio     float64
	ReliableConfidence      float64
	ReviewScoreThreshold    float64
	PassScore               float64
	MaxMissingRequired      int
}

func LoadConfig() *Config {
	return &Config{
		NameSimilarityThreshold: 0.8,
		Ranges: map[string]Range{
			models.FieldMonthlyIncome:    {Min: 0, Max: 100000},
			models.FieldBankBalance:      {Min: 0, Max: 10000000},
			models.FieldTotalAssets:      {Min: 0, Max: 50000000},
			models.FieldTotalLiabilities: {Min: 0, Max: 10000000},
			models.FieldCreditScore:      {Min: 300, Max: 850},
		},
		DebtToAssetLimit:     1.5,
		BalanceToIncomeLimit: 100,
		IncomeConflictRatio:  1.5,
		ReliableConfidence:   0.7,
		ReviewScoreThreshold: 0.6,
		PassScore:            0.7,
		MaxMissingRequired:   1,
	}
}
