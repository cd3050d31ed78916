// internal/workers/application/make-decision/config.go
package makedecision

import "social-support-workers/internal/common/config"

// ProgramProfile holds the presentation data for a recommended program.
type ProgramProfile struct {
	Timeline    string
	BaseSuccess float64
}

type Config struct {
	Scoring config.DecisionScoring
	// ReviewValidationScore is the validation score below which a case worker must review.
	ReviewValidationScore float64

	BaseDurationMonths int
	MinDurationMonths  int
	MaxDurationMonths  int

	Programs       map[string]ProgramProfile
	DefaultProgram ProgramProfile
}

func LoadConfig() *Config {
	return &Config{
		Scoring:               config.DefaultScoring().Decision,
		ReviewValidationScore: 0.6,
		BaseDurationMonths:    6,
		MinDurationMonths:     3,
		MaxDurationMonths:     12,
		Programs: map[string]ProgramProfile{
			"job_placement":            {Timeline: "2-4 weeks", BaseSuccess: 0.75},
			"skills_development":       {Timeline: "3-6 months", BaseSuccess: 0.65},
			"entrepreneurship_support": {Timeline: "6-12 months", BaseSuccess: 0.55},
			"financial_literacy":       {Timeline: "4-8 weeks", BaseSuccess: 0.85},
		},
		DefaultProgram: ProgramProfile{Timeline: "to be scheduled", BaseSuccess: 0.6},
	}
}

// ConfigFromScoring applies configured decision thresholds over the defaults.
func ConfigFromScoring(scoring config.DecisionScoring) *Config {
	cfg := LoadConfig()
	cfg.Scoring = scoring
	return cfg
}
