// internal/workers/application/check-eligibility/config.go
package checkeligibility

import (
	"fmt"
	"os"
	"time"

	"social-support-workers/internal/common/config"

	"gopkg.in/yaml.v3"
)

type ProgramWeights struct {
	Age        float64 `yaml:"age"`
	Education  float64 `yaml:"education"`
	Skills     float64 `yaml:"skills"`
	Employment float64 `yaml:"employment"`
}

// Program is one entry of the economic-enablement catalogue.
type Program struct {
	Name             string         `yaml:"name"`
	MinAge           int            `yaml:"min_age"`
	MaxAge           int            `yaml:"max_age"`
	RequiredSkills   []string       `yaml:"required_skills"`
	TargetEmployment []string       `yaml:"target_employment"`
	Weights          ProgramWeights `yaml:"weights"`
	Threshold        float64        `yaml:"threshold"`
	NextSteps        []string       `yaml:"next_steps"`
}

type catalogFile struct {
	Programs []Program `yaml:"programs"`
}

type Config struct {
	Scoring  config.EligibilityScoring
	Programs []Program
	// Now is the clock used for age calculation.
	Now func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		Scoring:  config.DefaultScoring().Eligibility,
		Programs: DefaultPrograms(),
		Now:      time.Now,
	}
}

// ConfigFromScoring builds a Config from the scoring section, reading the program
// catalogue override when a path is set.
func ConfigFromScoring(scoring config.EligibilityScoring) (*Config, error) {
	cfg := &Config{Scoring: scoring, Programs: DefaultPrograms(), Now: time.Now}
	if scoring.ProgramCatalogPath == "" {
		return cfg, nil
	}
	programs, err := LoadProgramCatalog(scoring.ProgramCatalogPath)
	if err != nil {
		return nil, err
	}
	cfg.Programs = programs
	return cfg, nil
}

// LoadProgramCatalog reads a YAML catalogue of the form `programs: [...]`.
func LoadProgramCatalog(path string) ([]Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program catalogue: %w", err)
	}
	return ParseProgramCatalog(data)
}

func ParseProgramCatalog(data []byte) ([]Program, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse program catalogue: %w", err)
	}
	if len(file.Programs) == 0 {
		return nil, fmt.Errorf("program catalogue is empty")
	}
	seen := map[string]bool{}
	for i, p := range file.Programs {
		switch {
		case p.Name == "":
			return nil, fmt.Errorf("program %d has no name", i)
		case seen[p.Name]:
			return nil, fmt.Errorf("program %q listed twice", p.Name)
		case p.Threshold < 0 || p.Threshold > 1:
			return nil, fmt.Errorf("program %q threshold %.2f outside [0,1]", p.Name, p.Threshold)
		case p.MaxAge < p.MinAge:
			return nil, fmt.Errorf("program %q has max_age below min_age", p.Name)
		}
		seen[p.Name] = true
	}
	return file.Programs, nil
}

func DefaultPrograms() []Program {
	return []Program{
		{
			Name:             "skills_development",
			MinAge:           18,
			MaxAge:           55,
			RequiredSkills:   []string{"basic_computer", "communication"},
			TargetEmployment: []string{"unemployed", "underemployed"},
			Weights:          ProgramWeights{Age: 0.2, Education: 0.3, Skills: 0.3, Employment: 0.2},
			Threshold:        0.5,
			NextSteps:        []string{"Enroll in a skills assessment", "Choose a training track"},
		},
		{
			Name:             "entrepreneurship_support",
			MinAge:           21,
			MaxAge:           50,
			RequiredSkills:   []string{"business_planning", "financial_literacy"},
			TargetEmployment: []string{"unemployed", "self_employed"},
			Weights:          ProgramWeights{Age: 0.15, Education: 0.35, Skills: 0.35, Employment: 0.15},
			Threshold:        0.6,
			NextSteps:        []string{"Submit a business idea outline", "Attend the entrepreneurship workshop"},
		},
		{
			Name:             "job_placement",
			MinAge:           18,
			MaxAge:           60,
			RequiredSkills:   []string{"basic_communication"},
			TargetEmployment: []string{"unemployed"},
			Weights:          ProgramWeights{Age: 0.25, Education: 0.25, Skills: 0.25, Employment: 0.25},
			Threshold:        0.4,
			NextSteps:        []string{"Upload an updated CV", "Register with the job matching service"},
		},
		{
			Name:             "financial_literacy",
			MinAge:           18,
			MaxAge:           65,
			RequiredSkills:   []string{},
			TargetEmployment: []string{"any"},
			Weights:          ProgramWeights{Age: 0.2, Education: 0.2, Skills: 0.2, Employment: 0.4},
			Threshold:        0.3,
			NextSteps:        []string{"Book a financial counselling session"},
		},
	}
}
