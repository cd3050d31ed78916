// internal/models/validation.go
package models

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Issue kinds raised by the validator.
const (
	IssueNameMismatch        = "name_mismatch"
	IssueFieldMismatch       = "field_mismatch"
	IssueOutOfRange          = "out_of_range"
	IssueInvalidNumber       = "invalid_number"
	IssueHighDebtRatio       = "high_debt_ratio"
	IssueUnusualBalance      = "unusual_balance"
	IssueIncomeInconsistency = "income_inconsistency"
)

type Issue struct {
	Kind     string   `json:"kind"`
	Field    string   `json:"field"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type FieldConsistency struct {
	Field             string  `json:"field"`
	FormValue         string  `json:"form_value"`
	ConsolidatedValue string  `json:"consolidated_value"`
	Similarity        float64 `json:"similarity"`
	Consistent        bool    `json:"consistent"`
}

type FormatResult struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

type RangeResult struct {
	Field   string   `json:"field"`
	Value   *float64 `json:"value,omitempty"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Valid   bool     `json:"valid"`
	Message string   `json:"message,omitempty"`
}

type SourceConflict struct {
	Kind     string        `json:"kind"`
	Field    string        `json:"field"`
	Severity Severity      `json:"severity"`
	Values   []SourceValue `json:"values"`
	Ratio    float64       `json:"ratio"`
	Message  string        `json:"message"`
}

type SourceReliability struct {
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	Quality    string  `json:"quality"`
	Reliable   bool    `json:"reliable"`
}

// ValidationReport is produced once per application and consumed by eligibility and decision.
type ValidationReport struct {
	FieldConsistency     []FieldConsistency  `json:"field_consistency"`
	FormatResults        []FormatResult      `json:"format_results"`
	RangeResults         []RangeResult       `json:"range_results"`
	CrossSourceConflicts []SourceConflict    `json:"cross_source_conflicts"`
	SourceReliability    []SourceReliability `json:"source_reliability"`

	PersonalConfidence    float64 `json:"personal_confidence"`
	FinancialConfidence   float64 `json:"financial_confidence"`
	ConsistencyConfidence float64 `json:"consistency_confidence"`
	CompletenessScore     float64 `json:"completeness_score"`

	MissingRequired []string `json:"missing_required"`
	MissingOptional []string `json:"missing_optional"`

	Issues               []Issue `json:"issues"`
	ValidationScore      float64 `json:"validation_score"`
	RequiresManualReview bool    `json:"requires_manual_review"`
}

// CriticalIssueCount counts high-severity issues.
func (r ValidationReport) CriticalIssueCount() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityHigh {
			n++
		}
	}
	return n
}
