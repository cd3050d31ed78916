// internal/workers/application/validate-application-data/handler.go
package validateapplicationdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/common/normalize"
	"social-support-workers/internal/models"
)

const (
	TaskType = "validate-application-data"
)

var (
	ErrApplicationValidationFailed = errors.New("APPLICATION_VALIDATION_FAILED")
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
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
		return nil, fmt.Errorf("%w: input is nil", ErrApplicationValidationFailed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := models.ValidationReport{}

	personalIssues := h.checkPersonalConsistency(input.Form, input.Record, &report)
	report.PersonalConfidence = normalize.Round3(math.Max(0.5, 1-0.1*float64(len(personalIssues))))

	report.FormatResults = h.checkFormats(input.Record.PersonalInfo)

	financialIssues := h.checkFinancialValidity(input.Record.FinancialInfo, &report)
	report.FinancialConfidence = normalize.Round3(math.Max(0.3, 1-0.2*float64(countHigh(financialIssues))))

	conflicts := h.checkCrossSource(input.Record, &report)
	report.ConsistencyConfidence = normalize.Round3(math.Max(0.4, 1-0.2*float64(countHighConflicts(conflicts))))

	report.CompletenessScore = normalize.Round3(h.checkCompleteness(input.Record, &report))

	report.Issues = append(report.Issues, personalIssues...)
	report.Issues = append(report.Issues, financialIssues...)
	for _, c := range conflicts {
		report.Issues = append(report.Issues, models.Issue{
			Kind:     c.Kind,
			Field:    c.Field,
			Severity: c.Severity,
			Message:  c.Message,
		})
	}

	critical := report.CriticalIssueCount()
	avg := (report.PersonalConfidence + report.FinancialConfidence +
		report.ConsistencyConfidence + report.CompletenessScore) / 4
	penalty := math.Min(0.3, 0.1*float64(critical))
	report.ValidationScore = normalize.Round3(normalize.Clamp01(avg - penalty))

	report.RequiresManualReview = critical > 0 ||
		report.ValidationScore < h.config.ReviewScoreThreshold ||
		len(report.MissingRequired) > h.config.MaxMissingRequired

	passed := report.ValidationScore >= h.config.PassScore && critical == 0

	h.logger.Info("application data validated", map[string]interface{}{
		"applicationId":   input.Record.ApplicationID,
		"validationScore": report.ValidationScore,
		"issues":          len(report.Issues),
		"criticalIssues":  critical,
		"manualReview":    report.RequiresManualReview,
	})

	return &Output{Report: report, Passed: passed}, nil
}

// ==========================
// Personal-info consistency
// ==========================

func (h *Handler) checkPersonalConsistency(form models.ApplicantForm, record models.ConsolidatedRecord, report *models.ValidationReport) []models.Issue {
	formInfo := models.FormPersonalInfo(form)
	var issues []models.Issue

	for _, field := range identityFields {
		fv, cv := formInfo.Get(field), record.PersonalInfo.Get(field)
		if normalize.Text(fv) == "" || normalize.Text(cv) == "" {
			continue
		}

		similarity, consistent := h.compareField(field, fv, cv)
		report.FieldConsistency = append(report.FieldConsistency, models.FieldConsistency{
			Field:             field,
			FormValue:         fv,
			ConsolidatedValue: cv,
			Similarity:        normalize.Round3(similarity),
			Consistent:        consistent,
		})
		if consistent {
			continue
		}

		kind := models.IssueFieldMismatch
		if isNameField(field) {
			kind = models.IssueNameMismatch
		}
		issues = append(issues, models.Issue{
			Kind:     kind,
			Field:    field,
			Severity: models.SeverityMedium,
			Message:  fmt.Sprintf("%s differs between form (%q) and documents (%q)", field, fv, cv),
		})
	}
	return issues
}

func (h *Handler) compareField(field, formValue, docValue string) (float64, bool) {
	a, b := normalize.Text(formValue), normalize.Text(docValue)
	if a == b {
		return 1, true
	}

	switch {
	case isNameField(field):
		sim := positionalSimilarity(a, b)
		return sim, sim >= h.config.NameSimilarityThreshold
	case field == models.FieldEmiratesID || field == models.FieldPhone:
		if da, db := normalize.Digits(a), normalize.Digits(b); da != "" && da == db {
			return 1, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func isNameField(field string) bool {
	return field == models.FieldFirstName || field == models.FieldLastName
}

// positionalSimilarity is the share of positions holding the same character, over the longer length.
func positionalSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	if longer == 0 {
		return 1
	}
	matches := 0
	for i := 0; i < len(ra) && i < len(rb); i++ {
		if ra[i] == rb[i] {
			matches++
		}
	}
	return float64(matches) / float64(longer)
}

// ==========================
// Format checks
// ==========================

func (h *Handler) checkFormats(p models.PersonalInfo) []models.FormatResult {
	results := []models.FormatResult{validateEmiratesID(p.EmiratesID)}
	if p.Email != "" {
		results = append(results, validateEmail(p.Email))
	}
	if p.Phone != "" {
		results = append(results, validatePhone(p.Phone))
	}
	if p.DateOfBirth != "" {
		results = append(results, validateDate(p.DateOfBirth))
	}
	return results
}

func validateEmiratesID(id string) models.FormatResult {
	r := models.FormatResult{Field: models.FieldEmiratesID, Value: id}
	switch {
	case normalize.Text(id) == "":
		r.Message = "Missing Emirates ID"
	case !models.ValidEmiratesID(id):
		r.Message = "Emirates ID must have 15 digits"
	default:
		r.Valid = true
	}
	return r
}

func validateEmail(email string) models.FormatResult {
	r := models.FormatResult{Field: models.FieldEmail, Value: email, Valid: emailRegex.MatchString(email)}
	if !r.Valid {
		r.Message = "Invalid email format"
	}
	return r
}

func validatePhone(phone string) models.FormatResult {
	cleaned := phoneStrip.ReplaceAllString(phone, "")
	r := models.FormatResult{Field: models.FieldPhone, Value: phone}
	for _, re := range phoneRegexes {
		if re.MatchString(cleaned) {
			r.Valid = true
			return r
		}
	}
	r.Message = "Invalid UAE phone number format"
	return r
}

func validateDate(date string) models.FormatResult {
	r := models.FormatResult{Field: models.FieldDateOfBirth, Value: date}
	for _, re := range dateRegexes {
		if re.MatchString(date) {
			r.Valid = true
			return r
		}
	}
	r.Message = "Invalid date format"
	return r
}

// ==========================
// Financial validity
// ==========================

func (h *Handler) checkFinancialValidity(fin models.FinancialInfo, report *models.ValidationReport) []models.Issue {
	var issues []models.Issue

	for _, field := range models.FinancialFields {
		bounds := h.config.Ranges[field]
		value := fin.Get(field)

		if value == nil {
			raw, invalid := fin.InvalidValues[field]
			if !invalid {
				continue
			}
			report.RangeResults = append(report.RangeResults, models.RangeResult{
				Field: field, Min: bounds.Min, Max: bounds.Max, Message: "not a number",
			})
			issues = append(issues, models.Issue{
				Kind:     models.IssueInvalidNumber,
				Field:    field,
				Severity: models.SeverityHigh,
				Message:  fmt.Sprintf("%s is not numeric: %q", field, raw),
			})
			continue
		}

		v := *value
		result := models.RangeResult{Field: field, Value: &v, Min: bounds.Min, Max: bounds.Max, Valid: true}
		if v < bounds.Min || v > bounds.Max {
			result.Valid = false
			result.Message = fmt.Sprintf("outside %.0f-%.0f", bounds.Min, bounds.Max)
			severity := models.SeverityMedium
			if v < 0 {
				severity = models.SeverityHigh
			}
			issues = append(issues, models.Issue{
				Kind:     models.IssueOutOfRange,
				Field:    field,
				Severity: severity,
				Message:  fmt.Sprintf("%s value %.2f is %s", field, v, result.Message),
			})
		}
		report.RangeResults = append(report.RangeResults, result)
	}

	if fin.TotalLiabilities != nil && fin.TotalAssets != nil &&
		*fin.TotalLiabilities > h.config.DebtToAssetLimit**fin.TotalAssets {
		issues = append(issues, models.Issue{
			Kind:     models.IssueHighDebtRatio,
			Field:    models.FieldTotalLiabilities,
			Severity: models.SeverityMedium,
			Message:  "liabilities exceed 1.5 times total assets",
		})
	}

	if fin.BankBalance != nil && fin.MonthlyIncome != nil && *fin.MonthlyIncome > 0 &&
		*fin.BankBalance > h.config.BalanceToIncomeLimit**fin.MonthlyIncome {
		issues = append(issues, models.Issue{
			Kind:     models.IssueUnusualBalance,
			Field:    models.FieldBankBalance,
			Severity: models.SeverityLow,
			Message:  "bank balance exceeds 100 months of declared income",
		})
	}
	return issues
}

// ==========================
// Cross-document consistency
// ==========================

func (h *Handler) checkCrossSource(record models.ConsolidatedRecord, report *models.ValidationReport) []models.SourceConflict {
	keys := make([]string, 0, len(record.DataSources))
	for k := range record.DataSources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ds := record.DataSources[k]
		report.SourceReliability = append(report.SourceReliability, models.SourceReliability{
			Source:     k,
			Confidence: ds.Confidence,
			Quality:    ds.Quality,
			Reliable: ds.Confidence > h.config.ReliableConfidence &&
				(ds.Quality == models.QualityGood || ds.Quality == models.QualityExcellent),
		})
	}

	readings := record.FinancialInfo.Sources[models.FieldMonthlyIncome]
	if len(readings) < 2 {
		return nil
	}

	lo, hi := readings[0].Value, readings[0].Value
	for _, r := range readings[1:] {
		lo = math.Min(lo, r.Value)
		hi = math.Max(hi, r.Value)
	}
	if hi <= h.config.IncomeConflictRatio*lo {
		return nil
	}

	ratio := 0.0
	if lo > 0 {
		ratio = normalize.Round3(hi / lo)
	}
	conflict := models.SourceConflict{
		Kind:     models.IssueIncomeInconsistency,
		Field:    models.FieldMonthlyIncome,
		Severity: models.SeverityHigh,
		Values:   append([]models.SourceValue{}, readings...),
		Ratio:    ratio,
		Message:  fmt.Sprintf("income sources disagree: %.2f vs %.2f", lo, hi),
	}
	report.CrossSourceConflicts = append(report.CrossSourceConflicts, conflict)
	return []models.SourceConflict{conflict}
}

// ==========================
// Completeness
// ==========================

func (h *Handler) checkCompleteness(record models.ConsolidatedRecord, report *models.ValidationReport) float64 {
	present := func(f completenessField) bool {
		if f.category == "financial" {
			return record.FinancialInfo.Get(f.field) != nil
		}
		return normalize.Text(record.PersonalInfo.Get(f.field)) != ""
	}

	report.MissingRequired = []string{}
	report.MissingOptional = []string{}

	requiredPresent := 0
	for _, f := range requiredFields {
		if present(f) {
			requiredPresent++
		} else {
			report.MissingRequired = append(report.MissingRequired, f.String())
		}
	}
	optionalPresent := 0
	for _, f := range optionalFields {
		if present(f) {
			optionalPresent++
		} else {
			report.MissingOptional = append(report.MissingOptional, f.String())
		}
	}

	return 0.7*float64(requiredPresent)/float64(len(requiredFields)) +
		0.3*float64(optionalPresent)/float64(len(optionalFields))
}

func countHigh(issues []models.Issue) int {
	n := 0
	for _, i := range issues {
		if i.Severity == models.SeverityHigh {
			n++
		}
	}
	return n
}

func countHighConflicts(conflicts []models.SourceConflict) int {
	n := 0
	for _, c := range conflicts {
		if c.Severity == models.SeverityHigh {
			n++
		}
	}
	return n
}
