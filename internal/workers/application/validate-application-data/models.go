// internal/workers/application/validate-application-data/models.go
package validateapplicationdata

import (
	"regexp"

	"social-support-workers/internal/models"
)

type Input struct {
	Form   models.ApplicantForm      `json:"form"`
	Record models.ConsolidatedRecord `json:"consolidated_record"`
}

type Output struct {
	Report models.ValidationReport `json:"validation_report"`
	// Passed is true when the score clears the pass mark with no critical issues.
	Passed bool `json:"passed"`
}

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneStrip = regexp.MustCompile(`[^\d+]`)
)

// UAE mobile and landline prefixes: +971, 00971 or a leading 0.
var phoneRegexes = []*regexp.Regexp{
	regexp.MustCompile(`^\+971[0-9]{8,9}$`),
	regexp.MustCompile(`^00971[0-9]{8,9}$`),
	regexp.MustCompile(`^0[0-9]{8,9}$`),
}

// YYYY-MM-DD, MM/DD/YYYY and DD-MM-YYYY.
var dateRegexes = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`),
	regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`),
}

// identityFields are compared between the form and the consolidated record.
var identityFields = []string{
	models.FieldEmiratesID,
	models.FieldFirstName,
	models.FieldLastName,
	models.FieldDateOfBirth,
	models.FieldPhone,
	models.FieldEmail,
}

type completenessField struct {
	category string
	field    string
}

func (c completenessField) String() string { return c.category + "." + c.field }

var requiredFields = []completenessField{
	{"personal", models.FieldEmiratesID},
	{"personal", models.FieldFirstName},
	{"personal", models.FieldLastName},
	{"financial", models.FieldMonthlyIncome},
}

var optionalFields = []completenessField{
	{"personal", models.FieldPhone},
	{"personal", models.FieldEmail},
	{"personal", models.FieldDateOfBirth},
	{"financial", models.FieldBankBalance},
	{"financial", models.FieldTotalAssets},
	{"financial", models.FieldCreditScore},
}
