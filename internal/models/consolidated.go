// internal/models/consolidated.go
package models

// Canonical personal field names.
const (
	FieldEmiratesID  = "emirates_id"
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldDateOfBirth = "date_of_birth"
	FieldNationality = "nationality"
	FieldEmail       = "email"
	FieldPhone       = "phone"
)

// Canonical financial field names.
const (
	FieldMonthlyIncome    = "monthly_income"
	FieldBankBalance      = "bank_balance"
	FieldTotalAssets      = "total_assets"
	FieldTotalLiabilities = "total_liabilities"
	FieldCreditScore      = "credit_score"
)

// FinancialFields is the fixed iteration order for canonical financial fields.
var FinancialFields = []string{
	FieldMonthlyIncome,
	FieldBankBalance,
	FieldTotalAssets,
	FieldTotalLiabilities,
	FieldCreditScore,
}

type PersonalInfo struct {
	EmiratesID  string `json:"emirates_id,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// Get returns a personal field by canonical name; unknown names are empty.
func (p PersonalInfo) Get(field string) string {
	switch field {
	case FieldEmiratesID:
		return p.EmiratesID
	case FieldFirstName:
		return p.FirstName
	case FieldLastName:
		return p.LastName
	case FieldDateOfBirth:
		return p.DateOfBirth
	case FieldNationality:
		return p.Nationality
	case FieldEmail:
		return p.Email
	case FieldPhone:
		return p.Phone
	default:
		return ""
	}
}

// FormPersonalInfo projects the identity fields of a form.
func FormPersonalInfo(f ApplicantForm) PersonalInfo {
	return PersonalInfo{
		EmiratesID:  f.EmiratesID,
		FirstName:   f.FirstName,
		LastName:    f.LastName,
		DateOfBirth: f.DateOfBirth,
		Nationality: f.Nationality,
		Email:       f.Email,
		Phone:       f.Phone,
	}
}

// SourceValue is one document's reading of a canonical field, kept for audit.
type SourceValue struct {
	Source     string  `json:"source"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
}

type FinancialInfo struct {
	MonthlyIncome    *float64 `json:"monthly_income,omitempty"`
	BankBalance      *float64 `json:"bank_balance,omitempty"`
	TotalAssets      *float64 `json:"total_assets,omitempty"`
	TotalLiabilities *float64 `json:"total_liabilities,omitempty"`
	CreditScore      *float64 `json:"credit_score,omitempty"`
	EmploymentStatus string   `json:"employment_status,omitempty"`

	// FieldConfidence is the confidence of the source that supplied each canonical value.
	FieldConfidence map[string]float64 `json:"field_confidence,omitempty"`
	// Sources holds every gated document reading per canonical field, in merge order.
	Sources map[string][]SourceValue `json:"sources,omitempty"`
	// InvalidValues keeps raw text that could not be parsed as a number.
	InvalidValues map[string]string `json:"invalid_values,omitempty"`
}

// Get returns a canonical financial field by name.
func (f FinancialInfo) Get(field string) *float64 {
	switch field {
	case FieldMonthlyIncome:
		return f.MonthlyIncome
	case FieldBankBalance:
		return f.BankBalance
	case FieldTotalAssets:
		return f.TotalAssets
	case FieldTotalLiabilities:
		return f.TotalLiabilities
	case FieldCreditScore:
		return f.CreditScore
	default:
		return nil
	}
}

// Set assigns a canonical financial field by name.
func (f *FinancialInfo) Set(field string, v *float64) {
	switch field {
	case FieldMonthlyIncome:
		f.MonthlyIncome = v
	case FieldBankBalance:
		f.BankBalance = v
	case FieldTotalAssets:
		f.TotalAssets = v
	case FieldTotalLiabilities:
		f.TotalLiabilities = v
	case FieldCreditScore:
		f.CreditScore = v
	}
}

type EmploymentInfo struct {
	CurrentPosition string   `json:"current_position,omitempty"`
	ExperienceYears *float64 `json:"experience_years,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	Education       string   `json:"education,omitempty"`
	Source          string   `json:"source,omitempty"`
}

type FamilyInfo struct {
	FamilySize *int `json:"family_size,omitempty"`
	Dependents *int `json:"dependents,omitempty"`
}

// Data quality labels.
const (
	QualityPoor      = "poor"
	QualityFair      = "fair"
	QualityGood      = "good"
	QualityExcellent = "excellent"
)

// DataSource describes how one supplied document contributed to the record.
type DataSource struct {
	DocumentID   string       `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	Confidence   float64      `json:"confidence"`
	Quality      string       `json:"quality"`
	Fields       []string     `json:"fields"`
	Applied      bool         `json:"applied"`
	Error        string       `json:"error,omitempty"`
}

// ConsolidatedRecord is the single merged view of an applicant. Later stages only read it.
type ConsolidatedRecord struct {
	ApplicationID     string                `json:"application_id"`
	PersonalInfo      PersonalInfo          `json:"personal_info"`
	FinancialInfo     FinancialInfo         `json:"financial_info"`
	EmploymentInfo    EmploymentInfo        `json:"employment_info"`
	FamilyInfo        FamilyInfo            `json:"family_info"`
	DataSources       map[string]DataSource `json:"data_sources"`
	OverallConfidence float64               `json:"overall_confidence"`
}

// FullName joins the consolidated first and last name.
func (r ConsolidatedRecord) FullName() string {
	switch {
	case r.PersonalInfo.FirstName == "":
		return r.PersonalInfo.LastName
	case r.PersonalInfo.LastName == "":
		return r.PersonalInfo.FirstName
	default:
		return r.PersonalInfo.FirstName + " " + r.PersonalInfo.LastName
	}
}
