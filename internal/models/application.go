// internal/models/application.go
package models

import "strings"

// ApplicantForm is what the applicant typed at submission time. It is never modified afterwards.
type ApplicantForm struct {
	ApplicationID        string   `json:"application_id"`
	EmiratesID           string   `json:"emirates_id,omitempty"`
	FirstName            string   `json:"first_name,omitempty"`
	LastName             string   `json:"last_name,omitempty"`
	DateOfBirth          string   `json:"date_of_birth,omitempty"`
	Nationality          string   `json:"nationality,omitempty"`
	Email                string   `json:"email,omitempty"`
	Phone                string   `json:"phone,omitempty"`
	FamilySize           *int     `json:"family_size,omitempty"`
	Dependents           *int     `json:"dependents,omitempty"`
	EmploymentStatus     string   `json:"employment_status,omitempty"`
	MonthlyIncome        *float64 `json:"monthly_income,omitempty"`
	HighestQualification string   `json:"highest_qualification,omitempty"`
}

// FullName joins first and last name.
func (f ApplicantForm) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(f.FirstName) + " " + strings.TrimSpace(f.LastName))
}

// IntPtr and FloatPtr build optional fields in fixtures and decoders.
func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }

// ValidEmiratesID reports whether id has exactly 15 digits once dashes and spaces are removed.
func ValidEmiratesID(id string) bool {
	digits := 0
	for _, r := range id {
		switch {
		case r == '-' || r == ' ':
		case r >= '0' && r <= '9':
			digits++
		default:
			return false
		}
	}
	return digits == 15
}
