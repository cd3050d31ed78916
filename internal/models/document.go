// internal/models/document.go
package models

// DocumentType identifies which merge rule applies to an extraction.
type DocumentType string

const (
	DocEmiratesID        DocumentType = "emirates_id"
	DocBankStatement     DocumentType = "bank_statement"
	DocCreditReport      DocumentType = "credit_report"
	DocAssetsLiabilities DocumentType = "assets_liabilities"
	DocResume            DocumentType = "resume"
)

// KnownDocumentTypes lists the supported types in canonical merge order.
var KnownDocumentTypes = []DocumentType{
	DocEmiratesID,
	DocBankStatement,
	DocCreditReport,
	DocAssetsLiabilities,
	DocResume,
}

// Rank is the position of t in the canonical merge order; unknown types sort last.
func (t DocumentType) Rank() int {
	for i, known := range KnownDocumentTypes {
		if known == t {
			return i
		}
	}
	return len(KnownDocumentTypes)
}

func (t DocumentType) Known() bool {
	return t.Rank() < len(KnownDocumentTypes)
}

// IsFinancial reports whether t feeds the canonical financial fields.
func (t DocumentType) IsFinancial() bool {
	return t == DocBankStatement || t == DocCreditReport || t == DocAssetsLiabilities
}

// DocumentUpload references an uploaded file awaiting extraction.
type DocumentUpload struct {
	ID           string            `json:"id"`
	DocumentType DocumentType      `json:"document_type"`
	FilePath     string            `json:"file_path"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// DocumentExtraction is the external extractor's read-only result for one document.
type DocumentExtraction struct {
	DocumentID      string                 `json:"document_id"`
	DocumentType    DocumentType           `json:"document_type"`
	FieldMap        map[string]interface{} `json:"field_map"`
	RawText         string                 `json:"raw_text,omitempty"`
	FieldConfidence map[string]float64     `json:"field_confidence,omitempty"`
	Confidence      float64                `json:"confidence"`
}
