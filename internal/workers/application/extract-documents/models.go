// internal/workers/application/extract-documents/models.go
package extractdocuments

import (
	"context"

	"social-support-workers/internal/models"
)

type Input struct {
	ApplicationID string                  `json:"application_id"`
	Documents     []models.DocumentUpload `json:"documents"`
}

type Output struct {
	// Extractions holds one entry per supplied document, in supplied order. A failed
	// document has an empty field map and confidence 0.
	Extractions []models.DocumentExtraction `json:"extractions"`
	Failures    []DocumentFailure           `json:"failures"`
	Processed   int                         `json:"processed"`
}

type DocumentFailure struct {
	DocumentID   string              `json:"document_id"`
	DocumentType models.DocumentType `json:"document_type"`
	Error        string              `json:"error"`
}

// Extractor turns one uploaded file into a field map.
type Extractor interface {
	Extract(ctx context.Context, doc models.DocumentUpload) (models.DocumentExtraction, error)
}

type extractRequest struct {
	DocumentID   string            `json:"document_id"`
	DocumentType string            `json:"document_type"`
	FilePath     string            `json:"file_path"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type extractResponse struct {
	FieldMap        map[string]interface{} `json:"field_map"`
	RawText         string                 `json:"raw_text"`
	FieldConfidence map[string]float64     `json:"field_confidence"`
	Confidence      float64                `json:"confidence"`
}
