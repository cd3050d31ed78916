// internal/workers/application/consolidate-documents/models.go
package consolidatedocuments

import "social-support-workers/internal/models"

type Input struct {
	Form      models.ApplicantForm        `json:"form"`
	Documents []models.DocumentExtraction `json:"documents"`
}

type Output struct {
	Record   models.ConsolidatedRecord `json:"consolidated_record"`
	Failures []DocumentFailure         `json:"failures,omitempty"`
}

// DocumentFailure is a document whose merge failed; the rest of the documents are still merged.
type DocumentFailure struct {
	Source       string              `json:"source"`
	DocumentID   string              `json:"document_id"`
	DocumentType models.DocumentType `json:"document_type"`
	Error        string              `json:"error"`
}
