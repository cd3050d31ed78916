// internal/workers/application/extract-documents/extractor.go
package extractdocuments

import (
	"context"
	"encoding/json"
	"fmt"

	commonhttp "social-support-workers/internal/common/http"
	"social-support-workers/internal/common/normalize"
	"social-support-workers/internal/models"
)

// HTTPExtractor calls the document-processing service.
type HTTPExtractor struct {
	client *commonhttp.Client
}

func NewHTTPExtractor(config *Config) *HTTPExtractor {
	return &HTTPExtractor{
		client: commonhttp.NewClient(config.BaseURL, config.Timeout, config.MaxRetries).SetAuthToken(config.APIKey),
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, doc models.DocumentUpload) (models.DocumentExtraction, error) {
	body, err := e.client.PostJSON(ctx, "/extract", extractRequest{
		DocumentID:   doc.ID,
		DocumentType: string(doc.DocumentType),
		FilePath:     doc.FilePath,
		Metadata:     doc.Metadata,
	})
	if err != nil {
		return models.DocumentExtraction{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var resp extractResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.DocumentExtraction{}, fmt.Errorf("%w: decode response: %v", ErrExtractionFailed, err)
	}
	if resp.FieldMap == nil {
		resp.FieldMap = map[string]interface{}{}
	}

	return models.DocumentExtraction{
		DocumentID:      doc.ID,
		DocumentType:    doc.DocumentType,
		FieldMap:        resp.FieldMap,
		RawText:         resp.RawText,
		FieldConfidence: resp.FieldConfidence,
		Confidence:      normalize.Clamp01(resp.Confidence),
	}, nil
}
