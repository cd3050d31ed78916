// internal/workers/application/extract-documents/handler.go
package extractdocuments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	TaskType = "extract-documents"
)

var (
	ErrExtractionFailed = errors.New("DOCUMENT_EXTRACTION_FAILED")
)

type Handler struct {
	config    *Config
	extractor Extractor
	logger    logger.Logger
}

// NewHandler builds the extraction pool. A nil extractor selects the HTTP extractor.
func NewHandler(config *Config, extractor Extractor, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if extractor == nil {
		extractor = NewHTTPExtractor(config)
	}
	return &Handler{
		config:    config,
		extractor: extractor,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

type result struct {
	extraction models.DocumentExtraction
	err        error
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: input is nil", ErrExtractionFailed)
	}

	results := make([]result, len(input.Documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Concurrency)

	for i, doc := range input.Documents {
		i, doc := i, doc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = result{err: err}
				return nil
			}
			results[i] = h.extractOne(gctx, doc)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Output{
		Extractions: make([]models.DocumentExtraction, len(input.Documents)),
		Failures:    []DocumentFailure{},
	}
	for i, doc := range input.Documents {
		r := results[i]
		if r.err != nil {
			out.Extractions[i] = models.DocumentExtraction{
				DocumentID:   doc.ID,
				DocumentType: doc.DocumentType,
				FieldMap:     map[string]interface{}{},
			}
			out.Failures = append(out.Failures, DocumentFailure{
				DocumentID:   doc.ID,
				DocumentType: doc.DocumentType,
				Error:        fmt.Sprintf("Error processing document %s: %v", doc.ID, r.err),
			})
			continue
		}
		out.Extractions[i] = r.extraction
		out.Processed++
	}

	h.logger.Info("documents extracted", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"documents":     len(input.Documents),
		"processed":     out.Processed,
		"failed":        len(out.Failures),
	})

	return out, nil
}

// extractOne runs a single extraction under its own deadline, converting panics into errors.
func (h *Handler) extractOne(ctx context.Context, doc models.DocumentUpload) (r result) {
	defer func() {
		if p := recover(); p != nil {
			r = result{err: fmt.Errorf("%w: extractor panicked: %v", ErrExtractionFailed, p)}
		}
	}()

	if h.config.PerDocumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.PerDocumentTimeout)
		defer cancel()
	}

	start := time.Now()
	extraction, err := h.extractor.Extract(ctx, doc)
	if err != nil {
		h.logger.Warn("document extraction failed", map[string]interface{}{
			"documentId":   doc.ID,
			"documentType": doc.DocumentType,
			"error":        err.Error(),
		})
		return result{err: err}
	}

	if extraction.DocumentID == "" {
		extraction.DocumentID = doc.ID
	}
	if extraction.DocumentType == "" {
		extraction.DocumentType = doc.DocumentType
	}
	if extraction.FieldMap == nil {
		extraction.FieldMap = map[string]interface{}{}
	}

	h.logger.Debug("document extracted", map[string]interface{}{
		"documentId": doc.ID,
		"fields":     len(extraction.FieldMap),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return result{extraction: extraction}
}
