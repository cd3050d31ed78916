// internal/workers/application/extract-documents/handler_test.go
package extractdocuments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

// funcExtractor adapts a function to the Extractor interface.
type funcExtractor func(ctx context.Context, doc models.DocumentUpload) (models.DocumentExtraction, error)

func (f funcExtractor) Extract(ctx context.Context, doc models.DocumentUpload) (models.DocumentExtraction, error) {
	return f(ctx, doc)
}

func uploads() []models.DocumentUpload {
	return []models.DocumentUpload{
		{ID: "doc-1", DocumentType: models.DocEmiratesID, FilePath: "/uploads/eid.png"},
		{ID: "doc-2", DocumentType: models.DocBankStatement, FilePath: "/uploads/bank.pdf"},
		{ID: "doc-3", DocumentType: models.DocResume, FilePath: "/uploads/cv.pdf"},
	}
}

func TestHandler_Execute_PreservesOrderAndIsolatesFailures(t *testing.T) {
	extractor := funcExtractor(func(ctx context.Context, doc models.DocumentUpload) (models.DocumentExtraction, error) {
		switch doc.ID {
		case "doc-1":
			time.Sleep(30 * time.Millisecond)
			return models.DocumentExtraction{FieldMap: map[string]interface{}{"name": "Ahmed Hassan"}, Confidence: 0.9}, nil
		case "doc-2":
			return models.DocumentExtraction{}, errors.New("unreadable scan")
		default:
			return models.DocumentExtraction{FieldMap: map[string]interface{}{"skills": []string{"communication"}}, Confidence: 0.7}, nil
		}
	})

	h := NewHandler(&Config{Concurrency: 3}, extractor, newTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1", Documents: uploads()})

	require.NoError(t, err)
	require.Len(t, out.Extractions, 3)
	assert.Equal(t, 2, out.Processed)

	assert.Equal(t, "doc-1", out.Extractions[0].DocumentID)
	assert.Equal(t, models.DocEmiratesID, out.Extractions[0].DocumentType)
	assert.Equal(t, "Ahmed Hassan", out.Extractions[0].FieldMap["name"])

	assert.Equal(t, "doc-2", out.Extractions[1].DocumentID)
	assert.Empty(t, out.Extractions[1].FieldMap)
	assert.NotNil(t, out.Extractions[1].FieldMap)
	assert.Equal(t, 0.0, out.Extractions[1].Confidence)

	assert.Equal(t, "doc-3", out.Extractions[2].DocumentID)

	require.Len(t, out.Failures, 1)
	assert.Equal(t, "doc-2", out.Failures[0].DocumentID)
	assert.Equal(t, "Error processing document doc-2: unreadable scan", out.Failures[0].Error)
}

func TestHandler_Execute_RespectsConcurrencyLimit(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	extractor := funcExtractor(func(ctx context.Context, doc models.DocumentUpload) (models.DocumentExtraction, error) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return models.DocumentExtraction{Confidence: 1}, nil
	})

	docs := make([]models.DocumentUpload, 10)
	for i := range docs {
		docs[i] = models.DocumentUpload{ID: string(rune('a' + i)), DocumentType: models.DocResume}
	}

	h := NewHandler(&Config{Concurrency: 2}, extractor, newTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{Documents: docs})

	require.NoError(t, err)
	assert.Equal(t, 10, out.Processed)
	assert.LessOrEqual(t, maxSeen, 2)
}

func TestHandler_Execute_RecoversExtractorPanic(t *testing.T) {
	extractor := funcExtractor(func(ctx context.Context, doc models.DocumentUpload) (models.DocumentExtraction, error) {
		panic("boom")
	})

	h := NewHandler(&Config{Concurrency: 1}, extractor, newTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{Documents: uploads()[:1]})

	require.NoError(t, err)
	assert.Equal(t, 0, out.Processed)
	require.Len(t, out.Failures, 1)
	assert.Contains(t, out.Failures[0].Error, "extractor panicked")
}

func TestHandler_Execute_EmptyDocumentSet(t *testing.T) {
	h := NewHandler(&Config{Concurrency: 2}, funcExtractor(nil), newTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})

	require.NoError(t, err)
	assert.Empty(t, out.Extractions)
	assert.Empty(t, out.Failures)
	assert.Equal(t, 0, out.Processed)
}

func TestHandler_Execute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	extractor := funcExtractor(func(ctx context.Context, doc models.DocumentUpload) (models.DocumentExtraction, error) {
		atomic.AddInt32(&calls, 1)
		return models.DocumentExtraction{}, nil
	})

	h := NewHandler(&Config{Concurrency: 2}, extractor, newTestLogger(t))
	_, err := h.Execute(ctx, &Input{Documents: uploads()})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestHandler_Execute_NilInput(t *testing.T) {
	h := NewHandler(nil, funcExtractor(nil), newTestLogger(t))
	_, err := h.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestHTTPExtractor_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Equal(t, "Bearer extractor-key", r.Header.Get("Authorization"))

		var req extractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "doc-2", req.DocumentID)
		assert.Equal(t, "bank_statement", req.DocumentType)
		assert.Equal(t, "/uploads/bank.pdf", req.FilePath)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"field_map": {"monthly_income": 4000, "account_balance": 12500.5},
			"raw_text": "Salary credit 4,000.00",
			"field_confidence": {"monthly_income": 0.92},
			"confidence": 1.4
		}`))
	}))
	defer srv.Close()

	e := NewHTTPExtractor(&Config{BaseURL: srv.URL, APIKey: "extractor-key", Timeout: 2 * time.Second})
	got, err := e.Extract(context.Background(), uploads()[1])

	require.NoError(t, err)
	assert.Equal(t, "doc-2", got.DocumentID)
	assert.Equal(t, models.DocBankStatement, got.DocumentType)
	assert.InDelta(t, 4000.0, got.FieldMap["monthly_income"], 0.001)
	assert.Equal(t, "Salary credit 4,000.00", got.RawText)
	assert.InDelta(t, 0.92, got.FieldConfidence["monthly_income"], 0.001)
	assert.Equal(t, 1.0, got.Confidence)
}

func TestHTTPExtractor_FailureBecomesDocumentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"unsupported format"}`))
	}))
	defer srv.Close()

	cfg := &Config{Concurrency: 2, BaseURL: srv.URL, Timeout: 2 * time.Second}
	h := NewHandler(cfg, nil, newTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{Documents: uploads()[:2]})

	require.NoError(t, err)
	assert.Equal(t, 0, out.Processed)
	require.Len(t, out.Failures, 2)
	assert.Contains(t, out.Failures[0].Error, "Error processing document doc-1")
	assert.Contains(t, out.Failures[1].Error, "unsupported format")
}
