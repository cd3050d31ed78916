// internal/workers/ai/decision-reasoning/handler_test.go
package decisionreasoning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
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

func testContext() models.ReasoningContext {
	return models.ReasoningContext{
		ApplicantName:        "Ahmed Hassan",
		Outcome:              models.OutcomeApprove,
		SupportAmount:        2100,
		DurationMonths:       9,
		TopPrograms:          []string{"job_placement"},
		PriorityLevel:        models.PriorityMedium,
		MonthlyIncome:        models.FloatPtr(1500),
		FamilySize:           models.IntPtr(5),
		EmploymentStatus:     "unemployed",
		EligibilityScore:     0.79,
		Eligible:             true,
		EligibleProgramCount: 3,
	}
}

// chatServer answers every completion request with content.
func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Ahmed Hassan")

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newHandler(t *testing.T, baseURL string) *Handler {
	cfg := LoadConfig()
	cfg.BaseURL = baseURL
	cfg.APIKey = "test-key"
	cfg.Model = "test-model"
	cfg.MaxRetries = 0
	cfg.Timeout = 2 * time.Second
	return NewHandler(cfg, newTestLogger(t))
}

func TestHandler_Explain_StructuredAnswers(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantText       string
		wantNextSteps  []string
		wantConditions []string
	}{
		{
			name:           "plain json",
			content:        `{"reasoning":"Income is below the support threshold.","next_steps":["Sign agreement"],"conditions":[]}`,
			wantText:       "Income is below the support threshold.",
			wantNextSteps:  []string{"Sign agreement"},
			wantConditions: []string{},
		},
		{
			name:           "fenced json",
			content:        "```json\n{\"reasoning\":\"Approved.\",\"conditions\":[\"Provide payslips\"]}\n```",
			wantText:       "Approved.",
			wantNextSteps:  []string{},
			wantConditions: []string{"Provide payslips"},
		},
		{
			name:           "list items are capped",
			content:        `{"reasoning":"Approved.","next_steps":["a","b","","c","d","e","f"]}`,
			wantText:       "Approved.",
			wantNextSteps:  []string{"a", "b", "c", "d", "e"},
			wantConditions: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, http.StatusOK, tt.content)
			defer srv.Close()

			r, err := newHandler(t, srv.URL).Explain(context.Background(), testContext())

			require.NoError(t, err)
			assert.Equal(t, tt.wantText, r.Text)
			assert.Equal(t, tt.wantNextSteps, r.NextSteps)
			assert.Equal(t, tt.wantConditions, r.Conditions)
			assert.Equal(t, models.ReasoningGenerator, r.Source)
		})
	}
}

func TestHandler_Explain_PlainTextAnswer(t *testing.T) {
	content := strings.Join([]string{
		"The applicant qualifies because household income is well below the limit.",
		"",
		"Next Steps:",
		"1. Sign the support agreement",
		"2. Attend the orientation",
		"",
		"## Conditions",
		"- Provide updated bank statements",
	}, "\n")
	srv := chatServer(t, http.StatusOK, content)
	defer srv.Close()

	r, err := newHandler(t, srv.URL).Explain(context.Background(), testContext())

	require.NoError(t, err)
	assert.Equal(t, "The applicant qualifies because household income is well below the limit.", r.Text)
	assert.Equal(t, []string{"Sign the support agreement", "Attend the orientation"}, r.NextSteps)
	assert.Equal(t, []string{"Provide updated bank statements"}, r.Conditions)
}

func TestHandler_Explain_PlainTextIsTruncated(t *testing.T) {
	srv := chatServer(t, http.StatusOK, strings.Repeat("x", 800))
	defer srv.Close()

	r, err := newHandler(t, srv.URL).Explain(context.Background(), testContext())

	require.NoError(t, err)
	assert.Len(t, r.Text, 500)
	assert.Empty(t, r.NextSteps)
}

func TestHandler_Explain_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, "", ErrReasoningUnavailable},
		{"empty content", http.StatusOK, "  ", ErrReasoningMalformed},
		{"broken json", http.StatusOK, `{"reasoning": "unterminated`, ErrReasoningMalformed},
		{"schema violation", http.StatusOK, `{"next_steps": ["a"]}`, ErrReasoningMalformed},
		{"wrong types", http.StatusOK, `{"reasoning": "ok", "next_steps": "a"}`, ErrReasoningMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := chatServer(t, tt.status, tt.content)
			defer srv.Close()

			_, err := newHandler(t, srv.URL).Explain(context.Background(), testContext())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHandler_Explain_NotConfigured(t *testing.T) {
	_, err := newHandler(t, "").Explain(context.Background(), testContext())
	assert.ErrorIs(t, err, ErrReasoningUnavailable)
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := buildPrompt(testContext())
	require.NoError(t, err)
	assert.Contains(t, prompt, `"outcome": "approve"`)
	assert.Contains(t, prompt, `"support_amount": 2100`)
	assert.Contains(t, prompt, "STRICTLY as JSON")
}
