// internal/workers/data-access/index-application-summary/handler.go
package indexapplicationsummary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/tidwall/gjson"
)

const (
	TaskType = "index-application-summary"
)

var (
	ErrIndexingFailed = errors.New("INDEXING_FAILED")
)

type Handler struct {
	config   *Config
	client   *elasticsearch.Client
	embedder Embedder
	logger   logger.Logger
}

// NewHandler builds the indexer. A nil embedder indexes summaries without vectors.
func NewHandler(config *Config, client *elasticsearch.Client, embedder Embedder, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Handler{
		config:   config,
		client:   client,
		embedder: embedder,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.Run.ApplicationID == "" {
		return nil, fmt.Errorf("%w: application id is required", ErrIndexingFailed)
	}
	if h.client == nil {
		return nil, fmt.Errorf("%w: search client not configured", ErrIndexingFailed)
	}

	doc := BuildSummary(input.Run, h.config.Now())

	if h.embedder != nil {
		embedCtx, cancel := context.WithTimeout(ctx, h.config.EmbedTimeout)
		vector, err := h.embedder.Embed(embedCtx, doc.SummaryText)
		cancel()
		if err != nil {
			h.logger.Warn("summary embedding failed, indexing without vector", map[string]interface{}{
				"applicationId": doc.ApplicationID,
				"error":         err.Error(),
			})
		} else {
			doc.Embedding = vector
		}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal summary: %v", ErrIndexingFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	res, err := h.client.Index(
		h.config.Index,
		bytes.NewReader(body),
		h.client.Index.WithDocumentID(doc.ApplicationID),
		h.client.Index.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexingFailed, err)
	}
	defer res.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(res.Body); err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrIndexingFailed, err)
	}
	if res.IsError() {
		reason := gjson.GetBytes(buf.Bytes(), "error.reason").String()
		if reason == "" {
			reason = res.Status()
		}
		return nil, fmt.Errorf("%w: %s", ErrIndexingFailed, reason)
	}

	out := &Output{
		Index:      h.config.Index,
		DocumentID: doc.ApplicationID,
		Result:     gjson.GetBytes(buf.Bytes(), "result").String(),
		Embedded:   len(doc.Embedding) > 0,
	}

	h.logger.Info("application summary indexed", map[string]interface{}{
		"applicationId": doc.ApplicationID,
		"runId":         doc.RunID,
		"result":        out.Result,
		"embedded":      out.Embedded,
	})

	return out, nil
}

// BuildSummary projects a finished run into its search document.
func BuildSummary(run models.PipelineRun, now time.Time) SummaryDocument {
	doc := SummaryDocument{
		ApplicationID:    run.ApplicationID,
		RunID:            run.RunID,
		Status:           string(run.Status),
		EligiblePrograms: []string{},
		IndexedAt:        now.UTC(),
	}

	if d := run.Decision; d != nil {
		doc.Outcome = d.Outcome
		doc.SupportAmount = d.SupportAmount
		doc.DurationMonths = d.DurationMonths
		doc.PriorityLevel = d.PriorityLevel
		doc.RequiresHumanReview = d.RequiresHumanReview
		doc.Confidence = d.Confidence
	}
	if e := run.Eligibility; e != nil {
		doc.EligibilityScore = e.FinancialSupport.Score
		doc.RiskLevel = e.RiskLevel
		for _, p := range e.EligiblePrograms() {
			doc.EligiblePrograms = append(doc.EligiblePrograms, p.Program)
		}
	}
	if r := run.Record; r != nil {
		doc.MonthlyIncome = r.FinancialInfo.MonthlyIncome
		doc.FamilySize = r.FamilyInfo.FamilySize
		doc.EmploymentStatus = r.FinancialInfo.EmploymentStatus
		doc.Skills = r.EmploymentInfo.Skills
	}

	doc.SummaryText = summaryText(doc)
	return doc
}

func summaryText(doc SummaryDocument) string {
	parts := []string{fmt.Sprintf("Application %s", doc.ApplicationID)}
	if doc.Outcome != "" {
		parts = append(parts, fmt.Sprintf("outcome %s with support %.2f for %d months", doc.Outcome, doc.SupportAmount, doc.DurationMonths))
	} else {
		parts = append(parts, "status "+doc.Status)
	}
	if doc.EmploymentStatus != "" {
		parts = append(parts, "employment "+doc.EmploymentStatus)
	}
	if doc.FamilySize != nil {
		parts = append(parts, fmt.Sprintf("family of %d", *doc.FamilySize))
	}
	if doc.MonthlyIncome != nil {
		parts = append(parts, fmt.Sprintf("monthly income %.2f", *doc.MonthlyIncome))
	}
	if len(doc.Skills) > 0 {
		parts = append(parts, "skills "+strings.Join(doc.Skills, ", "))
	}
	if len(doc.EligiblePrograms) > 0 {
		parts = append(parts, "eligible programs "+strings.Join(doc.EligiblePrograms, ", "))
	}
	return strings.Join(parts, "; ")
}
