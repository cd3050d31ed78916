// internal/pipeline/controller_test.go
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"social-support-workers/internal/common/errors"
	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/common/metrics"
	"social-support-workers/internal/models"
	checkeligibility "social-support-workers/internal/workers/application/check-eligibility"
	consolidatedocuments "social-support-workers/internal/workers/application/consolidate-documents"
	extractdocuments "social-support-workers/internal/workers/application/extract-documents"
	makedecision "social-support-workers/internal/workers/application/make-decision"
	notifyreview "social-support-workers/internal/workers/application/notify-review"
	persistapplicationrun "social-support-workers/internal/workers/application/persist-application-run"
	trackrunstatus "social-support-workers/internal/workers/application/track-run-status"
	validateapplicationdata "social-support-workers/internal/workers/application/validate-application-data"
	indexapplicationsummary "social-support-workers/internal/workers/data-access/index-application-summary"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// ==========================
// Fakes
// ==========================

// stageFunc adapts a function to any of the stage collaborator interfaces.
type stageFunc[I, O any] func(ctx context.Context, in *I) (*O, error)

func (f stageFunc[I, O]) Execute(ctx context.Context, in *I) (*O, error) {
	return f(ctx, in)
}

type fieldExtractor map[string]models.DocumentExtraction

func (f fieldExtractor) Extract(ctx context.Context, doc models.DocumentUpload) (models.DocumentExtraction, error) {
	ext, ok := f[doc.ID]
	if !ok {
		return models.DocumentExtraction{}, fmt.Errorf("unreadable file %s", doc.FilePath)
	}
	return ext, nil
}

type memoryStatus struct {
	mu        sync.Mutex
	created   []models.RunStatusView
	saved     []models.RunStatusView
	createErr error
	saveErr   error
}

func (m *memoryStatus) Create(ctx context.Context, view models.RunStatusView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, view)
	return nil
}

func (m *memoryStatus) Save(ctx context.Context, view models.RunStatusView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, view)
	return m.saveErr
}

func (m *memoryStatus) progress() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.saved))
	for _, v := range m.saved {
		out = append(out, v.ProgressPercent)
	}
	return out
}

func (m *memoryStatus) last() models.RunStatusView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[len(m.saved)-1]
}

// ==========================
// Fixtures
// ==========================

func testConfig() *Config {
	cfg := LoadConfig()
	cfg.Now = func() time.Time { return testNow }
	return cfg
}

func realStages(t *testing.T, extractor extractdocuments.Extractor) Stages {
	log := logger.NewTestLogger(t)
	return Stages{
		Extractor: extractdocuments.NewHandler(&extractdocuments.Config{
			Concurrency:        2,
			PerDocumentTimeout: time.Second,
		}, extractor, log),
		Consolidator: consolidatedocuments.NewHandler(nil, log),
		Validator:    validateapplicationdata.NewHandler(nil, log),
		Eligibility:  checkeligibility.NewHandler(nil, log),
		Decision:     makedecision.NewHandler(nil, nil, log),
	}
}

func newController(t *testing.T, stages Stages, m *metrics.Metrics) *Controller {
	t.Helper()
	c, err := NewController(testConfig(), stages, m, nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	return c
}

func scenarioForm() models.ApplicantForm {
	return models.ApplicantForm{
		ApplicationID:    "APP-4001",
		EmiratesID:       "784-1990-1234567-1",
		FirstName:        "Ahmed",
		LastName:         "Hassan",
		DateOfBirth:      "1990-05-01",
		Email:            "ahmed@example.ae",
		Phone:            "+971501234567",
		FamilySize:       models.IntPtr(5),
		Dependents:       models.IntPtr(3),
		EmploymentStatus: "unemployed",
		MonthlyIncome:    models.FloatPtr(1500),
	}
}

func upload(id string, docType models.DocumentType) models.DocumentUpload {
	return models.DocumentUpload{ID: id, DocumentType: docType, FilePath: "/uploads/" + id + ".pdf"}
}

func identityExtraction(id string) models.DocumentExtraction {
	return models.DocumentExtraction{
		DocumentID:   id,
		DocumentType: models.DocEmiratesID,
		FieldMap: map[string]interface{}{
			"id_number":     "784-1990-1234567-1",
			"name_english":  "Ahmed Hassan",
			"date_of_birth": "1990-05-01",
		},
		Confidence: 0.95,
	}
}

func bankExtraction(id string, income float64) models.DocumentExtraction {
	return models.DocumentExtraction{
		DocumentID:   id,
		DocumentType: models.DocBankStatement,
		FieldMap: map[string]interface{}{
			"account_holder":  "Ahmed Hassan",
			"closing_balance": 12000,
			"monthly_income":  income,
		},
		Confidence: 0.9,
	}
}

func stageNames(run models.PipelineRun) []models.Stage {
	out := make([]models.Stage, 0, len(run.AgentResponses))
	for _, r := range run.AgentResponses {
		out = append(out, r.Stage)
	}
	return out
}

func containsError(run models.PipelineRun, substr string) bool {
	for _, e := range run.Errors {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

var allStages = []models.Stage{
	models.StageInitialization,
	models.StageDocumentProcessing,
	models.StageDataExtraction,
	models.StageValidation,
	models.StageEligibilityCheck,
	models.StageDecisionMaking,
	models.StageFinalization,
}

// ==========================
// Scenarios
// ==========================

func TestController_Process_ApprovesLowIncomeLargeFamily(t *testing.T) {
	status := &memoryStatus{}
	stages := realStages(t, fieldExtractor{"doc-id": identityExtraction("doc-id")})
	stages.Status = status

	run, err := newController(t, stages, nil).Process(context.Background(), "APP-4001", scenarioForm(),
		[]models.DocumentUpload{upload("doc-id", models.DocEmiratesID)})

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, models.StageCompleted, run.CurrentStage)
	assert.Equal(t, 100, run.ProgressPercent)
	assert.Empty(t, run.Errors)
	assert.Equal(t, allStages, stageNames(run))
	require.NotNil(t, run.CompletedAt)

	require.NotNil(t, run.Decision)
	assert.Equal(t, models.OutcomeApprove, run.Decision.Outcome)
	assert.InDelta(t, 2100, run.Decision.SupportAmount, 1e-9)
	// base 6, +3 for a family above four, +3 for an eligibility score above 0.8
	require.NotNil(t, run.Eligibility)
	assert.Greater(t, run.Eligibility.FinancialSupport.Score, 0.8)
	assert.Equal(t, 12, run.Decision.DurationMonths)
	assert.Equal(t, models.ReasoningFallback, run.Decision.ReasoningSource)

	require.NotNil(t, run.Record)
	assert.Contains(t, run.Record.DataSources, string(models.DocEmiratesID))

	assert.Equal(t, []int{5, 20, 40, 60, 80, 90, 95, 100}, status.progress())
	require.Len(t, status.created, 1)
	assert.Equal(t, models.RunStatusRunning, status.created[0].Status)
	assert.Equal(t, models.OutcomeApprove, status.last().Outcome)
}

func TestController_Process_EmployedApplicantGetsNineMonths(t *testing.T) {
	form := scenarioForm()
	form.EmploymentStatus = "employed"
	stages := realStages(t, fieldExtractor{"doc-id": identityExtraction("doc-id")})

	run, err := newController(t, stages, nil).Process(context.Background(), "APP-4001", form,
		[]models.DocumentUpload{upload("doc-id", models.DocEmiratesID)})

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	require.NotNil(t, run.Eligibility)
	score := run.Eligibility.FinancialSupport.Score
	assert.GreaterOrEqual(t, score, 0.6)
	assert.LessOrEqual(t, score, 0.8)

	require.NotNil(t, run.Decision)
	assert.Equal(t, models.OutcomeApprove, run.Decision.Outcome)
	assert.InDelta(t, 2100, run.Decision.SupportAmount, 1e-9)
	// base 6, +3 for a family above four
	assert.Equal(t, 9, run.Decision.DurationMonths)
}

func TestController_Process_FlagsIncomeConflictBetweenStatements(t *testing.T) {
	stages := realStages(t, fieldExtractor{
		"bank-1": bankExtraction("bank-1", 4000),
		"bank-2": bankExtraction("bank-2", 6500),
	})

	run, err := newController(t, stages, nil).Process(context.Background(), "APP-4002", scenarioForm(),
		[]models.DocumentUpload{
			upload("bank-1", models.DocBankStatement),
			upload("bank-2", models.DocBankStatement),
		})

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	require.NotNil(t, run.Validation)
	require.Len(t, run.Validation.CrossSourceConflicts, 1)
	conflict := run.Validation.CrossSourceConflicts[0]
	assert.Equal(t, models.IssueIncomeInconsistency, conflict.Kind)
	assert.Equal(t, models.SeverityHigh, conflict.Severity)
	assert.InDelta(t, 1.625, conflict.Ratio, 1e-9)

	var flagged bool
	for _, issue := range run.Validation.Issues {
		if issue.Kind == models.IssueIncomeInconsistency && issue.Severity == models.SeverityHigh {
			flagged = true
		}
	}
	assert.True(t, flagged)
	assert.True(t, run.Validation.RequiresManualReview)
	assert.Less(t, run.Validation.ValidationScore, 1.0)

	require.NotNil(t, run.Decision)
	assert.True(t, run.Decision.RequiresHumanReview)
}

func TestController_Process_NoDocumentsStillDecides(t *testing.T) {
	form := models.ApplicantForm{ApplicationID: "APP-4003", FirstName: "Sara", LastName: "Khan"}

	run, err := newController(t, realStages(t, fieldExtractor{}), nil).Process(context.Background(), "APP-4003", form, nil)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Empty(t, run.Errors)

	require.NotNil(t, run.Record)
	assert.Empty(t, run.Record.DataSources)
	assert.Equal(t, 0.0, run.Record.OverallConfidence)

	require.NotNil(t, run.Eligibility)
	assert.False(t, run.Eligibility.FinancialSupport.Eligible)

	require.NotNil(t, run.Decision)
	assert.Equal(t, models.OutcomeDecline, run.Decision.Outcome)
	assert.Equal(t, 0.0, run.Decision.SupportAmount)
	assert.True(t, run.Decision.RequiresHumanReview)
}

// ==========================
// Failure handling
// ==========================

func TestController_Process_AllDocumentsFailIsFatal(t *testing.T) {
	status := &memoryStatus{}
	stages := realStages(t, fieldExtractor{})
	stages.Status = status
	var validatorCalls int32
	stages.Validator = stageFunc[validateapplicationdata.Input, validateapplicationdata.Output](
		func(ctx context.Context, in *validateapplicationdata.Input) (*validateapplicationdata.Output, error) {
			atomic.AddInt32(&validatorCalls, 1)
			return &validateapplicationdata.Output{}, nil
		})

	run, err := newController(t, stages, nil).Process(context.Background(), "APP-4004", scenarioForm(),
		[]models.DocumentUpload{upload("d1", models.DocBankStatement), upload("d2", models.DocResume)})

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, models.StageDocumentProcessing, run.FailedStage)
	assert.Equal(t, 5, run.ProgressPercent)
	assert.Nil(t, run.Decision)
	assert.True(t, containsError(run, "Error processing document d1"))
	assert.True(t, containsError(run, "Error processing document d2"))
	assert.True(t, containsError(run, string(errors.ErrCodeFatalStageFailed)))
	assert.Equal(t, int32(0), atomic.LoadInt32(&validatorCalls))

	require.Len(t, run.AgentResponses, 2)
	assert.False(t, run.AgentResponses[1].Success)

	last := status.last()
	assert.Equal(t, models.RunStatusFailed, last.Status)
	assert.Equal(t, run.Errors, last.Errors)
}

func TestController_Process_PartialDocumentFailureContinues(t *testing.T) {
	stages := realStages(t, fieldExtractor{"doc-id": identityExtraction("doc-id")})

	run, err := newController(t, stages, nil).Process(context.Background(), "APP-4005", scenarioForm(),
		[]models.DocumentUpload{upload("doc-id", models.DocEmiratesID), upload("bad", models.DocBankStatement)})

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.True(t, containsError(run, "Error processing document bad"))
	require.Len(t, run.Extractions, 2)
	assert.Empty(t, run.Extractions[1].FieldMap)

	docStage := run.AgentResponses[1]
	assert.Equal(t, models.StageDocumentProcessing, docStage.Stage)
	assert.False(t, docStage.Success)
	assert.InDelta(t, 0.5, docStage.Confidence, 1e-9)
	require.NotNil(t, run.Decision)
}

func TestController_Process_InvalidApplication(t *testing.T) {
	tests := []struct {
		name          string
		applicationID string
		form          models.ApplicantForm
		wantErr       string
	}{
		{"missing application id", " ", models.ApplicantForm{}, "application id is required"},
		{"negative family size", "APP-4006", models.ApplicantForm{FamilySize: models.IntPtr(-1)}, "family size -1 is negative"},
		{"negative dependents", "APP-4007", models.ApplicantForm{Dependents: models.IntPtr(-2)}, "dependents -2 is negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := newController(t, realStages(t, fieldExtractor{}), nil).Process(context.Background(), tt.applicationID, tt.form, nil)

			require.NoError(t, err)
			assert.Equal(t, models.RunStatusFailed, run.Status)
			assert.Equal(t, models.StageInitialization, run.FailedStage)
			assert.True(t, containsError(run, tt.wantErr), "errors: %v", run.Errors)
			assert.Nil(t, run.Decision)
		})
	}
}

func TestController_Process_StagesDegradeInsteadOfFailing(t *testing.T) {
	stages := realStages(t, fieldExtractor{})
	stages.Consolidator = stageFunc[consolidatedocuments.Input, consolidatedocuments.Output](
		func(ctx context.Context, in *consolidatedocuments.Input) (*consolidatedocuments.Output, error) {
			return nil, fmt.Errorf("merge table corrupted")
		})
	stages.Validator = stageFunc[validateapplicationdata.Input, validateapplicationdata.Output](
		func(ctx context.Context, in *validateapplicationdata.Input) (*validateapplicationdata.Output, error) {
			return nil, fmt.Errorf("validator offline")
		})
	stages.Eligibility = stageFunc[checkeligibility.Input, checkeligibility.Output](
		func(ctx context.Context, in *checkeligibility.Input) (*checkeligibility.Output, error) {
			panic("catalogue missing")
		})

	run, err := newController(t, stages, nil).Process(context.Background(), "APP-4008", scenarioForm(), nil)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	require.NotNil(t, run.Record)
	assert.Equal(t, "Ahmed", run.Record.PersonalInfo.FirstName)
	assert.Nil(t, run.Validation)
	assert.Nil(t, run.Eligibility)

	require.NotNil(t, run.Decision)
	assert.Equal(t, models.OutcomeReviewRequired, run.Decision.Outcome)
	assert.True(t, run.Decision.RequiresHumanReview)

	assert.True(t, containsError(run, "STAGE_FAILED[data_extraction]"))
	assert.True(t, containsError(run, "validator offline"))
	assert.True(t, containsError(run, "panic: catalogue missing"))
}

func TestController_Process_DecisionFailureRoutesToReview(t *testing.T) {
	stages := realStages(t, fieldExtractor{})
	stages.Decision = stageFunc[makedecision.Input, makedecision.Output](
		func(ctx context.Context, in *makedecision.Input) (*makedecision.Output, error) {
			return nil, nil
		})

	run, err := newController(t, stages, nil).Process(context.Background(), "APP-4009", scenarioForm(), nil)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	require.NotNil(t, run.Decision)
	assert.Equal(t, makedecision.NewReviewRequiredDecision(), *run.Decision)
	assert.True(t, containsError(run, "handler returned no output"))
}

func TestController_Process_FinalizationErrorsKeepDecision(t *testing.T) {
	var persisted models.PipelineRun
	var indexed, notified int32

	stages := realStages(t, fieldExtractor{})
	stages.Persister = stageFunc[persistapplicationrun.Input, persistapplicationrun.Output](
		func(ctx context.Context, in *persistapplicationrun.Input) (*persistapplicationrun.Output, error) {
			persisted = in.Run
			return nil, fmt.Errorf("connection refused")
		})
	stages.Indexer = stageFunc[indexapplicationsummary.Input, indexapplicationsummary.Output](
		func(ctx context.Context, in *indexapplicationsummary.Input) (*indexapplicationsummary.Output, error) {
			atomic.AddInt32(&indexed, 1)
			return &indexapplicationsummary.Output{Result: "created"}, nil
		})
	stages.Notifier = stageFunc[notifyreview.Input, notifyreview.Output](
		func(ctx context.Context, in *notifyreview.Input) (*notifyreview.Output, error) {
			atomic.AddInt32(&notified, 1)
			return &notifyreview.Output{Status: notifyreview.StatusFailed}, fmt.Errorf("topic not found")
		})

	baseline, err := newController(t, realStages(t, fieldExtractor{}), nil).Process(context.Background(), "APP-4010", scenarioForm(), nil)
	require.NoError(t, err)

	run, err := newController(t, stages, nil).Process(context.Background(), "APP-4010", scenarioForm(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	require.NotNil(t, run.Decision)
	assert.Equal(t, *baseline.Decision, *run.Decision)

	assert.True(t, containsError(run, string(errors.ErrCodePersistenceFailed)))
	assert.True(t, containsError(run, string(errors.ErrCodeNotificationFailed)))
	assert.False(t, containsError(run, string(errors.ErrCodeIndexingFailed)))
	assert.Equal(t, int32(1), atomic.LoadInt32(&indexed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&notified))

	assert.Equal(t, models.RunStatusCompleted, persisted.Status)
	assert.Equal(t, 100, persisted.ProgressPercent)

	final := run.AgentResponses[len(run.AgentResponses)-1]
	assert.Equal(t, models.StageFinalization, final.Stage)
	assert.False(t, final.Success)
	assert.Equal(t, "1 of 3 side effects succeeded", final.Message)
}

// ==========================
// Cancellation
// ==========================

func TestController_Process_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := &memoryStatus{}
	stages := realStages(t, fieldExtractor{})
	stages.Status = status

	run, err := newController(t, stages, nil).Process(ctx, "APP-4011", scenarioForm(), nil)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, models.StageInitialization, run.FailedStage)
	assert.True(t, containsError(run, string(errors.ErrCodeCancelled)))
	assert.Empty(t, run.AgentResponses)
	assert.Equal(t, models.RunStatusFailed, status.last().Status)
}

func TestController_Process_CancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var eligibilityCalls int32
	stages := realStages(t, fieldExtractor{})
	validator := stages.Validator
	stages.Validator = stageFunc[validateapplicationdata.Input, validateapplicationdata.Output](
		func(vctx context.Context, in *validateapplicationdata.Input) (*validateapplicationdata.Output, error) {
			out, err := validator.Execute(vctx, in)
			cancel()
			return out, err
		})
	stages.Eligibility = stageFunc[checkeligibility.Input, checkeligibility.Output](
		func(ctx context.Context, in *checkeligibility.Input) (*checkeligibility.Output, error) {
			atomic.AddInt32(&eligibilityCalls, 1)
			return &checkeligibility.Output{}, nil
		})

	run, err := newController(t, stages, nil).Process(ctx, "APP-4012", scenarioForm(), nil)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, models.StageEligibilityCheck, run.FailedStage)
	assert.Equal(t, 60, run.ProgressPercent)
	assert.NotNil(t, run.Validation)
	assert.True(t, containsError(run, "cancelled before stage eligibility_check"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&eligibilityCalls))
}

// ==========================
// Status store
// ==========================

func TestController_Process_RejectsDuplicateRun(t *testing.T) {
	status := &memoryStatus{createErr: errors.NewRunAlreadyExistsError("APP-4013")}
	var extractorCalls int32
	stages := realStages(t, fieldExtractor{})
	stages.Status = status
	stages.Extractor = stageFunc[extractdocuments.Input, extractdocuments.Output](
		func(ctx context.Context, in *extractdocuments.Input) (*extractdocuments.Output, error) {
			atomic.AddInt32(&extractorCalls, 1)
			return &extractdocuments.Output{}, nil
		})

	_, err := newController(t, stages, nil).Process(context.Background(), "APP-4013", scenarioForm(),
		[]models.DocumentUpload{upload("d1", models.DocEmiratesID)})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRunAlreadyExists))
	assert.Equal(t, int32(0), atomic.LoadInt32(&extractorCalls))
	assert.Empty(t, status.saved)
}

func TestController_Process_StatusStoreFailuresAreNotFatal(t *testing.T) {
	status := &memoryStatus{
		createErr: errors.NewStatusStoreFailedError(fmt.Errorf("redis down")),
		saveErr:   errors.NewStatusStoreFailedError(fmt.Errorf("redis down")),
	}
	stages := realStages(t, fieldExtractor{})
	stages.Status = status

	run, err := newController(t, stages, nil).Process(context.Background(), "APP-4014", scenarioForm(), nil)

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Len(t, status.saved, 8)
}

func TestController_Process_WithRedisStatusStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := trackrunstatus.NewStore(&trackrunstatus.Config{KeyPrefix: "pipeline:run:", TTL: time.Hour}, rdb, nil)
	stages := realStages(t, fieldExtractor{})
	stages.Status = store
	c := newController(t, stages, nil)

	run, err := c.Process(context.Background(), "APP-4015", scenarioForm(), nil)
	require.NoError(t, err)

	view, source, err := store.Get(context.Background(), "APP-4015")
	require.NoError(t, err)
	assert.Equal(t, trackrunstatus.SourceCache, source)
	assert.Equal(t, run.RunID, view.RunID)
	assert.Equal(t, models.RunStatusCompleted, view.Status)
	assert.Equal(t, 100, view.ProgressPercent)
	assert.Len(t, view.AgentResponses, 7)

	_, err = c.Process(context.Background(), "APP-4015", scenarioForm(), nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRunAlreadyExists))
}

// ==========================
// Bookkeeping
// ==========================

func TestController_Process_EstimatedCompletion(t *testing.T) {
	stages := realStages(t, fieldExtractor{
		"doc-id": identityExtraction("doc-id"),
		"bank-1": bankExtraction("bank-1", 1500),
	})

	run, err := newController(t, stages, nil).Process(context.Background(), "APP-4016", scenarioForm(),
		[]models.DocumentUpload{upload("doc-id", models.DocEmiratesID), upload("bank-1", models.DocBankStatement)})

	require.NoError(t, err)
	assert.Equal(t, testNow, run.StartTime)
	assert.Equal(t, testNow.Add(3*time.Minute), run.EstimatedCompletion)
	assert.NotEmpty(t, run.RunID)
}

func TestController_Process_RecordsMetrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	stages := realStages(t, fieldExtractor{"doc-id": identityExtraction("doc-id")})

	_, err := newController(t, stages, m).Process(context.Background(), "APP-4017", scenarioForm(),
		[]models.DocumentUpload{upload("doc-id", models.DocEmiratesID), upload("bad", models.DocResume)})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsTotal.WithLabelValues("emirates_id", "processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsTotal.WithLabelValues("resume", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DecisionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageFailures.WithLabelValues("document_processing", "false")))
}

func TestNewController_RequiresScoringStages(t *testing.T) {
	stages := realStages(t, fieldExtractor{})
	stages.Decision = nil

	_, err := NewController(nil, stages, nil, nil, logger.NewNoOpLogger())
	assert.Error(t, err)
}
