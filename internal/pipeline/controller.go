// internal/pipeline/controller.go
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"social-support-workers/internal/common/errors"
	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/common/metrics"
	"social-support-workers/internal/common/observability"
	"social-support-workers/internal/models"
	checkeligibility "social-support-workers/internal/workers/application/check-eligibility"
	consolidatedocuments "social-support-workers/internal/workers/application/consolidate-documents"
	extractdocuments "social-support-workers/internal/workers/application/extract-documents"
	makedecision "social-support-workers/internal/workers/application/make-decision"
	notifyreview "social-support-workers/internal/workers/application/notify-review"
	persistapplicationrun "social-support-workers/internal/workers/application/persist-application-run"
	validateapplicationdata "social-support-workers/internal/workers/application/validate-application-data"
	indexapplicationsummary "social-support-workers/internal/workers/data-access/index-application-summary"

	"github.com/google/uuid"
)

// ==========================
// Collaborators
// ==========================

type DocumentExtractor interface {
	Execute(ctx context.Context, input *extractdocuments.Input) (*extractdocuments.Output, error)
}

type Consolidator interface {
	Execute(ctx context.Context, input *consolidatedocuments.Input) (*consolidatedocuments.Output, error)
}

type Validator interface {
	Execute(ctx context.Context, input *validateapplicationdata.Input) (*validateapplicationdata.Output, error)
}

type EligibilityScorer interface {
	Execute(ctx context.Context, input *checkeligibility.Input) (*checkeligibility.Output, error)
}

type DecisionMaker interface {
	Execute(ctx context.Context, input *makedecision.Input) (*makedecision.Output, error)
}

// StatusStore holds the pollable status of each run, keyed by application id.
type StatusStore interface {
	Create(ctx context.Context, view models.RunStatusView) error
	Save(ctx context.Context, view models.RunStatusView) error
}

type Persister interface {
	Execute(ctx context.Context, input *persistapplicationrun.Input) (*persistapplicationrun.Output, error)
}

type Indexer interface {
	Execute(ctx context.Context, input *indexapplicationsummary.Input) (*indexapplicationsummary.Output, error)
}

type Notifier interface {
	Execute(ctx context.Context, input *notifyreview.Input) (*notifyreview.Output, error)
}

// Stages wires the controller. The five scoring collaborators are required;
// Status, Persister, Indexer and Notifier may be nil.
type Stages struct {
	Extractor    DocumentExtractor
	Consolidator Consolidator
	Validator    Validator
	Eligibility  EligibilityScorer
	Decision     DecisionMaker

	Status    StatusStore
	Persister Persister
	Indexer   Indexer
	Notifier  Notifier
}

// ==========================
// Controller
// ==========================

// Controller runs one application through the fixed stage sequence. It keeps no
// per-run state, so a single Controller serves any number of concurrent runs.
type Controller struct {
	config  *Config
	stages  Stages
	metrics *metrics.Metrics
	obs     *observability.Observability
	logger  logger.Logger
}

func NewController(config *Config, stages Stages, m *metrics.Metrics, obs *observability.Observability, log logger.Logger) (*Controller, error) {
	if config == nil {
		config = LoadConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	switch {
	case stages.Extractor == nil:
		return nil, fmt.Errorf("pipeline: document extractor is required")
	case stages.Consolidator == nil:
		return nil, fmt.Errorf("pipeline: consolidator is required")
	case stages.Validator == nil:
		return nil, fmt.Errorf("pipeline: validator is required")
	case stages.Eligibility == nil:
		return nil, fmt.Errorf("pipeline: eligibility scorer is required")
	case stages.Decision == nil:
		return nil, fmt.Errorf("pipeline: decision maker is required")
	}
	return &Controller{
		config:  config,
		stages:  stages,
		metrics: m,
		obs:     obs,
		logger:  log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}, nil
}

// stageResult is what a stage hands back to the controller. Errors listed here are
// recoverable and are kept even when the stage also returns a fatal error.
type stageResult struct {
	run        models.PipelineRun
	success    bool
	message    string
	confidence float64
	errors     []string
}

type stage struct {
	name models.Stage
	run  func(ctx context.Context, run models.PipelineRun) (stageResult, error)
}

func (c *Controller) stageList() []stage {
	return []stage{
		{models.StageInitialization, c.initialize},
		{models.StageDocumentProcessing, c.processDocuments},
		{models.StageDataExtraction, c.consolidate},
		{models.StageValidation, c.validate},
		{models.StageEligibilityCheck, c.checkEligibility},
		{models.StageDecisionMaking, c.decide},
		{models.StageFinalization, c.finalize},
	}
}

// Process runs the application through every stage and returns the final run.
// The only error is RUN_ALREADY_EXISTS; stage failures are reported on the run.
func (c *Controller) Process(ctx context.Context, applicationID string, form models.ApplicantForm, documents []models.DocumentUpload) (models.PipelineRun, error) {
	run := c.newRun(applicationID, form, documents)
	log := c.logger.WithFields(map[string]interface{}{
		"applicationId": run.ApplicationID,
		"runId":         run.RunID,
	})

	if err := c.createStatus(ctx, run, log); err != nil {
		return run, err
	}

	c.metrics.RunStarted()
	log.Info("pipeline run started", map[string]interface{}{
		"documents":           len(documents),
		"estimatedCompletion": run.EstimatedCompletion,
	})

	for _, st := range c.stageList() {
		if err := ctx.Err(); err != nil {
			run = c.fail(run, st.name, errors.NewCancelledError(string(st.name), err))
			log.Warn("pipeline run cancelled", map[string]interface{}{"nextStage": st.name})
			break
		}

		var fatal error
		run, fatal = c.runStage(ctx, st, run, log)
		if fatal != nil {
			break
		}
		c.saveStatus(ctx, run, log)
	}

	if run.Status != models.RunStatusFailed {
		run = c.complete(run)
	}
	c.saveStatus(ctx, run, log)
	c.metrics.RunFinished(string(run.Status))

	fields := map[string]interface{}{
		"status":   run.Status,
		"errors":   len(run.Errors),
		"progress": run.ProgressPercent,
	}
	if run.Decision != nil {
		fields["outcome"] = run.Decision.Outcome
	}
	if run.Status == models.RunStatusFailed {
		fields["failedStage"] = run.FailedStage
		log.Error("pipeline run failed", fields)
	} else {
		log.Info("pipeline run completed", fields)
	}

	return run, nil
}

func (c *Controller) newRun(applicationID string, form models.ApplicantForm, documents []models.DocumentUpload) models.PipelineRun {
	start := c.config.Now().UTC()
	if form.ApplicationID == "" {
		form.ApplicationID = applicationID
	}
	docs := append([]models.DocumentUpload{}, documents...)

	return models.PipelineRun{
		RunID:               uuid.New().String(),
		ApplicationID:       applicationID,
		Status:              models.RunStatusRunning,
		CurrentStage:        models.StageInitialization,
		Errors:              []string{},
		AgentResponses:      []models.StageResponse{},
		StartTime:           start,
		EstimatedCompletion: start.Add(c.config.EstimatedBase + time.Duration(len(docs))*c.config.EstimatedPerDocument),
		Form:                form,
		Documents:           docs,
	}
}

func (c *Controller) runStage(ctx context.Context, st stage, run models.PipelineRun, log logger.Logger) (models.PipelineRun, error) {
	slog := log.WithFields(map[string]interface{}{"stage": st.name})
	start := time.Now()

	sctx, end := c.obs.StartStage(ctx, run.ApplicationID, string(st.name))
	res, err := c.call(sctx, st, run)
	end(err)

	elapsed := time.Since(start)
	c.metrics.ObserveStage(string(st.name), elapsed)

	if err != nil {
		c.metrics.StageFailed(string(st.name), true)
		slog.Error("stage failed", map[string]interface{}{"error": describe(err)})
		failed := run
		for _, msg := range res.errors {
			failed = failed.WithError(msg)
		}
		failed = c.fail(failed, st.name, err)
		return failed.WithResponse(models.StageResponse{
			Stage:      st.name,
			Success:    false,
			Message:    describe(err),
			DurationMs: elapsed.Milliseconds(),
		}), err
	}

	next := res.run
	for _, msg := range res.errors {
		next = next.WithError(msg)
	}
	next.CurrentStage = st.name
	next.ProgressPercent = st.name.Progress()
	next = next.WithResponse(models.StageResponse{
		Stage:      st.name,
		Success:    res.success,
		Message:    res.message,
		Confidence: res.confidence,
		DurationMs: elapsed.Milliseconds(),
	})

	if !res.success {
		c.metrics.StageFailed(string(st.name), false)
	}
	slog.Info("stage completed", map[string]interface{}{
		"success":    res.success,
		"confidence": res.confidence,
		"errors":     len(res.errors),
		"durationMs": elapsed.Milliseconds(),
	})
	return next, nil
}

// call converts a panic escaping a stage into a fatal stage error.
func (c *Controller) call(ctx context.Context, st stage, run models.PipelineRun) (res stageResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.NewFatalStageError(string(st.name), fmt.Errorf("panic: %v", p))
		}
	}()
	return st.run(ctx, run)
}

func (c *Controller) fail(run models.PipelineRun, at models.Stage, err error) models.PipelineRun {
	run = run.WithError(describe(err))
	run.Status = models.RunStatusFailed
	run.FailedStage = at
	run.CurrentStage = at
	done := c.config.Now().UTC()
	run.CompletedAt = &done
	return run
}

func (c *Controller) complete(run models.PipelineRun) models.PipelineRun {
	run.Status = models.RunStatusCompleted
	run.CurrentStage = models.StageCompleted
	run.ProgressPercent = models.StageCompleted.Progress()
	done := c.config.Now().UTC()
	run.CompletedAt = &done
	return run
}

// ==========================
// Status store
// ==========================

func (c *Controller) createStatus(ctx context.Context, run models.PipelineRun, log logger.Logger) error {
	if c.stages.Status == nil || run.ApplicationID == "" {
		return nil
	}
	sctx, cancel := c.statusContext(ctx)
	defer cancel()

	err := c.stages.Status.Create(sctx, run.StatusView(c.config.Now()))
	if err == nil {
		return nil
	}
	if errors.HasCode(err, errors.ErrCodeRunAlreadyExists) {
		log.Warn("run already exists for application", nil)
		return err
	}
	log.Warn("failed to create run status", map[string]interface{}{"error": err.Error()})
	return nil
}

func (c *Controller) saveStatus(ctx context.Context, run models.PipelineRun, log logger.Logger) {
	if c.stages.Status == nil || run.ApplicationID == "" {
		return
	}
	sctx, cancel := c.statusContext(ctx)
	defer cancel()

	if err := c.stages.Status.Save(sctx, run.StatusView(c.config.Now())); err != nil {
		log.Warn("failed to save run status", map[string]interface{}{
			"stage": run.CurrentStage,
			"error": err.Error(),
		})
	}
}

// statusContext survives cancellation of the run so the terminal status is still written.
func (c *Controller) statusContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if c.config.StatusTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.StatusTimeout)
}

// describe renders err for the run's error list, including the cause of coded errors.
func describe(err error) string {
	var stdErr *errors.StandardError
	if !stderrors.As(err, &stdErr) || stdErr.Details == "" {
		return err.Error()
	}
	return stdErr.Error() + ": " + stdErr.Details
}
