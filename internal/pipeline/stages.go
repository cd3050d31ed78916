// internal/pipeline/stages.go
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"social-support-workers/internal/common/errors"
	"social-support-workers/internal/models"
	checkeligibility "social-support-workers/internal/workers/application/check-eligibility"
	consolidatedocuments "social-support-workers/internal/workers/application/consolidate-documents"
	extractdocuments "social-support-workers/internal/workers/application/extract-documents"
	makedecision "social-support-workers/internal/workers/application/make-decision"
	notifyreview "social-support-workers/internal/workers/application/notify-review"
	persistapplicationrun "social-support-workers/internal/workers/application/persist-application-run"
	validateapplicationdata "social-support-workers/internal/workers/application/validate-application-data"
	indexapplicationsummary "social-support-workers/internal/workers/data-access/index-application-summary"
)

// invoke calls a stage handler, turning a panic or a missing output into a StageError.
func invoke[I, O any](ctx context.Context, name models.Stage, fn func(context.Context, *I) (*O, error), in *I) (out *O, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, errors.NewStageError(string(name), fmt.Errorf("panic: %v", p))
		}
	}()
	out, err = fn(ctx, in)
	if err == nil && out == nil {
		err = errors.NewStageError(string(name), fmt.Errorf("handler returned no output"))
	}
	return out, err
}

func degraded(name models.Stage, err error) string {
	if errors.HasCode(err, errors.ErrCodeStageFailed) {
		return describe(err)
	}
	return describe(errors.NewStageError(string(name), err))
}

// ==========================
// 1. Initialization
// ==========================

func (c *Controller) initialize(ctx context.Context, run models.PipelineRun) (stageResult, error) {
	name := models.StageInitialization

	if strings.TrimSpace(run.ApplicationID) == "" {
		return stageResult{}, errors.NewFatalStageError(string(name), fmt.Errorf("invalid application: application id is required"))
	}
	if fs := run.Form.FamilySize; fs != nil && *fs < 0 {
		return stageResult{}, errors.NewFatalStageError(string(name), fmt.Errorf("invalid application: family size %d is negative", *fs))
	}
	if d := run.Form.Dependents; d != nil && *d < 0 {
		return stageResult{}, errors.NewFatalStageError(string(name), fmt.Errorf("invalid application: dependents %d is negative", *d))
	}

	return stageResult{
		run:        run,
		success:    true,
		message:    fmt.Sprintf("run %s started with %d documents", run.RunID, len(run.Documents)),
		confidence: 1,
	}, nil
}

// ==========================
// 2. Document processing
// ==========================

func (c *Controller) processDocuments(ctx context.Context, run models.PipelineRun) (stageResult, error) {
	name := models.StageDocumentProcessing

	if len(run.Documents) == 0 {
		run.Extractions = []models.DocumentExtraction{}
		return stageResult{run: run, success: true, message: "no documents supplied"}, nil
	}

	out, err := invoke(ctx, name, c.stages.Extractor.Execute, &extractdocuments.Input{
		ApplicationID: run.ApplicationID,
		Documents:     run.Documents,
	})
	if err != nil {
		return stageResult{}, errors.NewFatalStageError(string(name), err)
	}

	failed := make(map[string]bool, len(out.Failures))
	res := stageResult{}
	for _, f := range out.Failures {
		failed[f.DocumentID] = true
		res.errors = append(res.errors, f.Error)
	}
	for _, doc := range run.Documents {
		status := "processed"
		if failed[doc.ID] {
			status = "failed"
		}
		c.metrics.DocumentProcessed(string(doc.DocumentType), status)
	}

	if out.Processed == 0 {
		return res, errors.NewFatalStageError(string(name), fmt.Errorf("none of the %d documents could be processed", len(run.Documents)))
	}

	run.Extractions = out.Extractions
	res.run = run
	res.success = len(out.Failures) == 0
	res.confidence = float64(out.Processed) / float64(len(run.Documents))
	res.message = fmt.Sprintf("processed %d of %d documents", out.Processed, len(run.Documents))
	return res, nil
}

// ==========================
// 3. Data extraction
// ==========================

func (c *Controller) consolidate(ctx context.Context, run models.PipelineRun) (stageResult, error) {
	name := models.StageDataExtraction

	out, err := invoke(ctx, name, c.stages.Consolidator.Execute, &consolidatedocuments.Input{
		Form:      run.Form,
		Documents: run.Extractions,
	})
	if err != nil {
		record := consolidatedocuments.FormOnlyRecord(run.Form)
		run.Record = &record
		return stageResult{
			run:     run,
			message: "consolidation failed, continuing with form data only",
			errors:  []string{degraded(name, err)},
		}, nil
	}

	record := out.Record
	run.Record = &record

	res := stageResult{
		run:        run,
		success:    len(out.Failures) == 0,
		confidence: record.OverallConfidence,
		message:    fmt.Sprintf("consolidated %d sources", len(record.DataSources)),
	}
	for _, f := range out.Failures {
		res.errors = append(res.errors, fmt.Sprintf("Error consolidating document %s: %s", f.DocumentID, f.Error))
	}
	return res, nil
}

func recordOf(run models.PipelineRun) models.ConsolidatedRecord {
	if run.Record != nil {
		return *run.Record
	}
	return consolidatedocuments.FormOnlyRecord(run.Form)
}

// ==========================
// 4. Validation
// ==========================

func (c *Controller) validate(ctx context.Context, run models.PipelineRun) (stageResult, error) {
	name := models.StageValidation

	out, err := invoke(ctx, name, c.stages.Validator.Execute, &validateapplicationdata.Input{
		Form:   run.Form,
		Record: recordOf(run),
	})
	if err != nil {
		run.Validation = nil
		return stageResult{
			run:     run,
			message: "validation unavailable",
			errors:  []string{degraded(name, err)},
		}, nil
	}

	report := out.Report
	run.Validation = &report
	return stageResult{
		run:        run,
		success:    out.Passed,
		confidence: report.ValidationScore,
		message:    fmt.Sprintf("validation score %.3f with %d issues", report.ValidationScore, len(report.Issues)),
	}, nil
}

// ==========================
// 5. Eligibility
// ==========================

func (c *Controller) checkEligibility(ctx context.Context, run models.PipelineRun) (stageResult, error) {
	name := models.StageEligibilityCheck

	out, err := invoke(ctx, name, c.stages.Eligibility.Execute, &checkeligibility.Input{
		Form:       run.Form,
		Record:     recordOf(run),
		Validation: run.Validation,
	})
	if err != nil {
		run.Eligibility = nil
		return stageResult{
			run:     run,
			message: "eligibility assessment unavailable",
			errors:  []string{degraded(name, err)},
		}, nil
	}

	assessment := out.Assessment
	run.Eligibility = &assessment
	fs := assessment.FinancialSupport
	return stageResult{
		run:        run,
		success:    true,
		confidence: assessment.Confidence,
		message:    fmt.Sprintf("eligible=%t score %.3f support %.2f", fs.Eligible, fs.Score, fs.SupportAmount),
	}, nil
}

// ==========================
// 6. Decision
// ==========================

func (c *Controller) decide(ctx context.Context, run models.PipelineRun) (stageResult, error) {
	name := models.StageDecisionMaking

	res := stageResult{success: true}
	var decision models.Decision

	out, err := invoke(ctx, name, c.stages.Decision.Execute, &makedecision.Input{
		Form:        run.Form,
		Record:      recordOf(run),
		Validation:  run.Validation,
		Eligibility: run.Eligibility,
	})
	if err != nil {
		decision = makedecision.NewReviewRequiredDecision()
		res.success = false
		res.errors = []string{degraded(name, err)}
	} else {
		decision = out.Decision
	}

	run.Decision = &decision
	c.metrics.DecisionIssued(string(decision.Outcome))

	res.run = run
	res.confidence = decision.Confidence
	res.message = fmt.Sprintf("%s: %.2f for %d months", decision.Outcome, decision.SupportAmount, decision.DurationMonths)
	return res, nil
}

// ==========================
// 7. Finalization
// ==========================

// finalize runs the side effects of a decided run. None of them can change the decision.
func (c *Controller) finalize(ctx context.Context, run models.PipelineRun) (stageResult, error) {
	name := models.StageFinalization
	final := c.complete(run)

	var errs []string
	attempted := 0

	if c.stages.Persister != nil {
		attempted++
		if _, err := invoke(ctx, name, c.stages.Persister.Execute, &persistapplicationrun.Input{Run: final}); err != nil {
			errs = append(errs, describe(errors.NewPersistenceFailedError(err)))
		}
	}
	if c.stages.Indexer != nil {
		attempted++
		if _, err := invoke(ctx, name, c.stages.Indexer.Execute, &indexapplicationsummary.Input{Run: final}); err != nil {
			errs = append(errs, describe(errors.NewIndexingFailedError(err)))
		}
	}
	if c.stages.Notifier != nil && run.Decision != nil {
		attempted++
		if _, err := invoke(ctx, name, c.stages.Notifier.Execute, &notifyreview.Input{
			ApplicationID: run.ApplicationID,
			RunID:         run.RunID,
			Form:          run.Form,
			Decision:      run.Decision,
		}); err != nil {
			errs = append(errs, describe(errors.NewNotificationFailedError("review", err)))
		}
	}

	res := stageResult{
		run:     run,
		success: len(errs) == 0,
		errors:  errs,
		message: fmt.Sprintf("%d of %d side effects succeeded", attempted-len(errs), attempted),
	}
	if run.Decision != nil {
		res.confidence = run.Decision.Confidence
	}
	return res, nil
}
