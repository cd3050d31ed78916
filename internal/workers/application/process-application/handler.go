// internal/workers/application/process-application/handler.go
package processapplication

import (
	"context"
	"encoding/json"
	"time"

	"social-support-workers/internal/common/camunda"
	"social-support-workers/internal/common/errors"
	"social-support-workers/internal/common/logger"
	"social-support-workers/internal/common/metrics"
	"social-support-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "process-application"
)

type Handler struct {
	config  *Config
	runner  Runner
	metrics *metrics.Metrics
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, runner Runner, m *metrics.Metrics, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		runner:  runner,
		metrics: m,
		errors:  errors.NewErrorHandler(log),
		logger:  log,
	}
}

// Handle runs the pipeline for one job and reports the outcome to the broker.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.process(ctx, []byte(job.Variables))
	if err != nil {
		h.metrics.JobFailed(TaskType, string(errors.AsStandard(err).Code), time.Since(start))
		h.errors.HandleJobError(context.Background(), client, job, err)
		return
	}

	if err := h.completeJob(context.Background(), client, job, output); err != nil {
		h.metrics.JobFailed(TaskType, string(errors.AsStandard(err).Code), time.Since(start))
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	h.metrics.JobCompleted(TaskType, time.Since(start))
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
		"runId":  output.RunID,
		"status": output.Status,
	})
}

// process validates the raw job variables before running the pipeline.
func (h *Handler) process(ctx context.Context, variables []byte) (*Output, error) {
	if err := inputSchema.ValidateJSON(variables).Err(); err != nil {
		return nil, errors.NewInvalidApplicationError(err.Error())
	}

	var input Input
	if err := json.Unmarshal(variables, &input); err != nil {
		return nil, errors.NewInvalidApplicationError("parse input: " + err.Error())
	}
	return h.Execute(ctx, &input)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidApplicationError("input is nil")
	}

	run, err := h.runner.Process(ctx, input.ApplicationID, input.Form, input.Documents)
	if err != nil {
		return nil, err
	}

	output := outputFrom(run)
	if run.Status == models.RunStatusFailed {
		return output, errors.NewPipelineFailedError(string(run.FailedStage), run.Errors)
	}
	return output, nil
}

func outputFrom(run models.PipelineRun) *Output {
	return &Output{
		RunID:           run.RunID,
		Status:          run.Status,
		CurrentStage:    run.CurrentStage,
		FailedStage:     run.FailedStage,
		ProgressPercent: run.ProgressPercent,
		Decision:        run.Decision,
		Errors:          append([]string{}, run.Errors...),
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return errors.NewInternalError(err)
	}

	return camunda.Retry(ctx, h.config.CompleteRetry, "complete job", func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	})
}
