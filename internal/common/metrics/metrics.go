// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline and job-worker collectors. A nil *Metrics records nothing.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	StageFailures  *prometheus.CounterVec
	DocumentsTotal *prometheus.CounterVec
	DecisionsTotal *prometheus.CounterVec
	ActiveRuns     prometheus.Gauge

	JobsCompleted *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
}

// New registers the collectors on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline runs by terminal status",
		}, []string{"status"}),

		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Stage failures by stage and whether they ended the run",
		}, []string{"stage", "fatal"}),

		DocumentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_documents_total",
			Help: "Documents processed by type and extraction status",
		}, []string{"document_type", "status"}),

		DecisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_decisions_total",
			Help: "Decisions issued by outcome",
		}, []string{"outcome"}),

		ActiveRuns: f.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_active_runs",
			Help: "Pipeline runs currently in flight",
		}),

		JobsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		}, []string{"task_type"}),

		JobsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		}, []string{"task_type", "error_code"}),

		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		}, []string{"task_type"}),
	}
}

func (m *Metrics) RunStarted() {
	if m != nil {
		m.ActiveRuns.Inc()
	}
}

// RunFinished records the terminal status of a run.
func (m *Metrics) RunFinished(status string) {
	if m != nil {
		m.ActiveRuns.Dec()
		m.RunsTotal.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) StageFailed(stage string, fatal bool) {
	if m != nil {
		label := "false"
		if fatal {
			label = "true"
		}
		m.StageFailures.WithLabelValues(stage, label).Inc()
	}
}

func (m *Metrics) DocumentProcessed(documentType, status string) {
	if m != nil {
		m.DocumentsTotal.WithLabelValues(documentType, status).Inc()
	}
}

func (m *Metrics) DecisionIssued(outcome string) {
	if m != nil {
		m.DecisionsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) JobCompleted(taskType string, d time.Duration) {
	if m != nil {
		m.JobsCompleted.WithLabelValues(taskType).Inc()
		m.JobDuration.WithLabelValues(taskType).Observe(d.Seconds())
	}
}

func (m *Metrics) JobFailed(taskType, errorCode string, d time.Duration) {
	if m != nil {
		m.JobsFailed.WithLabelValues(taskType, errorCode).Inc()
		m.JobDuration.WithLabelValues(taskType).Observe(d.Seconds())
	}
}
