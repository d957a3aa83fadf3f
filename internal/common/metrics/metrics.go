// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Requests sent to the ICP backend by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	BackendRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backend_requests_in_flight",
			Help: "Backend requests holding a throttle slot",
		},
		[]string{"client"},
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline runs by terminal stage and error code",
		},
		[]string{"stage", "error_code"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	ConversationTurns = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conversation_turns",
			Help:    "Turns taken before a conversation completed",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7},
		},
		[]string{"mode", "forced"},
	)
)
