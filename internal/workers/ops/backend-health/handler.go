// internal/workers/ops/backend-health/handler.go
package backendhealth

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/common/metrics"
	"icp-pipeline/internal/common/observability"
	"icp-pipeline/internal/models"
)

const (
	TaskType = "backend-health"
)

type Checker interface {
	Health(ctx context.Context) (*models.HealthResponse, error)
}

// Handler reports backend reachability as process data. An unreachable
// backend completes the job with backendHealthy=false so the process can
// branch on it.
type Handler struct {
	config       *Config
	checker      Checker
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, checker Checker, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		checker:      checker,
		obs:          obs,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errorHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context) (*Output, error) {
	start := h.now()
	resp, err := h.checker.Health(ctx)
	output := &Output{
		CheckedAt: start,
		LatencyMs: h.now().Sub(start).Milliseconds(),
	}

	if err != nil {
		if !errors.IsTransport(err) {
			return nil, err
		}
		h.logger.Warn("backend unhealthy", map[string]interface{}{"error": err.Error()})
		output.Error = errors.UserMessage(err)
		return output, nil
	}

	output.Healthy = true
	output.Message = resp.Message
	output.Status = resp.Status
	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.obs.RecordJobProcessed(context.Background(), TaskType, "completed")

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	return h.execute(ctx)
}
