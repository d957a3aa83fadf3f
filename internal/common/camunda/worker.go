// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"icp-pipeline/internal/common/config"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/common/metrics"
	"icp-pipeline/internal/common/observability"
)

// WorkerSet opens one job worker per task type and closes them together.
type WorkerSet struct {
	client  zbc.Client
	obs     *observability.Observability
	logger  logger.Logger
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewWorkerSet(client zbc.Client, obs *observability.Observability, log logger.Logger) *WorkerSet {
	return &WorkerSet{
		client:  client,
		obs:     obs,
		logger:  log,
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens a worker for taskType unless it is disabled in wcfg.
func (s *WorkerSet) Start(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) {
	if !wcfg.Enabled {
		s.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	jobWorker := s.client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, s.obs, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	s.mu.Lock()
	s.workers[taskType] = jobWorker
	s.mu.Unlock()

	s.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// TaskTypes lists the task types with an open worker.
func (s *WorkerSet) TaskTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.workers))
	for t := range s.workers {
		out = append(out, t)
	}
	return out
}

// Close stops every worker and waits for in-progress jobs.
func (s *WorkerSet) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for taskType, w := range s.workers {
		s.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		w.Close()
		w.AwaitClose()
	}
	s.workers = make(map[string]worker.JobWorker)
}

// Instrument records the duration of every job handled by handler.
func Instrument(taskType string, obs *observability.Observability, handler worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		handler(client, job)
		elapsed := time.Since(start)
		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		obs.RecordJobDuration(context.Background(), taskType, elapsed, "handled")
	}
}
