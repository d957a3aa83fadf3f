// internal/workers/search/run-pipeline/handler.go
package runpipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/common/metrics"
	"icp-pipeline/internal/common/observability"
	"icp-pipeline/internal/common/validation"
	"icp-pipeline/internal/models"
	"icp-pipeline/internal/pipeline"
)

const (
	TaskType = "run-pipeline"

	statusCompleted = "completed"
	statusPartial   = "partial"
)

type Runner interface {
	Run(ctx context.Context, cfg *models.ICPConfig, sessionID string, opts pipeline.RunOptions) (*pipeline.Result, error)
}

type Conversations interface {
	Result(ctx context.Context, conversationID string) (*models.ICPConfig, string, error)
}

type Handler struct {
	config        *Config
	runner        Runner
	conversations Conversations
	obs           *observability.Observability
	errorHandler  *errors.ErrorHandler
	logger        logger.Logger
}

func NewHandler(config *Config, runner Runner, conversations Conversations, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:        config,
		runner:        runner,
		conversations: conversations,
		obs:           obs,
		errorHandler:  errors.NewErrorHandler(log),
		logger:        log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.decode(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) decode(job entities.Job) (*Input, error) {
	if err := validation.ValidateJobVariables(h.config.InputSchema, job.Variables); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	cfg, sessionID := input.ICPConfig, input.SessionID
	if cfg == nil && input.ConversationID != "" {
		resolved, sid, err := h.conversations.Result(ctx, input.ConversationID)
		if err != nil {
			return nil, err
		}
		cfg = resolved
		if sessionID == "" {
			sessionID = sid
		}
	}

	opts := pipeline.RunOptions{
		ConversationID:     input.ConversationID,
		CompanyLimit:       input.CompanyLimit,
		MaxLeadsPerCompany: input.MaxLeadsPerCompany,
		Observer: func(s pipeline.Stage) {
			h.logger.Debug("stage changed", map[string]interface{}{
				"sessionId": sessionID,
				"stage":     s.Kind().String(),
			})
		},
	}
	if opts.CompanyLimit == 0 {
		opts.CompanyLimit = h.config.CompanyLimit
	}
	if opts.MaxLeadsPerCompany == 0 {
		opts.MaxLeadsPerCompany = h.config.MaxLeadsPerCompany
	}

	result, err := h.runner.Run(ctx, cfg, sessionID, opts)
	if err != nil {
		if keepsCompanies(result, err) {
			h.logger.Warn("run finished without leads, keeping companies", map[string]interface{}{
				"sessionId": result.SessionID,
				"companies": len(result.Companies),
				"errorCode": string(errors.CodeOf(err)),
			})
			output := toOutput(result, statusPartial)
			output.ErrorCode = string(errors.CodeOf(err))
			output.UserMessage = errors.UserMessage(err)
			return output, nil
		}
		return nil, err
	}

	return toOutput(result, statusCompleted), nil
}

// keepsCompanies reports whether a failed run still produced companies worth
// handing to the next step.
func keepsCompanies(result *pipeline.Result, err error) bool {
	if result == nil || len(result.Companies) == 0 {
		return false
	}
	return errors.IsPartialData(err) || errors.IsEmptyResult(err)
}

func toOutput(result *pipeline.Result, status string) *Output {
	return &Output{
		RunID:               result.RunID,
		SessionID:           result.SessionID,
		RunStatus:           status,
		Stage:               result.Stage.Kind().String(),
		StageMessage:        result.Stage.Message(),
		Companies:           result.Companies,
		ApolloOnlyCompanies: result.ApolloOnly,
		Leads:               result.Leads,
		TotalLeads:          result.TotalLeads,
		CompaniesProcessed:  result.CompaniesProcessed,
		UsedMock:            result.UsedMock,
		MockDataNotice:      result.MockDataNotice,
		DurationMs:          result.Duration.Milliseconds(),
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.obs.RecordJobProcessed(context.Background(), TaskType, output.RunStatus)

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

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
