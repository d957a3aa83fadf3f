// internal/workers/search/search-companies/handler.go
package searchcompanies

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

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
	TaskType = "search-companies"
)

type Searcher interface {
	SearchCompanies(ctx context.Context, cfg *models.ICPConfig, limit int, sessionID string) (*pipeline.CompanyResult, error)
}

// Conversations resolves the ICP config of a finished conversation.
type Conversations interface {
	Result(ctx context.Context, conversationID string) (*models.ICPConfig, string, error)
}

type Handler struct {
	config        *Config
	searcher      Searcher
	conversations Conversations
	obs           *observability.Observability
	errorHandler  *errors.ErrorHandler
	logger        logger.Logger
}

func NewHandler(config *Config, searcher Searcher, conversations Conversations, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:        config,
		searcher:      searcher,
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
	cfg, sessionID, err := h.resolve(ctx, input)
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = h.config.DefaultLimit
	}

	result, err := h.searcher.SearchCompanies(ctx, cfg, limit, sessionID)
	if err != nil {
		return nil, err
	}

	output := &Output{
		SessionID:           sessionID,
		Companies:           result.Companies,
		ApolloOnlyCompanies: result.ApolloOnly,
		CompaniesFound:      len(result.Companies),
		UsedMock:            result.UsedMock,
		Personas:            cfg.Personas,
	}
	if result.UsedMock {
		output.MockDataNotice = pipeline.MockDataNotice
	}

	h.logger.Info("companies found", map[string]interface{}{
		"sessionId": sessionID,
		"count":     output.CompaniesFound,
		"usedMock":  output.UsedMock,
	})
	return output, nil
}

// resolve returns the ICP config to search with, loading it from the
// conversation when the job does not carry one.
func (h *Handler) resolve(ctx context.Context, input *Input) (*models.ICPConfig, string, error) {
	cfg, sessionID := input.ICPConfig, input.SessionID
	if cfg == nil {
		if input.ConversationID == "" {
			return nil, "", errors.NewConversationIncompleteError("")
		}
		resolved, sid, err := h.conversations.Result(ctx, input.ConversationID)
		if err != nil {
			return nil, "", err
		}
		cfg = resolved
		if sessionID == "" {
			sessionID = sid
		}
	}

	result, err := validation.ValidateICPConfig(cfg)
	if err != nil {
		return nil, "", errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, "", errors.NewValidationError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return cfg, sessionID, nil
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

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
