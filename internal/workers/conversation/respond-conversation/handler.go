// internal/workers/conversation/respond-conversation/handler.go
package respondconversation

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
	"icp-pipeline/internal/conversation"
)

const (
	TaskType = "icp-conversation-respond"
)

type Conversations interface {
	Respond(ctx context.Context, conversationID, answer string) (*conversation.Turn, error)
}

type Handler struct {
	config        *Config
	conversations Conversations
	obs           *observability.Observability
	errorHandler  *errors.ErrorHandler
	logger        logger.Logger
}

func NewHandler(config *Config, conversations Conversations, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:        config,
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
	turn, err := h.conversations.Respond(ctx, input.ConversationID, input.Answer)
	if err != nil {
		return nil, err
	}

	if turn.Forced {
		h.logger.Info("conversation finalized at turn limit", map[string]interface{}{
			"conversationId": turn.ConversationID,
			"turnCount":      turn.State.TurnCount,
		})
	}

	return &Output{
		ConversationID:     turn.ConversationID,
		SessionID:          turn.SessionID,
		ConversationStatus: turn.Outcome.String(),
		Prompt:             turn.Prompt,
		TurnCount:          turn.State.TurnCount,
		MaxTurns:           turn.State.MaxTurns,
		Progress:           turn.Progress,
		MissingFields:      turn.State.MissingFields,
		ICPConfig:          turn.ICPConfig,
		Forced:             turn.Forced,
		Warning:            turn.Warning,
	}, nil
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
