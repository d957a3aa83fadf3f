// Package conversation drives the multi-turn exchange that turns a free-text
// description of the ideal customer into an ICP configuration.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"icp-pipeline/internal/common/config"
	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/common/metrics"
	"icp-pipeline/internal/common/validation"
	"icp-pipeline/internal/models"
	"icp-pipeline/internal/session"
)

// API is the part of the backend client the orchestrator calls.
type API interface {
	StartConversation(ctx context.Context, req models.ConversationStartRequest) (*models.ConversationStartResponse, error)
	RespondConversation(ctx context.Context, conversationID, answer string) (*models.ConversationRespondResponse, error)
	ConversationStatus(ctx context.Context, conversationID string) (*models.ConversationStatusResponse, error)
	FinalizeConversation(ctx context.Context, conversationID string, force bool) (*models.ConversationFinalizeResponse, error)
}

// Store persists conversation snapshots between turns.
type Store interface {
	Save(ctx context.Context, snap *session.Snapshot) error
	Load(ctx context.Context, conversationID string) (*session.Snapshot, error)
	Delete(ctx context.Context, conversationID string) error
}

// Outcome is the two-way result of every turn.
type Outcome int

const (
	NeedsInput Outcome = iota
	Complete
)

func (o Outcome) String() string {
	if o == Complete {
		return "complete"
	}
	return "needs_input"
}

// Turn is what the caller sees after start or respond.
type Turn struct {
	Outcome        Outcome
	ConversationID string
	SessionID      string
	Prompt         string
	State          models.ConversationState
	ICPConfig      *models.ICPConfig
	Progress       float64
	Forced         bool
	Warning        string
	Transcript     []models.ConversationMessage
}

const (
	msgStartComplete   = "Your input is complete. ICP configuration created successfully."
	msgRespondComplete = "ICP configuration complete. All required information collected."
	msgForcedComplete  = "That was the last question. The ICP configuration has been finalized with the information collected so far."
	msgNeedMore        = "I need a bit more information to complete your ICP."
)

type Options struct {
	DefaultMode     models.ConversationMode
	DefaultMaxTurns int
}

type Orchestrator struct {
	api    API
	store  Store
	opts   Options
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

func New(api API, store Store, opts Options, log logger.Logger) *Orchestrator {
	if !opts.DefaultMode.Valid() {
		opts.DefaultMode = models.ModeAuto
	}
	if opts.DefaultMaxTurns == 0 {
		opts.DefaultMaxTurns = config.DefaultMaxTurns
	}
	return &Orchestrator{
		api:    api,
		store:  store,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "conversation"}),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

// Start opens a conversation from the user's first description.
func (o *Orchestrator) Start(ctx context.Context, initialText string, mode models.ConversationMode, maxTurns int) (*Turn, error) {
	if vErr := validation.RequireText("initialText", initialText); vErr != nil {
		return nil, apperrors.NewValidationError("Please describe your ideal customer before starting.")
	}
	if mode == "" {
		mode = o.opts.DefaultMode
	}
	if !mode.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("Unknown conversation mode %q.", mode))
	}
	if maxTurns == 0 {
		maxTurns = o.opts.DefaultMaxTurns
	}
	if maxTurns < config.MinMaxTurns || maxTurns > config.MaxMaxTurns {
		return nil, apperrors.NewValidationError(fmt.Sprintf("Max turns must be between %d and %d.", config.MinMaxTurns, config.MaxMaxTurns))
	}

	resp, err := o.api.StartConversation(ctx, models.ConversationStartRequest{
		InitialText: strings.TrimSpace(initialText),
		Mode:        mode,
		MaxTurns:    maxTurns,
	})
	if err != nil {
		o.logger.Error("start conversation failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	snap := &session.Snapshot{
		ConversationID: resp.ConversationID,
		SessionID:      resp.SessionID,
		Mode:           mode,
		MaxTurns:       maxTurns,
		State:          clampState(resp.CurrentState, maxTurns),
	}
	snap.Transcript = append(snap.Transcript, o.message(models.RoleUser, initialText))

	turn := &Turn{
		ConversationID: resp.ConversationID,
		SessionID:      resp.SessionID,
		State:          snap.State,
	}

	if !resp.NeedsConversation && resp.ICPConfig != nil {
		o.complete(snap, turn, resp.ICPConfig, msgStartComplete)
	} else if snap.State.TurnsExhausted() {
		if err := o.forceComplete(ctx, snap, turn); err != nil {
			return nil, err
		}
	} else {
		o.ask(snap, turn, resp.Message)
	}

	if err := o.store.Save(ctx, snap); err != nil {
		return nil, err
	}
	turn.Transcript = snap.Transcript

	o.logger.Info("conversation started", map[string]interface{}{
		"conversationId": turn.ConversationID,
		"sessionId":      turn.SessionID,
		"outcome":        turn.Outcome.String(),
		"turnCount":      turn.State.TurnCount,
	})
	return turn, nil
}

// Respond sends the user's answer for an open conversation.
func (o *Orchestrator) Respond(ctx context.Context, conversationID, answer string) (*Turn, error) {
	if vErr := validation.RequireText("answer", answer); vErr != nil {
		return nil, apperrors.NewValidationError("Please type an answer before sending.")
	}

	snap, err := o.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if snap.Complete {
		return nil, apperrors.NewValidationError("This conversation is already complete.")
	}

	turn := &Turn{ConversationID: snap.ConversationID, SessionID: snap.SessionID}

	// The backend is never asked for a turn past the limit, but the answer
	// still goes into the transcript.
	if snap.State.TurnsExhausted() {
		snap.Transcript = append(snap.Transcript, o.message(models.RoleUser, answer))
		if err := o.forceComplete(ctx, snap, turn); err != nil {
			return nil, err
		}
		return o.save(ctx, snap, turn)
	}

	resp, err := o.api.RespondConversation(ctx, conversationID, strings.TrimSpace(answer))
	if err != nil {
		o.logger.Error("respond failed", map[string]interface{}{
			"conversationId": conversationID,
			"error":          err.Error(),
		})
		return nil, err
	}

	snap.Transcript = append(snap.Transcript, o.message(models.RoleUser, answer))
	snap.State = clampState(resp.CurrentState, snap.MaxTurns)
	turn.State = snap.State
	turn.Progress = resp.ProgressPercentage

	switch {
	case !resp.NeedsMoreInfo && resp.ICPConfig != nil:
		o.complete(snap, turn, resp.ICPConfig, msgRespondComplete)
	case snap.State.TurnsExhausted():
		if err := o.forceComplete(ctx, snap, turn); err != nil {
			return nil, err
		}
	default:
		o.ask(snap, turn, resp.Message)
	}

	return o.save(ctx, snap, turn)
}

// Finalize asks the backend to close the conversation early.
func (o *Orchestrator) Finalize(ctx context.Context, conversationID string, force bool) (*Turn, error) {
	snap, err := o.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	turn := &Turn{ConversationID: snap.ConversationID, SessionID: snap.SessionID, State: snap.State}
	if snap.Complete {
		turn.Outcome = Complete
		turn.ICPConfig = snap.ICPConfig
		turn.Transcript = snap.Transcript
		return turn, nil
	}

	if err := o.finalize(ctx, snap, turn, force); err != nil {
		return nil, err
	}
	return o.save(ctx, snap, turn)
}

// Status proxies the backend's view of the conversation.
func (o *Orchestrator) Status(ctx context.Context, conversationID string) (*models.ConversationStatusResponse, error) {
	return o.api.ConversationStatus(ctx, conversationID)
}

// Transcript returns the local display transcript.
func (o *Orchestrator) Transcript(ctx context.Context, conversationID string) ([]models.ConversationMessage, error) {
	snap, err := o.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return snap.Transcript, nil
}

// Reset forgets a conversation locally. The backend is not told.
func (o *Orchestrator) Reset(ctx context.Context, conversationID string) error {
	return o.store.Delete(ctx, conversationID)
}

// Result returns the ICP config of a completed conversation.
func (o *Orchestrator) Result(ctx context.Context, conversationID string) (*models.ICPConfig, string, error) {
	snap, err := o.load(ctx, conversationID)
	if err != nil {
		return nil, "", err
	}
	if !snap.Complete || snap.ICPConfig == nil {
		return nil, snap.SessionID, apperrors.NewConversationIncompleteError(conversationID)
	}
	return snap.ICPConfig, snap.SessionID, nil
}

func (o *Orchestrator) load(ctx context.Context, conversationID string) (*session.Snapshot, error) {
	snap, err := o.store.Load(ctx, conversationID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, apperrors.NewConversationNotFoundError(conversationID)
	}
	return snap, err
}

func (o *Orchestrator) save(ctx context.Context, snap *session.Snapshot, turn *Turn) (*Turn, error) {
	if err := o.store.Save(ctx, snap); err != nil {
		return nil, err
	}
	turn.Transcript = snap.Transcript
	o.logger.Info("conversation turn", map[string]interface{}{
		"conversationId": turn.ConversationID,
		"outcome":        turn.Outcome.String(),
		"turnCount":      turn.State.TurnCount,
		"forced":         turn.Forced,
	})
	return turn, nil
}

func (o *Orchestrator) forceComplete(ctx context.Context, snap *session.Snapshot, turn *Turn) error {
	o.logger.Warn("max turns reached, finalizing", map[string]interface{}{
		"conversationId": snap.ConversationID,
		"turnCount":      snap.State.TurnCount,
		"maxTurns":       snap.MaxTurns,
	})
	return o.finalize(ctx, snap, turn, true)
}

func (o *Orchestrator) finalize(ctx context.Context, snap *session.Snapshot, turn *Turn, force bool) error {
	resp, err := o.api.FinalizeConversation(ctx, snap.ConversationID, force)
	if err != nil {
		return err
	}
	if !resp.Success || resp.ICPConfig == nil {
		return apperrors.NewBackendReportedError("finalize conversation", resp.Error)
	}
	if resp.SessionID != "" {
		snap.SessionID = resp.SessionID
		turn.SessionID = resp.SessionID
	}
	turn.Forced = force
	turn.Warning = resp.Warning
	o.complete(snap, turn, resp.ICPConfig, msgForcedComplete)
	return nil
}

func (o *Orchestrator) complete(snap *session.Snapshot, turn *Turn, cfg *models.ICPConfig, text string) {
	snap.Complete = true
	snap.ICPConfig = cfg
	turn.Outcome = Complete
	turn.ICPConfig = cfg
	turn.State = snap.State
	turn.Prompt = text
	turn.Progress = 100
	snap.Transcript = append(snap.Transcript, o.message(models.RoleAgent, text+summarize(snap.State.KnownFields)))

	metrics.ConversationTurns.
		WithLabelValues(string(snap.Mode), fmt.Sprintf("%t", turn.Forced)).
		Observe(float64(snap.State.TurnCount))
}

func (o *Orchestrator) ask(snap *session.Snapshot, turn *Turn, prompt string) {
	if strings.TrimSpace(prompt) == "" {
		prompt = msgNeedMore
	}
	turn.Outcome = NeedsInput
	turn.Prompt = prompt
	turn.State = snap.State
	snap.Transcript = append(snap.Transcript, o.message(models.RoleAgent, prompt+summarize(snap.State.KnownFields)))
}

func (o *Orchestrator) message(role models.MessageRole, content string) models.ConversationMessage {
	return models.ConversationMessage{
		ID:        o.newID(),
		Role:      role,
		Content:   content,
		Timestamp: o.now(),
	}
}

// clampState keeps the reported turn count within the caller's limit. A
// larger limit echoed by the backend is ignored.
func clampState(s models.ConversationState, maxTurns int) models.ConversationState {
	if s.MaxTurns == 0 || (maxTurns > 0 && s.MaxTurns > maxTurns) {
		s.MaxTurns = maxTurns
	}
	if s.TurnCount > s.MaxTurns {
		s.TurnCount = s.MaxTurns
	}
	return s
}

func summarize(known map[string]interface{}) string {
	if len(known) == 0 {
		return ""
	}
	keys := make([]string, 0, len(known))
	for k := range known {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("\n\nWhat I have so far:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s: %s", strings.ReplaceAll(k, "_", " "), formatValue(known[k]))
	}
	return b.String()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s %s", k, formatValue(val[k])))
		}
		return strings.Join(parts, ", ")
	case nil:
		return "-"
	default:
		return fmt.Sprint(val)
	}
}
