package models

import "time"

// ConversationMode selects how eagerly the backend completes an ICP.
type ConversationMode string

const (
	ModeAuto           ConversationMode = "auto"
	ModeConversational ConversationMode = "conversational"
	ModeQuick          ConversationMode = "quick"
)

// Valid reports whether m is one of the modes the backend accepts.
func (m ConversationMode) Valid() bool {
	switch m {
	case ModeAuto, ModeConversational, ModeQuick:
		return true
	}
	return false
}

type InvalidField struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ConversationState is the backend's view of a conversation after each turn.
type ConversationState struct {
	KnownFields     map[string]interface{} `json:"known_fields"`
	MissingFields   []string               `json:"missing_fields"`
	InvalidFields   []InvalidField         `json:"invalid_fields"`
	TurnCount       int                    `json:"turn_count"`
	ConfidenceScore float64                `json:"confidence_score"`
	MaxTurns        int                    `json:"max_turns"`
}

// TurnsExhausted reports whether no further turns are allowed.
func (s ConversationState) TurnsExhausted() bool {
	return s.MaxTurns > 0 && s.TurnCount >= s.MaxTurns
}

type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// ConversationMessage is one transcript line. The transcript is local only.
type ConversationMessage struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// --- Backend wire types ---

type ConversationStartRequest struct {
	InitialText string           `json:"initial_text"`
	Mode        ConversationMode `json:"mode,omitempty"`
	MaxTurns    int              `json:"max_turns,omitempty"`
}

type ConversationStartResponse struct {
	ConversationID    string            `json:"conversation_id"`
	SessionID         string            `json:"session_id"`
	NeedsConversation bool              `json:"needs_conversation"`
	Message           string            `json:"message,omitempty"`
	CurrentState      ConversationState `json:"current_state"`
	ICPConfig         *ICPConfig        `json:"icp_config,omitempty"`
}

type ConversationRespondRequest struct {
	Answer string `json:"answer"`
}

type ConversationRespondResponse struct {
	ConversationID     string            `json:"conversation_id"`
	NeedsMoreInfo      bool              `json:"needs_more_info"`
	Message            string            `json:"message,omitempty"`
	CurrentState       ConversationState `json:"current_state"`
	ProgressPercentage float64           `json:"progress_percentage"`
	ICPConfig          *ICPConfig        `json:"icp_config,omitempty"`
}

type StatusMessage struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp string      `json:"timestamp,omitempty"`
}

type ConversationStatusResponse struct {
	ConversationID     string                 `json:"conversation_id"`
	SessionID          string                 `json:"session_id"`
	TurnCount          int                    `json:"turn_count"`
	IsComplete         bool                   `json:"is_complete"`
	ProgressPercentage float64                `json:"progress_percentage"`
	KnownFields        map[string]interface{} `json:"known_fields"`
	MissingFields      []string               `json:"missing_fields"`
	Messages           []StatusMessage        `json:"messages"`
}

type ConversationFinalizeRequest struct {
	ForceComplete bool `json:"force_complete"`
}

type ConversationFinalizeResponse struct {
	Success       bool       `json:"success"`
	SessionID     string     `json:"session_id"`
	ICPConfig     *ICPConfig `json:"icp_config,omitempty"`
	MissingFields []string   `json:"missing_fields,omitempty"`
	Warning       string     `json:"warning,omitempty"`
	Error         string     `json:"error,omitempty"`
}
