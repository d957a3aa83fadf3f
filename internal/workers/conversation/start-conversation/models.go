// internal/workers/conversation/start-conversation/models.go
package startconversation

import "icp-pipeline/internal/models"

type Input struct {
	InitialText string `json:"initialText"`
	Mode        string `json:"mode,omitempty"`
	MaxTurns    int    `json:"maxTurns,omitempty"`
}

// Output is merged into the process variables. conversationStatus is
// "needs_input" until the ICP is complete.
type Output struct {
	ConversationID     string            `json:"conversationId"`
	SessionID          string            `json:"sessionId"`
	ConversationStatus string            `json:"conversationStatus"`
	Prompt             string            `json:"prompt,omitempty"`
	TurnCount          int               `json:"turnCount"`
	MaxTurns           int               `json:"maxTurns"`
	MissingFields      []string          `json:"missingFields,omitempty"`
	ICPConfig          *models.ICPConfig `json:"icpConfig,omitempty"`
	Forced             bool              `json:"forcedCompletion,omitempty"`
	Warning            string            `json:"warning,omitempty"`
}
