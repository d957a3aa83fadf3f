// internal/workers/conversation/respond-conversation/models.go
package respondconversation

import "icp-pipeline/internal/models"

type Input struct {
	ConversationID string `json:"conversationId"`
	Answer         string `json:"answer"`
}

type Output struct {
	ConversationID     string            `json:"conversationId"`
	SessionID          string            `json:"sessionId"`
	ConversationStatus string            `json:"conversationStatus"`
	Prompt             string            `json:"prompt,omitempty"`
	TurnCount          int               `json:"turnCount"`
	MaxTurns           int               `json:"maxTurns"`
	Progress           float64           `json:"progressPercentage"`
	MissingFields      []string          `json:"missingFields,omitempty"`
	ICPConfig          *models.ICPConfig `json:"icpConfig,omitempty"`
	Forced             bool              `json:"forcedCompletion,omitempty"`
	Warning            string            `json:"warning,omitempty"`
}
