package models

import (
	"context"
	"time"
)

// RunStatus is the terminal outcome persisted for a pipeline run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the journey log for one session: what each stage returned and
// how long the whole run took.
type RunRecord struct {
	ID                 string                 `json:"id" db:"id"`
	SessionID          string                 `json:"sessionId" db:"session_id"`
	ConversationID     string                 `json:"conversationId,omitempty" db:"conversation_id"`
	Status             RunStatus              `json:"status" db:"status"`
	ErrorCode          string                 `json:"errorCode,omitempty" db:"error_code"`
	ErrorMessage       string                 `json:"errorMessage,omitempty" db:"error_message"`
	CompaniesFound     int                    `json:"companiesFound" db:"companies_found"`
	CoresignalEnriched int                    `json:"coresignalEnriched" db:"coresignal_enriched"`
	LeadsFound         int                    `json:"leadsFound" db:"leads_found"`
	UsedMock           bool                   `json:"usedMock" db:"used_mock"`
	ICPConfig          *ICPConfig             `json:"icpConfig,omitempty" db:"icp_config"`
	StartedAt          time.Time              `json:"startedAt" db:"started_at"`
	FinishedAt         time.Time              `json:"finishedAt" db:"finished_at"`
	Metadata           map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// ProcessingTime is the wall-clock duration of the run.
func (r *RunRecord) ProcessingTime() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunRepository persists run records.
type RunRepository interface {
	Save(ctx context.Context, run *RunRecord) error
	FindBySession(ctx context.Context, sessionID string) ([]*RunRecord, error)
}
