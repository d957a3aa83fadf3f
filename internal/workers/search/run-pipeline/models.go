// internal/workers/search/run-pipeline/models.go
package runpipeline

import "icp-pipeline/internal/models"

type Input struct {
	ConversationID     string            `json:"conversationId,omitempty"`
	SessionID          string            `json:"sessionId,omitempty"`
	ICPConfig          *models.ICPConfig `json:"icpConfig,omitempty"`
	CompanyLimit       int               `json:"companyLimit,omitempty"`
	MaxLeadsPerCompany int               `json:"maxLeadsPerCompany,omitempty"`
}

// Output is returned for completed runs and for runs that kept their
// companies after lead search went wrong (runStatus "partial").
type Output struct {
	RunID               string           `json:"runId"`
	SessionID           string           `json:"sessionId"`
	RunStatus           string           `json:"runStatus"`
	Stage               string           `json:"stage"`
	StageMessage        string           `json:"stageMessage"`
	Companies           []models.Company `json:"companies"`
	ApolloOnlyCompanies []models.Company `json:"apolloOnlyCompanies,omitempty"`
	Leads               []models.Lead    `json:"leads"`
	TotalLeads          int              `json:"totalLeads"`
	CompaniesProcessed  int              `json:"companiesProcessed"`
	UsedMock            bool             `json:"usedMock"`
	MockDataNotice      string           `json:"mockDataNotice,omitempty"`
	ErrorCode           string           `json:"errorCode,omitempty"`
	UserMessage         string           `json:"userMessage,omitempty"`
	DurationMs          int64            `json:"durationMs"`
}
