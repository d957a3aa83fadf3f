// internal/workers/search/search-companies/models.go
package searchcompanies

import "icp-pipeline/internal/models"

// Input carries either an ICP config or the conversation that produced one.
type Input struct {
	ConversationID string            `json:"conversationId,omitempty"`
	SessionID      string            `json:"sessionId,omitempty"`
	ICPConfig      *models.ICPConfig `json:"icpConfig,omitempty"`
	Limit          int               `json:"limit,omitempty"`
}

type Output struct {
	SessionID           string           `json:"sessionId"`
	Companies           []models.Company `json:"companies"`
	ApolloOnlyCompanies []models.Company `json:"apolloOnlyCompanies,omitempty"`
	CompaniesFound      int              `json:"companiesFound"`
	UsedMock            bool             `json:"usedMock"`
	MockDataNotice      string           `json:"mockDataNotice,omitempty"`
	Personas            []models.Persona `json:"personas,omitempty"`
}
