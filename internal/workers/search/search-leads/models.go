// internal/workers/search/search-leads/models.go
package searchleads

import "icp-pipeline/internal/models"

type Input struct {
	SessionID          string           `json:"sessionId,omitempty"`
	Companies          []models.Company `json:"companies"`
	Personas           []models.Persona `json:"personas,omitempty"`
	MaxLeadsPerCompany int              `json:"maxLeadsPerCompany,omitempty"`
}

type Output struct {
	SessionID          string        `json:"sessionId"`
	Leads              []models.Lead `json:"leads"`
	TotalLeads         int           `json:"totalLeads"`
	CompaniesProcessed int           `json:"companiesProcessed"`
}
