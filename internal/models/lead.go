package models

import "strings"

// Lead is a contact matched to one of the ICP personas.
type Lead struct {
	FirstName         string  `json:"contact_first_name,omitempty"`
	LastName          string  `json:"contact_last_name,omitempty"`
	Title             string  `json:"contact_title,omitempty"`
	Company           string  `json:"contact_company,omitempty"`
	Email             string  `json:"contact_email,omitempty"`
	Phone             string  `json:"contact_phone,omitempty"`
	LinkedInURL       string  `json:"contact_linkedin_url,omitempty"`
	Twitter           string  `json:"contact_twitter,omitempty"`
	Location          string  `json:"contact_location,omitempty"`
	RecentActivity    string  `json:"contact_recent_activity,omitempty"`
	PublishedContent  string  `json:"contact_published_content,omitempty"`
	MatchedPersona    string  `json:"matched_persona,omitempty"`
	PersonaConfidence float64 `json:"persona_confidence,omitempty"`
	ApolloID          string  `json:"apollo_id,omitempty"`
}

func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// --- Backend wire types ---

type LeadsRequest struct {
	Companies          []SimpleCompany `json:"companies"`
	Personas           []Persona       `json:"personas,omitempty"`
	MaxLeadsPerCompany int             `json:"max_leads_per_company,omitempty"`
	SessionID          string          `json:"session_id,omitempty"`
}

type LeadsResponse struct {
	Success            bool   `json:"success"`
	Leads              []Lead `json:"leads"`
	TotalLeads         int    `json:"total_leads"`
	CompaniesProcessed int    `json:"companies_processed"`
	Error              string `json:"error,omitempty"`
}

type HealthResponse struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}
