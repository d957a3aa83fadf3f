package models

import (
	"fmt"
	"strings"
)

// Contact is a mailbox discovered for a company domain.
type Contact struct {
	Email       string  `json:"email"`
	FirstName   string  `json:"first_name,omitempty"`
	LastName    string  `json:"last_name,omitempty"`
	JobTitle    string  `json:"job_title,omitempty"`
	Type        string  `json:"type,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Pattern     string  `json:"pattern,omitempty"`
	LinkedInURL string  `json:"linkedin_url,omitempty"`
}

// DisplayName falls back to the email when no name is known.
func (c Contact) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.Email
	}
	return name
}

// Company is returned by company search and never mutated afterwards.
type Company struct {
	ID             string `json:"id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	Name           string `json:"name"`
	Domain         string `json:"domain,omitempty"`

	Industry           string   `json:"industry,omitempty"`
	FoundedYear        int      `json:"founded_year,omitempty"`
	Headquarters       string   `json:"headquarters,omitempty"`
	Description        string   `json:"description,omitempty"`
	CompanyLinkedInURL string   `json:"company_linkedin_url,omitempty"`
	EmployeeCount      int      `json:"employee_count,omitempty"`
	Specialities       []string `json:"specialities,omitempty"`
	Revenue            string   `json:"revenue,omitempty"`
	Location           string   `json:"location,omitempty"`
	RevenueRange       string   `json:"revenue_range,omitempty"`

	Technologies    []string `json:"technologies,omitempty"`
	TechSpend       string   `json:"tech_spend,omitempty"`
	ITBudget        string   `json:"it_budget,omitempty"`
	RecentNews      []string `json:"recent_news,omitempty"`
	JobOpenings     int      `json:"job_openings,omitempty"`
	GrowthSignals   []string `json:"growth_signals,omitempty"`
	AIOrgSignals    []string `json:"ai_org_signals,omitempty"`
	AITechSignals   []string `json:"ai_tech_signals,omitempty"`
	AIHiringSignals []string `json:"ai_hiring_signals,omitempty"`
	IntentScore     *float64 `json:"intent_score,omitempty"`
	IntentHorizon   string   `json:"intent_horizon,omitempty"`
	SignalEvidence  []string `json:"signal_evidence,omitempty"`

	LinkedInURL  string `json:"linkedin_url,omitempty"`
	TwitterURL   string `json:"twitter_url,omitempty"`
	FacebookURL  string `json:"facebook_url,omitempty"`
	InstagramURL string `json:"instagram_url,omitempty"`
	YoutubeURL   string `json:"youtube_url,omitempty"`
	GithubURL    string `json:"github_url,omitempty"`

	CoresignalEnriched bool                   `json:"coresignal_enriched,omitempty"`
	CoresignalData     map[string]interface{} `json:"coresignal_data,omitempty"`
	EnrichmentError    string                 `json:"enrichment_error,omitempty"`

	Contacts        []Contact `json:"contacts,omitempty"`
	HunterioPattern string    `json:"hunterio_pattern,omitempty"`
}

// Key is the identifier used to reference a company downstream.
func (c Company) Key() string {
	if c.OrganizationID != "" {
		return c.OrganizationID
	}
	return c.ID
}

// CompanyLinkedIn prefers company_linkedin_url and falls back to linkedin_url.
func (c Company) CompanyLinkedIn() string {
	if c.CompanyLinkedInURL != "" {
		return c.CompanyLinkedInURL
	}
	return c.LinkedInURL
}

// HQ prefers headquarters and falls back to location.
func (c Company) HQ() string {
	if c.Headquarters != "" {
		return c.Headquarters
	}
	return c.Location
}

// RevenueText prefers revenue and falls back to revenue_range.
func (c Company) RevenueText() string {
	if c.Revenue != "" {
		return c.Revenue
	}
	return c.RevenueRange
}

// DomainSource is the lookup method the enrichment source used, if any.
func (c Company) DomainSource() string {
	if c.CoresignalData == nil {
		return ""
	}
	if v, ok := c.CoresignalData["domain_source"].(string); ok {
		return v
	}
	return ""
}

// Simple reduces a company to the fields lead search needs.
func (c Company) Simple() SimpleCompany {
	return SimpleCompany{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		Name:           c.Name,
		Domain:         c.Domain,
		Contacts:       c.Contacts,
	}
}

type SimpleCompany struct {
	ID             string    `json:"id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Name           string    `json:"name,omitempty"`
	Domain         string    `json:"domain,omitempty"`
	Contacts       []Contact `json:"contacts,omitempty"`
}

// CompanyView is the presentation mapping of a Company: display fields only,
// derived without modifying the source record.
type CompanyView struct {
	Name      string        `json:"name"`
	Domain    string        `json:"domain,omitempty"`
	Employees int           `json:"employees,omitempty"`
	LinkedIn  string        `json:"linkedIn,omitempty"`
	Value     string        `json:"value"`
	Summary   string        `json:"summary"`
	TechStack []string      `json:"techStack"`
	News      []string      `json:"recentNews"`
	Contacts  []ContactView `json:"contacts"`
}

type ContactView struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	LinkedIn string `json:"linkedIn,omitempty"`
}

// Present builds the display view of c.
func Present(c Company) CompanyView {
	value := c.Revenue
	if value == "" {
		if c.EmployeeCount > 0 {
			value = fmt.Sprintf("$%dK", c.EmployeeCount)
		} else {
			value = "$N/AK"
		}
	}

	contacts := make([]ContactView, 0, len(c.Contacts))
	for _, ct := range c.Contacts {
		role := ct.JobTitle
		if role == "" {
			role = "Contact"
		}
		contacts = append(contacts, ContactView{
			Name:     ct.DisplayName(),
			Role:     role,
			Email:    ct.Email,
			LinkedIn: ct.LinkedInURL,
		})
	}

	techStack := c.Technologies
	if techStack == nil {
		techStack = []string{}
	}
	news := c.RecentNews
	if news == nil {
		news = []string{}
	}

	return CompanyView{
		Name:      c.Name,
		Domain:    c.Domain,
		Employees: c.EmployeeCount,
		LinkedIn:  c.CompanyLinkedIn(),
		Value:     value,
		Summary:   c.Description,
		TechStack: techStack,
		News:      news,
		Contacts:  contacts,
	}
}

// --- Backend wire types ---

type CompaniesRequest struct {
	ICPConfig     *ICPConfig     `json:"icp_config,omitempty"`
	SearchPayload *SearchPayload `json:"search_payload,omitempty"`
	Limit         int            `json:"limit,omitempty"`
	SessionID     string         `json:"session_id,omitempty"`
}

type CompaniesResponse struct {
	Success             bool                     `json:"success"`
	Companies           []Company                `json:"companies"`
	ApolloOnlyCompanies []Company                `json:"apollo_only_companies,omitempty"`
	UsedMock            bool                     `json:"used_mock,omitempty"`
	ResponseCount       int                      `json:"response_count,omitempty"`
	RequestPayload      map[string]interface{}   `json:"request_payload,omitempty"`
	RawCompanies        []map[string]interface{} `json:"raw_companies,omitempty"`
	Error               string                   `json:"error,omitempty"`
}
