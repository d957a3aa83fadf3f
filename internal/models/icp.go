package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Persona describes a contact profile to search for inside each company.
type Persona struct {
	Name       string   `json:"name"`
	TitleRegex []string `json:"title_regex,omitempty"`
	Seniority  []string `json:"seniority,omitempty"`
	Functions  []string `json:"functions,omitempty"`
}

// Range is an optional inclusive numeric bound. Zero means unset.
type Range struct {
	Min int64 `json:"min,omitempty"`
	Max int64 `json:"max,omitempty"`
}

// Bounded reports whether both ends are set.
func (r *Range) Bounded() bool {
	return r != nil && r.Min > 0 && r.Max > 0
}

// Labels is a list of free-text labels. A single string decodes as a
// one-element list.
type Labels []string

func (l *Labels) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
		} else {
			*l = Labels{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// CompanyFilters narrows company search. Members the backend sends that are
// not modelled here are kept and written back unchanged.
type CompanyFilters struct {
	Industries      []string `json:"industries,omitempty"`
	EmployeeCount   *Range   `json:"employee_count,omitempty"`
	ARRUSD          *Range   `json:"arr_usd,omitempty"`
	Technologies    []string `json:"technologies,omitempty"`
	FundingStage    []string `json:"funding_stage,omitempty"`
	TotalFundingMin int64    `json:"total_funding_min,omitempty"`
	TotalFundingMax int64    `json:"total_funding_max,omitempty"`
	CompanySize     Labels   `json:"company_size,omitempty"`
	Locations       []string `json:"locations,omitempty"`
	Cities          []string `json:"cities,omitempty"`
	States          []string `json:"states,omitempty"`
	Countries       []string `json:"countries,omitempty"`
	FoundedYearMin  int      `json:"founded_year_min,omitempty"`
	FoundedYearMax  int      `json:"founded_year_max,omitempty"`
	CompanyTypes    []string `json:"company_types,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	ExcludeKeywords []string `json:"exclude_keywords,omitempty"`

	extra map[string]json.RawMessage
}

func (f CompanyFilters) MarshalJSON() ([]byte, error) {
	type plain CompanyFilters
	return marshalWithExtra(plain(f), f.extra)
}

func (f *CompanyFilters) UnmarshalJSON(data []byte) error {
	type plain CompanyFilters
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownMembers(data, companyFilterFields)
	if err != nil {
		return err
	}
	p.extra = extra
	*f = CompanyFilters(p)
	return nil
}

// Extra returns the raw members that have no typed field.
func (f *CompanyFilters) Extra() map[string]json.RawMessage {
	if f == nil {
		return nil
	}
	return f.extra
}

type ContactPersonaTargets struct {
	PerCompanyMin int      `json:"per_company_min,omitempty"`
	PerCompanyMax int      `json:"per_company_max,omitempty"`
	PersonaOrder  []string `json:"persona_order,omitempty"`
}

type StageOverrides struct {
	BudgetCapPerLeadUSD float64 `json:"budget_cap_per_lead_usd,omitempty"`
	FinderPct           float64 `json:"finder_pct,omitempty"`
	ResearchPct         float64 `json:"research_pct,omitempty"`
	ContactsPct         float64 `json:"contacts_pct,omitempty"`
	VerifyPct           float64 `json:"verify_pct,omitempty"`
	SynthesisPct        float64 `json:"synthesis_pct,omitempty"`
	IntentPct           float64 `json:"intent_pct,omitempty"`
}

// ICPConfig is the ideal customer profile produced by the conversation. It is
// read-only input to company and lead search.
type ICPConfig struct {
	Personas                 []Persona              `json:"personas,omitempty"`
	CompanyFilters           *CompanyFilters        `json:"company_filters,omitempty"`
	SignalsRequired          []string               `json:"signals_required,omitempty"`
	NegativeKeywords         []string               `json:"negative_keywords,omitempty"`
	RequiredFieldsForQualify []string               `json:"required_fields_for_qualify,omitempty"`
	ContactPersonaTargets    *ContactPersonaTargets `json:"contact_persona_targets,omitempty"`
	StageOverrides           *StageOverrides        `json:"stage_overrides,omitempty"`

	extra map[string]json.RawMessage
}

func (c ICPConfig) MarshalJSON() ([]byte, error) {
	type plain ICPConfig
	return marshalWithExtra(plain(c), c.extra)
}

func (c *ICPConfig) UnmarshalJSON(data []byte) error {
	type plain ICPConfig
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownMembers(data, icpConfigFields)
	if err != nil {
		return err
	}
	p.extra = extra
	*c = ICPConfig(p)
	return nil
}

// Extra returns the raw top-level members that have no typed field.
func (c *ICPConfig) Extra() map[string]json.RawMessage {
	if c == nil {
		return nil
	}
	return c.extra
}

var (
	icpConfigFields     = jsonFieldNames(ICPConfig{})
	companyFilterFields = jsonFieldNames(CompanyFilters{})
)

func jsonFieldNames(v interface{}) map[string]bool {
	t := reflect.TypeOf(v)
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			names[name] = true
		}
	}
	return names
}

func unknownMembers(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, v := range all {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

// marshalWithExtra encodes v and adds the extra members it does not already
// carry.
func marshalWithExtra(v interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}

// Filters returns the company filters, never nil.
func (c *ICPConfig) Filters() CompanyFilters {
	if c == nil || c.CompanyFilters == nil {
		return CompanyFilters{}
	}
	return *c.CompanyFilters
}

// SearchPayload is the organization search body sent instead of an ICP config
// when the caller wants to control the upstream query directly.
type SearchPayload struct {
	Page                         int      `json:"page"`
	PerPage                      int      `json:"per_page"`
	OrganizationEmployeeRanges   []string `json:"organization_num_employees_ranges,omitempty"`
	OrganizationRevenueRanges    []string `json:"organization_revenue_ranges,omitempty"`
	OrganizationLocations        []string `json:"organization_locations,omitempty"`
	QOrganizationKeywordTags     []string `json:"q_organization_keyword_tags,omitempty"`
	QOrganizationTechnologyNames []string `json:"q_organization_technology_names,omitempty"`
	TotalFundingRange            *Range   `json:"total_funding_range,omitempty"`
	ProspectedByCurrentTeam      bool     `json:"prospected_by_current_team"`
}

// BuildSearchPayload maps an ICP config onto an organization search payload.
// Employee and revenue ranges are only sent when both ends are known; cities
// win over locations.
func BuildSearchPayload(cfg *ICPConfig, perPage int) SearchPayload {
	if perPage <= 0 {
		perPage = 10
	}
	f := cfg.Filters()

	p := SearchPayload{Page: 1, PerPage: perPage}
	if f.EmployeeCount.Bounded() {
		p.OrganizationEmployeeRanges = []string{fmt.Sprintf("%d,%d", f.EmployeeCount.Min, f.EmployeeCount.Max)}
	}
	if f.ARRUSD.Bounded() {
		p.OrganizationRevenueRanges = []string{fmt.Sprintf("%d,%d", f.ARRUSD.Min, f.ARRUSD.Max)}
	}
	switch {
	case len(f.Cities) > 0:
		p.OrganizationLocations = f.Cities
	case len(f.Locations) > 0:
		p.OrganizationLocations = f.Locations
	}
	if len(f.Industries) > 0 {
		p.QOrganizationKeywordTags = f.Industries
	}
	if len(f.Technologies) > 0 {
		p.QOrganizationTechnologyNames = f.Technologies
	}
	if f.TotalFundingMin > 0 || f.TotalFundingMax > 0 {
		p.TotalFundingRange = &Range{Min: f.TotalFundingMin, Max: f.TotalFundingMax}
	}
	return p
}
