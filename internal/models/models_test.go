package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchPayload(t *testing.T) {
	cfg := &ICPConfig{
		CompanyFilters: &CompanyFilters{
			Industries:    []string{"SaaS", "Fintech"},
			EmployeeCount: &Range{Min: 50, Max: 500},
			ARRUSD:        &Range{Min: 1000000},
			Technologies:  []string{"Salesforce"},
			Locations:     []string{"United States"},
			Cities:        []string{"Austin"},
		},
	}

	p := BuildSearchPayload(cfg, 0)

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, []string{"50,500"}, p.OrganizationEmployeeRanges)
	assert.Nil(t, p.OrganizationRevenueRanges, "half-open ranges are dropped")
	assert.Equal(t, []string{"Austin"}, p.OrganizationLocations)
	assert.Equal(t, []string{"SaaS", "Fintech"}, p.QOrganizationKeywordTags)
	assert.Equal(t, []string{"Salesforce"}, p.QOrganizationTechnologyNames)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "organization_revenue_ranges")
	assert.Contains(t, string(raw), `"prospected_by_current_team":false`)
}

func TestBuildSearchPayload_FundingRange(t *testing.T) {
	cfg := &ICPConfig{CompanyFilters: &CompanyFilters{TotalFundingMin: 1000000}}

	p := BuildSearchPayload(cfg, 10)

	require.NotNil(t, p.TotalFundingRange)
	assert.Equal(t, int64(1000000), p.TotalFundingRange.Min)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total_funding_range":{"min":1000000}`)
}

func TestICPConfig_BackendShapeSurvivesRoundTrip(t *testing.T) {
	icpJSON := `{
		"personas": [{"name": "CTO"}],
		"company_filters": {
			"industries": ["SaaS"],
			"company_size": ["11-50", "51-200"],
			"total_funding_min": 1000000,
			"total_funding_max": 20000000,
			"hq_radius_km": 50
		},
		"geo_strategy": {"mode": "hubs"}
	}`

	var cfg ICPConfig
	require.NoError(t, json.Unmarshal([]byte(icpJSON), &cfg))

	f := cfg.Filters()
	assert.Equal(t, Labels{"11-50", "51-200"}, f.CompanySize)
	assert.Equal(t, int64(1000000), f.TotalFundingMin)
	assert.Equal(t, int64(20000000), f.TotalFundingMax)
	assert.JSONEq(t, `50`, string(cfg.CompanyFilters.Extra()["hq_radius_km"]))
	assert.JSONEq(t, `{"mode":"hubs"}`, string(cfg.Extra()["geo_strategy"]))

	raw, err := json.Marshal(CompaniesRequest{ICPConfig: &cfg, Limit: 10})
	require.NoError(t, err)

	var sent struct {
		ICPConfig json.RawMessage `json:"icp_config"`
	}
	require.NoError(t, json.Unmarshal(raw, &sent))
	assert.JSONEq(t, icpJSON, string(sent.ICPConfig))
}

func TestICPConfig_NoExtraMembers(t *testing.T) {
	var cfg ICPConfig
	require.NoError(t, json.Unmarshal([]byte(`{"personas":[{"name":"CTO"}]}`), &cfg))
	assert.Nil(t, cfg.Extra())
	assert.Nil(t, cfg.CompanyFilters.Extra())

	raw, err := json.Marshal(&cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"personas":[{"name":"CTO"}]}`, string(raw))
}

func TestLabels_AcceptsSingleString(t *testing.T) {
	var f CompanyFilters
	require.NoError(t, json.Unmarshal([]byte(`{"company_size":"51-200"}`), &f))
	assert.Equal(t, Labels{"51-200"}, f.CompanySize)

	require.NoError(t, json.Unmarshal([]byte(`{"company_size":""}`), &f))
	assert.Empty(t, f.CompanySize)

	assert.Error(t, json.Unmarshal([]byte(`{"company_size":42}`), &f))
}

func TestBuildSearchPayload_NilConfig(t *testing.T) {
	p := BuildSearchPayload(nil, 25)
	assert.Equal(t, 25, p.PerPage)
	assert.Empty(t, p.OrganizationLocations)
}

func TestCompany_FieldFallbacks(t *testing.T) {
	tests := []struct {
		name         string
		company      Company
		wantLinkedIn string
		wantHQ       string
		wantRevenue  string
	}{
		{
			name: "primary fields win",
			company: Company{
				CompanyLinkedInURL: "https://linkedin.com/company/acme",
				LinkedInURL:        "https://linkedin.com/acme-old",
				Headquarters:       "Austin, TX",
				Location:           "Texas",
				Revenue:            "$10M",
				RevenueRange:       "$5M-$20M",
			},
			wantLinkedIn: "https://linkedin.com/company/acme",
			wantHQ:       "Austin, TX",
			wantRevenue:  "$10M",
		},
		{
			name: "fallback fields are used",
			company: Company{
				LinkedInURL:  "https://linkedin.com/acme-old",
				Location:     "Texas",
				RevenueRange: "$5M-$20M",
			},
			wantLinkedIn: "https://linkedin.com/acme-old",
			wantHQ:       "Texas",
			wantRevenue:  "$5M-$20M",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLinkedIn, tt.company.CompanyLinkedIn())
			assert.Equal(t, tt.wantHQ, tt.company.HQ())
			assert.Equal(t, tt.wantRevenue, tt.company.RevenueText())
		})
	}
}

func TestCompany_DecodesBackendPayload(t *testing.T) {
	payload := `{
		"id": "c-1",
		"organization_id": "org-1",
		"name": "Acme",
		"domain": "acme.io",
		"employee_count": 120,
		"intent_score": 0.82,
		"coresignal_enriched": true,
		"coresignal_data": {"domain_source": "website"},
		"contacts": [{"email": "jane@acme.io", "first_name": "Jane", "job_title": "CTO"}]
	}`

	var c Company
	require.NoError(t, json.Unmarshal([]byte(payload), &c))

	assert.Equal(t, "org-1", c.Key())
	require.NotNil(t, c.IntentScore)
	assert.InDelta(t, 0.82, *c.IntentScore, 1e-9)
	assert.Equal(t, "website", c.DomainSource())

	simple := c.Simple()
	assert.Equal(t, "acme.io", simple.Domain)
	assert.Len(t, simple.Contacts, 1)
}

func TestPresent(t *testing.T) {
	c := Company{
		Name:          "Acme",
		EmployeeCount: 40,
		LinkedInURL:   "https://linkedin.com/acme",
		Description:   "Widgets",
		Contacts: []Contact{
			{Email: "x@acme.io"},
			{Email: "jane@acme.io", FirstName: "Jane", LastName: "Doe", JobTitle: "CTO"},
		},
	}

	v := Present(c)

	assert.Equal(t, "$40K", v.Value)
	assert.Equal(t, "https://linkedin.com/acme", v.LinkedIn)
	assert.Equal(t, "Widgets", v.Summary)
	assert.Equal(t, []string{}, v.TechStack)
	require.Len(t, v.Contacts, 2)
	assert.Equal(t, "x@acme.io", v.Contacts[0].Name)
	assert.Equal(t, "Contact", v.Contacts[0].Role)
	assert.Equal(t, "Jane Doe", v.Contacts[1].Name)
	assert.Empty(t, c.Technologies, "source record is not modified")
}

func TestConversationState_TurnsExhausted(t *testing.T) {
	assert.False(t, ConversationState{TurnCount: 2, MaxTurns: 5}.TurnsExhausted())
	assert.True(t, ConversationState{TurnCount: 5, MaxTurns: 5}.TurnsExhausted())
	assert.False(t, ConversationState{TurnCount: 9}.TurnsExhausted(), "unknown max never exhausts")
}

func TestConversationMode_Valid(t *testing.T) {
	assert.True(t, ModeQuick.Valid())
	assert.False(t, ConversationMode("fast").Valid())
}
