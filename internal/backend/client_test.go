package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "icp-pipeline/internal/common/errors"
	"icp-pipeline/internal/common/logger"
	"icp-pipeline/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", 5*time.Second, 2, logger.NewTestLogger(t))
}

func decodeBody(t *testing.T, r *http.Request, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(out))
}

// ==========================
// Conversation Endpoints
// ==========================

func TestClient_StartConversation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/icp/conversation/start", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		decodeBody(t, r, &body)
		assert.Equal(t, "B2B SaaS companies in Austin", body["initial_text"])
		assert.Equal(t, "auto", body["mode"])
		assert.Equal(t, float64(5), body["max_turns"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"conversation_id": "conv-1",
			"session_id": "a1b2c3d4",
			"needs_conversation": true,
			"message": "Which job titles should we target?",
			"current_state": {"known_fields": {"industries": ["SaaS"]}, "missing_fields": ["personas"], "turn_count": 1, "max_turns": 5, "confidence_score": 0.4}
		}`))
	})

	resp, err := client.StartConversation(context.Background(), models.ConversationStartRequest{
		InitialText: "B2B SaaS companies in Austin",
		Mode:        models.ModeAuto,
		MaxTurns:    5,
	})

	require.NoError(t, err)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.True(t, resp.NeedsConversation)
	assert.Equal(t, []string{"personas"}, resp.CurrentState.MissingFields)
	assert.Equal(t, 1, resp.CurrentState.TurnCount)
	assert.Nil(t, resp.ICPConfig)
}

func TestClient_RespondConversation_EscapesID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/icp/conversation/conv%2F1/respond", r.URL.EscapedPath())

		var body models.ConversationRespondRequest
		decodeBody(t, r, &body)
		assert.Equal(t, "VP of Sales", body.Answer)

		_, _ = w.Write([]byte(`{"conversation_id":"conv/1","needs_more_info":false,"progress_percentage":100,
			"current_state":{"turn_count":2,"max_turns":5},
			"icp_config":{"personas":[{"name":"VP Sales"}]}}`))
	})

	resp, err := client.RespondConversation(context.Background(), "conv/1", "VP of Sales")

	require.NoError(t, err)
	assert.False(t, resp.NeedsMoreInfo)
	require.NotNil(t, resp.ICPConfig)
	assert.Equal(t, "VP Sales", resp.ICPConfig.Personas[0].Name)
}

func TestClient_StatusAndFinalize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/icp/conversation/conv-1/status":
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write([]byte(`{"conversation_id":"conv-1","turn_count":3,"is_complete":false,"progress_percentage":60}`))
		case "/icp/conversation/conv-1/finalize":
			var body models.ConversationFinalizeRequest
			decodeBody(t, r, &body)
			assert.True(t, body.ForceComplete)
			_, _ = w.Write([]byte(`{"success":true,"session_id":"s1","icp_config":{},"missing_fields":["personas"],"warning":"forced"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	status, err := client.ConversationStatus(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 3, status.TurnCount)

	fin, err := client.FinalizeConversation(context.Background(), "conv-1", true)
	require.NoError(t, err)
	assert.True(t, fin.Success)
	assert.Equal(t, "forced", fin.Warning)
	assert.NotNil(t, fin.ICPConfig)
}

// ==========================
// Search Endpoints
// ==========================

func TestClient_SearchCompanies_ReportsBackendFailureAsData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies", r.URL.Path)
		var body map[string]interface{}
		decodeBody(t, r, &body)
		assert.Equal(t, float64(10), body["limit"])
		assert.Equal(t, "s1", body["session_id"])
		assert.NotNil(t, body["icp_config"])
		assert.Nil(t, body["search_payload"])

		_, _ = w.Write([]byte(`{"success":false,"companies":[],"error":"No companies found"}`))
	})

	resp, err := client.SearchCompanies(context.Background(), models.CompaniesRequest{
		ICPConfig: &models.ICPConfig{},
		Limit:     10,
		SessionID: "s1",
	})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "No companies found", resp.Error)
}

func TestClient_SearchLeads(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body models.LeadsRequest
		decodeBody(t, r, &body)
		require.Len(t, body.Companies, 1)
		assert.Equal(t, "acme.io", body.Companies[0].Domain)
		assert.Equal(t, 25, body.MaxLeadsPerCompany)

		_, _ = w.Write([]byte(`{"success":true,"total_leads":1,"companies_processed":1,
			"leads":[{"contact_first_name":"Jane","contact_email":"jane@acme.io","matched_persona":"CTO"}]}`))
	})

	resp, err := client.SearchLeads(context.Background(), models.LeadsRequest{
		Companies:          []models.SimpleCompany{{Name: "Acme", Domain: "acme.io"}},
		MaxLeadsPerCompany: 25,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.TotalLeads)
	assert.Equal(t, "jane@acme.io", resp.Leads[0].Email)
}

// ==========================
// Error Mapping
// ==========================

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		wantStatus int
	}{
		{name: "error body text", status: http.StatusInternalServerError, body: "database unavailable", wantMsg: "database unavailable", wantStatus: 500},
		{name: "empty body", status: http.StatusBadGateway, body: "", wantMsg: "HTTP 502", wantStatus: 502},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Health(context.Background())

			require.Error(t, err)
			assert.True(t, apperrors.IsTransport(err))
			stdErr, ok := apperrors.AsStandard(err)
			require.True(t, ok)
			assert.Contains(t, stdErr.Message, tt.wantMsg)
			assert.Equal(t, tt.wantStatus, stdErr.Status)
		})
	}
}

func TestClient_MalformedResponseIsNotANetworkError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	_, err := client.Health(context.Background())

	require.Error(t, err)
	assert.False(t, apperrors.IsTransport(err))
	assert.True(t, apperrors.IsBackendReported(err))
	assert.Equal(t, "The search service returned a response that could not be read", apperrors.UserMessage(err))
	stdErr, _ := apperrors.AsStandard(err)
	assert.Contains(t, stdErr.Details, "/health")
}

func TestClient_StartConversation_CompletedWithBackendShapedICP(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"conversation_id": "conv-2",
			"session_id": "s2",
			"needs_conversation": false,
			"message": "ICP configuration complete.",
			"current_state": {"turn_count": 1, "max_turns": 5},
			"icp_config": {
				"personas": [{"name": "VP Sales"}],
				"company_filters": {
					"industries": ["SaaS"],
					"company_size": ["11-50", "51-200"],
					"total_funding_min": 1000000,
					"total_funding_max": 20000000
				}
			}
		}`))
	})

	resp, err := client.StartConversation(context.Background(), models.ConversationStartRequest{InitialText: "SaaS", Mode: models.ModeQuick})

	require.NoError(t, err)
	require.NotNil(t, resp.ICPConfig)
	f := resp.ICPConfig.Filters()
	assert.Equal(t, models.Labels{"11-50", "51-200"}, f.CompanySize)
	assert.Equal(t, int64(20000000), f.TotalFundingMax)
}

func TestClient_SearchCompanies_ForwardsICPUnchanged(t *testing.T) {
	filters := `{"industries":["SaaS"],"company_size":["11-50"],"total_funding_min":1000000,"total_funding_max":20000000,"hq_radius_km":50}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ICPConfig struct {
				CompanyFilters json.RawMessage `json:"company_filters"`
			} `json:"icp_config"`
		}
		decodeBody(t, r, &body)
		assert.JSONEq(t, filters, string(body.ICPConfig.CompanyFilters))
		_, _ = w.Write([]byte(`{"success":true,"companies":[{"name":"Acme"}]}`))
	})

	var icp models.ICPConfig
	require.NoError(t, json.Unmarshal([]byte(`{"company_filters":`+filters+`}`), &icp))

	resp, err := client.SearchCompanies(context.Background(), models.CompaniesRequest{ICPConfig: &icp, Limit: 10})

	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestClient_NetworkError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, 2, logger.NewNoOpLogger())

	_, err := client.Health(context.Background())

	require.Error(t, err)
	assert.True(t, apperrors.IsTransport(err))
	stdErr, _ := apperrors.AsStandard(err)
	assert.Contains(t, stdErr.Message, "Network error:")
}
