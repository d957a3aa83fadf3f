package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icp-pipeline/internal/models"
)

func TestValidateICPConfig(t *testing.T) {
	tests := []struct {
		name      string
		config    interface{}
		wantValid bool
		wantField string
	}{
		{
			name: "typed config is valid",
			config: &models.ICPConfig{
				Personas: []models.Persona{{Name: "VP Sales", Seniority: []string{"vp"}}},
				CompanyFilters: &models.CompanyFilters{
					Industries:    []string{"SaaS"},
					EmployeeCount: &models.Range{Min: 50, Max: 200},
				},
			},
			wantValid: true,
		},
		{
			name:      "nil config",
			config:    nil,
			wantValid: false,
			wantField: "icp_config",
		},
		{
			name: "persona without name",
			config: map[string]interface{}{
				"personas": []interface{}{map[string]interface{}{"seniority": []interface{}{"vp"}}},
			},
			wantValid: false,
			wantField: "personas.0.name",
		},
		{
			name: "inverted employee range",
			config: &models.ICPConfig{
				CompanyFilters: &models.CompanyFilters{EmployeeCount: &models.Range{Min: 500, Max: 50}},
			},
			wantValid: false,
			wantField: "company_filters.employee_count",
		},
		{
			name: "inverted funding bounds",
			config: &models.ICPConfig{
				CompanyFilters: &models.CompanyFilters{
					CompanySize:     models.Labels{"51-200"},
					TotalFundingMin: 20000000,
					TotalFundingMax: 1000000,
				},
			},
			wantValid: false,
			wantField: "company_filters.total_funding",
		},
		{
			name: "industries must be strings",
			config: map[string]interface{}{
				"company_filters": map[string]interface{}{"industries": []interface{}{42}},
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateICPConfig(tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid, result.GetErrorMessages())
			if tt.wantField != "" {
				assert.True(t, result.HasErrors(tt.wantField), result.GetErrorMessages())
			}
		})
	}
}

func TestValidateDocument_RequiredAtRoot(t *testing.T) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"sessionId"},
	}

	result, err := ValidateDocument(schema, map[string]interface{}{})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.HasErrors("sessionId"))
	assert.Equal(t, "REQUIRED", result.Errors[0].Code)
}

func TestValidateDocument_EmptySchema(t *testing.T) {
	result, err := ValidateDocument(nil, map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateJobVariables(t *testing.T) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"answer"},
		"properties": map[string]interface{}{
			"answer": map[string]interface{}{"type": "string", "minLength": 1},
		},
	}

	assert.NoError(t, ValidateJobVariables(schema, `{"answer":"Series A"}`))
	assert.NoError(t, ValidateJobVariables(nil, `not json`))

	err := ValidateJobVariables(schema, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer")

	err = ValidateJobVariables(schema, `{"answer":`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse variables")
}

func TestRequireText(t *testing.T) {
	assert.NotNil(t, RequireText("initialText", "   \n"))
	assert.Nil(t, RequireText("initialText", "B2B SaaS in Austin"))
}

func TestValidateDocument_NestedRequiredNamesProperty(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"company_filters": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"industries"},
			},
		},
	}

	result, err := ValidateDocument(schema, map[string]interface{}{"company_filters": map[string]interface{}{}})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "company_filters.industries", result.Errors[0].Field)
	assert.Equal(t, "REQUIRED", result.Errors[0].Code)
}

func TestValidateURL(t *testing.T) {
	assert.True(t, ValidateURL("https://icp.example.com"))
	assert.True(t, ValidateURL("http://127.0.0.1:8000"))
	assert.False(t, ValidateURL("ftp://icp"))
	assert.False(t, ValidateURL("http:// icp"))
}
