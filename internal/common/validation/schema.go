package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateDocument checks doc against a JSON schema held as a Go value.
// doc may be any value that marshals to JSON; structs are normalized first so
// json tags decide the field names.
func ValidateDocument(schema map[string]interface{}, doc interface{}) (*ValidationResult, error) {
	if len(schema) == 0 {
		return &ValidationResult{Valid: true}, nil
	}

	normalized, err := normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(normalized))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if p, ok := desc.Details()["property"].(string); ok && desc.Type() == "required" {
			if field == "(root)" {
				field = p
			} else {
				field = field + "." + p
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// ValidateJobVariables checks the raw JSON variables of a job against schema
// and returns a single error listing every violation.
func ValidateJobVariables(schema map[string]interface{}, variables string) error {
	if len(schema) == 0 {
		return nil
	}
	var doc interface{}
	if strings.TrimSpace(variables) == "" {
		doc = map[string]interface{}{}
	} else if err := json.Unmarshal([]byte(variables), &doc); err != nil {
		return fmt.Errorf("parse variables: %w", err)
	}

	result, err := ValidateDocument(schema, doc)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("invalid input: %s", strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

func normalize(doc interface{}) (interface{}, error) {
	switch doc.(type) {
	case map[string]interface{}, []interface{}, string, float64, bool, nil:
		return doc, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ICPConfigSchema constrains ICP configs before they are sent to search.
var ICPConfigSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"personas": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"name"},
				"properties": map[string]interface{}{
					"name":        map[string]interface{}{"type": "string", "minLength": 1},
					"title_regex": stringArray(),
					"seniority":   stringArray(),
					"functions":   stringArray(),
				},
			},
		},
		"company_filters": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"industries":        stringArray(),
				"technologies":      stringArray(),
				"locations":         stringArray(),
				"employee_count":    rangeSchema(),
				"arr_usd":           rangeSchema(),
				"founded_year_min":  map[string]interface{}{"type": "integer", "minimum": 1800},
				"founded_year_max":  map[string]interface{}{"type": "integer", "minimum": 1800},
				"company_size":      stringArray(),
				"total_funding_min": map[string]interface{}{"type": "integer", "minimum": 0},
				"total_funding_max": map[string]interface{}{"type": "integer", "minimum": 0},
			},
		},
		"signals_required":  stringArray(),
		"negative_keywords": stringArray(),
	},
}

func stringArray() map[string]interface{} {
	return map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
}

func rangeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"min": map[string]interface{}{"type": "number", "minimum": 0},
			"max": map[string]interface{}{"type": "number", "minimum": 0},
		},
	}
}

// ValidateICPConfig runs ICPConfigSchema and the cross-field checks the schema
// cannot express.
func ValidateICPConfig(cfg interface{}) (*ValidationResult, error) {
	if cfg == nil {
		return &ValidationResult{Errors: []ValidationError{{
			Field: "icp_config", Message: "ICP configuration is required", Code: "REQUIRED",
		}}}, nil
	}

	result, err := ValidateDocument(ICPConfigSchema, cfg)
	if err != nil {
		return nil, err
	}

	doc, _ := normalize(cfg)
	if m, ok := doc.(map[string]interface{}); ok {
		if filters, ok := m["company_filters"].(map[string]interface{}); ok {
			for _, key := range []string{"employee_count", "arr_usd"} {
				if r, ok := filters[key].(map[string]interface{}); ok {
					min, minOK := r["min"].(float64)
					max, maxOK := r["max"].(float64)
					if minOK && maxOK && min > max {
						result.Errors = append(result.Errors, ValidationError{
							Field:   "company_filters." + key,
							Message: "min must not exceed max",
							Code:    "RANGE_INVERTED",
						})
					}
				}
			}
			min, minOK := filters["total_funding_min"].(float64)
			max, maxOK := filters["total_funding_max"].(float64)
			if minOK && maxOK && min > 0 && max > 0 && min > max {
				result.Errors = append(result.Errors, ValidationError{
					Field:   "company_filters.total_funding",
					Message: "total_funding_min must not exceed total_funding_max",
					Code:    "RANGE_INVERTED",
				})
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

// RequireText rejects empty or whitespace-only user input.
func RequireText(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must not be empty", field),
			Code:    "REQUIRED",
		}
	}
	return nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

var urlPattern = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)

// ValidateURL reports whether url is an absolute http(s) URL.
func ValidateURL(url string) bool {
	return urlPattern.MatchString(url)
}
