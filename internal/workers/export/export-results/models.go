// internal/workers/export/export-results/models.go
package exportresults

import "icp-pipeline/internal/models"

type Input struct {
	Kind      string           `json:"kind"`
	Companies []models.Company `json:"companies,omitempty"`
	Leads     []models.Lead    `json:"leads,omitempty"`
}

type Output struct {
	Kind     string `json:"exportKind"`
	FilePath string `json:"exportPath"`
	FileName string `json:"exportFileName"`
	Rows     int    `json:"exportRows"`
}
