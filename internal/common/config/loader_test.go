package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: https://icp.example.com/
workers:
  search-companies:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://icp.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 120000, cfg.Backend.Timeout)
	assert.Equal(t, DefaultMaxConcurrentRequests, cfg.Backend.MaxConcurrentRequests)
	assert.Equal(t, DefaultMode, cfg.Pipeline.Mode)
	assert.Equal(t, DefaultMaxTurns, cfg.Pipeline.MaxTurns)
	assert.Equal(t, DefaultCompanyLimit, cfg.Pipeline.CompanyLimit)
	assert.Equal(t, DefaultMaxLeadsPerCompany, cfg.Pipeline.MaxLeadsPerCompany)
	assert.Equal(t, "icp-results", cfg.Database.Elasticsearch.Index)
	assert.Equal(t, 86400, cfg.Session.TTL)
	assert.Equal(t, 8080, cfg.Server.Port)

	worker := cfg.Workers["search-companies"]
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 30000, worker.Timeout)
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("ICP_TEST_BACKEND", "http://localhost:8000")
	path := writeConfig(t, `
backend:
  base_url: ${ICP_TEST_BACKEND}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing backend",
			body: "pipeline:\n  mode: auto\n",
			want: "backend.base_url is required",
		},
		{
			name: "not http",
			body: "backend:\n  base_url: ftp://icp\n",
			want: "must be an http(s) URL",
		},
		{
			name: "no host",
			body: "backend:\n  base_url: \"http:// icp\"\n",
			want: "must be an http(s) URL",
		},
		{
			name: "unknown mode",
			body: "backend:\n  base_url: http://icp\npipeline:\n  mode: eager\n",
			want: "pipeline.mode",
		},
		{
			name: "too many turns",
			body: "backend:\n  base_url: http://icp\npipeline:\n  max_turns: 8\n",
			want: "pipeline.max_turns must be between 1 and 7",
		},
		{
			name: "company limit above cap",
			body: "backend:\n  base_url: http://icp\npipeline:\n  company_limit: 51\n",
			want: "pipeline.company_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BACKEND_BASE_URL", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateForWorkers(t *testing.T) {
	cfg := &Config{
		Camunda:  CamundaConfig{BrokerAddress: "localhost:26500"},
		Database: DatabaseConfig{Redis: RedisConfig{Address: "localhost:6379"}},
	}
	assert.NoError(t, ValidateForWorkers(cfg))

	cfg.Pipeline.RecordHistory = true
	assert.ErrorContains(t, ValidateForWorkers(cfg), "database.postgres.host")

	cfg.Pipeline.RecordHistory = false
	cfg.Pipeline.IndexResults = true
	assert.ErrorContains(t, ValidateForWorkers(cfg), "elasticsearch")
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"export-results": {Enabled: false, MaxJobsActive: 1, Timeout: 1000},
	}}

	assert.False(t, GetWorkerConfig(cfg, "export-results").Enabled)
	assert.False(t, IsWorkerEnabled(cfg, "export-results"))

	fallback := GetWorkerConfig(cfg, "backend-health")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 30000, fallback.Timeout)
}
