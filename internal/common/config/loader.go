// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"icp-pipeline/internal/common/validation"
)

const (
	DefaultMode                  = "auto"
	DefaultMaxTurns              = 5
	MinMaxTurns                  = 1
	MaxMaxTurns                  = 7
	DefaultCompanyLimit          = 10
	MaxCompanyLimit              = 50
	DefaultMaxLeadsPerCompany    = 25
	DefaultMaxConcurrentRequests = 2
)

// Load reads configs/config.yaml, merges config.<env>.yaml on top and applies
// environment overrides such as BACKEND_BASE_URL.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about.
	v.SetDefault("backend.base_url", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.redis.password", "")
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "icp-pipeline"
	}

	// Backend defaults
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 120000
	}
	if cfg.Backend.MaxConcurrentRequests == 0 {
		cfg.Backend.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")

	// Pipeline defaults
	if cfg.Pipeline.Mode == "" {
		cfg.Pipeline.Mode = DefaultMode
	}
	if cfg.Pipeline.MaxTurns == 0 {
		cfg.Pipeline.MaxTurns = DefaultMaxTurns
	}
	if cfg.Pipeline.CompanyLimit == 0 {
		cfg.Pipeline.CompanyLimit = DefaultCompanyLimit
	}
	if cfg.Pipeline.MaxLeadsPerCompany == 0 {
		cfg.Pipeline.MaxLeadsPerCompany = DefaultMaxLeadsPerCompany
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "icp-results"
	}

	// Session defaults
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 86400
	}
	if cfg.Session.ClaimTTL == 0 {
		cfg.Session.ClaimTTL = 900
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "icp"
	}

	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "."
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 1
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if !validation.ValidateURL(cfg.Backend.BaseURL) {
		return fmt.Errorf("backend.base_url must be an http(s) URL, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.MaxConcurrentRequests < 1 {
		return fmt.Errorf("backend.max_concurrent_requests must be at least 1")
	}

	switch cfg.Pipeline.Mode {
	case "auto", "conversational", "quick":
	default:
		return fmt.Errorf("pipeline.mode must be one of auto, conversational, quick")
	}
	if cfg.Pipeline.MaxTurns < MinMaxTurns || cfg.Pipeline.MaxTurns > MaxMaxTurns {
		return fmt.Errorf("pipeline.max_turns must be between %d and %d", MinMaxTurns, MaxMaxTurns)
	}
	if cfg.Pipeline.CompanyLimit < 1 || cfg.Pipeline.CompanyLimit > MaxCompanyLimit {
		return fmt.Errorf("pipeline.company_limit must be between 1 and %d", MaxCompanyLimit)
	}
	if cfg.Pipeline.MaxLeadsPerCompany < 1 || cfg.Pipeline.MaxLeadsPerCompany > DefaultMaxLeadsPerCompany {
		return fmt.Errorf("pipeline.max_leads_per_company must be between 1 and %d", DefaultMaxLeadsPerCompany)
	}

	return nil
}

// ValidateForWorkers checks the infrastructure settings the worker manager
// cannot start without.
func ValidateForWorkers(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if cfg.Pipeline.RecordHistory {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}
	if cfg.Pipeline.IndexResults && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    1,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
