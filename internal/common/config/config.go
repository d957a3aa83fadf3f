// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Backend  BackendConfig           `mapstructure:"backend"`
	Pipeline PipelineConfig          `mapstructure:"pipeline"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Session  SessionConfig           `mapstructure:"session"`
	Export   ExportConfig            `mapstructure:"export"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Server   ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BackendConfig describes the remote ICP/company/lead service.
type BackendConfig struct {
	BaseURL               string `mapstructure:"base_url"`
	Timeout               int    `mapstructure:"timeout"` // milliseconds
	MaxConcurrentRequests int    `mapstructure:"max_concurrent_requests"`
}

// PipelineConfig holds defaults for conversation and search stages.
type PipelineConfig struct {
	Mode               string `mapstructure:"mode"`
	MaxTurns           int    `mapstructure:"max_turns"`
	CompanyLimit       int    `mapstructure:"company_limit"`
	MaxLeadsPerCompany int    `mapstructure:"max_leads_per_company"`
	RecordHistory      bool   `mapstructure:"record_history"`
	IndexResults       bool   `mapstructure:"index_results"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
	Index     string   `mapstructure:"index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig controls how long conversation snapshots live in redis.
type SessionConfig struct {
	TTL       int    `mapstructure:"ttl"`        // seconds
	ClaimTTL  int    `mapstructure:"claim_ttl"`  // seconds
	KeyPrefix string `mapstructure:"key_prefix"`
}

type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}
