// internal/workers/export/export-results/config.go
package exportresults

import "time"

type Config struct {
	Timeout     time.Duration
	OutputDir   string
	InputSchema map[string]interface{}
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		OutputDir: "./exports",
	}
}
