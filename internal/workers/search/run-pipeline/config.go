// internal/workers/search/run-pipeline/config.go
package runpipeline

import "time"

type Config struct {
	Timeout            time.Duration
	CompanyLimit       int
	MaxLeadsPerCompany int
	InputSchema        map[string]interface{}
}

func LoadConfig() *Config {
	return &Config{
		Timeout:            600 * time.Second,
		CompanyLimit:       10,
		MaxLeadsPerCompany: 25,
	}
}
