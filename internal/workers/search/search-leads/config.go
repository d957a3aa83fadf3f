// internal/workers/search/search-leads/config.go
package searchleads

import "time"

type Config struct {
	Timeout            time.Duration
	MaxLeadsPerCompany int
	InputSchema        map[string]interface{}
}

func LoadConfig() *Config {
	return &Config{
		Timeout:            300 * time.Second,
		MaxLeadsPerCompany: 25,
	}
}
