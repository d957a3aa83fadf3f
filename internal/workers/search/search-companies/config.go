// internal/workers/search/search-companies/config.go
package searchcompanies

import "time"

type Config struct {
	Timeout      time.Duration
	DefaultLimit int
	InputSchema  map[string]interface{}
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      300 * time.Second,
		DefaultLimit: 10,
	}
}
