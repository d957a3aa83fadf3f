// internal/workers/conversation/start-conversation/config.go
package startconversation

import "time"

type Config struct {
	Timeout     time.Duration
	InputSchema map[string]interface{}
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 120 * time.Second,
	}
}
