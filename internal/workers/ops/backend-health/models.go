// internal/workers/ops/backend-health/models.go
package backendhealth

import "time"

type Output struct {
	Healthy   bool      `json:"backendHealthy"`
	Message   string    `json:"backendMessage,omitempty"`
	Status    string    `json:"backendStatus,omitempty"`
	Error     string    `json:"backendError,omitempty"`
	LatencyMs int64     `json:"backendLatencyMs"`
	CheckedAt time.Time `json:"backendCheckedAt"`
}
