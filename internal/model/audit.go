package model

import (
	"time"
)

// AuditLog is one authenticated request as seen by the gateway.
type AuditLog struct {
	ID        string `json:"id"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	// Request body with seed/secret/token fields redacted.
	RequestBody string `json:"request_body"`

	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Payment outcome, when the request was a payment.
	Context map[string]interface{} `json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
