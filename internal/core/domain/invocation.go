package domain

import "time"

// HashPrefix marks input and output digests.
const HashPrefix = "sha256_"

// InvocationRecord is the observability record of one terminal skill outcome.
type InvocationRecord struct {
	ID         string    `json:"id"`
	Skill      string    `json:"skill"`
	AgentID    string    `json:"agentId"`
	Timestamp  time.Time `json:"timestamp"`
	InputHash  string    `json:"inputHash"`
	OutputHash *string   `json:"outputHash"`
	DurationMs int64     `json:"durationMs"`
	ErrorCode  *string   `json:"errorCode"`
	RetryCount int       `json:"retryCount"`
	Success    bool      `json:"success"`
	Partial    bool      `json:"partial"`
	CacheHit   bool      `json:"cacheHit"`
}
