// Package invoke runs skills against unreliable collaborators.
//
// This package contains:
//   - Invoker: per-skill state machine (validate, cache, call, validate output, observe)
//   - Call / Run: retry, backoff, per-attempt timeout and single fallback switch
//   - Partition / RunBatches: fixed-size batching with in-order reassembly
//   - Cache: idempotency cache contract, implemented in infra/cache
package invoke

import (
	"context"
	"time"
)

// Policy holds the timing and target settings of one skill.
type Policy struct {
	// Timeout bounds the whole invocation.
	Timeout time.Duration
	// AttemptTimeout bounds each sub-call (per platform, per batch).
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	MaxBackoff     time.Duration
	// CacheTTL enables the idempotency cache when positive.
	CacheTTL    time.Duration
	BatchSize   int
	Concurrency int

	Primary  string
	Fallback string
}

// DefaultMaxBackoff caps the delay of unbounded retries.
const DefaultMaxBackoff = 30 * time.Second

// Cache stores serialized skill outputs by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
