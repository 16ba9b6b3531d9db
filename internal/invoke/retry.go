package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/skillgate/internal/taxonomy"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Operation is one external call. Invoke receives the current target, which
// changes once if the call falls back.
type Operation[T any] struct {
	Name   string
	Invoke func(ctx context.Context, target string) (T, error)
}

// Call carries the per-invocation retry state shared by every operation
// (and every batch) of one skill invocation.
type Call struct {
	skill  string
	policy Policy
	sleep  SleepFunc
	jitter func() float64

	mu       sync.Mutex
	fallback bool
	retries  atomic.Int32
}

func newCall(skill string, policy Policy, sleep SleepFunc, jitter func() float64) *Call {
	return &Call{skill: skill, policy: policy, sleep: sleep, jitter: jitter}
}

// Target returns the resource or model calls currently go to.
func (c *Call) Target() string {
	target, _ := c.current()
	return target
}

// current returns the target together with whether it is the fallback.
func (c *Call) current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback {
		return c.policy.Fallback, true
	}
	return c.policy.Primary, false
}

// UsingFallback reports whether the call switched to its fallback target.
func (c *Call) UsingFallback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallback
}

// Retries returns the number of re-attempts made so far.
func (c *Call) Retries() int { return int(c.retries.Load()) }

// switchToFallback flips to the fallback target. It reports false when there
// is no fallback or the switch already happened.
func (c *Call) switchToFallback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback || c.policy.Fallback == "" {
		return false
	}
	c.fallback = true
	return true
}

// Backoff returns base * 2^attempt, capped at max, plus up to one base of
// jitter when requested.
func Backoff(base, max time.Duration, attempt int, jitter bool, rnd func() float64) time.Duration {
	delay := float64(base) * math.Pow(2, float64(attempt))
	if max > 0 && delay > float64(max) {
		delay = float64(max)
	}
	if jitter && rnd != nil {
		delay += rnd() * float64(base)
	}
	return time.Duration(delay)
}

// Run executes op under the call's retry, backoff, timeout and fallback rules.
func Run[T any](ctx context.Context, c *Call, op Operation[T]) (T, error) {
	var zero T
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return zero, deadlineRecord(c, op.Name, err)
		}

		target, onFallback := c.current()
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.policy.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.policy.AttemptTimeout)
		}
		v, err := op.Invoke(attemptCtx, target)
		attemptErr := attemptCtx.Err()
		cancel()
		if err == nil {
			return v, nil
		}

		if ctx.Err() != nil {
			return zero, deadlineRecord(c, op.Name, ctx.Err())
		}

		rec := toRecord(err, attemptErr)
		policy := taxonomy.Resolve(rec.Code)

		// Once on the fallback target every failure is terminal.
		if onFallback {
			return zero, rec.WithFallback(c.policy.Fallback).WithRetryCount(c.Retries())
		}

		// Another operation of this call switched while this attempt ran on
		// the primary; follow it to the fallback.
		if c.UsingFallback() && (policy.RetrySafe || rec.Entry().HasFallback()) {
			slog.Debug("Re-attempting on fallback target",
				"skill", c.skill, "op", op.Name, "from", target, "to", c.policy.Fallback, "code", rec.Code)
			c.retries.Add(1)
			continue
		}

		if policy.AllowsRetry(attempt) {
			delay := Backoff(c.policy.BackoffBase, c.policy.MaxBackoff, attempt, policy.Jitter, c.jitter)
			if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
				slog.Warn("Skipping retry past invocation deadline",
					"skill", c.skill, "op", op.Name, "code", rec.Code, "attempt", attempt)
				return zero, rec.WithRetryCount(c.Retries())
			}

			slog.Debug("Retrying operation",
				"skill", c.skill, "op", op.Name, "target", target,
				"code", rec.Code, "attempt", attempt, "delay", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return zero, rec.WithRetryCount(c.Retries())
			}
			c.retries.Add(1)
			attempt++
			continue
		}

		if !policy.RetrySafe && rec.Entry().HasFallback() && c.switchToFallback() {
			slog.Warn("Switching to fallback target",
				"skill", c.skill, "op", op.Name, "from", target, "to", c.policy.Fallback, "code", rec.Code)
			c.retries.Add(1)
			continue
		}

		return zero, rec.WithRetryCount(c.Retries())
	}
}

// deadlineRecord reports the overall invocation deadline or cancellation.
func deadlineRecord(c *Call, op string, err error) *taxonomy.ErrorRecord {
	rec := taxonomy.Wrap(taxonomy.Timeout, fmt.Errorf("%s %s: %w", c.skill, op, err))
	return rec.WithRetryCount(c.Retries())
}

// toRecord converts an attempt error into a taxonomy record. A per-attempt
// deadline becomes a retry-safe TIMEOUT.
func toRecord(err, attemptErr error) *taxonomy.ErrorRecord {
	if rec, ok := taxonomy.As(err); ok {
		return rec
	}
	if errors.Is(attemptErr, context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return taxonomy.Wrap(taxonomy.Timeout, err)
	}
	return taxonomy.Wrap(ClassifyError(err), err)
}

// ClassifyError infers a taxonomy code from an untyped collaborator error.
func ClassifyError(err error) taxonomy.Code {
	if err == nil {
		return ""
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown && st.Code() != codes.OK {
		return taxonomy.FromGRPC(err).Code
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return taxonomy.Timeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return taxonomy.NetworkError
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "429") || strings.Contains(s, "too many requests") || strings.Contains(s, "rate limit"):
		return taxonomy.RateLimited
	case strings.Contains(s, "timeout") || strings.Contains(s, "timed out"):
		return taxonomy.Timeout
	case strings.Contains(s, "connection refused") || strings.Contains(s, "connection reset") ||
		strings.Contains(s, "no such host") || strings.Contains(s, "broken pipe"):
		return taxonomy.NetworkError
	case strings.Contains(s, "503") || strings.Contains(s, "service unavailable"):
		return taxonomy.PlatformUnavailable
	case strings.Contains(s, "401") || strings.Contains(s, "unauthorized"):
		return taxonomy.ExtAuthFailed
	case strings.Contains(s, "403") || strings.Contains(s, "forbidden"):
		return taxonomy.ExtForbidden
	}
	return taxonomy.UnknownCode
}
