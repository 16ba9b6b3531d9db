// Package observability turns invocation outcomes into observability records.
//
// This package contains:
//   - Recorder: invoke.Observer that assembles one record per terminal outcome
//   - LogSink, MetricsSink, StoreSink, Ring: record destinations
//   - Hash: canonical sha256_ digest of a payload
package observability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/invoke"
	"github.com/vietddude/skillgate/internal/observability/metrics"
)

// Sink receives assembled records. Errors are logged by the Recorder and
// never reach the invocation.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec domain.InvocationRecord) error
}

// Recorder fans invocation events out to sinks.
type Recorder struct {
	sinks []Sink
	newID func() string
}

// NewRecorder creates a recorder writing to sinks in order.
func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks, newID: uuid.NewString}
}

// Observe implements invoke.Observer.
func (r *Recorder) Observe(ctx context.Context, ev invoke.Event) {
	rec := r.Assemble(ev)
	for _, s := range r.sinks {
		r.write(ctx, s, rec)
	}
}

// Assemble builds the record for ev. A payload that cannot be hashed is
// logged and recorded with an empty digest.
func (r *Recorder) Assemble(ev invoke.Event) domain.InvocationRecord {
	rec := domain.InvocationRecord{
		ID:         r.newID(),
		Skill:      ev.Skill,
		AgentID:    ev.AgentID,
		Timestamp:  ev.StartedAt.UTC(),
		DurationMs: ev.Duration.Milliseconds(),
		RetryCount: ev.RetryCount,
		Success:    ev.Success,
		Partial:    ev.Partial,
		CacheHit:   ev.CacheHit,
	}

	if h, err := Hash(ev.Input); err != nil {
		slog.Warn("Failed to hash input", "skill", ev.Skill, "error", err)
	} else {
		rec.InputHash = h
	}

	if ev.Output != nil {
		if h, err := Hash(ev.Output); err != nil {
			slog.Warn("Failed to hash output", "skill", ev.Skill, "error", err)
		} else {
			rec.OutputHash = &h
		}
	}

	if ev.ErrorCode != "" {
		code := string(ev.ErrorCode)
		rec.ErrorCode = &code
	}
	return rec
}

func (r *Recorder) write(ctx context.Context, s Sink, rec domain.InvocationRecord) {
	defer func() {
		if p := recover(); p != nil {
			metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			slog.Error("Observability sink panicked", "sink", s.Name(), "skill", rec.Skill, "panic", p)
		}
	}()
	if err := s.Write(ctx, rec); err != nil {
		metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
		slog.Warn("Observability sink failed", "sink", s.Name(), "skill", rec.Skill, "error", err)
	}
}

// Hash returns "sha256_" followed by the hex SHA-256 of v's JSON encoding.
// encoding/json sorts map keys, so equal values hash equally.
func Hash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return domain.HashPrefix + hex.EncodeToString(sum[:]), nil
}
