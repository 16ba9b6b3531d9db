package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/observability/metrics"
)

// LogSink writes one structured log line per record.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink logs through log, or slog.Default() when log is nil.
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, rec domain.InvocationRecord) error {
	attrs := []any{
		"id", rec.ID,
		"skill", rec.Skill,
		"agent", rec.AgentID,
		"input_hash", rec.InputHash,
		"duration_ms", rec.DurationMs,
		"retry_count", rec.RetryCount,
		"success", rec.Success,
	}
	if rec.OutputHash != nil {
		attrs = append(attrs, "output_hash", *rec.OutputHash)
	}
	if rec.ErrorCode != nil {
		attrs = append(attrs, "code", *rec.ErrorCode)
	}
	if rec.Partial {
		attrs = append(attrs, "partial", true)
	}
	if rec.CacheHit {
		attrs = append(attrs, "cache_hit", true)
	}
	s.log.InfoContext(ctx, "Skill invocation", attrs...)
	return nil
}

// MetricsSink updates the skill metric families.
type MetricsSink struct {
	mu     sync.Mutex
	totals map[string]*tally
}

type tally struct {
	invocations int
	successes   int
}

func NewMetricsSink() *MetricsSink {
	return &MetricsSink{totals: make(map[string]*tally)}
}

func (s *MetricsSink) Name() string { return "metrics" }

func (s *MetricsSink) Write(_ context.Context, rec domain.InvocationRecord) error {
	metrics.SkillInvocations.WithLabelValues(rec.Skill).Inc()
	metrics.SkillDuration.WithLabelValues(rec.Skill).Observe(float64(rec.DurationMs))
	if rec.RetryCount > 0 {
		metrics.SkillRetries.WithLabelValues(rec.Skill).Add(float64(rec.RetryCount))
	}
	if rec.ErrorCode != nil {
		metrics.SkillErrors.WithLabelValues(rec.Skill, *rec.ErrorCode).Inc()
	}
	if rec.CacheHit {
		metrics.SkillCacheHits.WithLabelValues(rec.Skill).Inc()
	}

	s.mu.Lock()
	t, ok := s.totals[rec.Skill]
	if !ok {
		t = &tally{}
		s.totals[rec.Skill] = t
	}
	t.invocations++
	if rec.Success {
		t.successes++
	}
	rate := float64(t.successes) / float64(t.invocations)
	s.mu.Unlock()

	metrics.SkillSuccessRate.WithLabelValues(rec.Skill).Set(rate)
	return nil
}

// SuccessRate returns the success rate of skill since start, or 1 when it
// never ran.
func (s *MetricsSink) SuccessRate(skill string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.totals[skill]
	if !ok || t.invocations == 0 {
		return 1
	}
	return float64(t.successes) / float64(t.invocations)
}

// Store persists records.
type Store interface {
	Insert(ctx context.Context, rec domain.InvocationRecord) error
}

// StoreSink writes records to a Store with a bounded wait.
type StoreSink struct {
	store   Store
	timeout time.Duration
}

// NewStoreSink creates a store sink. A zero timeout defaults to 2s.
func NewStoreSink(store Store, timeout time.Duration) *StoreSink {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &StoreSink{store: store, timeout: timeout}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Write(ctx context.Context, rec domain.InvocationRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Insert(ctx, rec)
}

// Ring keeps the most recent records in memory.
type Ring struct {
	mu    sync.RWMutex
	items []domain.InvocationRecord
	next  int
	full  bool
}

// NewRing creates a ring holding up to size records.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 100
	}
	return &Ring{items: make([]domain.InvocationRecord, size)}
}

func (r *Ring) Name() string { return "ring" }

func (r *Ring) Write(_ context.Context, rec domain.InvocationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.next] = rec
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// Recent returns up to n records, newest first.
func (r *Ring) Recent(n int) []domain.InvocationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = len(r.items)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]domain.InvocationRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.items)) % len(r.items)
		out = append(out, r.items[idx])
	}
	return out
}
