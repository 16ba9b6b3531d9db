package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/invoke"
	"github.com/vietddude/skillgate/internal/taxonomy"
)

type failingSink struct {
	err   error
	panic bool
}

func (s failingSink) Name() string { return "failing" }

func (s failingSink) Write(context.Context, domain.InvocationRecord) error {
	if s.panic {
		panic("sink exploded")
	}
	return s.err
}

type memStore struct {
	records []domain.InvocationRecord
}

func (m *memStore) Insert(_ context.Context, rec domain.InvocationRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func event() invoke.Event {
	return invoke.Event{
		Skill:      "fetchTrends",
		AgentID:    "agent-1",
		StartedAt:  time.Date(2026, 1, 15, 10, 30, 0, 0, time.FixedZone("X", 3600)),
		Duration:   1500 * time.Millisecond,
		Input:      map[string]any{"platform": "twitter", "limit": 50},
		Output:     map[string]any{"count": 0},
		RetryCount: 2,
		Success:    true,
		FinalState: invoke.StateDone,
	}
}

func TestRecorder_AssemblesSuccess(t *testing.T) {
	r := NewRecorder()
	rec := r.Assemble(event())

	assert.Equal(t, "fetchTrends", rec.Skill)
	assert.Equal(t, "agent-1", rec.AgentID)
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
	assert.Equal(t, 9, rec.Timestamp.Hour())
	assert.EqualValues(t, 1500, rec.DurationMs)
	assert.Equal(t, 2, rec.RetryCount)
	assert.True(t, rec.Success)
	assert.Nil(t, rec.ErrorCode)
	assert.True(t, strings.HasPrefix(rec.InputHash, "sha256_"))
	assert.Len(t, rec.InputHash, len("sha256_")+64)
	require.NotNil(t, rec.OutputHash)
	assert.NotEmpty(t, rec.ID)
}

func TestRecorder_AssemblesFailure(t *testing.T) {
	ev := event()
	ev.Output = nil
	ev.Success = false
	ev.ErrorCode = taxonomy.PlatformUnavailable
	ev.FinalState = invoke.StateDoneWithError

	rec := NewRecorder().Assemble(ev)
	assert.Nil(t, rec.OutputHash)
	require.NotNil(t, rec.ErrorCode)
	assert.Equal(t, "PLATFORM_UNAVAILABLE", *rec.ErrorCode)
	assert.False(t, rec.Success)
}

func TestRecorder_SinkFailuresAreSwallowed(t *testing.T) {
	store := &memStore{}
	ring := NewRing(10)
	r := NewRecorder(
		failingSink{err: errors.New("db down")},
		failingSink{panic: true},
		NewStoreSink(store, 0),
		ring,
	)

	assert.NotPanics(t, func() { r.Observe(context.Background(), event()) })
	assert.Len(t, store.records, 1)
	assert.Len(t, ring.Recent(0), 1)
}

func TestHash_Deterministic(t *testing.T) {
	a, err := Hash(map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	b, err := Hash(map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)
	c, err := Hash(map[string]any{"a": 3, "b": 1})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	_, err = Hash(make(chan int))
	assert.Error(t, err)
}

func TestMetricsSink_SuccessRate(t *testing.T) {
	s := NewMetricsSink()
	assert.Equal(t, 1.0, s.SuccessRate("semanticFilter"))

	code := "LLM_ERROR"
	for i := 0; i < 4; i++ {
		rec := domain.InvocationRecord{Skill: "semanticFilter", Success: i != 0}
		if i == 0 {
			rec.ErrorCode = &code
		}
		require.NoError(t, s.Write(context.Background(), rec))
	}
	assert.InDelta(t, 0.75, s.SuccessRate("semanticFilter"), 1e-9)
}

func TestRing_WrapsNewestFirst(t *testing.T) {
	ring := NewRing(3)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, ring.Write(context.Background(), domain.InvocationRecord{ID: id}))
	}

	ids := func(recs []domain.InvocationRecord) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = r.ID
		}
		return out
	}
	assert.Equal(t, []string{"d", "c", "b"}, ids(ring.Recent(0)))
	assert.Equal(t, []string{"d", "c"}, ids(ring.Recent(2)))
}
