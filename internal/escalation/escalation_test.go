package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/taxonomy"
)

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingAlerter) Alert(_ context.Context, a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recordingAlerter) levels() []Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Level, len(r.alerts))
	for i, a := range r.alerts {
		out[i] = a.Level
	}
	return out
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestPolicy(cfg Config) (*Policy, *recordingAlerter, *fakeClock) {
	alerter := &recordingAlerter{}
	clock := &fakeClock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	p := NewPolicy(cfg, alerter)
	p.now = clock.now
	return p, alerter, clock
}

func outcomeRecord(skill string, code taxonomy.Code) domain.InvocationRecord {
	rec := domain.InvocationRecord{Skill: skill, Success: code == ""}
	if code != "" {
		c := string(code)
		rec.ErrorCode = &c
	}
	return rec
}

func passthrough(ctx context.Context) (string, error) { return "ok", nil }

func TestPolicy_OpensCircuitAboveThreshold(t *testing.T) {
	ctx := context.Background()
	p, alerter, _ := newTestPolicy(Config{MinRequests: 10, OpenDelay: time.Hour})

	for range 9 {
		require.NoError(t, p.Write(ctx, outcomeRecord("fetchTrends", "")))
	}
	require.NoError(t, p.Write(ctx, outcomeRecord("fetchTrends", taxonomy.PlatformUnavailable)))

	// Exactly 10% does not trip.
	out, err := Guard(ctx, p, "fetchTrends", passthrough)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	require.NoError(t, p.Write(ctx, outcomeRecord("fetchTrends", taxonomy.PlatformUnavailable)))

	_, err = Guard(ctx, p, "fetchTrends", passthrough)
	assert.Equal(t, taxonomy.CircuitOpen, taxonomy.CodeOf(err))
	assert.Equal(t, []Level{LevelCircuit}, alerter.levels())

	// Other skills keep running.
	_, err = Guard(ctx, p, "semanticFilter", passthrough)
	assert.NoError(t, err)

	status := p.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "fetchTrends", status[0].Skill)
	assert.Equal(t, "open", status[0].Circuit)
	assert.Equal(t, 11, status[0].Requests)
}

func TestPolicy_MinRequestsGuardsSmallSamples(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPolicy(Config{MinRequests: 10})

	for range 3 {
		require.NoError(t, p.Write(ctx, outcomeRecord("fetchTrends", taxonomy.Timeout)))
	}
	_, err := Guard(ctx, p, "fetchTrends", passthrough)
	assert.NoError(t, err)
}

func TestPolicy_WindowForgetsOldOutcomes(t *testing.T) {
	ctx := context.Background()
	p, _, clock := newTestPolicy(Config{MinRequests: 2, Window: 5 * time.Minute})

	require.NoError(t, p.Write(ctx, outcomeRecord("fetchTrends", "")))
	clock.t = clock.t.Add(6 * time.Minute)
	require.NoError(t, p.Write(ctx, outcomeRecord("fetchTrends", "")))

	status := p.Status()
	require.Len(t, status, 1)
	assert.Equal(t, 1, status[0].Requests)
}

func TestPolicy_CallerFaultsDoNotCount(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPolicy(Config{MinRequests: 1})

	require.NoError(t, p.Write(ctx, outcomeRecord("fetchTrends", taxonomy.SchemaInvalid)))
	require.NoError(t, p.Write(ctx, outcomeRecord("fetchTrends", taxonomy.InvalidPlatform)))

	_, err := Guard(ctx, p, "fetchTrends", passthrough)
	assert.NoError(t, err)
}

func TestPolicy_CriticalCodeHaltsUntilResume(t *testing.T) {
	ctx := context.Background()
	p, alerter, _ := newTestPolicy(Config{})

	require.NoError(t, p.Write(ctx, outcomeRecord("publish", taxonomy.SecAuditTamperDetected)))
	require.NoError(t, p.Write(ctx, outcomeRecord("publish", taxonomy.FinInsufficientBalance)))

	_, err := Guard(ctx, p, "fetchTrends", passthrough)
	rec, ok := taxonomy.As(err)
	require.True(t, ok)
	assert.Equal(t, taxonomy.SecAuditTamperDetected, rec.Code)
	assert.Equal(t, "publish", rec.Details["halted_by_skill"])
	assert.Equal(t, []Level{LevelHalt}, alerter.levels())

	p.Resume()
	assert.Nil(t, p.Halted())
	_, err = Guard(ctx, p, "fetchTrends", passthrough)
	assert.NoError(t, err)
}

func TestPolicy_EscalatingCodeAlerts(t *testing.T) {
	ctx := context.Background()
	p, alerter, _ := newTestPolicy(Config{})

	require.NoError(t, p.Write(ctx, outcomeRecord("fetchTrends", taxonomy.StateSLAExceeded)))
	assert.Equal(t, []Level{LevelAlert}, alerter.levels())
	assert.Nil(t, p.Halted())
}

func TestGuard_PassesErrorsThrough(t *testing.T) {
	p, _, _ := newTestPolicy(Config{})
	boom := errors.New("boom")

	_, err := Guard(context.Background(), p, "fetchTrends", func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)

	// The breaker itself never counts failures.
	for range 20 {
		_, _ = Guard(context.Background(), p, "fetchTrends", func(context.Context) (int, error) {
			return 0, boom
		})
	}
	_, err = Guard(context.Background(), p, "fetchTrends", func(context.Context) (int, error) {
		return 7, nil
	})
	assert.NoError(t, err)
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "circuit", LevelCircuit.String())
	assert.Equal(t, "level_9", Level(9).String())
}

func TestBudgetTracker_CountsPerHour(t *testing.T) {
	bt := NewBudgetTracker(DefaultBudgets)
	clock := &fakeClock{t: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	bt.now = clock.now
	bt.Reset()

	for range 50 {
		bt.RecordCall(domain.PlatformNews)
	}
	usage := bt.Usage(domain.PlatformNews)
	assert.Equal(t, 50, usage.CallsThisHour)
	assert.Equal(t, 0, usage.RemainingCalls)
	assert.InDelta(t, 100.0, usage.UsagePercentage, 1e-9)
	assert.False(t, usage.OverBudget)

	bt.RecordCall(domain.PlatformNews)
	assert.True(t, bt.OverBudget(domain.PlatformNews))

	clock.t = clock.t.Add(time.Hour)
	assert.False(t, bt.OverBudget(domain.PlatformNews))
	bt.RecordCall(domain.PlatformNews)
	usage = bt.Usage(domain.PlatformNews)
	assert.Equal(t, 1, usage.CallsThisHour)
	assert.Equal(t, 52, usage.TotalCalls)
}

func TestBudgetTracker_UnlimitedPlatform(t *testing.T) {
	bt := NewBudgetTracker(DefaultBudgets)
	for range 500 {
		bt.RecordCall(domain.PlatformReddit)
	}
	assert.False(t, bt.OverBudget(domain.PlatformReddit))
	assert.Equal(t, 500, bt.Usage(domain.PlatformReddit).CallsThisHour)
	assert.Len(t, bt.All(), 4)
}

func TestBudgetTracker_Concurrency(t *testing.T) {
	bt := NewBudgetTracker(DefaultBudgets)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bt.RecordCall(domain.PlatformMarket)
			bt.Usage(domain.PlatformMarket)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, bt.Usage(domain.PlatformMarket).TotalCalls)
	assert.Equal(t, 100, bt.Usage(domain.PlatformMarket).RemainingCalls)
}
