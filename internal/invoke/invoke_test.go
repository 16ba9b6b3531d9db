package invoke

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/skillgate/internal/taxonomy"
	"github.com/vietddude/skillgate/internal/validation"
	"github.com/vietddude/skillgate/internal/validation/constraint"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type echoIn struct {
	Query string `json:"query"`
	Limit *int   `json:"limit"`
}

type echoOut struct {
	Items  []string `json:"items"`
	Target string   `json:"target"`
}

// fakeSkill hands Execute to a test-supplied function and counts calls.
type fakeSkill struct {
	policy Policy
	exec   func(ctx context.Context, call *Call, in echoIn) (echoOut, error)
	calls  atomic.Int32
}

func (s *fakeSkill) Name() string   { return "echo" }
func (s *fakeSkill) Policy() Policy { return s.policy }

func (s *fakeSkill) Normalize(in echoIn) echoIn {
	if in.Limit == nil {
		limit := 10
		in.Limit = &limit
	}
	return in
}

func (s *fakeSkill) ValidateInput(in echoIn) validation.Result {
	if v := constraint.NonEmpty("query", in.Query); v != nil {
		return validation.Result{Violations: []constraint.Violation{*v}}
	}
	return validation.Result{Valid: true, Violations: []constraint.Violation{}}
}

func (s *fakeSkill) ValidateOutput(out echoOut) validation.Result {
	for _, item := range out.Items {
		if v := constraint.NonEmpty("items", item); v != nil {
			return validation.Result{Violations: []constraint.Violation{*v}}
		}
	}
	return validation.Result{Valid: true, Violations: []constraint.Violation{}}
}

func (s *fakeSkill) InputErrorCode(validation.Result) taxonomy.Code { return taxonomy.InvalidInput }

func (s *fakeSkill) Execute(ctx context.Context, call *Call, in echoIn) (echoOut, error) {
	s.calls.Add(1)
	return s.exec(ctx, call, in)
}

// failing returns an executor whose operation fails with code the first n
// attempts and succeeds afterwards.
func failing(code taxonomy.Code, n int, attempts *int) func(context.Context, *Call, echoIn) (echoOut, error) {
	return func(ctx context.Context, call *Call, in echoIn) (echoOut, error) {
		return Run(ctx, call, Operation[echoOut]{
			Name: "echo",
			Invoke: func(ctx context.Context, target string) (echoOut, error) {
				*attempts++
				if *attempts <= n {
					return echoOut{}, taxonomy.New(code, "", nil)
				}
				return echoOut{Items: []string{in.Query}, Target: target}, nil
			},
		})
	}
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *eventSink) Observe(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) last() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func basePolicy() Policy {
	return Policy{
		Timeout:     5 * time.Second,
		BackoffBase: time.Second,
		Primary:     "primary",
		Fallback:    "fallback",
	}
}

func TestInvoke_RetriesRetrySafeFailures(t *testing.T) {
	attempts := 0
	skill := &fakeSkill{policy: basePolicy(), exec: failing(taxonomy.PlatformUnavailable, 2, &attempts)}
	rec := &sleepRecorder{}
	sink := &eventSink{}
	inv := New[echoIn, echoOut](skill, WithSleep(rec.sleep), WithObserver(sink))

	res, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RetryCount)
	assert.Equal(t, []string{"ai"}, res.Output.Items)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
	assert.Equal(t, 3, attempts)

	ev := sink.last()
	assert.True(t, ev.Success)
	assert.Equal(t, 2, ev.RetryCount)
	assert.Equal(t, StateDone, ev.FinalState)
	assert.Equal(t, "agent-1", ev.AgentID)
}

func TestInvoke_RetriesExhausted(t *testing.T) {
	attempts := 0
	skill := &fakeSkill{policy: basePolicy(), exec: failing(taxonomy.PlatformUnavailable, 100, &attempts)}
	rec := &sleepRecorder{}
	inv := New[echoIn, echoOut](skill, WithSleep(rec.sleep))

	_, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	require.Error(t, err)

	er, ok := taxonomy.As(err)
	require.True(t, ok)
	assert.Equal(t, taxonomy.PlatformUnavailable, er.Code)
	assert.Equal(t, 3, er.RetryCount)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
}

func TestInvoke_NonRetryableFailsImmediately(t *testing.T) {
	attempts := 0
	skill := &fakeSkill{policy: basePolicy(), exec: failing(taxonomy.InvalidPlatform, 100, &attempts)}
	rec := &sleepRecorder{}
	inv := New[echoIn, echoOut](skill, WithSleep(rec.sleep))

	_, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	assert.Equal(t, taxonomy.InvalidPlatform, taxonomy.CodeOf(err))
	assert.Equal(t, 1, attempts)
	assert.Empty(t, rec.delays)
}

func TestInvoke_JitterAddsToBackoff(t *testing.T) {
	attempts := 0
	skill := &fakeSkill{policy: basePolicy(), exec: failing(taxonomy.RateLimited, 1, &attempts)}
	rec := &sleepRecorder{}
	inv := New[echoIn, echoOut](skill, WithSleep(rec.sleep), WithJitter(func() float64 { return 0.5 }))

	_, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, rec.delays)
}

func TestInvoke_FallbackSwitchesOnce(t *testing.T) {
	var targets []string
	skill := &fakeSkill{policy: basePolicy()}
	skill.exec = func(ctx context.Context, call *Call, in echoIn) (echoOut, error) {
		return Run(ctx, call, Operation[echoOut]{
			Name: "echo",
			Invoke: func(ctx context.Context, target string) (echoOut, error) {
				targets = append(targets, target)
				if target == "primary" {
					return echoOut{}, taxonomy.New(taxonomy.ResourceUnavailable, "", nil)
				}
				return echoOut{Items: []string{in.Query}, Target: target}, nil
			},
		})
	}
	inv := New[echoIn, echoOut](skill, WithSleep((&sleepRecorder{}).sleep))

	res, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", res.Output.Target)
	assert.Equal(t, 1, res.RetryCount)
	assert.Equal(t, []string{"primary", "fallback"}, targets)
}

func TestInvoke_FallbackFailureIsTerminal(t *testing.T) {
	var targets []string
	skill := &fakeSkill{policy: basePolicy()}
	skill.exec = func(ctx context.Context, call *Call, in echoIn) (echoOut, error) {
		return Run(ctx, call, Operation[echoOut]{
			Name: "echo",
			Invoke: func(ctx context.Context, target string) (echoOut, error) {
				targets = append(targets, target)
				return echoOut{}, taxonomy.New(taxonomy.LLMError, "", nil)
			},
		})
	}
	inv := New[echoIn, echoOut](skill, WithSleep((&sleepRecorder{}).sleep))

	_, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	er, ok := taxonomy.As(err)
	require.True(t, ok)
	assert.Equal(t, taxonomy.LLMError, er.Code)
	assert.Equal(t, "fallback", er.Recovery.Fallback)
	assert.Equal(t, []string{"primary", "fallback"}, targets)
}

func TestInvoke_InvalidInputNeverCallsCollaborator(t *testing.T) {
	skill := &fakeSkill{policy: basePolicy()}
	sink := &eventSink{}
	inv := New[echoIn, echoOut](skill, WithObserver(sink))

	_, err := inv.Invoke(context.Background(), "agent-1", echoIn{})
	er, ok := taxonomy.As(err)
	require.True(t, ok)
	assert.Equal(t, taxonomy.InvalidInput, er.Code)
	assert.Equal(t, "query", er.Details["field"])
	assert.Equal(t, SchemaVersion, er.Details["schema_version"])
	assert.Zero(t, skill.calls.Load())

	ev := sink.last()
	assert.False(t, ev.Success)
	assert.Equal(t, taxonomy.InvalidInput, ev.ErrorCode)
	assert.Equal(t, StateDoneWithError, ev.FinalState)
}

func TestInvoke_MalformedOutputIsValidationFailed(t *testing.T) {
	skill := &fakeSkill{policy: basePolicy()}
	skill.exec = func(context.Context, *Call, echoIn) (echoOut, error) {
		return echoOut{Items: []string{""}}, nil
	}
	inv := New[echoIn, echoOut](skill)

	_, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	assert.Equal(t, taxonomy.ValidationFailed, taxonomy.CodeOf(err))
}

func TestInvoke_CacheHitSkipsCollaborator(t *testing.T) {
	policy := basePolicy()
	policy.CacheTTL = time.Minute
	attempts := 0
	skill := &fakeSkill{policy: policy, exec: failing(taxonomy.PlatformUnavailable, 0, &attempts)}
	inv := New[echoIn, echoOut](skill, WithCache(newMapCache()))

	first, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	// Explicit default and omitted field share one key.
	limit := 10
	second, err := inv.Invoke(context.Background(), "agent-2", echoIn{Query: "ai", Limit: &limit})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Output, second.Output)
	assert.EqualValues(t, 1, skill.calls.Load())

	_, err = inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ml"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, skill.calls.Load())
}

func TestInvoke_ConcurrentMissesShareOneCall(t *testing.T) {
	policy := basePolicy()
	policy.CacheTTL = time.Minute
	release := make(chan struct{})
	skill := &fakeSkill{policy: policy}
	skill.exec = func(ctx context.Context, _ *Call, in echoIn) (echoOut, error) {
		<-release
		return echoOut{Items: []string{in.Query}}, nil
	}
	inv := New[echoIn, echoOut](skill, WithCache(newMapCache()))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := inv.Invoke(context.Background(), "agent", echoIn{Query: "ai"})
			assert.NoError(t, err)
			assert.Equal(t, []string{"ai"}, res.Output.Items)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, skill.calls.Load())
}

func TestInvoke_PartialResultNotCached(t *testing.T) {
	policy := basePolicy()
	policy.CacheTTL = time.Minute
	skill := &fakeSkill{policy: policy}
	skill.exec = func(context.Context, *Call, echoIn) (echoOut, error) {
		return echoOut{Items: []string{"half"}}, taxonomy.New(taxonomy.FilterTimeout, "", nil)
	}
	sink := &eventSink{}
	inv := New[echoIn, echoOut](skill, WithCache(newMapCache()), WithObserver(sink))

	res, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	require.NotNil(t, res.Notice)
	assert.Equal(t, taxonomy.FilterTimeout, res.Notice.Code)

	ev := sink.last()
	assert.False(t, ev.Success)
	assert.True(t, ev.Partial)
	assert.Equal(t, taxonomy.FilterTimeout, ev.ErrorCode)
	assert.NotNil(t, ev.Output)

	res, err = inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	assert.EqualValues(t, 2, skill.calls.Load())
}

func TestInvoke_OverallDeadline(t *testing.T) {
	policy := basePolicy()
	policy.Timeout = 20 * time.Millisecond
	skill := &fakeSkill{policy: policy}
	skill.exec = func(ctx context.Context, call *Call, _ echoIn) (echoOut, error) {
		return Run(ctx, call, Operation[echoOut]{
			Name: "slow",
			Invoke: func(ctx context.Context, _ string) (echoOut, error) {
				<-ctx.Done()
				return echoOut{}, ctx.Err()
			},
		})
	}
	inv := New[echoIn, echoOut](skill)

	_, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	assert.Equal(t, taxonomy.Timeout, taxonomy.CodeOf(err))
}

func TestInvoke_AttemptTimeoutIsRetried(t *testing.T) {
	policy := basePolicy()
	policy.AttemptTimeout = 10 * time.Millisecond
	attempts := 0
	skill := &fakeSkill{policy: policy}
	skill.exec = func(ctx context.Context, call *Call, _ echoIn) (echoOut, error) {
		return Run(ctx, call, Operation[echoOut]{
			Name: "flaky",
			Invoke: func(ctx context.Context, target string) (echoOut, error) {
				attempts++
				if attempts == 1 {
					<-ctx.Done()
					return echoOut{}, ctx.Err()
				}
				return echoOut{Target: target}, nil
			},
		})
	}
	inv := New[echoIn, echoOut](skill, WithSleep((&sleepRecorder{}).sleep))

	res, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RetryCount)
	assert.Equal(t, 2, attempts)
}

type panickyObserver struct{}

func (panickyObserver) Observe(context.Context, Event) { panic("sink down") }

func TestInvoke_ObserverPanicDoesNotFailInvocation(t *testing.T) {
	attempts := 0
	skill := &fakeSkill{policy: basePolicy(), exec: failing(taxonomy.PlatformUnavailable, 0, &attempts)}
	inv := New[echoIn, echoOut](skill, WithObserver(panickyObserver{}))

	res, err := inv.Invoke(context.Background(), "agent-1", echoIn{Query: "ai"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ai"}, res.Output.Items)
}

func TestBackoff(t *testing.T) {
	base := time.Second
	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second} {
		assert.Equal(t, want, Backoff(base, 0, attempt, false, nil))
	}
	assert.Equal(t, 30*time.Second, Backoff(base, 30*time.Second, 10, false, nil))
	assert.Equal(t, 2500*time.Millisecond, Backoff(base, 0, 1, true, func() float64 { return 0.5 }))
}

func TestPartition(t *testing.T) {
	sizes := func(batches [][]int) []int {
		out := make([]int, len(batches))
		for i, b := range batches {
			out[i] = len(b)
		}
		return out
	}

	assert.Equal(t, []int{100, 100, 50}, sizes(Partition(make([]int, 250), 100)))
	assert.Len(t, Partition(make([]int, 1000), 100), 10)
	assert.Empty(t, Partition([]int{}, 100))
	assert.Equal(t, []int{3}, sizes(Partition([]int{1, 2, 3}, 0)))
}

func TestRunBatches_KeepsInputOrder(t *testing.T) {
	items := make([]int, 250)
	for i := range items {
		items[i] = i
	}

	res, err := RunBatches(context.Background(), items, 100, 3,
		func(_ context.Context, index int, batch []int) ([]int, error) {
			// Later batches finish first.
			time.Sleep(time.Duration(3-index) * 5 * time.Millisecond)
			return batch, nil
		})
	require.NoError(t, err)
	assert.Equal(t, items, res.Results)
	assert.Equal(t, 3, res.Completed)
	assert.Equal(t, 250, res.Items)
	assert.False(t, res.Partial())
}

func TestRunBatches_ReturnsCompletedOnError(t *testing.T) {
	items := make([]int, 250)
	boom := errors.New("boom")

	res, err := RunBatches(context.Background(), items, 100, 1,
		func(_ context.Context, index int, batch []int) ([]int, error) {
			if index == 2 {
				return nil, boom
			}
			return batch, nil
		})
	assert.ErrorIs(t, err, boom)
	assert.True(t, res.Partial())
	assert.Equal(t, 2, res.Completed)
	assert.Equal(t, 200, res.Items)
	assert.Len(t, res.Results, 200)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect taxonomy.Code
	}{
		{errors.New("429 Too Many Requests"), taxonomy.RateLimited},
		{errors.New("project rate limit exceeded"), taxonomy.RateLimited},
		{errors.New("i/o timeout"), taxonomy.Timeout},
		{errors.New("dial tcp: connection refused"), taxonomy.NetworkError},
		{errors.New("connection reset by peer"), taxonomy.NetworkError},
		{errors.New("503 Service Unavailable"), taxonomy.PlatformUnavailable},
		{errors.New("401 Unauthorized"), taxonomy.ExtAuthFailed},
		{errors.New("403 Forbidden"), taxonomy.ExtForbidden},
		{errors.New("something odd"), taxonomy.UnknownCode},
		{status.Error(codes.Unavailable, "backend overloaded"), taxonomy.ExtPlatformUnavailable},
		{status.Error(codes.ResourceExhausted, "quota"), taxonomy.ExtRateLimited},
		{status.Error(codes.DeadlineExceeded, "slow"), taxonomy.NetTimeout},
		{fmt.Errorf("score batch: %w", status.Error(codes.Unavailable, "down")), taxonomy.ExtPlatformUnavailable},
		{status.Error(codes.Unknown, "503 Service Unavailable"), taxonomy.PlatformUnavailable},
		{taxonomy.New(taxonomy.LLMError, "", nil).GRPCStatus().Err(), taxonomy.LLMError},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

func TestCacheKey(t *testing.T) {
	limit := 10
	a, err := CacheKey("echo", echoIn{Query: "ai", Limit: &limit})
	require.NoError(t, err)
	b, err := CacheKey("echo", echoIn{Query: "ai", Limit: &limit})
	require.NoError(t, err)
	c, err := CacheKey("echo", echoIn{Query: "ml", Limit: &limit})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "echo:")

	_, err = CacheKey("echo", func() {})
	assert.Error(t, err)
}
