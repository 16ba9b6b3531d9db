package invoke

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/skillgate/internal/taxonomy"
	"github.com/vietddude/skillgate/internal/validation"
)

// SchemaVersion is reported in validation error details.
const SchemaVersion = "1.0.0"

// Skill is a contract-bound operation backed by an external collaborator.
type Skill[In, Out any] interface {
	Name() string
	Policy() Policy
	// Normalize fills defaults; the cache key is derived from its result.
	Normalize(in In) In
	ValidateInput(in In) validation.Result
	ValidateOutput(out Out) validation.Result
	// InputErrorCode picks the code reported for invalid input.
	InputErrorCode(r validation.Result) taxonomy.Code
	// Execute calls the collaborator. Returning a record whose strategy is
	// RETURN_PARTIAL alongside out marks out as a partial result.
	Execute(ctx context.Context, call *Call, in In) (Out, error)
}

// Targeter is implemented by skills whose call targets depend on the input.
// Skills without it use Policy.Primary and Policy.Fallback.
type Targeter[In any] interface {
	Targets(in In) (primary, fallback string)
}

// State is a step of the invocation state machine.
type State string

const (
	StateValidating       State = "VALIDATING"
	StateCacheLookup      State = "CACHE_LOOKUP"
	StateCacheHit         State = "CACHE_HIT"
	StateCalling          State = "CALLING"
	StateValidatingOutput State = "VALIDATING_OUTPUT"
	StateDone             State = "DONE"
	StateDoneWithError    State = "DONE_WITH_ERROR"
)

// Result is the outcome of one invocation that produced output.
type Result[Out any] struct {
	Output     Out
	Partial    bool
	CacheHit   bool
	RetryCount int
	// Notice is set on partial results and explains the shortfall.
	Notice *taxonomy.ErrorRecord
}

// Event is handed to the Observer once per terminal outcome.
type Event struct {
	Skill      string
	AgentID    string
	StartedAt  time.Time
	Duration   time.Duration
	Input      any
	Output     any
	ErrorCode  taxonomy.Code
	RetryCount int
	Success    bool
	Partial    bool
	CacheHit   bool
	FinalState State
}

// Observer receives invocation events. It must not block for long and its
// failures never affect the invocation.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

type options struct {
	cache    Cache
	observer Observer
	sleep    SleepFunc
	jitter   func() float64
	now      func() time.Time
}

// Option configures an Invoker.
type Option func(*options)

// WithCache enables the idempotency cache.
func WithCache(c Cache) Option { return func(o *options) { o.cache = c } }

// WithObserver attaches an observability sink.
func WithObserver(obs Observer) Option { return func(o *options) { o.observer = obs } }

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(s SleepFunc) Option { return func(o *options) { o.sleep = s } }

// WithJitter replaces the jitter source, which must return values in [0,1).
func WithJitter(f func() float64) Option { return func(o *options) { o.jitter = f } }

// WithClock replaces the wall clock used for durations.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// Invoker runs one skill.
type Invoker[In, Out any] struct {
	skill Skill[In, Out]
	opts  options
	group singleflight.Group
}

// New creates an invoker for skill.
func New[In, Out any](skill Skill[In, Out], opts ...Option) *Invoker[In, Out] {
	o := options{
		sleep:  sleepCtx,
		jitter: rand.Float64,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Invoker[In, Out]{skill: skill, opts: o}
}

// Name returns the skill name.
func (inv *Invoker[In, Out]) Name() string { return inv.skill.Name() }

// Invoke runs the skill for agentID. A non-nil error is always a
// *taxonomy.ErrorRecord; partial results come back without error and with
// Result.Partial set.
func (inv *Invoker[In, Out]) Invoke(ctx context.Context, agentID string, in In) (Result[Out], error) {
	start := inv.opts.now()
	in = inv.skill.Normalize(in)

	res, state, rec := inv.run(ctx, in)

	ev := Event{
		Skill:      inv.skill.Name(),
		AgentID:    agentID,
		StartedAt:  start,
		Duration:   inv.opts.now().Sub(start),
		Input:      in,
		RetryCount: res.RetryCount,
		Success:    rec == nil && !res.Partial,
		Partial:    res.Partial,
		CacheHit:   res.CacheHit,
		FinalState: state,
	}
	if rec != nil {
		ev.ErrorCode = rec.Code
		ev.RetryCount = rec.RetryCount
	} else {
		ev.Output = res.Output
		if res.Partial && res.Notice != nil {
			ev.ErrorCode = res.Notice.Code
		}
	}
	inv.observe(ctx, ev)

	if rec != nil {
		return Result[Out]{RetryCount: rec.RetryCount}, rec
	}
	return res, nil
}

func (inv *Invoker[In, Out]) observe(ctx context.Context, ev Event) {
	if inv.opts.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Observer panicked", "skill", ev.Skill, "panic", r)
		}
	}()
	inv.opts.observer.Observe(context.WithoutCancel(ctx), ev)
}

// run walks the state machine and returns the final state.
func (inv *Invoker[In, Out]) run(ctx context.Context, in In) (Result[Out], State, *taxonomy.ErrorRecord) {
	name := inv.skill.Name()
	policy := inv.skill.Policy()

	// VALIDATING
	if vr := inv.skill.ValidateInput(in); !vr.Valid {
		rec := ViolationRecord(inv.skill.InputErrorCode(vr), vr)
		slog.Debug("Rejected invalid input", "skill", name, "state", StateValidating, "code", rec.Code, "violations", len(vr.Violations))
		return Result[Out]{}, StateDoneWithError, rec
	}

	// CACHE_LOOKUP
	key := ""
	if inv.opts.cache != nil && policy.CacheTTL > 0 {
		var err error
		key, err = CacheKey(name, in)
		if err != nil {
			slog.Warn("Failed to derive cache key", "skill", name, "error", err)
		} else if out, ok := inv.cached(ctx, key); ok {
			return Result[Out]{Output: out, CacheHit: true}, StateCacheHit, nil
		}
	}

	if key == "" {
		return inv.call(ctx, in, policy)
	}

	// Concurrent misses on one key share a single collaborator call.
	v, _, _ := inv.group.Do(key, func() (any, error) {
		if out, ok := inv.cached(ctx, key); ok {
			return outcome[Out]{res: Result[Out]{Output: out, CacheHit: true}, state: StateCacheHit}, nil
		}
		res, state, rec := inv.call(ctx, in, policy)
		if rec == nil && !res.Partial {
			inv.store(ctx, key, res.Output, policy.CacheTTL)
		}
		return outcome[Out]{res: res, state: state, rec: rec}, nil
	})
	o := v.(outcome[Out])
	return o.res, o.state, o.rec
}

type outcome[Out any] struct {
	res   Result[Out]
	state State
	rec   *taxonomy.ErrorRecord
}

// call runs BATCHING/CALLING, recovery and VALIDATING_OUTPUT.
func (inv *Invoker[In, Out]) call(ctx context.Context, in In, policy Policy) (Result[Out], State, *taxonomy.ErrorRecord) {
	if policy.MaxBackoff == 0 {
		policy.MaxBackoff = DefaultMaxBackoff
	}
	if t, ok := any(inv.skill).(Targeter[In]); ok {
		policy.Primary, policy.Fallback = t.Targets(in)
	}
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	c := newCall(inv.skill.Name(), policy, inv.opts.sleep, inv.opts.jitter)
	out, err := inv.skill.Execute(ctx, c, in)

	var notice *taxonomy.ErrorRecord
	if err != nil {
		rec, ok := taxonomy.As(err)
		if !ok {
			rec = taxonomy.Wrap(ClassifyError(err), err)
		}
		if rec.Recovery.Strategy != taxonomy.StrategyReturnPartial {
			if rec.RetryCount == 0 && c.Retries() > 0 {
				rec = rec.WithRetryCount(c.Retries())
			}
			return Result[Out]{}, StateDoneWithError, rec
		}
		notice = rec.WithRetryCount(c.Retries())
	}

	// VALIDATING_OUTPUT
	if vr := inv.skill.ValidateOutput(out); !vr.Valid {
		rec := ViolationRecord(taxonomy.ValidationFailed, vr).WithRetryCount(c.Retries())
		slog.Warn("Collaborator returned malformed output", "skill", inv.skill.Name(), "state", StateValidatingOutput, "violations", vr.Summary())
		return Result[Out]{}, StateDoneWithError, rec
	}

	return Result[Out]{
		Output:     out,
		Partial:    notice != nil,
		RetryCount: c.Retries(),
		Notice:     notice,
	}, StateDone, nil
}

func (inv *Invoker[In, Out]) cached(ctx context.Context, key string) (Out, bool) {
	var out Out
	data, ok, err := inv.opts.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Cache lookup failed", "skill", inv.skill.Name(), "error", err)
		return out, false
	}
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Warn("Dropping undecodable cache entry", "skill", inv.skill.Name(), "error", err)
		return out, false
	}
	return out, true
}

func (inv *Invoker[In, Out]) store(ctx context.Context, key string, out Out, ttl time.Duration) {
	data, err := json.Marshal(out)
	if err != nil {
		slog.Warn("Failed to encode output for cache", "skill", inv.skill.Name(), "error", err)
		return
	}
	if err := inv.opts.cache.Set(context.WithoutCancel(ctx), key, data, ttl); err != nil {
		slog.Warn("Cache store failed", "skill", inv.skill.Name(), "error", err)
	}
}

// CacheKey derives the idempotency key from every field of the normalized input.
func CacheKey(skill string, in any) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to encode input: %w", err)
	}
	sum := sha256.Sum256(data)
	return skill + ":" + hex.EncodeToString(sum[:]), nil
}

// ViolationRecord converts a failed validation into an error record whose
// details name the offending fields.
func ViolationRecord(code taxonomy.Code, r validation.Result) *taxonomy.ErrorRecord {
	details := map[string]any{
		"schema_version": SchemaVersion,
		"violations":     r.Violations,
		"fields":         r.Fields(),
	}
	if len(r.Violations) > 0 {
		details["field"] = r.Violations[0].Field
		details["constraint_violated"] = r.Violations[0].Constraint
	}
	return taxonomy.New(code, r.Summary(), details)
}
