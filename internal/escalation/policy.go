// Package escalation applies caller-side escalation on top of skill outcomes.
//
// This package contains:
//   - Policy: rolling error-rate circuit breaker per skill and critical-error halt
//   - Guard: runs a call through the halt check and the skill's breaker
//   - Alerter / LogAlerter: human alert hook
//   - BudgetTracker: per-platform hourly call budgets
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/observability/metrics"
	"github.com/vietddude/skillgate/internal/taxonomy"
)

// Config holds escalation thresholds.
type Config struct {
	ErrorRateThreshold float64       `yaml:"error_rate_threshold" validate:"gte=0,lte=1"`
	Window             time.Duration `yaml:"window"`
	MinRequests        int           `yaml:"min_requests"         validate:"gte=0"`
	OpenDelay          time.Duration `yaml:"open_delay"`
}

// DefaultConfig returns the 10% over 5 minutes policy.
func DefaultConfig() Config {
	return Config{
		ErrorRateThreshold: 0.10,
		Window:             5 * time.Minute,
		MinRequests:        10,
		OpenDelay:          30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ErrorRateThreshold == 0 {
		c.ErrorRateThreshold = d.ErrorRateThreshold
	}
	if c.Window == 0 {
		c.Window = d.Window
	}
	if c.MinRequests == 0 {
		c.MinRequests = d.MinRequests
	}
	if c.OpenDelay == 0 {
		c.OpenDelay = d.OpenDelay
	}
	return c
}

type outcome struct {
	at     time.Time
	failed bool
}

type skillState struct {
	cb       circuitbreaker.CircuitBreaker[any]
	outcomes []outcome
}

type haltState struct {
	code  taxonomy.Code
	skill string
	at    time.Time
}

// Policy tracks terminal outcomes and decides when calls stop.
type Policy struct {
	cfg     Config
	alerter Alerter
	now     func() time.Time

	mu     sync.Mutex
	skills map[string]*skillState
	halt   *haltState
}

// NewPolicy creates a policy. A nil alerter logs alerts.
func NewPolicy(cfg Config, alerter Alerter) *Policy {
	if alerter == nil {
		alerter = LogAlerter{}
	}
	return &Policy{
		cfg:     cfg.withDefaults(),
		alerter: alerter,
		now:     time.Now,
		skills:  make(map[string]*skillState),
	}
}

func (p *Policy) state(skill string) *skillState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked(skill)
}

func (p *Policy) stateLocked(skill string) *skillState {
	st, ok := p.skills[skill]
	if !ok {
		st = &skillState{cb: p.newBreaker(skill)}
		p.skills[skill] = st
		metrics.CircuitState.WithLabelValues(skill).Set(0)
	}
	return st
}

// newBreaker builds a breaker that never counts executions itself; only the
// rolling window opens it.
func (p *Policy) newBreaker(skill string) circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		HandleIf(func(_ any, _ error) bool { return false }).
		WithDelay(p.cfg.OpenDelay).
		WithSuccessThreshold(1).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			metrics.CircuitState.WithLabelValues(skill).Set(stateValue(event.NewState))
			slog.Warn("Circuit breaker state change",
				"skill", skill, "from", stateName(event.OldState), "to", stateName(event.NewState))
		}).
		Build()
}

// Name implements observability.Sink.
func (p *Policy) Name() string { return "escalation" }

// Write implements observability.Sink: it feeds the error-rate window and
// raises alerts for escalating codes.
func (p *Policy) Write(ctx context.Context, rec domain.InvocationRecord) error {
	var code taxonomy.Code
	if rec.ErrorCode != nil {
		code = taxonomy.Code(*rec.ErrorCode)
	}

	if code != "" {
		entry, ok := taxonomy.Lookup(code)
		switch {
		case ok && entry.Critical():
			p.Halt(ctx, rec.Skill, code)
		case ok && entry.Escalates():
			raise(ctx, p.alerter, Alert{
				Level:   LevelAlert,
				Skill:   rec.Skill,
				Code:    code,
				Message: "Skill failed with an escalating error",
				At:      p.now(),
			})
		}
		if callerFault(code) {
			return nil
		}
	}

	rate, n, tripped := p.observe(rec.Skill, !rec.Success)
	if tripped {
		raise(ctx, p.alerter, Alert{
			Level:   LevelCircuit,
			Skill:   rec.Skill,
			Code:    code,
			Message: fmt.Sprintf("Error rate %.0f%% over %d calls in %s, circuit opened", rate*100, n, p.cfg.Window),
			At:      p.now(),
		})
	}
	return nil
}

// callerFault reports codes caused by bad caller input, which say nothing
// about collaborator health.
func callerFault(code taxonomy.Code) bool {
	if code == taxonomy.ValidationFailed {
		return false
	}
	if code == taxonomy.InvalidPlatform || code == taxonomy.ExtInvalidPlatform {
		return true
	}
	entry, ok := taxonomy.Lookup(code)
	return ok && entry.Category == taxonomy.CategoryValidation
}

// observe adds one outcome and opens the breaker when the rolling error rate
// crosses the threshold.
func (p *Policy) observe(skill string, failed bool) (float64, int, bool) {
	p.mu.Lock()
	st := p.stateLocked(skill)
	now := p.now()
	st.outcomes = append(st.outcomes, outcome{at: now, failed: failed})
	st.outcomes = prune(st.outcomes, now.Add(-p.cfg.Window))
	rate, n := errorRate(st.outcomes)
	trip := failed && n >= p.cfg.MinRequests && rate > p.cfg.ErrorRateThreshold && st.cb.IsClosed()
	p.mu.Unlock()

	metrics.ErrorRate.WithLabelValues(skill).Set(rate)
	if trip {
		st.cb.Open()
	}
	return rate, n, trip
}

func prune(outcomes []outcome, cutoff time.Time) []outcome {
	i := 0
	for i < len(outcomes) && !outcomes[i].at.After(cutoff) {
		i++
	}
	return outcomes[i:]
}

func errorRate(outcomes []outcome) (float64, int) {
	if len(outcomes) == 0 {
		return 0, 0
	}
	failures := 0
	for _, o := range outcomes {
		if o.failed {
			failures++
		}
	}
	return float64(failures) / float64(len(outcomes)), len(outcomes)
}

// Halt stops every guarded call until Resume.
func (p *Policy) Halt(ctx context.Context, skill string, code taxonomy.Code) {
	p.mu.Lock()
	already := p.halt != nil
	if !already {
		p.halt = &haltState{code: code, skill: skill, at: p.now()}
	}
	p.mu.Unlock()

	if already {
		return
	}
	metrics.Halted.Set(1)
	raise(ctx, p.alerter, Alert{
		Level:   LevelHalt,
		Skill:   skill,
		Code:    code,
		Message: "Critical error, halting skill calls until resumed",
		At:      p.now(),
	})
}

// Resume leaves halt mode.
func (p *Policy) Resume() {
	p.mu.Lock()
	was := p.halt
	p.halt = nil
	p.mu.Unlock()

	if was != nil {
		metrics.Halted.Set(0)
		slog.Info("Resumed skill calls", "halted_by", was.code, "halted_for", p.now().Sub(was.at))
	}
}

// Halted returns the record guarded calls fail with, or nil when running.
func (p *Policy) Halted() *taxonomy.ErrorRecord {
	p.mu.Lock()
	h := p.halt
	p.mu.Unlock()
	if h == nil {
		return nil
	}
	return taxonomy.New(h.code, "Skill calls halted after critical error", map[string]any{
		"halted_by_skill": h.skill,
		"halted_at":       h.at.UTC().Format(taxonomy.TimestampFormat),
	})
}

// SkillStatus is a health snapshot of one skill.
type SkillStatus struct {
	Skill     string  `json:"skill"`
	Circuit   string  `json:"circuit"`
	ErrorRate float64 `json:"errorRate"`
	Requests  int     `json:"requests"`
}

// Status returns a snapshot of every skill seen so far, sorted by name.
func (p *Policy) Status() []SkillStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-p.cfg.Window)
	out := make([]SkillStatus, 0, len(p.skills))
	for name, st := range p.skills {
		st.outcomes = prune(st.outcomes, cutoff)
		rate, n := errorRate(st.outcomes)
		out = append(out, SkillStatus{
			Skill:     name,
			Circuit:   stateName(st.cb.State()),
			ErrorRate: rate,
			Requests:  n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Skill < out[j].Skill })
	return out
}

// Guard runs fn unless calls are halted or the skill's circuit is open.
func Guard[T any](ctx context.Context, p *Policy, skill string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if rec := p.Halted(); rec != nil {
		return zero, rec
	}

	st := p.state(skill)
	v, err := failsafe.With(st.cb).WithContext(ctx).Get(func() (any, error) {
		return fn(ctx)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return zero, taxonomy.New(taxonomy.CircuitOpen, "", map[string]any{"skill": skill})
	}
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected result type %T", v)
	}
	return out, nil
}

func stateValue(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return 0
	}
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "closed"
	}
}
