// Package fetchtrends implements the fetchTrends skill: it pulls trending
// topics for one platform, drops low-engagement and excluded topics, and
// caps the result at the requested limit.
package fetchtrends

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/invoke"
	"github.com/vietddude/skillgate/internal/taxonomy"
	"github.com/vietddude/skillgate/internal/validation"
)

// Name is the skill name used in cache keys, metrics and records.
const Name = "fetchTrends"

// Timing defaults.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultAttemptTimeout = 10 * time.Second
	DefaultBackoffBase    = time.Second
	DefaultCacheTTL       = 5 * time.Minute
	DefaultMarketAsset    = "bitcoin"
)

// Request is one call to a trend source.
type Request struct {
	Platform domain.Platform
	// Resource is the MCP resource URI, or the fallback resource path.
	Resource string
	Window   time.Duration
	Limit    int
}

// Source fetches raw trends from an external platform.
type Source interface {
	Fetch(ctx context.Context, req Request) ([]domain.TrendData, error)
}

// Budget counts external calls per platform.
type Budget interface {
	RecordCall(platform domain.Platform)
}

// Config holds skill settings.
type Config struct {
	Timeout        time.Duration
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	CacheTTL       time.Duration
	MarketAsset    string
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.MarketAsset == "" {
		c.MarketAsset = DefaultMarketAsset
	}
	return c
}

// Skill is the fetchTrends skill.
type Skill struct {
	cfg       Config
	source    Source
	budget    Budget
	validator *validation.Validator
	now       func() time.Time
}

// Option configures the skill.
type Option func(*Skill)

// WithBudget counts every source call against platform budgets.
func WithBudget(b Budget) Option { return func(s *Skill) { s.budget = b } }

// WithValidator replaces the record validator.
func WithValidator(v *validation.Validator) Option { return func(s *Skill) { s.validator = v } }

// WithClock replaces the clock used for fetchedAt.
func WithClock(now func() time.Time) Option { return func(s *Skill) { s.now = now } }

// New creates the skill over source.
func New(cfg Config, source Source, opts ...Option) *Skill {
	s := &Skill{
		cfg:       cfg.withDefaults(),
		source:    source,
		validator: validation.Default,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Skill) Name() string { return Name }

func (s *Skill) Policy() invoke.Policy {
	return invoke.Policy{
		Timeout:        s.cfg.Timeout,
		AttemptTimeout: s.cfg.AttemptTimeout,
		BackoffBase:    s.cfg.BackoffBase,
		CacheTTL:       s.cfg.CacheTTL,
	}
}

func (s *Skill) Normalize(in domain.FetchTrendsInput) domain.FetchTrendsInput {
	return in.Normalize()
}

// Targets returns the platform's MCP resource and its fallback resource.
func (s *Skill) Targets(in domain.FetchTrendsInput) (string, string) {
	return PrimaryResource(in.Platform, s.cfg.MarketAsset), FallbackResource(in.Platform)
}

func (s *Skill) ValidateInput(in domain.FetchTrendsInput) validation.Result {
	return s.validator.FetchTrendsInput(in)
}

func (s *Skill) ValidateOutput(out domain.FetchTrendsOutput) validation.Result {
	return s.validator.FetchTrendsOutput(out)
}

// InputErrorCode reports INVALID_PLATFORM for a bad platform and
// SCHEMA_INVALID for anything else.
func (s *Skill) InputErrorCode(r validation.Result) taxonomy.Code {
	for _, v := range r.Violations {
		if v.Field == "platform" {
			return taxonomy.InvalidPlatform
		}
	}
	return taxonomy.SchemaInvalid
}

func (s *Skill) Execute(
	ctx context.Context,
	call *invoke.Call,
	in domain.FetchTrendsInput,
) (domain.FetchTrendsOutput, error) {
	window, err := ParseWindow(*in.TimeWindow)
	if err != nil {
		return domain.FetchTrendsOutput{}, taxonomy.Wrap(taxonomy.SchemaInvalid, err)
	}

	raw, err := invoke.Run(ctx, call, invoke.Operation[[]domain.TrendData]{
		Name: "fetch",
		Invoke: func(ctx context.Context, target string) ([]domain.TrendData, error) {
			if s.budget != nil {
				s.budget.RecordCall(in.Platform)
			}
			return s.source.Fetch(ctx, Request{
				Platform: in.Platform,
				Resource: target,
				Window:   window,
				Limit:    *in.Limit,
			})
		},
	})
	if err != nil {
		return domain.FetchTrendsOutput{}, err
	}

	trends := Select(raw, *in.MinEngagement, in.ExcludeTopics)
	truncated := len(trends) > *in.Limit
	if truncated {
		trends = trends[:*in.Limit]
	}

	return domain.FetchTrendsOutput{
		Trends:    trends,
		FetchedAt: s.now().UTC().Format(taxonomy.TimestampFormat),
		Platform:  in.Platform,
		Count:     len(trends),
		Truncated: truncated,
	}, nil
}

// Select keeps trends at or above minEngagement whose topic and hashtags
// avoid every excluded topic, ordered by engagement score, highest first.
// The result is never nil.
func Select(trends []domain.TrendData, minEngagement int64, exclude []string) []domain.TrendData {
	excluded := make([]string, 0, len(exclude))
	for _, e := range exclude {
		if e = normalizeTopic(e); e != "" {
			excluded = append(excluded, e)
		}
	}

	out := make([]domain.TrendData, 0, len(trends))
	for _, t := range trends {
		if t.Engagement.EngagementScore < minEngagement {
			continue
		}
		if isExcluded(t, excluded) {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Engagement.EngagementScore > out[j].Engagement.EngagementScore
	})
	return out
}

func isExcluded(t domain.TrendData, excluded []string) bool {
	if len(excluded) == 0 {
		return false
	}
	topic := normalizeTopic(t.Topic)
	for _, e := range excluded {
		if strings.Contains(topic, e) {
			return true
		}
		if t.Metadata == nil {
			continue
		}
		for _, h := range t.Metadata.Hashtags {
			if normalizeTopic(h) == e {
				return true
			}
		}
	}
	return false
}

func normalizeTopic(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "#"))
}

// ParseWindow converts "24h" or "7d" into a duration.
func ParseWindow(w string) (time.Duration, error) {
	if len(w) < 2 {
		return 0, fmt.Errorf("invalid time window %q", w)
	}
	n, err := strconv.Atoi(w[:len(w)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid time window %q", w)
	}
	switch w[len(w)-1] {
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid time window unit in %q", w)
}
