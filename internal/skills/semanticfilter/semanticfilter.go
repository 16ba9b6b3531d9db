// Package semanticfilter implements the semanticFilter skill: it scores
// trends against campaign goals with an LLM scorer and keeps the ones at or
// above the relevance threshold.
//
// This package contains:
//   - Skill: the invoke.Skill implementation with model fallback
//   - Scorer: the opaque scoring collaborator contract
//   - score cache: per trend and goal set, shared across invocations
package semanticfilter

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/invoke"
	"github.com/vietddude/skillgate/internal/taxonomy"
	"github.com/vietddude/skillgate/internal/validation"
)

// Name is the skill name used in cache keys, metrics and records.
const Name = "semanticFilter"

// Timing and sizing defaults.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultAttemptTimeout = 3 * time.Second
	DefaultBackoffBase    = 500 * time.Millisecond
	DefaultCacheTTL       = 30 * time.Minute
	DefaultScoreTTL       = 30 * time.Minute
	DefaultBatchSize      = invoke.DefaultBatchSize
	DefaultConcurrency    = 1

	MaxReasoningLength = 500
)

// ScoreRequest is one batch sent to the scorer.
type ScoreRequest struct {
	Model  domain.Model
	Goals  []string
	Trends []domain.TrendData
}

// Score is the scorer's verdict on one trend.
type Score struct {
	TrendID   string  `json:"trendId"`
	Relevance float64 `json:"relevance"`
	Reasoning string  `json:"reasoning"`
}

// Scorer rates trends against campaign goals. Its output must hold one
// score per requested trend with relevance in [0, 1].
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) ([]Score, error)
}

// Config holds skill settings.
type Config struct {
	Timeout        time.Duration
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	CacheTTL       time.Duration
	ScoreTTL       time.Duration
	BatchSize      int
	Concurrency    int
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
	if c.ScoreTTL == 0 {
		c.ScoreTTL = DefaultScoreTTL
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// Skill is the semanticFilter skill.
type Skill struct {
	cfg       Config
	scorer    Scorer
	scores    *scoreCache
	validator *validation.Validator
	now       func() time.Time
}

// Option configures the skill.
type Option func(*Skill)

// WithScoreCache keeps individual trend scores in c.
func WithScoreCache(c invoke.Cache) Option {
	return func(s *Skill) { s.scores = &scoreCache{cache: c} }
}

// WithValidator replaces the record validator.
func WithValidator(v *validation.Validator) Option { return func(s *Skill) { s.validator = v } }

// WithClock replaces the clock used for filteredAt.
func WithClock(now func() time.Time) Option { return func(s *Skill) { s.now = now } }

// New creates the skill over scorer.
func New(cfg Config, scorer Scorer, opts ...Option) *Skill {
	s := &Skill{
		cfg:       cfg.withDefaults(),
		scorer:    scorer,
		validator: validation.Default,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scores != nil {
		s.scores.ttl = s.cfg.ScoreTTL
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
		BatchSize:      s.cfg.BatchSize,
		Concurrency:    s.cfg.Concurrency,
	}
}

func (s *Skill) Normalize(in domain.SemanticFilterInput) domain.SemanticFilterInput {
	return in.Normalize()
}

// Targets returns the requested model and the fallback model. A request for
// the fallback model has nowhere left to fall back to.
func (s *Skill) Targets(in domain.SemanticFilterInput) (string, string) {
	if in.Model == domain.ModelFallback {
		return string(in.Model), ""
	}
	return string(in.Model), string(domain.ModelFallback)
}

func (s *Skill) ValidateInput(in domain.SemanticFilterInput) validation.Result {
	return s.validator.SemanticFilterInput(in)
}

func (s *Skill) ValidateOutput(out domain.SemanticFilterOutput) validation.Result {
	return s.validator.SemanticFilterOutput(out)
}

// InputErrorCode reports INVALID_GOALS when only the goals are wrong.
func (s *Skill) InputErrorCode(r validation.Result) taxonomy.Code {
	if len(r.Violations) == 0 {
		return taxonomy.InvalidInput
	}
	for _, v := range r.Violations {
		if !isGoalsField(v.Field) {
			return taxonomy.InvalidInput
		}
	}
	return taxonomy.InvalidGoals
}

func isGoalsField(field string) bool {
	const prefix = "campaignGoals"
	return len(field) >= len(prefix) && field[:len(prefix)] == prefix
}

type indexed struct {
	pos   int
	score Score
}

func (s *Skill) Execute(
	ctx context.Context,
	call *invoke.Call,
	in domain.SemanticFilterInput,
) (domain.SemanticFilterOutput, error) {
	known := make(map[int]Score, len(in.Trends))
	var missing []int
	for i, t := range in.Trends {
		if sc, ok := s.scores.get(ctx, t.TrendID, in.CampaignGoals); ok {
			known[i] = sc
			continue
		}
		missing = append(missing, i)
	}

	pending := make([]domain.TrendData, len(missing))
	for j, i := range missing {
		pending[j] = in.Trends[i]
	}

	res, err := invoke.RunBatches(ctx, pending, s.cfg.BatchSize, s.cfg.Concurrency,
		func(ctx context.Context, index int, batch []domain.TrendData) ([]indexed, error) {
			scores, err := invoke.Run(ctx, call, invoke.Operation[[]Score]{
				Name: fmt.Sprintf("score batch %d", index),
				Invoke: func(ctx context.Context, target string) ([]Score, error) {
					out, err := s.scorer.Score(ctx, ScoreRequest{
						Model:  domain.Model(target),
						Goals:  in.CampaignGoals,
						Trends: batch,
					})
					if err != nil {
						return nil, err
					}
					return match(batch, out)
				},
			})
			if err != nil {
				return nil, err
			}
			out := make([]indexed, len(scores))
			for j, sc := range scores {
				out[j] = indexed{pos: missing[index*s.cfg.BatchSize+j], score: sc}
			}
			return out, nil
		})

	for _, r := range res.Results {
		known[r.pos] = r.score
		s.scores.set(ctx, r.score, in.CampaignGoals)
	}

	var notice *taxonomy.ErrorRecord
	if err != nil {
		if !timedOut(ctx, err) {
			return domain.SemanticFilterOutput{}, err
		}
		notice = taxonomy.New(taxonomy.FilterTimeout, "", map[string]any{
			"completed_batches": res.Completed,
			"total_batches":     res.Total,
			"scored":            len(known),
			"total_input":       len(in.Trends),
		})
	}

	out := s.assemble(in, known)
	if notice != nil {
		return out, notice
	}
	return out, nil
}

// assemble keeps scored trends at or above the threshold in input order.
func (s *Skill) assemble(in domain.SemanticFilterInput, scores map[int]Score) domain.SemanticFilterOutput {
	threshold := *in.RelevanceThreshold
	kept := make([]domain.FilteredTrend, 0, len(scores))
	for i, t := range in.Trends {
		sc, ok := scores[i]
		if !ok || sc.Relevance < threshold {
			continue
		}
		kept = append(kept, domain.FilteredTrend{
			Trend:          t,
			RelevanceScore: sc.Relevance,
			Reasoning:      truncateRunes(sc.Reasoning, MaxReasoningLength),
		})
	}
	return domain.SemanticFilterOutput{
		FilteredTrends: kept,
		TotalInput:     len(in.Trends),
		TotalOutput:    len(kept),
		FilteredAt:     s.now().UTC().Format(taxonomy.TimestampFormat),
	}
}

// match orders scores like batch and rejects missing or out-of-range ones.
func match(batch []domain.TrendData, scores []Score) ([]Score, error) {
	byID := make(map[string]Score, len(scores))
	for _, sc := range scores {
		byID[sc.TrendID] = sc
	}
	out := make([]Score, len(batch))
	for i, t := range batch {
		sc, ok := byID[t.TrendID]
		if !ok {
			return nil, taxonomy.New(taxonomy.ValidationFailed, "Scorer omitted a trend", map[string]any{
				"field":    "trendId",
				"trend_id": t.TrendID,
			})
		}
		if sc.Relevance < 0 || sc.Relevance > 1 {
			return nil, taxonomy.New(taxonomy.ValidationFailed, "Scorer returned relevance outside [0, 1]", map[string]any{
				"field":     "relevanceScore",
				"trend_id":  t.TrendID,
				"relevance": sc.Relevance,
			})
		}
		out[i] = sc
	}
	return out, nil
}

// timedOut reports whether err comes from the invocation or batch deadline.
func timedOut(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return taxonomy.CodeOf(err) == taxonomy.Timeout
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
