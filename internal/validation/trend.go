package validation

import (
	"fmt"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/validation/constraint"
)

const maxEngagementScore = 1_000_000

// TrendData validates a single trend record.
func (v *Validator) TrendData(t domain.TrendData) Result {
	var s constraint.Set
	v.trend(&s, "", t)
	return result(&s)
}

// TrendDataList validates every trend and aggregates the item violations.
func (v *Validator) TrendDataList(trends []domain.TrendData) Result {
	var s constraint.Set
	for i, t := range trends {
		v.trend(&s, index("trends", i), t)
	}
	return result(&s)
}

// trend runs the per-field checks of t and, if they pass, its cross-field checks.
func (v *Validator) trend(s *constraint.Set, prefix string, t domain.TrendData) {
	var item constraint.Set
	v.trendFields(&item, prefix, t)
	if item.Len() == 0 {
		trendCross(&item, prefix, t)
	}
	s.Merge(item.Items())
}

func (v *Validator) trendFields(s *constraint.Set, prefix string, t domain.TrendData) {
	s.Add(constraint.IsUUID(join(prefix, "trendId"), t.TrendID))
	s.Add(constraint.LengthBetween(join(prefix, "topic"), t.Topic, 1, 500))
	s.Add(constraint.EnumOf(join(prefix, "platform"), t.Platform, domain.Platforms))
	s.Add(constraint.EnumOf(join(prefix, "sentiment"), t.Sentiment, domain.Sentiments))
	v.timestampNotFuture(s, join(prefix, "timestamp"), t.Timestamp)

	e := t.Engagement
	ep := join(prefix, "engagement")
	s.Add(constraint.AtLeast(join(ep, "likes"), e.Likes, 0))
	s.Add(constraint.AtLeast(join(ep, "comments"), e.Comments, 0))
	s.Add(constraint.AtLeast(join(ep, "shares"), e.Shares, 0))
	s.Add(constraint.AtLeast(join(ep, "impressions"), e.Impressions, 0))
	s.Add(constraint.Range(join(ep, "engagementScore"), e.EngagementScore, 0, maxEngagementScore))

	s.Add(constraint.AtLeast(join(prefix, "trendVelocity"), t.TrendVelocity, 0))
	s.Add(constraint.Range(join(prefix, "decayScore"), t.DecayScore, 0, 1))

	if t.GeographicOrigin != nil {
		s.Add(constraint.EnumOf(join(prefix, "geographicOrigin"), *t.GeographicOrigin, domain.Regions))
	}
	if m := t.Metadata; m != nil {
		mp := join(prefix, "metadata")
		s.Add(constraint.CountBetween(join(mp, "hashtags"), len(m.Hashtags), 0, 50))
		s.Add(constraint.CountBetween(join(mp, "mentions"), len(m.Mentions), 0, 50))
		s.Add(constraint.CountBetween(join(mp, "sourceUrls"), len(m.SourceURLs), 0, 10))
		if m.Category != "" {
			s.Add(constraint.EnumOf(join(mp, "category"), m.Category, domain.Categories))
		}
	}
}

func trendCross(s *constraint.Set, prefix string, t domain.TrendData) {
	want := t.Engagement.ComputeScore()
	if t.Engagement.EngagementScore != want {
		s.Add(&constraint.Violation{
			Field:      join(join(prefix, "engagement"), "engagementScore"),
			Constraint: ConstraintEngagementFormula,
			Expected:   fmt.Sprintf("%s = %d", domain.EngagementFormula, want),
			Actual:     fmt.Sprintf("%d", t.Engagement.EngagementScore),
		})
	}
}

// timestampNotFuture checks format and that the instant is within MaxClockSkew of now.
func (v *Validator) timestampNotFuture(s *constraint.Set, field, value string) {
	if s.Add(constraint.IsISOTimestamp(field, value)) {
		return
	}
	ts, _ := constraint.ParseISOTimestamp(value)
	limit := v.now().UTC().Add(MaxClockSkew)
	if ts.After(limit) {
		s.Add(&constraint.Violation{
			Field:      field,
			Constraint: ConstraintNotFuture,
			Expected:   fmt.Sprintf("<= %s", limit.Format("2006-01-02T15:04:05Z")),
			Actual:     value,
		})
	}
}
