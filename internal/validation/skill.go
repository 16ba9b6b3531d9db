package validation

import (
	"fmt"
	"regexp"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/validation/constraint"
)

var timeWindowPattern = regexp.MustCompile(`^[0-9]+(h|d)$`)

// FetchTrendsInput validates a fetchTrends request after applying defaults.
func (v *Validator) FetchTrendsInput(in domain.FetchTrendsInput) Result {
	in = in.Normalize()

	var s constraint.Set
	s.Add(constraint.EnumOf("platform", in.Platform, domain.Platforms))
	s.Add(constraint.Range("limit", *in.Limit, 1, 500))
	s.Add(constraint.Pattern("timeWindow", *in.TimeWindow, timeWindowPattern))
	s.Add(constraint.AtLeast("minEngagement", *in.MinEngagement, 0))
	s.Add(constraint.CountBetween("excludeTopics", len(in.ExcludeTopics), 0, 50))
	return result(&s)
}

// FetchTrendsOutput validates a fetchTrends response.
func (v *Validator) FetchTrendsOutput(out domain.FetchTrendsOutput) Result {
	var s constraint.Set
	for i, t := range out.Trends {
		v.trend(&s, index("trends", i), t)
	}
	s.Add(constraint.IsISOTimestamp("fetchedAt", out.FetchedAt))
	s.Add(constraint.EnumOf("platform", out.Platform, domain.Platforms))
	s.Add(constraint.AtLeast("count", out.Count, 0))

	if s.Len() == 0 && out.Count != len(out.Trends) {
		s.Add(&constraint.Violation{
			Field:      "count",
			Constraint: ConstraintCountMatches,
			Expected:   fmt.Sprintf("len(trends) = %d", len(out.Trends)),
			Actual:     fmt.Sprintf("%d", out.Count),
		})
	}
	return result(&s)
}

// SemanticFilterInput validates a semanticFilter request after applying defaults.
func (v *Validator) SemanticFilterInput(in domain.SemanticFilterInput) Result {
	in = in.Normalize()

	var s constraint.Set
	s.Add(constraint.CountBetween("trends", len(in.Trends), 1, 1000))
	for i, t := range in.Trends {
		v.trend(&s, index("trends", i), t)
	}
	s.Add(constraint.CountBetween("campaignGoals", len(in.CampaignGoals), 1, 10))
	for i, g := range in.CampaignGoals {
		s.Add(constraint.NonEmpty(index("campaignGoals", i), g))
	}
	s.Add(constraint.Range("relevanceThreshold", *in.RelevanceThreshold, 0, 1))
	s.Add(constraint.EnumOf("model", in.Model, domain.Models))
	return result(&s)
}

// SemanticFilterOutput validates a semanticFilter response, including partial ones.
func (v *Validator) SemanticFilterOutput(out domain.SemanticFilterOutput) Result {
	var s constraint.Set
	for i, ft := range out.FilteredTrends {
		p := index("filteredTrends", i)
		v.trend(&s, join(p, "trend"), ft.Trend)
		s.Add(constraint.Range(join(p, "relevanceScore"), ft.RelevanceScore, 0, 1))
		s.Add(constraint.LengthBetween(join(p, "reasoning"), ft.Reasoning, 0, 500))
	}
	s.Add(constraint.AtLeast("totalInput", out.TotalInput, 0))
	s.Add(constraint.AtLeast("totalOutput", out.TotalOutput, 0))
	s.Add(constraint.IsISOTimestamp("filteredAt", out.FilteredAt))

	if s.Len() > 0 {
		return result(&s)
	}
	if out.TotalOutput != len(out.FilteredTrends) {
		s.Add(&constraint.Violation{
			Field:      "totalOutput",
			Constraint: ConstraintCountMatches,
			Expected:   fmt.Sprintf("len(filteredTrends) = %d", len(out.FilteredTrends)),
			Actual:     fmt.Sprintf("%d", out.TotalOutput),
		})
	}
	if out.TotalOutput > out.TotalInput {
		s.Add(&constraint.Violation{
			Field:      "totalOutput",
			Constraint: ConstraintOutputBound,
			Expected:   fmt.Sprintf("<= totalInput (%d)", out.TotalInput),
			Actual:     fmt.Sprintf("%d", out.TotalOutput),
		})
	}
	return result(&s)
}
