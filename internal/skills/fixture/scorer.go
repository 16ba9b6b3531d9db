package fixture

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/skills/semanticfilter"
)

// KeywordScorer scores trends by goal keyword overlap using the documented
// relevance weights. It needs no model and ignores ScoreRequest.Model.
type KeywordScorer struct {
	// EngagementCeiling is the engagement score treated as full potential.
	EngagementCeiling int64
}

// Score implements semanticfilter.Scorer.
func (k KeywordScorer) Score(ctx context.Context, req semanticfilter.ScoreRequest) ([]semanticfilter.Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ceiling := k.EngagementCeiling
	if ceiling <= 0 {
		ceiling = 20000
	}

	goals := make([]string, 0, len(req.Goals))
	for _, g := range req.Goals {
		if g = strings.ToLower(strings.TrimSpace(g)); g != "" {
			goals = append(goals, g)
		}
	}

	out := make([]semanticfilter.Score, 0, len(req.Trends))
	for _, t := range req.Trends {
		matched := matchedGoals(t, goals)

		topic := 0.0
		if len(goals) > 0 {
			topic = math.Min(1, 2*float64(matched)/float64(len(goals)))
		}
		engagement := math.Min(1, float64(t.Engagement.EngagementScore)/float64(ceiling))
		audience := 0.5
		if t.Metadata != nil && categoryMatches(t.Metadata.Category, goals) {
			audience = 1
		}

		relevance := domain.WeightTopicAlignment*topic +
			domain.WeightEngagementPotential*engagement +
			domain.WeightAudienceMatch*audience +
			domain.WeightSentimentAlignment*sentimentScore(t.Sentiment) +
			domain.WeightRecency*t.DecayScore
		relevance = math.Round(math.Max(0, math.Min(1, relevance))*100) / 100

		out = append(out, semanticfilter.Score{
			TrendID:   t.TrendID,
			Relevance: relevance,
			Reasoning: fmt.Sprintf("Matched %d of %d goals, engagement %d, sentiment %s.",
				matched, len(goals), t.Engagement.EngagementScore, t.Sentiment),
		})
	}
	return out, nil
}

func matchedGoals(t domain.TrendData, goals []string) int {
	topic := strings.ToLower(t.Topic)
	n := 0
	for _, g := range goals {
		if strings.Contains(topic, g) || hashtagMatches(t.Metadata, g) {
			n++
		}
	}
	return n
}

func hashtagMatches(m *domain.TrendMetadata, goal string) bool {
	if m == nil {
		return false
	}
	for _, h := range m.Hashtags {
		if strings.EqualFold(strings.TrimPrefix(h, "#"), goal) {
			return true
		}
	}
	return false
}

func categoryMatches(c domain.Category, goals []string) bool {
	for _, g := range goals {
		if string(c) == g {
			return true
		}
	}
	return false
}

func sentimentScore(s domain.Sentiment) float64 {
	switch s {
	case domain.SentimentPositive:
		return 1
	case domain.SentimentNeutral:
		return 0.6
	}
	return 0.2
}
