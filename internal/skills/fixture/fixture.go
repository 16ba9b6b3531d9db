// Package fixture provides deterministic collaborators for local runs of
// the skills: a static trend source and a keyword relevance scorer.
package fixture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/skills/fetchtrends"
)

type seed struct {
	topic     string
	likes     int64
	comments  int64
	shares    int64
	sentiment domain.Sentiment
	category  domain.Category
	hashtags  []string
}

var seeds = map[domain.Platform][]seed{
	domain.PlatformTwitter: {
		{"Sustainable Fashion in Africa", 8000, 2000, 1500, domain.SentimentPositive, domain.CategoryFashion, []string{"#fashion", "#africa"}},
		{"AI Safety Governance Update", 12000, 3100, 900, domain.SentimentNeutral, domain.CategoryTechnology, []string{"#ai"}},
		{"Crypto Market Surge", 6400, 900, 700, domain.SentimentPositive, domain.CategoryCrypto, []string{"#bitcoin", "#crypto"}},
		{"Local Coffee Shop Opening", 120, 30, 4, domain.SentimentPositive, domain.CategoryOther, nil},
	},
	domain.PlatformNews: {
		{"Climate Change Policy", 5000, 1800, 1200, domain.SentimentNegative, domain.CategoryNews, []string{"#climate"}},
		{"New Tech Startups in LATAM", 4200, 800, 600, domain.SentimentPositive, domain.CategoryTechnology, nil},
	},
	domain.PlatformMarket: {
		{"Bitcoin ETF Inflows", 9100, 2200, 1900, domain.SentimentPositive, domain.CategoryCrypto, []string{"#bitcoin"}},
		{"Stablecoin Regulation Draft", 3000, 700, 300, domain.SentimentNeutral, domain.CategoryFinance, []string{"#stablecoin"}},
	},
	domain.PlatformReddit: {
		{"Vintage Streetwear Revival", 7000, 2600, 400, domain.SentimentPositive, domain.CategoryFashion, []string{"#streetwear"}},
	},
	domain.PlatformTikTok: {
		{"Luxury Haul Challenge", 21000, 4000, 3500, domain.SentimentPositive, domain.CategoryFashion, []string{"#luxury", "#haul"}},
	},
}

// StaticSource serves a fixed trend catalog per platform.
type StaticSource struct {
	now func() time.Time
}

// NewStaticSource creates a source whose timestamps are relative to now.
// A nil now uses the wall clock.
func NewStaticSource(now func() time.Time) *StaticSource {
	if now == nil {
		now = time.Now
	}
	return &StaticSource{now: now}
}

// Fetch implements fetchtrends.Source.
func (s *StaticSource) Fetch(ctx context.Context, req fetchtrends.Request) ([]domain.TrendData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list, ok := seeds[req.Platform]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", req.Platform)
	}

	now := s.now().UTC().Truncate(time.Second)
	out := make([]domain.TrendData, 0, len(list))
	for i, sd := range list {
		age := time.Duration(i+1) * time.Hour
		if req.Window > 0 && age > req.Window {
			continue
		}
		out = append(out, Trend(req.Platform, sd.topic, now.Add(-age), sd.likes, sd.comments, sd.shares, sd.sentiment, sd.category, sd.hashtags))
	}
	return out, nil
}

// Trend builds a valid trend with an ID derived from platform and topic.
func Trend(
	platform domain.Platform,
	topic string,
	at time.Time,
	likes, comments, shares int64,
	sentiment domain.Sentiment,
	category domain.Category,
	hashtags []string,
) domain.TrendData {
	e := domain.Engagement{
		Likes:       likes,
		Comments:    comments,
		Shares:      shares,
		Impressions: (likes + comments + shares) * 20,
	}
	e.EngagementScore = e.ComputeScore()

	origin := domain.RegionGlobal
	return domain.TrendData{
		TrendID:          TrendID(platform, topic),
		Topic:            topic,
		Platform:         platform,
		Sentiment:        sentiment,
		Timestamp:        at.UTC().Format("2006-01-02T15:04:05Z"),
		Engagement:       e,
		TrendVelocity:    float64(e.EngagementScore) / 5000,
		DecayScore:       0.9,
		GeographicOrigin: &origin,
		Metadata: &domain.TrendMetadata{
			Hashtags: hashtags,
			Category: category,
		},
	}
}

// TrendID is a stable lowercase UUID for platform and topic.
func TrendID(platform domain.Platform, topic string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(platform)+"/"+topic)).String()
}
