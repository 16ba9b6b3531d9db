package domain

// Model names the scoring model used by semantic filtering.
type Model string

const (
	ModelPrimary  Model = "gemini-3-flash"
	ModelFallback Model = "gpt-4o-mini"
)

var Models = []Model{ModelPrimary, ModelFallback}

// Input defaults for fetchTrends and semanticFilter.
const (
	DefaultFetchLimit         = 50
	DefaultTimeWindow         = "24h"
	DefaultMinEngagement      = int64(10000)
	DefaultRelevanceThreshold = 0.75
)

// FetchTrendsInput is the fetchTrends request. Nil optional fields take
// their defaults in Normalize.
type FetchTrendsInput struct {
	Platform      Platform `json:"platform"`
	Limit         *int     `json:"limit,omitempty"`
	TimeWindow    *string  `json:"timeWindow,omitempty"`
	MinEngagement *int64   `json:"minEngagement,omitempty"`
	ExcludeTopics []string `json:"excludeTopics,omitempty"`
}

// Normalize returns a copy with every optional field populated.
func (in FetchTrendsInput) Normalize() FetchTrendsInput {
	out := in
	if out.Limit == nil {
		limit := DefaultFetchLimit
		out.Limit = &limit
	}
	if out.TimeWindow == nil {
		window := DefaultTimeWindow
		out.TimeWindow = &window
	}
	if out.MinEngagement == nil {
		floor := DefaultMinEngagement
		out.MinEngagement = &floor
	}
	if out.ExcludeTopics == nil {
		out.ExcludeTopics = []string{}
	}
	return out
}

type FetchTrendsOutput struct {
	Trends    []TrendData `json:"trends"`
	FetchedAt string      `json:"fetchedAt"`
	Platform  Platform    `json:"platform"`
	Count     int         `json:"count"`
	Truncated bool        `json:"truncated"`
}

type SemanticFilterInput struct {
	Trends             []TrendData `json:"trends"`
	CampaignGoals      []string    `json:"campaignGoals"`
	RelevanceThreshold *float64    `json:"relevanceThreshold,omitempty"`
	Model              Model       `json:"model,omitempty"`
}

// Normalize returns a copy with threshold and model defaulted.
func (in SemanticFilterInput) Normalize() SemanticFilterInput {
	out := in
	if out.RelevanceThreshold == nil {
		threshold := DefaultRelevanceThreshold
		out.RelevanceThreshold = &threshold
	}
	if out.Model == "" {
		out.Model = ModelPrimary
	}
	return out
}

// FilteredTrend wraps a trend with its relevance score; the trend itself is untouched.
type FilteredTrend struct {
	Trend          TrendData `json:"trend"`
	RelevanceScore float64   `json:"relevanceScore"`
	Reasoning      string    `json:"reasoning"`
}

type SemanticFilterOutput struct {
	FilteredTrends []FilteredTrend `json:"filteredTrends"`
	TotalInput     int             `json:"totalInput"`
	TotalOutput    int             `json:"totalOutput"`
	FilteredAt     string          `json:"filteredAt"`
}

// Scoring weights of the relevance scorer. They sum to 1.
const (
	WeightTopicAlignment      = 0.30
	WeightEngagementPotential = 0.25
	WeightAudienceMatch       = 0.20
	WeightSentimentAlignment  = 0.15
	WeightRecency             = 0.10
)
