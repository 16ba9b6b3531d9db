package domain

// Platform identifies an external trend source.
type Platform string

const (
	PlatformTwitter Platform = "twitter"
	PlatformNews    Platform = "news"
	PlatformMarket  Platform = "market"
	PlatformReddit  Platform = "reddit"
	PlatformTikTok  Platform = "tiktok"
)

// Platforms lists every platform a trend can originate from.
var Platforms = []Platform{PlatformTwitter, PlatformNews, PlatformMarket, PlatformReddit, PlatformTikTok}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

type Region string

const (
	RegionGlobal Region = "global"
	RegionUS     Region = "US"
	RegionEU     Region = "EU"
	RegionLATAM  Region = "LATAM"
	RegionAPAC   Region = "APAC"
	RegionAfrica Region = "AFRICA"
	RegionMENA   Region = "MENA"
)

var Regions = []Region{RegionGlobal, RegionUS, RegionEU, RegionLATAM, RegionAPAC, RegionAfrica, RegionMENA}

type Category string

const (
	CategoryTechnology    Category = "technology"
	CategoryFashion       Category = "fashion"
	CategoryFinance       Category = "finance"
	CategoryEntertainment Category = "entertainment"
	CategoryNews          Category = "news"
	CategoryCrypto        Category = "crypto"
	CategoryOther         Category = "other"
)

var Categories = []Category{
	CategoryTechnology, CategoryFashion, CategoryFinance, CategoryEntertainment,
	CategoryNews, CategoryCrypto, CategoryOther,
}

// TrendData is a quantized signal from an external source.
// Records are immutable once fetched; re-scoring wraps them in FilteredTrend.
type TrendData struct {
	TrendID          string         `json:"trendId"`
	Topic            string         `json:"topic"`
	Platform         Platform       `json:"platform"`
	Sentiment        Sentiment      `json:"sentiment"`
	Timestamp        string         `json:"timestamp"`
	Engagement       Engagement     `json:"engagement"`
	TrendVelocity    float64        `json:"trendVelocity"`
	DecayScore       float64        `json:"decayScore"`
	GeographicOrigin *Region        `json:"geographicOrigin,omitempty"`
	Metadata         *TrendMetadata `json:"metadata,omitempty"`
}

// Engagement holds raw interaction counts and the derived score.
type Engagement struct {
	Likes           int64 `json:"likes"`
	Comments        int64 `json:"comments"`
	Shares          int64 `json:"shares"`
	Impressions     int64 `json:"impressions"`
	EngagementScore int64 `json:"engagementScore"`
}

// EngagementFormula is the derivation rule for EngagementScore.
const EngagementFormula = "likes + 2*comments + 3*shares"

// ComputeScore derives the engagement score from the raw counts.
func (e Engagement) ComputeScore() int64 {
	return e.Likes + 2*e.Comments + 3*e.Shares
}

type TrendMetadata struct {
	Hashtags   []string `json:"hashtags,omitempty"`
	Mentions   []string `json:"mentions,omitempty"`
	SourceURLs []string `json:"sourceUrls,omitempty"`
	Category   Category `json:"category,omitempty"`
}
