package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/skillgate/internal/core/config"
	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/skills/fixture"
	"github.com/vietddude/skillgate/internal/taxonomy"
)

func sampleTrend() domain.TrendData {
	return fixture.Trend(domain.PlatformTwitter, "Lagos fashion week", time.Now().Add(-time.Hour),
		20000, 500, 300, domain.SentimentPositive, domain.CategoryFashion, []string{"#LFW"})
}

func TestReport_ValidTrend(t *testing.T) {
	data, err := json.Marshal(sampleTrend())
	require.NoError(t, err)

	var out bytes.Buffer
	ok, err := report(&out, data, validateTrends)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "valid\n", out.String())
}

func TestReport_InvalidTrendList(t *testing.T) {
	bad := sampleTrend()
	bad.Engagement.EngagementScore++
	data, err := json.Marshal([]domain.TrendData{sampleTrend(), bad})
	require.NoError(t, err)

	var out bytes.Buffer
	ok, err := report(&out, data, validateTrends)
	require.NoError(t, err)
	assert.False(t, ok)

	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &envelope))
	assert.Equal(t, string(taxonomy.ValSchemaInvalid), envelope.Error.Code)
	assert.Contains(t, envelope.Error.Details["field"], "[1]")
}

func TestReport_DecodeError(t *testing.T) {
	_, err := report(&bytes.Buffer{}, []byte("{"), validateContent)
	assert.Error(t, err)
}

func TestDecodeTrends(t *testing.T) {
	trend := sampleTrend()

	list, err := json.Marshal([]domain.TrendData{trend})
	require.NoError(t, err)
	got, err := decodeTrends(list)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, trend.TrendID, got[0].TrendID)

	wrapped, err := json.Marshal(domain.FetchTrendsOutput{Trends: []domain.TrendData{trend, trend}})
	require.NoError(t, err)
	got, err = decodeTrends(wrapped)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRender(t *testing.T) {
	data, code := render(map[string]int{"count": 1}, nil, nil)
	assert.Equal(t, 0, code)
	assert.JSONEq(t, `{"count":1}`, string(data))

	data, code = render(nil, nil, taxonomy.New(taxonomy.InvalidPlatform, "", nil))
	assert.Equal(t, 1, code)
	assert.Contains(t, string(data), `"INVALID_PLATFORM"`)

	notice := taxonomy.New(taxonomy.FilterTimeout, "", map[string]any{"completed_batches": 1})
	data, code = render(map[string]int{"totalOutput": 3}, notice, nil)
	assert.Equal(t, 2, code)
	assert.Contains(t, string(data), `"FILTER_TIMEOUT"`)
	assert.Contains(t, string(data), `"totalOutput": 3`)
}

func TestControlConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
server:
  port: 9090
skills:
  fetch_trends:
    market_asset: ethereum
  semantic_filter:
    batch_size: 25
    concurrency: 2
budgets:
  twitter: 10
`))
	require.NoError(t, err)

	cc := controlConfig(cfg)
	assert.Equal(t, 9090, cc.Port)
	assert.Equal(t, "ethereum", cc.FetchTrends.MarketAsset)
	assert.Equal(t, 25, cc.SemanticFilter.BatchSize)
	assert.Equal(t, 2, cc.SemanticFilter.Concurrency)
	assert.Equal(t, 10, cc.Budgets[domain.PlatformTwitter])
	assert.Equal(t, config.DefaultMaxCacheEntries, cc.CacheMaxEntries)
}
