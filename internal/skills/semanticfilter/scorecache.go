package semanticfilter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/vietddude/skillgate/internal/invoke"
)

// scoreCache keeps one score per trend and goal set. The key ignores the
// model, so a score from the fallback model is reused by primary-model calls.
// A nil *scoreCache caches nothing.
type scoreCache struct {
	cache invoke.Cache
	ttl   time.Duration
}

// ScoreKey derives the score cache key from the trend ID and the sorted goals.
func ScoreKey(trendID string, goals []string) string {
	sorted := slices.Clone(goals)
	slices.Sort(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return Name + ":score:" + trendID + ":" + hex.EncodeToString(sum[:8])
}

func (c *scoreCache) get(ctx context.Context, trendID string, goals []string) (Score, bool) {
	if c == nil || c.cache == nil {
		return Score{}, false
	}
	data, ok, err := c.cache.Get(ctx, ScoreKey(trendID, goals))
	if err != nil {
		slog.Warn("Score cache lookup failed", "skill", Name, "error", err)
		return Score{}, false
	}
	if !ok {
		return Score{}, false
	}
	var sc Score
	if err := json.Unmarshal(data, &sc); err != nil {
		slog.Warn("Dropping undecodable score entry", "skill", Name, "error", err)
		return Score{}, false
	}
	return sc, true
}

func (c *scoreCache) set(ctx context.Context, sc Score, goals []string) {
	if c == nil || c.cache == nil {
		return
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return
	}
	if err := c.cache.Set(context.WithoutCancel(ctx), ScoreKey(sc.TrendID, goals), data, c.ttl); err != nil {
		slog.Warn("Score cache store failed", "skill", Name, "error", err)
	}
}
