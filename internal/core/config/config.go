package config

import (
	"time"

	"github.com/vietddude/skillgate/internal/escalation"
	"github.com/vietddude/skillgate/internal/infra/cache"
	"github.com/vietddude/skillgate/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig      `yaml:"server"`
	Logging    LoggingConfig     `yaml:"logging"`
	Redis      cache.RedisConfig `yaml:"redis"`
	Database   postgres.Config   `yaml:"database"`
	Cache      CacheConfig       `yaml:"cache"`
	Skills     SkillsConfig      `yaml:"skills"`
	Escalation escalation.Config `yaml:"escalation"`
	// Budgets holds hourly call limits keyed by platform name.
	Budgets map[string]int `yaml:"budgets" validate:"dive,keys,oneof=twitter news market reddit tiktok,endkeys,gte=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"  validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// CacheConfig bounds the in-memory caches used when Redis is not configured.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" validate:"gte=0"`
}

// SkillsConfig holds per-skill settings.
type SkillsConfig struct {
	FetchTrends    SkillConfig `yaml:"fetch_trends"`
	SemanticFilter SkillConfig `yaml:"semantic_filter"`
}

// SkillConfig holds the timing and batching settings of one skill. Zero
// values take the skill's defaults.
type SkillConfig struct {
	Timeout        time.Duration `yaml:"timeout"         validate:"gte=0"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" validate:"gte=0"`
	BackoffBase    time.Duration `yaml:"backoff_base"    validate:"gte=0"`
	CacheTTL       time.Duration `yaml:"cache_ttl"       validate:"gte=0"`
	ScoreTTL       time.Duration `yaml:"score_ttl"       validate:"gte=0"`
	BatchSize      int           `yaml:"batch_size"      validate:"gte=0,lte=1000"`
	Concurrency    int           `yaml:"concurrency"     validate:"gte=0"`
	// MarketAsset is the asset of the market trend resource.
	MarketAsset string `yaml:"market_asset"`
}
