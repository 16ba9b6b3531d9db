package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/escalation"
)

// DefaultMaxCacheEntries bounds each in-memory cache.
const DefaultMaxCacheEntries = 10000

var validate = validator.New()

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expands environment variables, fills
// defaults and validates the result.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = DefaultMaxCacheEntries
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "skillgate:"
	}

	d := escalation.DefaultConfig()
	if cfg.Escalation.ErrorRateThreshold == 0 {
		cfg.Escalation.ErrorRateThreshold = d.ErrorRateThreshold
	}
	if cfg.Escalation.Window == 0 {
		cfg.Escalation.Window = d.Window
	}
	if cfg.Escalation.MinRequests == 0 {
		cfg.Escalation.MinRequests = d.MinRequests
	}
	if cfg.Escalation.OpenDelay == 0 {
		cfg.Escalation.OpenDelay = d.OpenDelay
	}

	if cfg.Budgets == nil {
		cfg.Budgets = make(map[string]int, len(escalation.DefaultBudgets))
		for p, limit := range escalation.DefaultBudgets {
			cfg.Budgets[string(p)] = limit
		}
	}
}

// PlatformBudgets returns the budgets keyed by platform.
func (c *AppConfig) PlatformBudgets() map[domain.Platform]int {
	out := make(map[domain.Platform]int, len(c.Budgets))
	for name, limit := range c.Budgets {
		out[domain.Platform(name)] = limit
	}
	return out
}
