package escalation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/observability/metrics"
)

// DefaultBudgets are the hourly call budgets of each external platform.
var DefaultBudgets = map[domain.Platform]int{
	domain.PlatformTwitter: 100,
	domain.PlatformNews:    50,
	domain.PlatformMarket:  200,
}

// UsageStats holds budget usage of one platform.
type UsageStats struct {
	Platform        domain.Platform `json:"platform"`
	CallsThisHour   int             `json:"callsThisHour"`
	TotalCalls      int             `json:"totalCalls"`
	HourlyLimit     int             `json:"hourlyLimit"`
	RemainingCalls  int             `json:"remainingCalls"`
	UsagePercentage float64         `json:"usagePercentage"`
	OverBudget      bool            `json:"overBudget"`
	NextResetAt     time.Time       `json:"nextResetAt"`
}

type platformBudget struct {
	totalCalls    int
	callsThisHour int
	hourStartTime time.Time
	hourlyLimit   int
}

// BudgetTracker counts calls per platform per hour. Budgets are consumed,
// not enforced: RecordCall never refuses a call.
type BudgetTracker struct {
	mu    sync.RWMutex
	usage map[domain.Platform]*platformBudget
	now   func() time.Time
}

// NewBudgetTracker creates a tracker. Platforms missing from limits are
// counted without a limit.
func NewBudgetTracker(limits map[domain.Platform]int) *BudgetTracker {
	bt := &BudgetTracker{
		usage: make(map[domain.Platform]*platformBudget),
		now:   time.Now,
	}
	now := bt.now()
	for p, limit := range limits {
		bt.usage[p] = &platformBudget{hourlyLimit: limit, hourStartTime: now}
	}
	return bt
}

// RecordCall counts one external call to platform.
func (bt *BudgetTracker) RecordCall(platform domain.Platform) {
	bt.mu.Lock()
	now := bt.now()
	budget, ok := bt.usage[platform]
	if !ok {
		budget = &platformBudget{hourStartTime: now}
		bt.usage[platform] = budget
	}
	if now.Sub(budget.hourStartTime) >= time.Hour {
		budget.callsThisHour = 0
		budget.hourStartTime = now
	}
	budget.totalCalls++
	budget.callsThisHour++
	stats := bt.statsUnsafe(platform, budget)
	bt.mu.Unlock()

	metrics.BudgetUsage.WithLabelValues(string(platform)).Set(stats.UsagePercentage / 100)
	if stats.OverBudget {
		slog.Warn("Platform call budget exceeded",
			"platform", platform, "calls", stats.CallsThisHour, "limit", stats.HourlyLimit)
	}
}

// Usage returns usage statistics for platform.
func (bt *BudgetTracker) Usage(platform domain.Platform) UsageStats {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	budget, ok := bt.usage[platform]
	if !ok {
		return UsageStats{Platform: platform, NextResetAt: bt.now().Add(time.Hour)}
	}
	return bt.statsUnsafe(platform, budget)
}

// All returns usage of every known platform.
func (bt *BudgetTracker) All() []UsageStats {
	bt.mu.RLock()
	defer bt.mu.RUnlock()

	out := make([]UsageStats, 0, len(bt.usage))
	for _, p := range domain.Platforms {
		if budget, ok := bt.usage[p]; ok {
			out = append(out, bt.statsUnsafe(p, budget))
		}
	}
	return out
}

// OverBudget reports whether platform used up its hourly budget.
func (bt *BudgetTracker) OverBudget(platform domain.Platform) bool {
	return bt.Usage(platform).OverBudget
}

// Reset clears every counter.
func (bt *BudgetTracker) Reset() {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	now := bt.now()
	for _, budget := range bt.usage {
		budget.totalCalls = 0
		budget.callsThisHour = 0
		budget.hourStartTime = now
	}
}

func (bt *BudgetTracker) statsUnsafe(platform domain.Platform, budget *platformBudget) UsageStats {
	calls := budget.callsThisHour
	if bt.now().Sub(budget.hourStartTime) >= time.Hour {
		calls = 0
	}

	stats := UsageStats{
		Platform:      platform,
		CallsThisHour: calls,
		TotalCalls:    budget.totalCalls,
		HourlyLimit:   budget.hourlyLimit,
		NextResetAt:   budget.hourStartTime.Add(time.Hour),
	}
	if budget.hourlyLimit > 0 {
		stats.RemainingCalls = max(budget.hourlyLimit-calls, 0)
		stats.UsagePercentage = float64(calls) / float64(budget.hourlyLimit) * 100
		stats.OverBudget = calls > budget.hourlyLimit
	}
	return stats
}
