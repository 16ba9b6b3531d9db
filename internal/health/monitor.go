package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/escalation"
	"github.com/vietddude/skillgate/internal/taxonomy"
)

// DefaultRecent is how many invocation records the detailed report shows.
const DefaultRecent = 20

// SkillReporter exposes the escalation state of every skill.
type SkillReporter interface {
	Status() []escalation.SkillStatus
	Halted() *taxonomy.ErrorRecord
}

// BudgetReporter exposes platform budget usage.
type BudgetReporter interface {
	All() []escalation.UsageStats
}

// RecordSource returns the most recent invocation records, newest first.
type RecordSource interface {
	Recent(n int) []domain.InvocationRecord
}

// SuccessRates returns the lifetime success rate of a skill.
type SuccessRates interface {
	SuccessRate(skill string) float64
}

// Checker pings an infrastructure dependency.
type Checker func(ctx context.Context) error

// Monitor aggregates health status from various system components.
type Monitor struct {
	skills       SkillReporter
	budgets      BudgetReporter
	records      RecordSource
	rates        SuccessRates
	dependencies map[string]Checker

	interval   time.Duration
	lastCheck  time.Time
	lastReport *HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. Any source may be nil.
func NewMonitor(skills SkillReporter, budgets BudgetReporter, records RecordSource, rates SuccessRates) *Monitor {
	return &Monitor{
		skills:       skills,
		budgets:      budgets,
		records:      records,
		rates:        rates,
		dependencies: make(map[string]Checker),
		interval:     5 * time.Second,
	}
}

// AddDependency registers a named dependency check, e.g. "redis".
func (m *Monitor) AddDependency(name string, check Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dependencies[name] = check
}

// CheckHealth builds a health report.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid pinging dependencies on every request
	if m.lastReport != nil && time.Since(m.lastCheck) < m.interval {
		return *m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Skills:       make(map[string]SkillHealth),
		Budgets:      []escalation.UsageStats{},
		Dependencies: make(map[string]string, len(m.dependencies)),
		Recent:       []domain.InvocationRecord{},
	}

	// 1. Halt mode
	if m.skills != nil {
		if rec := m.skills.Halted(); rec != nil {
			report.Halted = rec
			report.SystemStatus = StatusCritical
		}

		// 2. Circuits and error rates
		for _, st := range m.skills.Status() {
			sh := SkillHealth{
				Skill:     st.Skill,
				Status:    StatusHealthy,
				Circuit:   st.Circuit,
				ErrorRate: st.ErrorRate,
				Requests:  st.Requests,
			}
			if m.rates != nil {
				sh.SuccessRate = m.rates.SuccessRate(st.Skill)
			}
			switch {
			case st.Circuit == "open":
				sh.Status = StatusCritical
			case st.Circuit == "half-open" || st.ErrorRate > 0:
				sh.Status = StatusDegraded
			}
			report.Skills[st.Skill] = sh
			report.SystemStatus = worst(report.SystemStatus, sh.Status)
		}
	}

	// 3. Budgets
	if m.budgets != nil {
		report.Budgets = m.budgets.All()
		for _, b := range report.Budgets {
			if b.OverBudget {
				report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
			}
		}
	}

	// 4. Dependencies
	for name, check := range m.dependencies {
		if err := check(ctx); err != nil {
			report.Dependencies[name] = err.Error()
			report.SystemStatus = worst(report.SystemStatus, StatusDegraded)
			continue
		}
		report.Dependencies[name] = "ok"
	}

	if m.records != nil {
		report.Recent = m.records.Recent(DefaultRecent)
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}
