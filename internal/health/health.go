// Package health provides system health monitoring and status reporting.
package health

import (
	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/escalation"
	"github.com/vietddude/skillgate/internal/taxonomy"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

func (s SystemStatus) rank() int {
	switch s {
	case StatusCritical:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

func worst(a, b SystemStatus) SystemStatus {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// SkillHealth contains health metrics for one skill.
type SkillHealth struct {
	Skill       string       `json:"skill"`
	Status      SystemStatus `json:"status"`
	Circuit     string       `json:"circuit"`
	ErrorRate   float64      `json:"error_rate"`
	Requests    int          `json:"requests"`
	SuccessRate float64      `json:"success_rate"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus              `json:"system_status"`
	Halted       *taxonomy.ErrorRecord     `json:"halted,omitempty"`
	Skills       map[string]SkillHealth    `json:"skills"`
	Budgets      []escalation.UsageStats   `json:"budgets"`
	Dependencies map[string]string         `json:"dependencies"`
	Recent       []domain.InvocationRecord `json:"recent"`
}
