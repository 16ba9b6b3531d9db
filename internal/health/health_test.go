package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/escalation"
	"github.com/vietddude/skillgate/internal/taxonomy"
)

// =============================================================================
// Stubs
// =============================================================================

type stubSkills struct {
	status []escalation.SkillStatus
	halted *taxonomy.ErrorRecord
}

func (s *stubSkills) Status() []escalation.SkillStatus { return s.status }
func (s *stubSkills) Halted() *taxonomy.ErrorRecord     { return s.halted }

type stubBudgets struct {
	usage []escalation.UsageStats
}

func (s *stubBudgets) All() []escalation.UsageStats { return s.usage }

type stubRecords struct {
	records []domain.InvocationRecord
}

func (s *stubRecords) Recent(n int) []domain.InvocationRecord {
	if n < len(s.records) {
		return s.records[:n]
	}
	return s.records
}

type stubRates map[string]float64

func (s stubRates) SuccessRate(skill string) float64 { return s[skill] }

func newMonitor(skills *stubSkills, budgets *stubBudgets) *Monitor {
	m := NewMonitor(skills, budgets, &stubRecords{}, stubRates{"fetchTrends": 0.5})
	m.interval = 0
	return m
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	m := newMonitor(
		&stubSkills{status: []escalation.SkillStatus{{Skill: "fetchTrends", Circuit: "closed", Requests: 4}}},
		&stubBudgets{usage: []escalation.UsageStats{{Platform: domain.PlatformTwitter, HourlyLimit: 100}}},
	)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusHealthy {
		t.Fatalf("Expected healthy, got %s", report.SystemStatus)
	}
	if report.Skills["fetchTrends"].SuccessRate != 0.5 {
		t.Errorf("Expected success rate 0.5, got %v", report.Skills["fetchTrends"].SuccessRate)
	}
}

func TestMonitor_StatusRules(t *testing.T) {
	tests := []struct {
		name    string
		skills  *stubSkills
		budgets *stubBudgets
		dep     error
		want    SystemStatus
	}{
		{
			name:   "errors degrade",
			skills: &stubSkills{status: []escalation.SkillStatus{{Skill: "a", Circuit: "closed", ErrorRate: 0.05}}},
			want:   StatusDegraded,
		},
		{
			name:   "open circuit is critical",
			skills: &stubSkills{status: []escalation.SkillStatus{{Skill: "a", Circuit: "open", ErrorRate: 0.5}}},
			want:   StatusCritical,
		},
		{
			name:   "halt is critical",
			skills: &stubSkills{halted: taxonomy.New(taxonomy.SecAuditTamperDetected, "", nil)},
			want:   StatusCritical,
		},
		{
			name:    "over budget degrades",
			skills:  &stubSkills{},
			budgets: &stubBudgets{usage: []escalation.UsageStats{{Platform: domain.PlatformNews, OverBudget: true}}},
			want:    StatusDegraded,
		},
		{
			name:   "failed dependency degrades",
			skills: &stubSkills{},
			dep:    errors.New("connection refused"),
			want:   StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budgets := tt.budgets
			if budgets == nil {
				budgets = &stubBudgets{}
			}
			m := newMonitor(tt.skills, budgets)
			m.AddDependency("redis", func(context.Context) error { return tt.dep })

			report := m.CheckHealth(context.Background())
			if report.SystemStatus != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, report.SystemStatus)
			}
		})
	}
}

func TestServer_Endpoints(t *testing.T) {
	skills := &stubSkills{status: []escalation.SkillStatus{{Skill: "fetchTrends", Circuit: "open"}}}
	records := &stubRecords{records: []domain.InvocationRecord{{ID: "r1", Skill: "fetchTrends"}}}
	m := NewMonitor(skills, &stubBudgets{}, records, nil)
	m.interval = 0
	srv := httptest.NewServer(NewServer(m, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/health/detailed")
	if err != nil {
		t.Fatalf("GET /health/detailed failed: %v", err)
	}
	defer resp2.Body.Close()

	var report HealthReport
	if err := json.NewDecoder(resp2.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.Skills["fetchTrends"].Circuit != "open" {
		t.Errorf("Expected open circuit, got %+v", report.Skills)
	}
	if len(report.Recent) != 1 || report.Recent[0].ID != "r1" {
		t.Errorf("Expected one recent record, got %+v", report.Recent)
	}

	resp3, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /metrics, got %d", resp3.StatusCode)
	}
}
