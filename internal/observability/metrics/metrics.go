package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

var (
	// SkillDuration tracks invocation latency per skill
	SkillDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillgate_skill_duration_ms",
			Help:    "Skill invocation latency in milliseconds",
			Buckets: []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"skill"},
	)

	// SkillInvocations tracks terminal outcomes per skill
	SkillInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgate_skill_invocations_total",
			Help: "Total number of skill invocations",
		},
		[]string{"skill"},
	)

	// SkillErrors tracks failed and partial invocations per skill and code
	SkillErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgate_skill_errors_total",
			Help: "Total number of skill invocations that ended with an error code",
		},
		[]string{"skill", "code"},
	)

	// SkillRetries tracks re-attempts per skill
	SkillRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgate_skill_retries_total",
			Help: "Total number of retries made by skill invocations",
		},
		[]string{"skill"},
	)

	// SkillSuccessRate is successes divided by invocations since start
	SkillSuccessRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skillgate_skill_success_rate",
			Help: "Fraction of skill invocations that succeeded",
		},
		[]string{"skill"},
	)

	// SkillCacheHits tracks invocations answered from the idempotency cache
	SkillCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgate_skill_cache_hits_total",
			Help: "Total number of skill invocations served from cache",
		},
		[]string{"skill"},
	)

	// CircuitState is 0 closed, 1 half-open, 2 open
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skillgate_circuit_state",
			Help: "Circuit breaker state per skill (0 closed, 1 half-open, 2 open)",
		},
		[]string{"skill"},
	)

	// ErrorRate is the rolling-window error rate per skill
	ErrorRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skillgate_skill_error_rate",
			Help: "Error rate over the rolling escalation window",
		},
		[]string{"skill"},
	)

	// Halted is 1 while critical-error halt mode is active
	Halted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillgate_halted",
			Help: "Whether skill calls are halted after a critical error",
		},
	)

	// AlertsTotal tracks human alerts raised per escalation level
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgate_alerts_total",
			Help: "Total number of alerts raised",
		},
		[]string{"level", "code"},
	)

	// BudgetUsage tracks the share of the hourly call budget used per platform
	BudgetUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skillgate_platform_budget_usage",
			Help: "Fraction of the hourly platform call budget consumed",
		},
		[]string{"platform"},
	)

	// CacheRequests tracks cache lookups per cache and outcome
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgate_cache_requests_total",
			Help: "Total number of cache lookups",
		},
		[]string{"cache", "result"},
	)

	// CacheEvictions tracks entries dropped to honour MaxEntries
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgate_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
		[]string{"cache"},
	)

	// DBConnectionPoolUsage tracks the percentage of open connections in use
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillgate_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)

	// SinkErrors tracks observability sink failures
	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgate_observability_sink_errors_total",
			Help: "Total number of observability sink failures",
		},
		[]string{"sink"},
	)
)
