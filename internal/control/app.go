package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/core/worker"
	"github.com/vietddude/skillgate/internal/escalation"
	"github.com/vietddude/skillgate/internal/health"
	"github.com/vietddude/skillgate/internal/infra/cache"
	"github.com/vietddude/skillgate/internal/infra/storage/postgres"
	"github.com/vietddude/skillgate/internal/invoke"
	"github.com/vietddude/skillgate/internal/observability"
	"github.com/vietddude/skillgate/internal/skills/fetchtrends"
	"github.com/vietddude/skillgate/internal/skills/fixture"
	"github.com/vietddude/skillgate/internal/skills/semanticfilter"
)

// App is the main application struct that wires skills to their
// infrastructure and manages the service lifecycle.
type App struct {
	cfg          Config
	fetch        *invoke.Invoker[domain.FetchTrendsInput, domain.FetchTrendsOutput]
	filter       *invoke.Invoker[domain.SemanticFilterInput, domain.SemanticFilterOutput]
	policy       *escalation.Policy
	budgets      *escalation.BudgetTracker
	ring         *observability.Ring
	healthMon    *health.Monitor
	healthServer *health.Server
	db           *postgres.DB
	records      *postgres.InvocationRepo
	redis        *cache.Redis
	log          *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	Port            int
	Redis           cache.RedisConfig
	Database        postgres.Config
	CacheMaxEntries int
	FetchTrends     fetchtrends.Config
	SemanticFilter  semanticfilter.Config
	Escalation      escalation.Config
	Budgets         map[domain.Platform]int
	RecentRecords   int
}

// Collaborators are the external systems behind the skills. Nil fields use
// the built-in fixtures.
type Collaborators struct {
	Source  fetchtrends.Source
	Scorer  semanticfilter.Scorer
	Alerter escalation.Alerter
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg Config, collab Collaborators) (*App, error) {
	if collab.Source == nil {
		collab.Source = fixture.NewStaticSource(nil)
	}
	if collab.Scorer == nil {
		collab.Scorer = fixture.KeywordScorer{}
	}
	if cfg.Budgets == nil {
		cfg.Budgets = escalation.DefaultBudgets
	}

	a := &App{cfg: cfg, log: slog.Default()}

	// 1. Caches
	var idempotency, scores invoke.Cache
	if cfg.Redis.URL != "" {
		rdb, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, using in-memory caches", "error", err)
		} else {
			a.redis = rdb
			idempotency = rdb.Named("idempotency")
			scores = rdb.Named("scores")
			slog.Info("Using Redis caches")
		}
	}
	if idempotency == nil {
		idempotency = cache.NewMemory(cache.Options{Name: "idempotency", MaxEntries: cfg.CacheMaxEntries})
		scores = cache.NewMemory(cache.Options{Name: "scores", MaxEntries: cfg.CacheMaxEntries})
		slog.Info("Using in-memory caches")
	}

	// 2. Observability sinks
	a.policy = escalation.NewPolicy(cfg.Escalation, collab.Alerter)
	a.budgets = escalation.NewBudgetTracker(cfg.Budgets)
	a.ring = observability.NewRing(cfg.RecentRecords)
	metricsSink := observability.NewMetricsSink()

	sinks := []observability.Sink{
		observability.NewLogSink(nil),
		metricsSink,
		a.ring,
		a.policy,
	}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			a.closeRedis()
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			a.closeRedis()
			return nil, err
		}
		a.db = db
		a.records = postgres.NewInvocationRepo(db)
		sinks = append(sinks, observability.NewStoreSink(a.records, 0))
		slog.Info("Recording invocations to PostgreSQL")
	}

	recorder := observability.NewRecorder(sinks...)

	// 3. Skills
	a.fetch = invoke.New[domain.FetchTrendsInput, domain.FetchTrendsOutput](
		fetchtrends.New(cfg.FetchTrends, collab.Source, fetchtrends.WithBudget(a.budgets)),
		invoke.WithCache(idempotency),
		invoke.WithObserver(recorder),
	)
	a.filter = invoke.New[domain.SemanticFilterInput, domain.SemanticFilterOutput](
		semanticfilter.New(cfg.SemanticFilter, collab.Scorer, semanticfilter.WithScoreCache(scores)),
		invoke.WithCache(idempotency),
		invoke.WithObserver(recorder),
	)

	// 4. Health
	a.healthMon = health.NewMonitor(a.policy, a.budgets, a.ring, metricsSink)
	if a.redis != nil {
		a.healthMon.AddDependency("redis", a.redis.Ping)
	}
	if a.db != nil {
		a.healthMon.AddDependency("postgres", a.db.Health)
	}
	a.healthServer = health.NewServer(a.healthMon, cfg.Port)

	return a, nil
}

// FetchTrends runs the fetchTrends skill under the escalation policy.
func (a *App) FetchTrends(
	ctx context.Context,
	agentID string,
	in domain.FetchTrendsInput,
) (invoke.Result[domain.FetchTrendsOutput], error) {
	return escalation.Guard(ctx, a.policy, fetchtrends.Name,
		func(ctx context.Context) (invoke.Result[domain.FetchTrendsOutput], error) {
			return a.fetch.Invoke(ctx, agentID, in)
		})
}

// SemanticFilter runs the semanticFilter skill under the escalation policy.
func (a *App) SemanticFilter(
	ctx context.Context,
	agentID string,
	in domain.SemanticFilterInput,
) (invoke.Result[domain.SemanticFilterOutput], error) {
	return escalation.Guard(ctx, a.policy, semanticfilter.Name,
		func(ctx context.Context) (invoke.Result[domain.SemanticFilterOutput], error) {
			return a.filter.Invoke(ctx, agentID, in)
		})
}

// Policy returns the escalation policy, e.g. to resume after a halt.
func (a *App) Policy() *escalation.Policy { return a.policy }

// Budgets returns the platform budget tracker.
func (a *App) Budgets() *escalation.BudgetTracker { return a.budgets }

// Health returns the current health report.
func (a *App) Health(ctx context.Context) health.HealthReport {
	return a.healthMon.CheckHealth(ctx)
}

// Start starts background services.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
		go worker.NewPruner(a.cfg.Database.Retention, a.records).Start(ctx)
	}

	a.log.Info("Skill gateway started", "port", a.cfg.Port)
	return nil
}

// Stop shuts down the health server and closes connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping skill gateway...")

	err := a.healthServer.Stop(ctx)

	a.closeRedis()
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			a.log.Warn("Failed to close database", "error", cerr)
		}
	}
	return err
}

func (a *App) closeRedis() {
	if a.redis == nil {
		return
	}
	if err := a.redis.Close(); err != nil {
		a.log.Warn("Failed to close Redis", "error", err)
	}
}

// shutdownTimeout bounds Stop when called from the CLI.
const shutdownTimeout = 15 * time.Second

// ShutdownContext returns a context for Stop.
func ShutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), shutdownTimeout)
}
