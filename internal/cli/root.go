package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/skillgate/internal/control"
	"github.com/vietddude/skillgate/internal/core/config"
	"github.com/vietddude/skillgate/internal/skills/fetchtrends"
	"github.com/vietddude/skillgate/internal/skills/semanticfilter"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "skillgate",
	Short: "Skill gateway for trend discovery agents",
	Long: `Skillgate runs the fetchTrends and semanticFilter skills behind a shared
error taxonomy, retry and fallback policy, and escalation guard.`,
	Run: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway and its health server",
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads the config file and sets up logging. With optional set, a
// missing file yields the defaults.
func loadConfig(optional bool) *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil && optional && errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Logging.Level == "error":
		slogLevel = slog.LevelError
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

// controlConfig maps file configuration onto the application config.
func controlConfig(cfg *config.AppConfig) control.Config {
	ft := cfg.Skills.FetchTrends
	sf := cfg.Skills.SemanticFilter
	return control.Config{
		Port:            cfg.Server.Port,
		Redis:           cfg.Redis,
		Database:        cfg.Database,
		CacheMaxEntries: cfg.Cache.MaxEntries,
		FetchTrends: fetchtrends.Config{
			Timeout:        ft.Timeout,
			AttemptTimeout: ft.AttemptTimeout,
			BackoffBase:    ft.BackoffBase,
			CacheTTL:       ft.CacheTTL,
			MarketAsset:    ft.MarketAsset,
		},
		SemanticFilter: semanticfilter.Config{
			Timeout:        sf.Timeout,
			AttemptTimeout: sf.AttemptTimeout,
			BackoffBase:    sf.BackoffBase,
			CacheTTL:       sf.CacheTTL,
			ScoreTTL:       sf.ScoreTTL,
			BatchSize:      sf.BatchSize,
			Concurrency:    sf.Concurrency,
		},
		Escalation: cfg.Escalation,
		Budgets:    cfg.PlatformBudgets(),
	}
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := control.NewApp(ctx, controlConfig(cfg), control.Collaborators{})
	if err != nil {
		slog.Error("Failed to initialize skill gateway", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start skill gateway", "error", err)
		os.Exit(1)
	}

	slog.Info("Skill gateway running", "config", cfgPath)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := control.ShutdownContext()
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
