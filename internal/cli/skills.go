package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/skillgate/internal/control"
	"github.com/vietddude/skillgate/internal/core/domain"
	"github.com/vietddude/skillgate/internal/taxonomy"
)

var (
	agentID string

	fetchPlatform string
	fetchLimit    int
	fetchWindow   string
	fetchMinEng   int64
	fetchExclude  []string

	filterFile      string
	filterGoals     []string
	filterThreshold float64
	filterModel     string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run fetchTrends once and print the result",
	Run:   runFetch,
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Run semanticFilter over a file of trends and print the result",
	Run:   runFilter,
}

func init() {
	for _, c := range []*cobra.Command{fetchCmd, filterCmd} {
		c.Flags().StringVar(&agentID, "agent", "cli", "agent id recorded with the invocation")
	}

	fetchCmd.Flags().StringVar(&fetchPlatform, "platform", "", "platform to fetch from")
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", domain.DefaultFetchLimit, "maximum trends returned")
	fetchCmd.Flags().StringVar(&fetchWindow, "window", "", "time window such as 24h or 7d")
	fetchCmd.Flags().Int64Var(&fetchMinEng, "min-engagement", domain.DefaultMinEngagement, "engagement score floor")
	fetchCmd.Flags().StringSliceVar(&fetchExclude, "exclude", nil, "topics to exclude")
	_ = fetchCmd.MarkFlagRequired("platform")

	filterCmd.Flags().StringVar(&filterFile, "file", "", "JSON file with a trend array or a fetch result")
	filterCmd.Flags().StringSliceVar(&filterGoals, "goal", nil, "campaign goal, repeatable")
	filterCmd.Flags().Float64Var(&filterThreshold, "threshold", domain.DefaultRelevanceThreshold, "relevance threshold")
	filterCmd.Flags().StringVar(&filterModel, "model", string(domain.ModelPrimary), "scoring model")
	_ = filterCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(fetchCmd, filterCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	in := domain.FetchTrendsInput{
		Platform:      domain.Platform(fetchPlatform),
		Limit:         &fetchLimit,
		MinEngagement: &fetchMinEng,
		ExcludeTopics: fetchExclude,
	}
	if fetchWindow != "" {
		in.TimeWindow = &fetchWindow
	}

	withApp(func(ctx context.Context, app *control.App) (any, *taxonomy.ErrorRecord, error) {
		res, err := app.FetchTrends(ctx, agentID, in)
		return res.Output, res.Notice, err
	})
}

func runFilter(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(filterFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", filterFile, err)
		os.Exit(1)
	}
	trends, err := decodeTrends(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	in := domain.SemanticFilterInput{
		Trends:             trends,
		CampaignGoals:      filterGoals,
		RelevanceThreshold: &filterThreshold,
		Model:              domain.Model(filterModel),
	}
	withApp(func(ctx context.Context, app *control.App) (any, *taxonomy.ErrorRecord, error) {
		res, err := app.SemanticFilter(ctx, agentID, in)
		return res.Output, res.Notice, err
	})
}

// decodeTrends accepts a bare trend array or a fetchTrends result.
func decodeTrends(data []byte) ([]domain.TrendData, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var trends []domain.TrendData
		if err := json.Unmarshal(data, &trends); err != nil {
			return nil, fmt.Errorf("failed to decode trends: %w", err)
		}
		return trends, nil
	}
	var out domain.FetchTrendsOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode fetch result: %w", err)
	}
	return out.Trends, nil
}

// withApp builds the application without its health server, runs fn and
// prints the output, or the error envelope on failure.
func withApp(fn func(context.Context, *control.App) (any, *taxonomy.ErrorRecord, error)) {
	cfg := loadConfig(true)
	ctx := context.Background()

	app, err := control.NewApp(ctx, controlConfig(cfg), control.Collaborators{})
	if err != nil {
		slog.Error("Failed to initialize skill gateway", "error", err)
		os.Exit(1)
	}
	stopCtx, cancel := control.ShutdownContext()
	defer cancel()

	out, notice, runErr := fn(ctx, app)
	if err := app.Stop(stopCtx); err != nil {
		slog.Warn("Error during shutdown", "error", err)
	}

	data, code := render(out, notice, runErr)
	if data != nil {
		fmt.Println(string(data))
	}
	if code != 0 {
		os.Exit(code)
	}
}

// render formats a skill result and returns the exit code. Partial results
// print the output together with the notice and exit 2.
func render(out any, notice *taxonomy.ErrorRecord, runErr error) ([]byte, int) {
	var (
		data []byte
		err  error
		code int
	)
	switch rec, ok := taxonomy.As(runErr); {
	case runErr != nil && ok:
		data, err = json.MarshalIndent(rec.Envelope(), "", "  ")
		code = 1
	case runErr != nil:
		fmt.Fprintln(os.Stderr, runErr)
		return nil, 1
	case notice != nil:
		data, err = json.MarshalIndent(map[string]any{
			"output": out,
			"notice": notice.Envelope().Error,
		}, "", "  ")
		code = 2
	default:
		data, err = json.MarshalIndent(out, "", "  ")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, 1
	}
	return data, code
}
