package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/analyze"
	"github.com/pdiddy/research-assistant/internal/collect"
	"github.com/pdiddy/research-assistant/internal/filter"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/pipeline"
	"github.com/pdiddy/research-assistant/internal/plan"
	"github.com/pdiddy/research-assistant/internal/ratelimit"
	"github.com/pdiddy/research-assistant/internal/report"
	"github.com/pdiddy/research-assistant/internal/store"
)

var researchCmd = &cobra.Command{
	Use:   "research [question]",
	Short: "Run the research pipeline on a question",
	Long: `Research decomposes the question into prioritized topics, generates an
arXiv query per topic, collects candidate papers, filters them for relevance
in two passes (titles, then abstracts), and analyzes the survivors. The run
is saved to the results database and a Markdown report is written to stdout
or --output.

Use --from-run to continue from a previous run: the new root question is one
of the proposed directions recorded in that run.`,
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if topics, _ := cmd.Flags().GetInt("topics"); topics > 0 {
		cfg.Pipeline.Topics = topics
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Pipeline.Workers = workers
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	question, err := resolveQuestion(ctx, cmd, args, st)
	if err != nil {
		return err
	}

	backend, err := llm.NewBackend(cfg.Generation)
	if err != nil {
		return err
	}
	client := llm.NewClient(backend, ratelimit.NewLimiter(cfg.RateLimit.TokensPerMinute), llm.Retrier{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
	}, logger)

	httpClient := &http.Client{Timeout: cfg.Source.Timeout}
	source := &collect.ArxivSource{Client: httpClient, UserAgent: cfg.Source.UserAgent}
	fetcher := &collect.HTTPFetcher{Client: httpClient, UserAgent: cfg.Source.UserAgent, MaxBytes: cfg.Source.FetchMaxBytes}

	orch := pipeline.NewOrchestrator(
		plan.NewPlanner(client, cfg.Retry.MaxAttempts, logger),
		collect.NewCollector(source, cfg.Source.ResultsPerOrder, logger),
		filter.NewFilter(client, fetcher, cfg.Pipeline.ShortlistSize, cfg.Pipeline.FinalSize, logger),
		analyze.NewAnalyzer(client, logger),
		cfg.Pipeline,
		logger,
	)

	result, err := orch.Run(ctx, question)
	if err != nil {
		return fmt.Errorf("research run: %w", err)
	}

	calls, tokens := client.Stats()
	logger.Info("generation usage", zap.Int64("calls", calls), zap.Int64("total_tokens", tokens))

	if err := st.SaveRun(ctx, result); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Run %s saved\n", result.RunID)

	rendered := report.Render(result)
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := os.WriteFile(output, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", output)
		return nil
	}
	fmt.Print(rendered)
	return nil
}

// resolveQuestion returns the root question: the positional arguments joined,
// or a proposed direction recorded in a previous run when --from-run is set.
func resolveQuestion(ctx context.Context, cmd *cobra.Command, args []string, st *store.Store) (string, error) {
	fromRun, _ := cmd.Flags().GetString("from-run")
	if fromRun == "" {
		if len(args) == 0 {
			return "", fmt.Errorf("provide a research question or --from-run")
		}
		return strings.Join(args, " "), nil
	}
	if len(args) > 0 {
		return "", fmt.Errorf("provide either a question or --from-run, not both")
	}

	prev, err := st.GetRun(ctx, fromRun)
	if err != nil {
		return "", err
	}
	var directions []string
	for _, analysis := range prev.Analyses {
		if analysis.NewDirection != "" {
			directions = append(directions, analysis.NewDirection)
		}
	}
	if len(directions) == 0 {
		return "", fmt.Errorf("run %s recorded no proposed directions", fromRun)
	}
	n, _ := cmd.Flags().GetInt("direction")
	if n < 0 || n >= len(directions) {
		return "", fmt.Errorf("direction %d out of range: run %s has %d", n, fromRun, len(directions))
	}
	fmt.Fprintf(os.Stderr, "Continuing from run %s, direction %d: %s\n", fromRun, n, directions[n])
	return directions[n], nil
}

func init() {
	researchCmd.Flags().Int("topics", 0, "number of sub-topics to plan (0 = config default)")
	researchCmd.Flags().Int("workers", 0, "concurrent topic workers (0 = config default)")
	researchCmd.Flags().String("output", "", "write the Markdown report to a file instead of stdout")
	researchCmd.Flags().String("db", "", "results database path (overrides config)")
	researchCmd.Flags().String("from-run", "", "continue from a previous run's proposed direction")
	researchCmd.Flags().Int("direction", 0, "index of the proposed direction to follow (with --from-run)")

	rootCmd.AddCommand(researchCmd)
}
