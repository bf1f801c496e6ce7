// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-assistant/internal/report"
	"github.com/pdiddy/research-assistant/internal/store"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect saved research runs (list, show, search, export)",
	Long: `Results manages the local SQLite database of completed research runs.
Use subcommands to list runs, render one as a report, search topics with
full-text queries, or export a run for downstream tooling.`,
}

// --- list subcommand ---

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE:  runResultsList,
}

func runResultsList(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-44s  %-6s  %-16s  %s\n",
		"Run ID", "Question", "Topics", "Created", "Completed")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 124))

	for _, r := range runs {
		question := r.RootQuestion
		if len(question) > 44 {
			question = question[:41] + "..."
		}
		completed := "-"
		if !r.CompletedAt.IsZero() {
			completed = r.CompletedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-44s  %-6d  %-16s  %s\n",
			r.RunID, question, r.Topics, r.CreatedAt.Format("2006-01-02 15:04"), completed)
	}

	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

// --- show subcommand ---

var resultsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Render a saved run as a Markdown report",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsShow,
}

func runResultsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := st.GetRun(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Print(report.Render(result))
	return nil
}

// --- search subcommand ---

var resultsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over stored topics and summaries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResultsSearch,
}

func runResultsSearch(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	hits, err := st.SearchTopics(context.Background(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-30s  %s\n", "Run ID", "Topic", "Summary")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))

	for _, h := range hits {
		topic := h.TopicText
		if len(topic) > 30 {
			topic = topic[:27] + "..."
		}
		summary := h.TopicSummary
		if len(summary) > 50 {
			summary = summary[:47] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-30s  %s\n", h.RunID, topic, summary)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(hits))
	return nil
}

// --- export subcommand ---

var resultsExportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Export a saved run as YAML, JSON, or Markdown",
	Long: `Export writes one saved run to stdout or --output. YAML and JSON carry
the full stored structure; markdown renders the same report as show.`,
	Args: cobra.ExactArgs(1),
	RunE: runResultsExport,
}

func runResultsExport(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	output, _ := cmd.Flags().GetString("output")
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	ctx := context.Background()
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "yaml", "":
		err = st.ExportYAML(ctx, args[0], w)
	case "json":
		err = st.ExportJSON(ctx, args[0], w)
	case "markdown":
		var result types.ResearchResult
		result, err = st.GetRun(ctx, args[0])
		if err == nil {
			_, err = io.WriteString(w, report.Render(result))
		}
	default:
		return fmt.Errorf("unsupported format %q: use yaml, json, or markdown", format)
	}
	if err != nil {
		return err
	}

	if output != "" {
		fmt.Printf("Exported to %s\n", output)
	}
	return nil
}

// --- shared helpers ---

// openStore opens the results database, honoring the --db flag over the
// configured path.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = viper.GetString("store.database_path")
	}
	return store.NewStore(types.StoreConfig{DatabasePath: dbPath})
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	resultsCmd.PersistentFlags().String("db", "", "results database path (overrides config)")

	// List flags.
	resultsListCmd.Flags().Bool("json", false, "output runs as JSON")

	// Search flags.
	resultsSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	resultsSearchCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	resultsExportCmd.Flags().String("format", "yaml", "export format: yaml, json, or markdown")
	resultsExportCmd.Flags().String("output", "", "write to a file instead of stdout")

	// Wire subcommands.
	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsSearchCmd)
	resultsCmd.AddCommand(resultsExportCmd)

	rootCmd.AddCommand(resultsCmd)
}
