package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/ppiankov/crisislog/internal/collection"
	"github.com/ppiankov/crisislog/internal/merge"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/pipeline"
	"github.com/ppiankov/crisislog/internal/store"
	"github.com/ppiankov/crisislog/internal/worker"
)

var (
	batchWorkers  int
	batchDelay    time.Duration
	batchTimeout  time.Duration
	fetchTimeout  time.Duration
	batchMerge    bool
	batchNoReport bool
	batchOut      string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Extract incidents from a list of URLs",
	Long: `Batch processes a URL list:
- Read URLs from the input file (one per line, # comments allowed)
- Fetch them politely: a fixed delay between requests, or per-host limits
  when more than one worker is used
- A URL that fails never stops the batch; it is listed with the reason
- Write a timestamped daily report of the incidents found
- Optionally merge the incidents into the main collection

Example:
  crisislog batch urls.txt
  crisislog batch urls.txt --merge
  crisislog batch urls.txt --workers 4 --delay 1s --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchWorkers, "workers", 1, "number of concurrent workers (1 is strictly sequential)")
	batchCmd.Flags().DurationVar(&batchDelay, "delay", 2*time.Second, "minimum delay between requests")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for the batch")
	batchCmd.Flags().DurationVar(&fetchTimeout, "fetch-timeout", 30*time.Second, "timeout for one request")
	batchCmd.Flags().BoolVar(&batchMerge, "merge", false, "merge the incidents into the main collection")
	batchCmd.Flags().BoolVar(&batchNoReport, "no-report", false, "do not write the daily report")
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "also write the full batch result as JSON")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	deps, err := newRuntimeDeps()
	if err != nil {
		return err
	}
	defer func() { _ = deps.log.Sync() }()
	cfg := deps.cfg
	applyBatchFlags(cmd, cfg)

	urls, err := worker.ReadURLsFromFile(file)
	if err != nil {
		return fmt.Errorf("read URL list: %w", err)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs in %s", file)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  crisislog Batch Extraction\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d URLs)\n", file, len(urls))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Delay:        %v\n", cfg.RateLimiting.Delay)
	fmt.Fprintf(os.Stderr, "  Mode:         %s\n", cfg.Extraction.Mode)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	p := pipeline.NewPipeline(cfg, pipeline.Deps{Logger: deps.log, Metrics: deps.metrics})
	progress := model.NewProgress()

	fmt.Fprintf(os.Stderr, "⚙️  Processing URLs...\n")
	result := p.ExtractURLs(ctx, urls, progress)

	renderSummary(os.Stderr, result)

	if batchOut != "" {
		if err := writeJSON(batchOut, result); err != nil {
			return err
		}
	}

	switch {
	case batchMerge:
		opts := collection.Options{
			Path:           cfg.Output.Collection,
			BackupsDir:     cfg.Output.BackupsDir,
			Backup:         cfg.Output.BackupEnabled,
			TitleThreshold: cfg.Extraction.TitleSimilarity,
			Metrics:        deps.metrics,
			Logger:         deps.log,
		}
		if !batchNoReport {
			opts.ReportsDir = cfg.Output.ReportsDir
		}
		report, added, err := collection.New(opts).Persist(ctx, result)
		if err != nil {
			return fmt.Errorf("persist: %w", err)
		}
		if report != "" {
			fmt.Fprintf(os.Stderr, "  Report:     %s\n", report)
		}
		fmt.Fprintf(os.Stderr, "  Added:      %d new incidents to %s\n", added, cfg.Output.Collection)
	case !batchNoReport:
		incidents := merge.DedupeByTitle(result.Incidents, cfg.Extraction.TitleSimilarity)
		if len(incidents) > 0 {
			report, err := store.WriteReport(cfg.Output.ReportsDir, incidents, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "  Report:     %s\n", report)
		}
	}
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

func applyBatchFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Concurrency.Workers = batchWorkers
	}
	if flags.Changed("delay") {
		cfg.RateLimiting.Delay = batchDelay
	}
	if flags.Changed("fetch-timeout") {
		cfg.HTTP.Timeout = fetchTimeout
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
}

// renderSummary prints the batch totals and, when any URL failed, the error list
func renderSummary(w io.Writer, result model.BatchResult) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Batch Complete\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")

	stats := table.NewWriter()
	stats.SetOutputMirror(w)
	stats.SetStyle(table.StyleLight)
	stats.AppendHeader(table.Row{"URLs", "Successful", "Failed", "Incidents"})
	stats.AppendRow(table.Row{
		result.Stats.TotalURLs,
		result.Stats.SuccessfulURLs,
		result.Stats.FailedURLs,
		result.Stats.TotalIncidents,
	})
	stats.Render()

	if len(result.Incidents) > 0 {
		fmt.Fprintf(w, "\n")
		byType := table.NewWriter()
		byType.SetOutputMirror(w)
		byType.SetStyle(table.StyleLight)
		byType.AppendHeader(table.Row{"Type", "Incidents", "Deaths", "Injured"})
		for _, row := range typeTotals(result.Incidents) {
			byType.AppendRow(table.Row{row.kind, row.count, row.deaths, row.injured})
		}
		byType.Render()
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "\n")
		errs := table.NewWriter()
		errs.SetOutputMirror(w)
		errs.SetStyle(table.StyleLight)
		errs.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: 60, WidthMaxEnforcer: text.WrapHard},
		})
		errs.AppendHeader(table.Row{"URL", "Error"})
		for _, e := range result.Errors {
			errs.AppendRow(table.Row{e.URL, e.Error})
		}
		errs.Render()
	}
	fmt.Fprintf(w, "\n")
}

type typeTotal struct {
	kind    string
	count   int
	deaths  int
	injured int
}

// typeTotals groups incidents by type in first-seen order
func typeTotals(incidents []model.Incident) []typeTotal {
	index := make(map[string]int)
	var totals []typeTotal
	for _, inc := range incidents {
		i, ok := index[inc.Type]
		if !ok {
			i = len(totals)
			index[inc.Type] = i
			totals = append(totals, typeTotal{kind: inc.Type})
		}
		totals[i].count++
		totals[i].deaths += inc.Casualties.Deaths
		totals[i].injured += inc.Casualties.Injured
	}
	return totals
}
