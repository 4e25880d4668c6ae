package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crisislog/internal/collection"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/pipeline"
)

var (
	extractText   string
	extractFile   string
	extractDigest bool
	extractOut    string
	extractMerge  bool
	extractMode   string
	noCache       bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [url]",
	Short: "Extract incidents from text, a text file or one URL",
	Long: `Extract incident records from a single input and print them as JSON.

Exactly one input is required:
  --text     free text; every qualifying paragraph or chunk becomes an incident
  --file     a text file, treated like --text
  <url>      an article; the whole article becomes one incident, or one per
             qualifying chunk when the article as a whole is not usable

With --digest, a URL is reduced to its incident-relevant paragraphs and
produces at most one short record (humanitarian report pages).

Example:
  crisislog extract https://www.aljazeera.com/news/2024/3/10/example
  crisislog extract --text "At least 25 people were killed in Rafah"
  crisislog extract --file notes.txt --out incidents.json --merge`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractText, "text", "", "free text to extract from")
	extractCmd.Flags().StringVar(&extractFile, "file", "", "text file to extract from")
	extractCmd.Flags().BoolVar(&extractDigest, "digest", false, "digest mode: one short record from the relevant paragraphs")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "write JSON to this file instead of stdout")
	extractCmd.Flags().BoolVar(&extractMerge, "merge", false, "merge the incidents into the main collection")
	extractCmd.Flags().StringVar(&extractMode, "mode", "", "pattern set (simple, enhanced)")
	extractCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetch)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	inputs := 0
	for _, set := range []bool{extractText != "", extractFile != "", len(args) == 1} {
		if set {
			inputs++
		}
	}
	if inputs != 1 {
		return fmt.Errorf("provide exactly one of --text, --file or a URL")
	}
	if extractDigest && len(args) == 0 {
		return fmt.Errorf("--digest needs a URL")
	}

	deps, err := newRuntimeDeps()
	if err != nil {
		return err
	}
	defer func() { _ = deps.log.Sync() }()
	applyExtractFlags(cmd, deps.cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.NewPipeline(deps.cfg, pipeline.Deps{Logger: deps.log, Metrics: deps.metrics})

	var incidents []model.Incident
	switch {
	case extractText != "":
		incidents = p.ExtractText(extractText)
	case extractFile != "":
		data, err := os.ReadFile(extractFile)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		incidents = p.ExtractText(string(data))
	case extractDigest:
		inc, err := p.ExtractDigest(ctx, args[0])
		if err != nil {
			return describeFailure(args[0], err)
		}
		if inc != nil {
			incidents = []model.Incident{*inc}
		}
	default:
		incidents, err = p.ExtractURL(ctx, args[0])
		if err != nil {
			return describeFailure(args[0], err)
		}
	}
	if incidents == nil {
		incidents = []model.Incident{}
	}

	if err := writeJSON(extractOut, incidents); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ %d incidents extracted\n", len(incidents))

	if extractMerge && len(incidents) > 0 {
		coll := collection.FromConfig(deps.cfg, deps.metrics, deps.log)
		added, err := coll.Merge(ctx, incidents)
		if err != nil {
			return fmt.Errorf("merge: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ %d new incidents added to %s\n", added, coll.Path())
	}
	return nil
}

func applyExtractFlags(cmd *cobra.Command, cfg *model.Config) {
	if cmd.Flags().Changed("mode") {
		cfg.Extraction.Mode = extractMode
	}
	if cmd.Flags().Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
}

// describeFailure turns a fetch failure into the user-facing error record text
func describeFailure(url string, err error) error {
	rec := pipeline.NewErrorRecord(url, err)
	return fmt.Errorf("%s: %s", rec.Error, rec.Description)
}

// writeJSON writes v indented to path, or to stdout when path is empty
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
	return nil
}
