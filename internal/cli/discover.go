package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crisislog/internal/discover"
	"github.com/ppiankov/crisislog/internal/pipeline"
)

var (
	discoverLimit    int
	discoverOut      string
	discoverKeywords []string
	discoverJSON     bool
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover <listing-or-feed-url>",
	Short: "Find relevant article URLs on a listing page or feed",
	Long: `Discover reads a news listing page or an RSS/Atom feed and prints the
article URLs that mention the crisis region, one per line.

Tracking parameters are removed and duplicates dropped. The output can be
fed straight into "crisislog batch".

Example:
  crisislog discover https://www.aljazeera.com/where/palestine/
  crisislog discover https://www.aljazeera.com/xml/rss/all.xml --limit 20
  crisislog discover https://www.aljazeera.com/where/palestine/ --out urls.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().IntVar(&discoverLimit, "limit", discover.DefaultLimit, "maximum number of links")
	discoverCmd.Flags().StringVarP(&discoverOut, "out", "o", "", "write the URL list to this file")
	discoverCmd.Flags().StringSliceVar(&discoverKeywords, "keyword", nil, "relevance keyword (repeatable; default: region keywords)")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "print links with titles and dates as JSON")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	deps, err := newRuntimeDeps()
	if err != nil {
		return err
	}
	defer func() { _ = deps.log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := pipeline.NewFetcher(deps.cfg.HTTP,
		pipeline.WithFetchLogger(deps.log),
		pipeline.WithFetchMetrics(deps.metrics))
	d := discover.New(fetcher, discover.Options{
		Keywords: discoverKeywords,
		Limit:    discoverLimit,
		Logger:   deps.log,
	})

	links, err := d.Discover(ctx, args[0])
	if err != nil {
		return describeFailure(args[0], err)
	}
	fmt.Fprintf(os.Stderr, "✓ %d relevant links found\n", len(links))

	if discoverJSON {
		return writeJSON(discoverOut, links)
	}

	var b strings.Builder
	for _, link := range links {
		b.WriteString(link.URL)
		b.WriteByte('\n')
	}
	if discoverOut == "" {
		_, err = fmt.Print(b.String())
		return err
	}
	if err := os.WriteFile(discoverOut, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", discoverOut, err)
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", discoverOut)
	return nil
}
