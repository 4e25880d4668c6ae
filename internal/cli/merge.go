package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crisislog/internal/collection"
	"github.com/ppiankov/crisislog/internal/merge"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/store"
)

var (
	dedupeTitles bool
	mergeBackup  bool
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge <collection> <incoming...>",
	Short: "Merge incident files into a collection",
	Long: `Merge one or more incident files (CSV, JSON or SQLite) into a collection.

Records are matched by id. An incoming record whose id is already in the
collection is dropped; existing records are never modified. The collection
is created when it does not exist; its format follows the file extension.

Example:
  crisislog merge incidents.csv data_files/daily_reports/*.csv
  crisislog merge incidents.db report.json --dedupe-titles`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().BoolVar(&dedupeTitles, "dedupe-titles", false, "drop incoming records whose title is near-identical to an earlier incoming one")
	mergeCmd.Flags().BoolVar(&mergeBackup, "backup", false, "back up the collection before merging")
}

func runMerge(cmd *cobra.Command, args []string) error {
	deps, err := newRuntimeDeps()
	if err != nil {
		return err
	}
	defer func() { _ = deps.log.Sync() }()

	ctx := context.Background()

	var incoming []model.Incident
	for _, path := range args[1:] {
		incidents, err := loadFile(ctx, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d incidents\n", path, len(incidents))
		incoming = append(incoming, incidents...)
	}
	if dedupeTitles {
		before := len(incoming)
		incoming = merge.DedupeByTitle(incoming, deps.cfg.Extraction.TitleSimilarity)
		fmt.Fprintf(os.Stderr, "✓ %d near-duplicate titles dropped\n", before-len(incoming))
	}

	coll := collection.New(collection.Options{
		Path:       args[0],
		BackupsDir: deps.cfg.Output.BackupsDir,
		Backup:     mergeBackup,
		Metrics:    deps.metrics,
		Logger:     deps.log,
	})
	added, err := coll.Merge(ctx, incoming)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ %d of %d incidents added to %s\n", added, len(incoming), args[0])
	return nil
}

// loadFile reads an incident file of any supported format
func loadFile(ctx context.Context, path string) ([]model.Incident, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close(st) }()

	incidents, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return incidents, nil
}
