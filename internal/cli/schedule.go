package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crisislog/internal/collection"
	"github.com/ppiankov/crisislog/internal/pipeline"
	"github.com/ppiankov/crisislog/internal/schedule"
)

var (
	scheduleRunNow   bool
	scheduleURLsFile string
)

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily extraction and backup on a schedule",
	Long: `Schedule runs two tasks until interrupted:

  extraction   reads the URL list, extracts, writes the daily report and
               merges into the main collection (default 06:00)
  backup       copies the main collection into the backups directory
               (default 23:00)

Both times are cron specs in the schedule section of the config file.

Example:
  crisislog schedule
  crisislog schedule --urls urls.txt --run-now`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().BoolVar(&scheduleRunNow, "run-now", false, "run the extraction once before waiting for the schedule")
	scheduleCmd.Flags().StringVar(&scheduleURLsFile, "urls", "urls.txt", "URL list for the scheduled extraction")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	deps, err := newRuntimeDeps()
	if err != nil {
		return err
	}
	defer func() { _ = deps.log.Sync() }()
	if cmd.Flags().Changed("urls") {
		deps.cfg.Schedule.URLsFile = scheduleURLsFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.NewPipeline(deps.cfg, pipeline.Deps{Logger: deps.log, Metrics: deps.metrics})
	coll := collection.FromConfig(deps.cfg, deps.metrics, deps.log)

	sched, err := newScheduler(deps, p, coll)
	if err != nil {
		return err
	}

	if scheduleRunNow {
		if err := sched.RunNow(schedule.ExtractionTask); err != nil {
			fmt.Fprintf(os.Stderr, "✗ extraction failed: %v\n", err)
		}
	}

	for _, name := range []string{schedule.ExtractionTask, schedule.BackupTask} {
		if next, ok := sched.Next(name); ok {
			fmt.Fprintf(os.Stderr, "  %-12s next run %s\n", name, next.Format(time.DateTime))
		}
	}
	sched.Run(ctx)
	return nil
}

// newScheduler registers the daily extraction and backup tasks
func newScheduler(deps *runtimeDeps, p *pipeline.Pipeline, coll *collection.Collection) (*schedule.Scheduler, error) {
	cfg := deps.cfg
	sched := schedule.New(deps.log, time.Local)

	extraction := schedule.Extraction(p, coll, cfg.Schedule.URLsFile, deps.log)
	if _, err := sched.Add(schedule.ExtractionTask, cfg.Schedule.ExtractionSpec, extraction); err != nil {
		return nil, err
	}
	if cfg.Output.BackupEnabled && cfg.Schedule.BackupSpec != "" {
		if _, err := sched.Add(schedule.BackupTask, cfg.Schedule.BackupSpec, schedule.Backup(coll)); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
