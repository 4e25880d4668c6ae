package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/crisislog/internal/api"
	"github.com/ppiankov/crisislog/internal/collection"
	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/pipeline"
)

var (
	serveAddr     string
	serveSchedule bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction HTTP API",
	Long: `Serve exposes extraction over HTTP:

  POST /api/v1/extract    {"text": ...} | {"url": ...} | {"urls": [...]}
  POST /api/v1/jobs       {"urls": [...]}  start a background batch
  GET  /api/v1/jobs/:id   progress and result of a batch
  GET  /api/v1/status     progress of the latest batch
  GET  /health
  GET  /metrics

A finished background batch is written as a daily report and merged into
the main collection. With --schedule the daily extraction and backup run
in the same process.

Example:
  crisislog serve
  crisislog serve --addr :8080 --schedule`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":5000", "listen address")
	serveCmd.Flags().BoolVar(&serveSchedule, "schedule", false, "also run the scheduled extraction and backup")
}

func runServe(cmd *cobra.Command, args []string) error {
	deps, err := newRuntimeDeps()
	if err != nil {
		return err
	}
	defer func() { _ = deps.log.Sync() }()
	cfg := deps.cfg
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.NewPipeline(cfg, pipeline.Deps{Logger: deps.log, Metrics: deps.metrics})
	coll := collection.FromConfig(cfg, deps.metrics, deps.log)

	jobs := api.NewJobs(p, coll.Persist, deps.metrics, deps.log)
	router := api.NewRouter(api.NewHandler(p, jobs, deps.log), deps.log, prometheus.DefaultGatherer, version)
	server := api.NewServer(cfg.Server.Addr, router, jobs, deps.log)

	var wg sync.WaitGroup
	if serveSchedule {
		sched, err := newScheduler(deps, p, coll)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	}

	err = server.Run(ctx)
	if err != nil {
		deps.log.Error("server stopped", logger.Error(err))
		stop()
	}
	wg.Wait()
	return err
}
