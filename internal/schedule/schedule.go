// Package schedule runs the daily extraction and backup on cron specs.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ppiankov/crisislog/internal/logger"
)

// Task is one scheduled unit of work
type Task func(ctx context.Context) error

// Scheduler registers named tasks on standard five-field cron specs.
// A task still running when its next tick arrives is skipped.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	log    logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
	tasks   map[string]Task
}

// New creates a scheduler. loc nil means local time.
func New(log logger.Logger, loc *time.Location) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log: log}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		parser:  parser,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
		tasks:   make(map[string]Task),
	}
}

// Add registers task under name and returns its next run time.
// Registering a name again replaces the earlier task.
func (s *Scheduler) Add(name, spec string, task Task) (time.Time, error) {
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q for %s: %w", spec, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}
	id := s.cron.Schedule(sched, cron.FuncJob(func() { s.run(name, task) }))
	s.entries[name] = id
	s.tasks[name] = task

	next := sched.Next(time.Now())
	s.log.Info("task scheduled",
		logger.String("task", name),
		logger.String("schedule", spec),
		logger.String("next_run", next.Format("2006-01-02 15:04:05")))
	return next, nil
}

// RunNow runs a registered task synchronously
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	return s.run(name, task)
}

// Next returns the next run time of a registered task
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(id)
	if entry.Next.IsZero() {
		return entry.Schedule.Next(time.Now()), true
	}
	return entry.Next, true
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running tasks to return.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.log.Info("scheduler started")
	<-ctx.Done()
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(name string, task Task) error {
	start := time.Now()
	s.log.Info("task started", logger.String("task", name))
	if err := task(s.ctx); err != nil {
		s.log.Error("task failed",
			logger.String("task", name),
			logger.Duration("duration", time.Since(start)),
			logger.Error(err))
		return err
	}
	s.log.Info("task finished",
		logger.String("task", name),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, logger.String("details", fmt.Sprint(keysAndValues...)))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, logger.Error(err), logger.String("details", fmt.Sprint(keysAndValues...)))
}
