package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/metrics"
	"github.com/ppiankov/crisislog/internal/model"
)

// ErrJobRunning is returned when a batch job is already in progress
var ErrJobRunning = errors.New("extraction already in progress")

// BatchExtractor runs a URL batch, reporting into progress
type BatchExtractor interface {
	ExtractURLs(ctx context.Context, urls []string, progress *model.Progress) model.BatchResult
}

// Finisher persists a completed batch and reports where it went and how
// many incidents were new
type Finisher func(ctx context.Context, result model.BatchResult) (outputFile string, added int, err error)

// Job is one asynchronous batch extraction
type Job struct {
	Progress *model.Progress
	URLs     []string

	mu     sync.Mutex
	result *model.BatchResult
	done   chan struct{}
}

// Result returns the batch result once the job has finished
func (j *Job) Result() (model.BatchResult, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.result == nil {
		return model.BatchResult{}, false
	}
	return *j.result, true
}

// Done is closed when the job finishes
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Jobs runs batch extractions one at a time and keeps their progress by id
type Jobs struct {
	extractor BatchExtractor
	finish    Finisher
	metrics   *metrics.Metrics
	clock     func() time.Time
	log       logger.Logger

	// ctx outlives individual requests; cancelled by Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[string]*Job
	latest *Job
}

// NewJobs creates a job registry. finish may be nil.
func NewJobs(extractor BatchExtractor, finish Finisher, m *metrics.Metrics, log logger.Logger) *Jobs {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Jobs{
		extractor: extractor,
		finish:    finish,
		metrics:   m,
		clock:     time.Now,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*Job),
	}
}

// Start launches a batch over urls in the background
func (j *Jobs) Start(urls []string) (*Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.latest != nil && j.latest.Progress.Snapshot().Running {
		return nil, ErrJobRunning
	}
	if j.ctx.Err() != nil {
		return nil, fmt.Errorf("job registry closed: %w", j.ctx.Err())
	}

	job := &Job{Progress: model.NewProgress(), URLs: urls, done: make(chan struct{})}
	job.Progress.Start(len(urls))
	j.jobs[job.Progress.JobID()] = job
	j.latest = job

	j.wg.Add(1)
	go j.run(job)
	return job, nil
}

func (j *Jobs) run(job *Job) {
	defer j.wg.Done()
	defer close(job.done)

	j.metrics.JobStarted()
	defer j.metrics.JobFinished()

	id := job.Progress.JobID()
	j.log.Info("job started", logger.String("job_id", id), logger.Int("urls", len(job.URLs)))

	result := j.extractor.ExtractURLs(j.ctx, job.URLs, job.Progress)
	job.mu.Lock()
	job.result = &result
	job.mu.Unlock()

	var (
		outputFile string
		added      int
		err        error
	)
	if j.finish != nil {
		outputFile, added, err = j.finish(j.ctx, result)
	}
	if err != nil {
		j.log.Error("job failed", logger.String("job_id", id), logger.Error(err))
		job.Progress.Fail(err)
		return
	}

	job.Progress.Finish(
		fmt.Sprintf("Extraction completed: %d incidents found, %d added", len(result.Incidents), added),
		outputFile, added, j.clock())
	j.log.Info("job finished",
		logger.String("job_id", id),
		logger.Int("incidents", len(result.Incidents)),
		logger.Int("errors", len(result.Errors)),
		logger.Int("added", added))
}

// Get returns a job by id
func (j *Jobs) Get(id string) (*Job, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	job, ok := j.jobs[id]
	return job, ok
}

// Latest returns the most recently started job
func (j *Jobs) Latest() (*Job, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.latest, j.latest != nil
}

// Shutdown cancels running jobs and waits for them to record their outcome
func (j *Jobs) Shutdown() {
	j.cancel()
	j.wg.Wait()
}
