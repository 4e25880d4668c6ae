package model

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Progress tracks one extraction job. Each job owns its own Progress,
// so concurrent jobs never share status.
type Progress struct {
	mu    sync.Mutex
	state ProgressSnapshot
}

// ProgressSnapshot is a point-in-time copy of a job's progress
type ProgressSnapshot struct {
	JobID          string     `json:"job_id"`
	Running        bool       `json:"running"`
	Percent        int        `json:"progress"`
	Message        string     `json:"message"`
	TotalURLs      int        `json:"total_urls"`
	ProcessedURLs  int        `json:"processed_urls"`
	Added          int        `json:"added"`
	LastExtraction *time.Time `json:"last_extraction,omitempty"`
	OutputFile     string     `json:"output_file,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// NewProgress creates a progress tracker with a fresh job id
func NewProgress() *Progress {
	return &Progress{
		state: ProgressSnapshot{
			JobID:   ulid.Make().String(),
			Message: "Ready",
		},
	}
}

// JobID returns the job identifier
func (p *Progress) JobID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.JobID
}

// Start marks the job running over total URLs
func (p *Progress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Running = true
	p.state.Percent = 0
	p.state.TotalURLs = total
	p.state.ProcessedURLs = 0
	p.state.Error = ""
	p.state.Message = "Starting extraction..."
}

// Advance records one more processed URL
func (p *Progress) Advance(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.ProcessedURLs++
	if p.state.TotalURLs > 0 {
		p.state.Percent = p.state.ProcessedURLs * 100 / p.state.TotalURLs
	}
	p.state.Message = message
}

// Finish marks the job complete
func (p *Progress) Finish(message, outputFile string, added int, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Running = false
	p.state.Percent = 100
	p.state.Message = message
	p.state.OutputFile = outputFile
	p.state.Added = added
	p.state.LastExtraction = &at
}

// Fail marks the job failed
func (p *Progress) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Running = false
	p.state.Message = "Extraction failed"
	p.state.Error = err.Error()
}

// Snapshot returns a copy safe to serialize
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state
	if s.LastExtraction != nil {
		t := *s.LastExtraction
		s.LastExtraction = &t
	}
	return s
}
