// Package api exposes the extraction pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/pipeline"
)

// maxSyncURLs bounds the URL list accepted by the synchronous extract endpoint
const maxSyncURLs = 20

// Extractor is the pipeline surface the handlers need
type Extractor interface {
	BatchExtractor
	ExtractText(text string) []model.Incident
	ExtractURL(ctx context.Context, url string) ([]model.Incident, error)
}

// ExtractRequest carries exactly one of Text, URL or URLs
type ExtractRequest struct {
	Text string   `json:"text"`
	URL  string   `json:"url"`
	URLs []string `json:"urls"`
}

// JobRequest starts an asynchronous batch
type JobRequest struct {
	URLs []string `json:"urls" binding:"required"`
}

// Handler serves the extraction endpoints
type Handler struct {
	extractor Extractor
	jobs      *Jobs
	log       logger.Logger
}

// NewHandler creates a handler
func NewHandler(extractor Extractor, jobs *Jobs, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{extractor: extractor, jobs: jobs, log: log}
}

// Extract handles POST /api/v1/extract.
func (h *Handler) Extract(c *gin.Context) {
	var req ExtractRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}

	text := strings.TrimSpace(req.Text)
	rawURL := strings.TrimSpace(req.URL)
	urls := cleanURLs(req.URLs)

	provided := 0
	for _, set := range []bool{text != "", rawURL != "", len(urls) > 0} {
		if set {
			provided++
		}
	}
	if provided != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide exactly one of text, url or urls"})
		return
	}

	switch {
	case text != "":
		c.JSON(http.StatusOK, gin.H{"incidents": nonNil(h.extractor.ExtractText(text))})

	case rawURL != "":
		incidents, err := h.extractor.ExtractURL(c.Request.Context(), rawURL)
		if err != nil {
			// A failed document degrades to an error placeholder in the incident list
			rec := pipeline.NewErrorRecord(rawURL, err)
			h.log.Warn("extraction failed", logger.String("url", rawURL), logger.Error(err))
			c.JSON(http.StatusOK, gin.H{"incidents": []model.ErrorRecord{rec}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"incidents": nonNil(incidents)})

	default:
		if len(urls) > maxSyncURLs {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many urls; start a job instead"})
			return
		}
		c.JSON(http.StatusOK, h.extractor.ExtractURLs(c.Request.Context(), urls, nil))
	}
}

// StartJob handles POST /api/v1/jobs.
func (h *Handler) StartJob(c *gin.Context) {
	var req JobRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
		return
	}
	urls := cleanURLs(req.URLs)
	if len(urls) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid URLs provided"})
		return
	}

	job, err := h.jobs.Start(urls)
	if errors.Is(err, ErrJobRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":     job.Progress.JobID(),
		"total_urls": len(urls),
	})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *Handler) GetJob(c *gin.Context) {
	job, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	h.writeJob(c, job)
}

// Status handles GET /api/v1/status: the most recent job, or an idle state.
func (h *Handler) Status(c *gin.Context) {
	job, ok := h.jobs.Latest()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"running": false, "progress": 0, "message": "Ready"})
		return
	}
	h.writeJob(c, job)
}

func (h *Handler) writeJob(c *gin.Context, job *Job) {
	resp := gin.H{"status": job.Progress.Snapshot()}
	if result, ok := job.Result(); ok {
		resp["stats"] = result.Stats
		resp["errors"] = result.Errors
	}
	c.JSON(http.StatusOK, resp)
}

// cleanURLs keeps non-empty http(s) URLs, first occurrence wins
func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func nonNil(incidents []model.Incident) []model.Incident {
	if incidents == nil {
		return []model.Incident{}
	}
	return incidents
}
