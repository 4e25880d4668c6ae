package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/crisislog/internal/logger"
	"github.com/ppiankov/crisislog/internal/metrics"
	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/pipeline"
)

type fakeExtractor struct {
	// release blocks ExtractURLs until closed, when set
	release chan struct{}
	urlErr  error
}

func (f *fakeExtractor) ExtractText(text string) []model.Incident {
	if strings.Contains(text, "killed") {
		return []model.Incident{{ID: "gaza_2024-03-10_0000000000000001", Title: text}}
	}
	return nil
}

func (f *fakeExtractor) ExtractURL(_ context.Context, url string) ([]model.Incident, error) {
	if f.urlErr != nil {
		return nil, f.urlErr
	}
	return []model.Incident{{ID: "from-url", SourceURL: url}}, nil
}

func (f *fakeExtractor) ExtractURLs(ctx context.Context, urls []string, progress *model.Progress) model.BatchResult {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	result := model.BatchResult{Incidents: []model.Incident{}, Errors: []model.ErrorRecord{}}
	for _, u := range urls {
		if strings.Contains(u, "bad") {
			result.Errors = append(result.Errors, model.ErrorRecord{URL: u, Error: "Request timed out"})
		} else {
			result.Incidents = append(result.Incidents, model.Incident{ID: u, SourceURL: u})
		}
		if progress != nil {
			progress.Advance("Processed " + u)
		}
	}
	result.Stats = model.BatchStats{
		TotalURLs:      len(urls),
		SuccessfulURLs: len(result.Incidents),
		FailedURLs:     len(result.Errors),
		TotalIncidents: len(result.Incidents),
	}
	return result
}

func setupTestRouter(t *testing.T, ext *fakeExtractor, finish Finisher) (*gin.Engine, *Jobs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	jobs := NewJobs(ext, finish, metrics.New(reg), nil)
	t.Cleanup(jobs.Shutdown)
	return NewRouter(NewHandler(ext, jobs, nil), logger.NewNop(), reg, "test"), jobs
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := setupTestRouter(t, &fakeExtractor{}, nil)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = doJSON(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "crisislog_jobs_running")
}

func TestExtract_Text(t *testing.T) {
	router, _ := setupTestRouter(t, &fakeExtractor{}, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/extract", ExtractRequest{Text: "Five people were killed in Rafah"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Incidents []model.Incident `json:"incidents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Incidents, 1)

	w = doJSON(t, router, http.MethodPost, "/api/v1/extract", ExtractRequest{Text: "nothing here"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"incidents":[]}`, w.Body.String())
}

func TestExtract_ExactlyOneInput(t *testing.T) {
	router, _ := setupTestRouter(t, &fakeExtractor{}, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/extract", ExtractRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/extract", ExtractRequest{Text: "x", URL: "https://example.org"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtract_URL(t *testing.T) {
	router, _ := setupTestRouter(t, &fakeExtractor{}, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/extract", ExtractRequest{URL: "https://example.org/a"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "from-url")
}

func TestExtract_URLFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"timeout", &pipeline.FetchError{Kind: pipeline.KindTimeout}, "Request timed out"},
		{"http", &pipeline.FetchError{Kind: pipeline.KindHTTP, StatusCode: 404, Status: "404 Not Found"}, "HTTP Error: 404 Not Found"},
		{"robots", &pipeline.FetchError{Kind: pipeline.KindRobots}, "Disallowed by robots.txt"},
		{"other", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupTestRouter(t, &fakeExtractor{urlErr: tt.err}, nil)

			w := doJSON(t, router, http.MethodPost, "/api/v1/extract", ExtractRequest{URL: "https://example.org/a"})
			require.Equal(t, http.StatusOK, w.Code, "a failed document is not an HTTP error")

			var resp struct {
				Incidents []model.ErrorRecord `json:"incidents"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Len(t, resp.Incidents, 1)
			assert.Equal(t, tt.msg, resp.Incidents[0].Error)
			assert.NotEmpty(t, resp.Incidents[0].Description)
			assert.Equal(t, "https://example.org/a", resp.Incidents[0].URL)
		})
	}
}

func TestExtract_URLs(t *testing.T) {
	router, _ := setupTestRouter(t, &fakeExtractor{}, nil)

	urls := []string{"https://example.org/1", "https://example.org/bad", "https://example.org/3", "ftp://nope"}
	w := doJSON(t, router, http.MethodPost, "/api/v1/extract", ExtractRequest{URLs: urls})
	require.Equal(t, http.StatusOK, w.Code)

	var result model.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, model.BatchStats{TotalURLs: 3, SuccessfulURLs: 2, FailedURLs: 1, TotalIncidents: 2}, result.Stats)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "https://example.org/bad", result.Errors[0].URL)
}

func TestJobs_Lifecycle(t *testing.T) {
	ext := &fakeExtractor{release: make(chan struct{})}
	var finished model.BatchResult
	finish := func(_ context.Context, result model.BatchResult) (string, int, error) {
		finished = result
		return "reports/crisislog_extraction_20240314_120000.csv", len(result.Incidents), nil
	}
	router, jobs := setupTestRouter(t, ext, finish)

	w := doJSON(t, router, http.MethodPost, "/api/v1/jobs", JobRequest{URLs: []string{"https://example.org/1", "https://example.org/2"}})
	require.Equal(t, http.StatusAccepted, w.Code)

	var started struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.NotEmpty(t, started.JobID)

	// only one batch runs at a time
	w = doJSON(t, router, http.MethodPost, "/api/v1/jobs", JobRequest{URLs: []string{"https://example.org/3"}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/jobs/"+started.JobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"running":true`)

	close(ext.release)
	job, ok := jobs.Get(started.JobID)
	require.True(t, ok)
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
	}

	snap := job.Progress.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, 100, snap.Percent)
	assert.Equal(t, 2, snap.Added)
	assert.Equal(t, "reports/crisislog_extraction_20240314_120000.csv", snap.OutputFile)
	assert.Len(t, finished.Incidents, 2)

	w = doJSON(t, router, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), started.JobID)
	assert.Contains(t, w.Body.String(), `"total_urls":2`)
}

func TestJobs_FinishFailure(t *testing.T) {
	ext := &fakeExtractor{}
	finish := func(context.Context, model.BatchResult) (string, int, error) {
		return "", 0, errors.New("disk full")
	}
	_, jobs := setupTestRouter(t, ext, finish)

	job, err := jobs.Start([]string{"https://example.org/1"})
	require.NoError(t, err)
	<-job.Done()

	snap := job.Progress.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, "disk full", snap.Error)
}

func TestJobs_Validation(t *testing.T) {
	router, _ := setupTestRouter(t, &fakeExtractor{}, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/jobs", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/jobs", JobRequest{URLs: []string{"not a url"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatus_Idle(t *testing.T) {
	router, _ := setupTestRouter(t, &fakeExtractor{}, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"running":false`)
}
