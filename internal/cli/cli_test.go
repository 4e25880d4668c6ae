package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/crisislog/internal/model"
	"github.com/ppiankov/crisislog/internal/store"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestFlatten(t *testing.T) {
	got := flatten("", map[string]any{
		"http":  map[string]any{"timeout": 1, "user_agent": "ua"},
		"debug": true,
	})
	assert.Equal(t, map[string]any{
		"http.timeout":    1,
		"http.user_agent": "ua",
		"debug":           true,
	}, got)
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)
	require.NoError(t, setDefaults(model.DefaultConfig()))

	cfg, err := loadConfig()
	require.NoError(t, err)

	want := model.DefaultConfig()
	assert.Equal(t, want.HTTP.Timeout, cfg.HTTP.Timeout)
	assert.Equal(t, want.RateLimiting.Delay, cfg.RateLimiting.Delay)
	assert.Equal(t, want.Extraction.Region, cfg.Extraction.Region)
	assert.Equal(t, want.Output.Collection, cfg.Output.Collection)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_Env(t *testing.T) {
	resetViper(t)
	require.NoError(t, setDefaults(model.DefaultConfig()))
	bindEnv()

	t.Setenv("CRISISLOG_HTTP_TIMEOUT", "10s")
	t.Setenv("CRISISLOG_EXTRACTION_MODE", "simple")
	t.Setenv("CRISISLOG_CONCURRENCY_WORKERS", "4")
	t.Setenv("CRISISLOG_OUTPUT_COLLECTION", "incidents.db")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "simple", cfg.Extraction.Mode)
	assert.Equal(t, 4, cfg.Concurrency.Workers)
	assert.Equal(t, "incidents.db", cfg.Output.Collection)
}

func TestLoadConfig_File(t *testing.T) {
	resetViper(t)
	require.NoError(t, setDefaults(model.DefaultConfig()))

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rate_limiting:\n  delay: 500ms\nextraction:\n  region: Gaza Strip\n"), 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimiting.Delay)
	assert.Equal(t, "Gaza Strip", cfg.Extraction.Region)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout, "untouched keys keep defaults")
}

func TestDisplayConfig_RoundTrips(t *testing.T) {
	resetViper(t)
	require.NoError(t, setDefaults(model.DefaultConfig()))

	tree := displayConfig(model.DefaultConfig())
	http, ok := tree["http"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "30s", http["timeout"])

	data, err := yaml.Marshal(tree)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 6*time.Hour, cfg.Cache.DiskTTL)
}

func TestRenderSummary(t *testing.T) {
	result := model.BatchResult{
		Incidents: []model.Incident{
			{Type: "casualties", Casualties: model.Casualties{Deaths: 12, Injured: 30}},
			{Type: "aid"},
			{Type: "casualties", Casualties: model.Casualties{Deaths: 3}},
		},
		Errors: []model.ErrorRecord{{URL: "https://example.org/slow", Error: "Request timed out"}},
		Stats:  model.BatchStats{TotalURLs: 3, SuccessfulURLs: 2, FailedURLs: 1, TotalIncidents: 3},
	}

	var buf bytes.Buffer
	renderSummary(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "Batch Complete")
	assert.Contains(t, out, "SUCCESSFUL")
	assert.Contains(t, out, "https://example.org/slow")
	assert.Contains(t, out, "Request timed out")
	assert.Contains(t, out, "casualties")
}

func TestRenderSummary_NoErrors(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, model.BatchResult{Stats: model.BatchStats{TotalURLs: 1, SuccessfulURLs: 1}})
	assert.NotContains(t, buf.String(), "Error")
}

func TestTypeTotals(t *testing.T) {
	totals := typeTotals([]model.Incident{
		{Type: "hunger"},
		{Type: "casualties", Casualties: model.Casualties{Deaths: 5, Injured: 2}},
		{Type: "hunger", Casualties: model.Casualties{Deaths: 1}},
	})
	require.Len(t, totals, 2)
	assert.Equal(t, typeTotal{kind: "hunger", count: 2, deaths: 1}, totals[0])
	assert.Equal(t, typeTotal{kind: "casualties", count: 1, deaths: 5, injured: 2}, totals[1])
}

func TestLoadFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "report.json")
	st, err := store.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, st.Save(ctx, []model.Incident{{ID: "a", Title: "one"}}))

	got, err := loadFile(ctx, path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	_, err = loadFile(ctx, filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err, "an incoming file must exist")
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeJSON(path, []string{"a"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(data))
}
