package collection

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/crisislog/internal/model"
)

var fixedNow = time.Date(2024, 3, 14, 23, 0, 5, 0, time.UTC)

func incident(id, title string) model.Incident {
	return model.Incident{
		ID:       id,
		Title:    title,
		Date:     "2024-03-14",
		Time:     "12:00:00",
		Location: "Rafah",
		Type:     "casualties",
		Verified: model.VerifiedPending,
		Sources:  []string{"Manual input"},
		Tags:     []string{"general"},
	}
}

func newCollection(t *testing.T, ext string) (*Collection, string) {
	t.Helper()
	dir := t.TempDir()
	return New(Options{
		Path:           filepath.Join(dir, "incidents"+ext),
		ReportsDir:     filepath.Join(dir, "reports"),
		BackupsDir:     filepath.Join(dir, "backups"),
		Backup:         true,
		TitleThreshold: 0.7,
		Clock:          func() time.Time { return fixedNow },
	}), dir
}

func TestPersist(t *testing.T) {
	c, dir := newCollection(t, ".csv")
	ctx := context.Background()

	result := model.BatchResult{Incidents: []model.Incident{
		incident("gaza_2024-03-14_01", "Dozens killed in Gaza City strike"),
		incident("gaza_2024-03-14_02", "Dozens killed in Gaza City air strike"),
		incident("gaza_2024-03-14_03", "Aid convoy blocked at Kerem Shalom"),
	}}

	report, added, err := c.Persist(ctx, result)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, filepath.Join(dir, "reports", "crisislog_extraction_20240314_230005.csv"), report)
	assert.FileExists(t, report)

	// first merge had nothing to back up
	entries, _ := os.ReadDir(filepath.Join(dir, "backups"))
	assert.Empty(t, entries)

	_, added, err = c.Persist(ctx, result)
	require.NoError(t, err)
	assert.Zero(t, added, "re-merging the same extraction adds nothing")
	assert.FileExists(t, filepath.Join(dir, "backups", "incidents_backup_20240314_230005.csv"))

	all, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPersist_Empty(t *testing.T) {
	c, dir := newCollection(t, ".json")

	report, added, err := c.Persist(context.Background(), model.BatchResult{
		Errors: []model.ErrorRecord{{URL: "https://example.org", Error: "Request timed out"}},
	})
	require.NoError(t, err)
	assert.Empty(t, report)
	assert.Zero(t, added)
	assert.NoFileExists(t, filepath.Join(dir, "incidents.json"))
}

func TestMerge_SQLite(t *testing.T) {
	c, _ := newCollection(t, ".db")
	ctx := context.Background()

	added, err := c.Merge(ctx, []model.Incident{incident("a", "one"), incident("b", "two")})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = c.Merge(ctx, []model.Incident{incident("b", "two again"), incident("c", "three")})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	all, err := c.Load(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "two", all[1].Title)
}

func TestMerge_UnsupportedFormat(t *testing.T) {
	c, _ := newCollection(t, ".xlsx")
	_, err := c.Merge(context.Background(), []model.Incident{incident("a", "one")})
	assert.Error(t, err)
}
