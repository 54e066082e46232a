package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/internal/batch"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func recordFixture(sourceURL string) *analysis.AnalysisRecord {
	return &analysis.AnalysisRecord{
		SourceURL:          sourceURL,
		Title:              "Clutch Round",
		Description:        "A last-second win in ranked play.",
		Tags:               []string{"clutch", "ranked"},
		Streamer:           "shroud",
		Game:               "Valorant",
		Platform:           "twitch",
		ContentType:        "highlight",
		TranscriptIncluded: true,
		TranscriptLength:   120,
		FramesAnalyzed:     5,
		ProcessedAt:        time.Now().UTC().Truncate(time.Second),
	}
}

func TestPutAndGetRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := recordFixture("https://clips.twitch.tv/a")
	require.NoError(t, store.Put(ctx, want))

	got, err := store.GetBySourceURL(ctx, want.SourceURL)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Tags, got.Tags)
	assert.Equal(t, want.TranscriptIncluded, got.TranscriptIncluded)
	assert.True(t, want.ProcessedAt.Equal(got.ProcessedAt))
}

func TestGetMissingRecordIsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetBySourceURL(context.Background(), "https://example.org/none")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPutUpsertsOnSourceURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := recordFixture("https://clips.twitch.tv/a")
	require.NoError(t, store.Put(ctx, record))

	record.Title = "Updated Title"
	require.NoError(t, store.Put(ctx, record))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetBySourceURL(ctx, record.SourceURL)
	require.NoError(t, err)
	assert.Equal(t, "Updated Title", got.Title)
}

func TestFindByTextAndTags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := recordFixture("https://clips.twitch.tv/a")
	b := recordFixture("https://clips.twitch.tv/b")
	b.Title = "Chat Reacts to Patch Notes"
	b.Description = "The streamer reads the new patch with chat."
	b.Tags = []string{"reaction", "patch"}
	require.NoError(t, store.Put(ctx, a))
	require.NoError(t, store.Put(ctx, b))

	// Case-insensitive text match over title and description.
	found, err := store.Find(ctx, "CLUTCH", nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.SourceURL, found[0].SourceURL)

	// All requested tags must be present.
	found, err = store.Find(ctx, "", []string{"reaction", "patch"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.SourceURL, found[0].SourceURL)

	found, err = store.Find(ctx, "", []string{"reaction", "clutch"})
	require.NoError(t, err)
	assert.Empty(t, found)

	// Empty query and tags match everything.
	found, err = store.Find(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestSaveAndLoadJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &batch.Job{
		JobID:     "job-1",
		Status:    batch.StatusInProgress,
		Total:     3,
		Completed: 1,
		Results:   []analysis.AnalysisRecord{*recordFixture("https://clips.twitch.tv/a")},
		Errors:    []analysis.FailureDescriptor{},
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveJob(ctx, job))

	got, err := store.LoadJob(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, batch.StatusInProgress, got.Status)
	assert.Equal(t, 3, got.Total)
	assert.Len(t, got.Results, 1)

	// Save again with a terminal status.
	now := time.Now().UTC().Truncate(time.Second)
	job.Status = batch.StatusCompleted
	job.Completed = 3
	job.CompletedAt = &now
	require.NoError(t, store.SaveJob(ctx, job))

	got, err = store.LoadJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestLoadMissingJobIsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.LoadJob(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteJobsBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	fresh := time.Now().UTC()

	oldJob := &batch.Job{JobID: "old", Status: batch.StatusCompleted, StartedAt: old, CompletedAt: &old}
	freshJob := &batch.Job{JobID: "fresh", Status: batch.StatusCompleted, StartedAt: fresh, CompletedAt: &fresh}
	running := &batch.Job{JobID: "running", Status: batch.StatusInProgress, StartedAt: old}
	require.NoError(t, store.SaveJob(ctx, oldJob))
	require.NoError(t, store.SaveJob(ctx, freshJob))
	require.NoError(t, store.SaveJob(ctx, running))

	n, err := store.DeleteJobsBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.LoadJob(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.LoadJob(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)

	// Jobs still running are never purged, whatever their age.
	got, err = store.LoadJob(ctx, "running")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must not reapply migrations.
	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
