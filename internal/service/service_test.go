package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/internal/batch"
	"github.com/patchlib/clipsight/internal/catalog"
)

type fakeAnalyzer struct {
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, ref analysis.ClipReference) (*analysis.AnalysisRecord, error) {
	f.calls++
	return &analysis.AnalysisRecord{SourceURL: ref.SourceURL, Title: "done"}, nil
}

type fakeTracker struct {
	submitted []analysis.ClipReference
}

func (f *fakeTracker) Submit(ctx context.Context, refs []analysis.ClipReference) (string, error) {
	if len(refs) == 0 {
		return "", analysis.NewFailure(analysis.FailInvalidInput, analysis.StageValidating, "batch contains no clips")
	}
	f.submitted = refs
	return "job-1", nil
}

func (f *fakeTracker) Progress(ctx context.Context, jobID string) (*batch.Job, error) {
	return &batch.Job{JobID: jobID}, nil
}

func (f *fakeTracker) Cancel(jobID string) error { return nil }

type fakeStore struct {
	records []analysis.AnalysisRecord
}

func (f *fakeStore) Find(ctx context.Context, query string, tags []string) ([]analysis.AnalysisRecord, error) {
	return f.records, nil
}

func (f *fakeStore) ListAll(ctx context.Context) ([]analysis.AnalysisRecord, error) {
	return f.records, nil
}

func (f *fakeStore) Count(ctx context.Context) (int, error) {
	return len(f.records), nil
}

type fakeCatalog struct {
	clips []catalog.Clip
}

func (f *fakeCatalog) ListStreams(ctx context.Context) ([]catalog.Stream, error) {
	return []catalog.Stream{{ID: "s1", Name: "shroud"}}, nil
}

func (f *fakeCatalog) ListClips(ctx context.Context, streamer string, limit int) ([]catalog.Clip, error) {
	return f.clips, nil
}

func TestAnalyzeClipRequiresURL(t *testing.T) {
	svc := New(&fakeAnalyzer{}, &fakeTracker{}, &fakeStore{}, &fakeCatalog{})

	_, err := svc.AnalyzeClip(context.Background(), analysis.ClipReference{SourceURL: "  "})
	require.Error(t, err)
	assert.True(t, analysis.IsKind(err, analysis.FailInvalidInput))

	record, err := svc.AnalyzeClip(context.Background(), analysis.ClipReference{SourceURL: "https://example.org/v"})
	require.NoError(t, err)
	assert.Equal(t, "done", record.Title)
}

func TestAnalyzeCatalogSubmitsReferences(t *testing.T) {
	tracker := &fakeTracker{}
	cat := &fakeCatalog{clips: []catalog.Clip{
		{ID: "c1", VideoLink: "https://clips.twitch.tv/one", StreamerName: "shroud", Platform: "twitch"},
		{ID: "c2", VideoLink: ""},
		{ID: "c3", VideoLink: "https://clips.twitch.tv/three"},
	}}
	svc := New(&fakeAnalyzer{}, tracker, &fakeStore{}, cat)

	jobID, total, err := svc.AnalyzeCatalog(context.Background(), "shroud", 10)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, 2, total, "clips without a video link are dropped")
	require.Len(t, tracker.submitted, 2)
	assert.Equal(t, "shroud", tracker.submitted[0].Streamer)
}

func TestStatsAggregation(t *testing.T) {
	store := &fakeStore{records: []analysis.AnalysisRecord{
		{ContentType: "gameplay", Platform: "twitch", Game: "Valorant", Streamer: "shroud", TranscriptIncluded: true},
		{ContentType: "gameplay", Platform: "twitch", Game: "Valorant", Streamer: "xqc"},
		{ContentType: "reaction", Platform: "youtube", Game: "unknown", Streamer: "unknown"},
	}}
	svc := New(&fakeAnalyzer{}, &fakeTracker{}, store, &fakeCatalog{})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalVideos)
	assert.Equal(t, 1, stats.WithTranscript)
	assert.Equal(t, 2, stats.ByContentType["gameplay"])
	assert.Equal(t, 2, stats.ByPlatform["twitch"])
	assert.Equal(t, 1, stats.DistinctGames, "unknown games are not counted")
	assert.Equal(t, 2, stats.DistinctStreams)
}

func TestHealthReportsVideoCount(t *testing.T) {
	store := &fakeStore{records: []analysis.AnalysisRecord{{}, {}}}
	svc := New(&fakeAnalyzer{}, &fakeTracker{}, store, &fakeCatalog{})

	health := svc.Health(context.Background())
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.VideosIndexed)
}
