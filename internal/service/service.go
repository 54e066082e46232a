// Package service is the produced surface of the analyzer: single and
// batch analysis submission, progress lookup, search over stored
// records, and catalog passthrough.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/internal/batch"
	"github.com/patchlib/clipsight/internal/catalog"
)

type Analyzer interface {
	Analyze(ctx context.Context, ref analysis.ClipReference) (*analysis.AnalysisRecord, error)
}

type BatchTracker interface {
	Submit(ctx context.Context, refs []analysis.ClipReference) (string, error)
	Progress(ctx context.Context, jobID string) (*batch.Job, error)
	Cancel(jobID string) error
}

type SearchStore interface {
	Find(ctx context.Context, query string, tags []string) ([]analysis.AnalysisRecord, error)
	ListAll(ctx context.Context) ([]analysis.AnalysisRecord, error)
	Count(ctx context.Context) (int, error)
}

type Catalog interface {
	ListStreams(ctx context.Context) ([]catalog.Stream, error)
	ListClips(ctx context.Context, streamer string, limit int) ([]catalog.Clip, error)
}

type Service struct {
	analyzer Analyzer
	tracker  BatchTracker
	store    SearchStore
	catalog  Catalog
	started  time.Time
}

func New(analyzer Analyzer, tracker BatchTracker, store SearchStore, cat Catalog) *Service {
	return &Service{
		analyzer: analyzer,
		tracker:  tracker,
		store:    store,
		catalog:  cat,
		started:  time.Now().UTC(),
	}
}

// AnalyzeClip runs one clip synchronously and returns its record.
func (s *Service) AnalyzeClip(ctx context.Context, ref analysis.ClipReference) (*analysis.AnalysisRecord, error) {
	if strings.TrimSpace(ref.SourceURL) == "" {
		return nil, analysis.NewFailure(analysis.FailInvalidInput, analysis.StageValidating,
			"video_link is required")
	}
	return s.analyzer.Analyze(ctx, ref)
}

// SubmitBatch starts background analysis of many clips and returns the
// job ID to poll.
func (s *Service) SubmitBatch(ctx context.Context, refs []analysis.ClipReference) (string, error) {
	return s.tracker.Submit(ctx, refs)
}

func (s *Service) BatchProgress(ctx context.Context, jobID string) (*batch.Job, error) {
	return s.tracker.Progress(ctx, jobID)
}

func (s *Service) CancelBatch(jobID string) error {
	return s.tracker.Cancel(jobID)
}

// FindClips searches stored analyses by free text and tags.
func (s *Service) FindClips(ctx context.Context, query string, tags []string) ([]analysis.AnalysisRecord, error) {
	return s.store.Find(ctx, query, tags)
}

func (s *Service) ListVideos(ctx context.Context) ([]analysis.AnalysisRecord, error) {
	return s.store.ListAll(ctx)
}

func (s *Service) CatalogStreams(ctx context.Context) ([]catalog.Stream, error) {
	return s.catalog.ListStreams(ctx)
}

func (s *Service) CatalogClips(ctx context.Context, streamer string, limit int) ([]catalog.Clip, error) {
	return s.catalog.ListClips(ctx, streamer, limit)
}

// AnalyzeCatalog pulls clips from the catalog and submits them as one
// batch job.
func (s *Service) AnalyzeCatalog(ctx context.Context, streamer string, limit int) (string, int, error) {
	clips, err := s.catalog.ListClips(ctx, streamer, limit)
	if err != nil {
		return "", 0, err
	}
	refs := catalog.References(clips)
	jobID, err := s.tracker.Submit(ctx, refs)
	if err != nil {
		return "", 0, err
	}
	return jobID, len(refs), nil
}

// Health reports service liveness plus the stored record count.
type Health struct {
	Status        string  `json:"status"`
	VideosIndexed int     `json:"videos_indexed"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Service) Health(ctx context.Context) Health {
	count, err := s.store.Count(ctx)
	status := "ok"
	if err != nil {
		status = "degraded"
		count = 0
	}
	return Health{
		Status:        status,
		VideosIndexed: count,
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
}

// Stats summarizes the stored corpus.
type Stats struct {
	TotalVideos     int            `json:"total_videos"`
	WithTranscript  int            `json:"with_transcript"`
	ByContentType   map[string]int `json:"by_content_type"`
	ByPlatform      map[string]int `json:"by_platform"`
	DistinctGames   int            `json:"distinct_games"`
	DistinctStreams int            `json:"distinct_streamers"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalVideos:   len(records),
		ByContentType: make(map[string]int),
		ByPlatform:    make(map[string]int),
	}
	games := make(map[string]struct{})
	streamers := make(map[string]struct{})
	for _, record := range records {
		if record.TranscriptIncluded {
			stats.WithTranscript++
		}
		stats.ByContentType[record.ContentType]++
		stats.ByPlatform[record.Platform]++
		if record.Game != "" && record.Game != "unknown" {
			games[record.Game] = struct{}{}
		}
		if record.Streamer != "" && record.Streamer != "unknown" {
			streamers[record.Streamer] = struct{}{}
		}
	}
	stats.DistinctGames = len(games)
	stats.DistinctStreams = len(streamers)
	return stats, nil
}
