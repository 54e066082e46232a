package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/internal/batch"
	"github.com/patchlib/clipsight/internal/catalog"
	"github.com/patchlib/clipsight/internal/service"
)

type stubService struct {
	record  *analysis.AnalysisRecord
	err     error
	jobID   string
	job     *batch.Job
	records []analysis.AnalysisRecord
}

func (s *stubService) AnalyzeClip(ctx context.Context, ref analysis.ClipReference) (*analysis.AnalysisRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubService) SubmitBatch(ctx context.Context, refs []analysis.ClipReference) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.jobID, nil
}

func (s *stubService) BatchProgress(ctx context.Context, jobID string) (*batch.Job, error) {
	if s.job == nil {
		return nil, analysis.NewFailure(analysis.FailNotFound, analysis.StageValidating, "unknown job ID")
	}
	return s.job, nil
}

func (s *stubService) CancelBatch(jobID string) error { return s.err }

func (s *stubService) FindClips(ctx context.Context, query string, tags []string) ([]analysis.AnalysisRecord, error) {
	return s.records, s.err
}

func (s *stubService) ListVideos(ctx context.Context) ([]analysis.AnalysisRecord, error) {
	return s.records, s.err
}

func (s *stubService) CatalogStreams(ctx context.Context) ([]catalog.Stream, error) {
	return nil, s.err
}

func (s *stubService) CatalogClips(ctx context.Context, streamer string, limit int) ([]catalog.Clip, error) {
	return nil, s.err
}

func (s *stubService) AnalyzeCatalog(ctx context.Context, streamer string, limit int) (string, int, error) {
	return s.jobID, 3, s.err
}

func (s *stubService) Health(ctx context.Context) service.Health {
	return service.Health{Status: "ok", VideosIndexed: len(s.records)}
}

func (s *stubService) Stats(ctx context.Context) (*service.Stats, error) {
	return &service.Stats{TotalVideos: len(s.records)}, s.err
}

func newTestRouter(svc ClipService) http.Handler {
	r := chi.NewRouter()
	h := &handlers{svc: svc}
	r.Post("/analyse", h.analyse)
	r.Post("/analyse/batch", h.analyseBatch)
	r.Get("/analyse/progress/{jobID}", h.batchProgress)
	r.Delete("/analyse/progress/{jobID}", h.cancelBatch)
	r.Post("/find_clips", h.findClips)
	r.Get("/videos", h.listVideos)
	r.Get("/health", h.health)
	r.Get("/stats", h.stats)
	return r
}

func TestAnalyseReturnsRecord(t *testing.T) {
	svc := &stubService{record: &analysis.AnalysisRecord{SourceURL: "https://example.org/v", Title: "T"}}
	router := newTestRouter(svc)

	body, _ := json.Marshal(map[string]string{"video_link": "https://example.org/v"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyse", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var got analysis.AnalysisRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "T", got.Title)
}

func TestAnalyseInvalidBody(t *testing.T) {
	router := newTestRouter(&stubService{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyse", bytes.NewReader([]byte("not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyseFailureStatusMapping(t *testing.T) {
	tests := []struct {
		kind   analysis.FailureKind
		status int
	}{
		{analysis.FailInvalidInput, http.StatusBadRequest},
		{analysis.FailUnsupported, http.StatusUnprocessableEntity},
		{analysis.FailNotFound, http.StatusNotFound},
		{analysis.FailAccessDenied, http.StatusForbidden},
		{analysis.FailTimeout, http.StatusGatewayTimeout},
		{analysis.FailTooLarge, http.StatusRequestEntityTooLarge},
		{analysis.FailNetwork, http.StatusBadGateway},
		{analysis.FailParse, http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			svc := &stubService{err: analysis.NewFailure(tc.kind, analysis.StageValidating, "boom")}
			router := newTestRouter(svc)

			body, _ := json.Marshal(map[string]string{"video_link": "https://example.org/v"})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyse", bytes.NewReader(body)))

			assert.Equal(t, tc.status, rec.Code)

			var errResp errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.Equal(t, string(tc.kind), errResp.Kind)
			assert.Equal(t, "boom", errResp.Error)
		})
	}
}

func TestAnalyseBatchAccepted(t *testing.T) {
	svc := &stubService{jobID: "job-42"}
	router := newTestRouter(svc)

	body, _ := json.Marshal(batchRequest{Clips: []analysis.ClipReference{
		{SourceURL: "https://example.org/a"},
		{SourceURL: "https://example.org/b"},
	}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyse/batch", bytes.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-42", resp.JobID)
	assert.Equal(t, 2, resp.Total)
}

func TestBatchProgress(t *testing.T) {
	svc := &stubService{job: &batch.Job{JobID: "job-42", Status: batch.StatusInProgress, Total: 5, Completed: 2}}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyse/progress/job-42", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var job batch.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, batch.StatusInProgress, job.Status)
	assert.Equal(t, 2, job.Completed)
}

func TestBatchProgressUnknownJob(t *testing.T) {
	router := newTestRouter(&stubService{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyse/progress/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFindClips(t *testing.T) {
	svc := &stubService{records: []analysis.AnalysisRecord{{Title: "A"}, {Title: "B"}}}
	router := newTestRouter(svc)

	body, _ := json.Marshal(findRequest{Query: "clutch", Tags: []string{"fps"}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/find_clips", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []analysis.AnalysisRecord `json:"results"`
		Count   int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Results, 2)
}

func TestListVideos(t *testing.T) {
	svc := &stubService{records: []analysis.AnalysisRecord{{Title: "A"}}}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&stubService{records: []analysis.AnalysisRecord{{}, {}}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var health service.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.VideosIndexed)
}

func TestServerShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", &stubService{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
}
