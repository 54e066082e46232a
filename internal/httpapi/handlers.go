package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/internal/batch"
	"github.com/patchlib/clipsight/internal/catalog"
	"github.com/patchlib/clipsight/internal/service"
)

// ClipService is what the HTTP layer needs from the service.
type ClipService interface {
	AnalyzeClip(ctx context.Context, ref analysis.ClipReference) (*analysis.AnalysisRecord, error)
	SubmitBatch(ctx context.Context, refs []analysis.ClipReference) (string, error)
	BatchProgress(ctx context.Context, jobID string) (*batch.Job, error)
	CancelBatch(jobID string) error
	FindClips(ctx context.Context, query string, tags []string) ([]analysis.AnalysisRecord, error)
	ListVideos(ctx context.Context) ([]analysis.AnalysisRecord, error)
	CatalogStreams(ctx context.Context) ([]catalog.Stream, error)
	CatalogClips(ctx context.Context, streamer string, limit int) ([]catalog.Clip, error)
	AnalyzeCatalog(ctx context.Context, streamer string, limit int) (string, int, error)
	Health(ctx context.Context) service.Health
	Stats(ctx context.Context) (*service.Stats, error)
}

type handlers struct {
	svc ClipService
}

func (h *handlers) analyse(w http.ResponseWriter, r *http.Request) {
	var ref analysis.ClipReference
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		writeError(w, analysis.NewFailure(analysis.FailInvalidInput, analysis.StageValidating,
			"request body is not valid JSON"))
		return
	}

	record, err := h.svc.AnalyzeClip(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type batchRequest struct {
	Clips []analysis.ClipReference `json:"clips"`
}

type batchResponse struct {
	JobID string `json:"job_id"`
	Total int    `json:"total"`
}

func (h *handlers) analyseBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, analysis.NewFailure(analysis.FailInvalidInput, analysis.StageValidating,
			"request body is not valid JSON"))
		return
	}

	jobID, err := h.svc.SubmitBatch(r.Context(), req.Clips)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, batchResponse{JobID: jobID, Total: len(req.Clips)})
}

func (h *handlers) batchProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := h.svc.BatchProgress(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handlers) cancelBatch(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.svc.CancelBatch(jobID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": "cancelled"})
}

type findRequest struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags"`
}

func (h *handlers) findClips(w http.ResponseWriter, r *http.Request) {
	var req findRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, analysis.NewFailure(analysis.FailInvalidInput, analysis.StageValidating,
			"request body is not valid JSON"))
		return
	}

	records, err := h.svc.FindClips(r.Context(), req.Query, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": records,
		"count":   len(records),
	})
}

func (h *handlers) listVideos(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.ListVideos(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"videos": records,
		"count":  len(records),
	})
}

func (h *handlers) patchworkStreams(w http.ResponseWriter, r *http.Request) {
	streams, err := h.svc.CatalogStreams(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"streams": streams})
}

func (h *handlers) patchworkClips(w http.ResponseWriter, r *http.Request) {
	streamer := r.URL.Query().Get("streamer")
	limit := queryInt(r, "limit", 0)

	clips, err := h.svc.CatalogClips(r.Context(), streamer, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clips": clips, "count": len(clips)})
}

func (h *handlers) patchworkAnalyse(w http.ResponseWriter, r *http.Request) {
	streamer := r.URL.Query().Get("streamer")
	limit := queryInt(r, "limit", 10)

	jobID, total, err := h.svc.AnalyzeCatalog(r.Context(), streamer, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, batchResponse{JobID: jobID, Total: total})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health(r.Context()))
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
