// Package httpapi exposes the analyzer over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/pkg/log"
)

type Server struct {
	httpServer *http.Server
}

func NewServer(addr string, svc ClipService) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	h := &handlers{svc: svc}

	r.Post("/analyse", h.analyse)
	r.Post("/analyse/batch", h.analyseBatch)
	r.Get("/analyse/progress/{jobID}", h.batchProgress)
	r.Delete("/analyse/progress/{jobID}", h.cancelBatch)
	r.Post("/find_clips", h.findClips)
	r.Get("/videos", h.listVideos)
	r.Get("/patchwork/streams", h.patchworkStreams)
	r.Get("/patchwork/clips", h.patchworkClips)
	r.Post("/patchwork/analyse", h.patchworkAnalyse)
	r.Get("/health", h.health)
	r.Get("/stats", h.stats)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start() error {
	log.Info("HTTP API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn("encode response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Stage string `json:"stage,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var f *analysis.Failure
	if errors.As(err, &f) {
		writeJSON(w, statusForKind(f.Kind), errorBody{
			Error: f.Reason,
			Kind:  string(f.Kind),
			Stage: string(f.Stage),
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

func statusForKind(kind analysis.FailureKind) int {
	switch kind {
	case analysis.FailInvalidInput:
		return http.StatusBadRequest
	case analysis.FailUnsupported:
		return http.StatusUnprocessableEntity
	case analysis.FailNotFound:
		return http.StatusNotFound
	case analysis.FailAccessDenied:
		return http.StatusForbidden
	case analysis.FailTimeout:
		return http.StatusGatewayTimeout
	case analysis.FailTooLarge:
		return http.StatusRequestEntityTooLarge
	case analysis.FailCancelled:
		return http.StatusConflict
	case analysis.FailNetwork, analysis.FailParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
