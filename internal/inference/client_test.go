package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchlib/clipsight/internal/analysis"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		APIURL:          baseURL,
		APIKey:          "test-key",
		VisionModel:     "gpt-4o-mini",
		TranscribeModel: "whisper-1",
		MaxTokens:       500,
		Temperature:     0.3,
		Timeout:         10 * time.Second,
	})
}

func TestAnalyzeFramesRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)

		parts := req.Messages[0].Content
		require.Len(t, parts, 3, "one text part plus two image parts")
		assert.Equal(t, "text", parts[0].Type)
		assert.Equal(t, "image_url", parts[1].Type)
		assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,"))
		assert.Equal(t, "high", parts[1].ImageURL.Detail)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"title\":\"t\"}"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	frames := analysis.FrameSet{
		{Timestamp: 5, JPEG: []byte{0xff, 0xd8, 0xff}},
		{Timestamp: 10, JPEG: []byte{0xff, 0xd8, 0xff}},
	}
	content, err := c.AnalyzeFrames(context.Background(), "describe the clip", frames)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"t"}`, content)
}

func TestAnalyzeFramesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).AnalyzeFrames(context.Background(), "p", analysis.FrameSet{{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAnalyzeFramesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).AnalyzeFrames(context.Background(), "p", analysis.FrameSet{{}})
	require.Error(t, err)
	assert.True(t, analysis.IsKind(err, analysis.FailNetwork))
}

func TestAnalyzeFramesNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).AnalyzeFrames(context.Background(), "p", analysis.FrameSet{{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestTranscribeUploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "clip.wav", header.Filename)

		_, _ = w.Write([]byte(`{"text":"hello chat","language":"english"}`))
	}))
	defer srv.Close()

	audioPath := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("RIFF....WAVE"), 0o644))

	text, lang, err := newTestClient(srv.URL).Transcribe(context.Background(), audioPath)
	require.NoError(t, err)
	assert.Equal(t, "hello chat", text)
	assert.Equal(t, "english", lang)
}

func TestTranscribeMissingFile(t *testing.T) {
	_, _, err := newTestClient("http://localhost:1").Transcribe(context.Background(), "/does/not/exist.wav")
	require.Error(t, err)
	assert.True(t, analysis.IsKind(err, analysis.FailNetwork))
}
