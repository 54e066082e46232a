// Package inference talks to an OpenAI-compatible API for the two
// model calls the pipeline makes: vision chat over sampled frames and
// audio transcription.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/pkg/log"
)

type Client struct {
	baseURL         string
	apiKey          string
	visionModel     string
	transcribeModel string
	maxTokens       int
	temperature     float64
	httpClient      *http.Client
}

type Config struct {
	APIURL          string
	APIKey          string
	VisionModel     string
	TranscribeModel string
	MaxTokens       int
	Temperature     float64
	Timeout         time.Duration
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:         strings.TrimRight(cfg.APIURL, "/"),
		apiKey:          cfg.APIKey,
		visionModel:     cfg.VisionModel,
		transcribeModel: cfg.TranscribeModel,
		maxTokens:       cfg.MaxTokens,
		temperature:     cfg.Temperature,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
	}
}

// AnalyzeFrames sends the prompt with every frame attached as an
// inline JPEG data URL and returns the raw model text.
func (c *Client) AnalyzeFrames(ctx context.Context, prompt string, frames analysis.FrameSet) (string, error) {
	parts := make([]ContentPart, 0, len(frames)+1)
	parts = append(parts, TextPart(prompt))
	for _, frame := range frames {
		dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame.JPEG)
		parts = append(parts, ImagePart(dataURL))
	}

	req := ChatRequest{
		Model:       c.visionModel,
		Messages:    []ChatMessage{{Role: "user", Content: parts}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", analysis.WrapFailure(analysis.FailNetwork, analysis.StageInferring,
			"cannot encode chat request", err)
	}

	respBody, err := c.post(ctx, "/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	var chat ChatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", analysis.WrapFailure(analysis.FailNetwork, analysis.StageInferring,
			"cannot decode chat response", err)
	}
	if chat.Error != nil {
		return "", analysis.NewFailure(analysis.FailNetwork, analysis.StageInferring,
			"model error: "+chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return "", analysis.NewFailure(analysis.FailNetwork, analysis.StageInferring,
			"model returned no choices")
	}

	content := chat.Choices[0].Message.Content
	log.Debug("vision model returned %d chars", len(content))
	return content, nil
}

// Transcribe uploads an audio file to the transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", "", analysis.WrapFailure(analysis.FailNetwork, analysis.StageTranscribing,
			"cannot open audio file", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", "", analysis.WrapFailure(analysis.FailNetwork, analysis.StageTranscribing,
			"cannot build upload", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", "", analysis.WrapFailure(analysis.FailNetwork, analysis.StageTranscribing,
			"cannot read audio file", err)
	}
	if err := writer.WriteField("model", c.transcribeModel); err != nil {
		return "", "", analysis.WrapFailure(analysis.FailNetwork, analysis.StageTranscribing,
			"cannot build upload", err)
	}
	if err := writer.Close(); err != nil {
		return "", "", analysis.WrapFailure(analysis.FailNetwork, analysis.StageTranscribing,
			"cannot finalize upload", err)
	}

	respBody, err := c.post(ctx, "/audio/transcriptions", writer.FormDataContentType(), &buf)
	if err != nil {
		return "", "", err
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", "", analysis.WrapFailure(analysis.FailNetwork, analysis.StageTranscribing,
			"cannot decode transcription response", err)
	}
	return tr.Text, tr.Language, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	stage := analysis.StageInferring
	if strings.Contains(path, "transcriptions") {
		stage = analysis.StageTranscribing
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, analysis.WrapFailure(analysis.FailNetwork, stage, "cannot build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, analysis.WrapFailure(analysis.FailTimeout, stage, "inference API timed out", err)
		}
		return nil, analysis.WrapFailure(analysis.FailNetwork, stage, "inference API unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, analysis.WrapFailure(analysis.FailNetwork, stage, "cannot read API response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, analysis.NewFailure(analysis.FailNetwork, stage,
			fmt.Sprintf("inference API returned HTTP %d: %s", resp.StatusCode, firstLine(string(respBody))))
	}
	return respBody, nil
}

func isTimeout(err error) bool {
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
