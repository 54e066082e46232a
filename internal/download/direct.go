package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/pkg/log"
)

// DirectStrategy streams a video file over plain HTTP with a bounded
// timeout and a byte ceiling. Oversized downloads are rejected as early
// as the server allows.
type DirectStrategy struct {
	client   *http.Client
	maxBytes int64
}

func NewDirectStrategy(timeout time.Duration, maxBytes int64) *DirectStrategy {
	return &DirectStrategy{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// WithClient replaces the HTTP client, mainly for tests.
func (s *DirectStrategy) WithClient(client *http.Client) *DirectStrategy {
	s.client = client
	return s
}

func (s *DirectStrategy) Name() analysis.Strategy {
	return analysis.StrategyDirect
}

func (s *DirectStrategy) Fetch(ctx context.Context, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return analysis.WrapFailure(analysis.FailInvalidInput, analysis.StageDownloading,
			"cannot build download request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return analysis.WrapFailure(analysis.FailTimeout, analysis.StageDownloading,
				"download timed out", err)
		}
		return analysis.WrapFailure(analysis.FailNetwork, analysis.StageDownloading,
			"download request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !isVideoContentType(ct) {
		return analysis.NewFailure(analysis.FailUnsupported, analysis.StageDownloading,
			fmt.Sprintf("URL does not serve a video file (content-type %s)", ct))
	}

	if s.maxBytes > 0 && resp.ContentLength > s.maxBytes {
		return analysis.NewFailure(analysis.FailTooLarge, analysis.StageDownloading,
			fmt.Sprintf("video is %d bytes, ceiling is %d", resp.ContentLength, s.maxBytes))
	}

	out, err := os.Create(destPath)
	if err != nil {
		return analysis.WrapFailure(analysis.FailNetwork, analysis.StageDownloading,
			"cannot create local file", err)
	}

	// Servers may omit Content-Length; enforce the ceiling while
	// streaming so an oversized body never lands fully on disk.
	reader := io.Reader(resp.Body)
	if s.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, s.maxBytes+1)
	}
	written, copyErr := io.Copy(out, reader)
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(destPath)
		if isTimeout(copyErr) {
			return analysis.WrapFailure(analysis.FailTimeout, analysis.StageDownloading,
				"download timed out mid-transfer", copyErr)
		}
		return analysis.WrapFailure(analysis.FailNetwork, analysis.StageDownloading,
			"download interrupted", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(destPath)
		return analysis.WrapFailure(analysis.FailNetwork, analysis.StageDownloading,
			"cannot flush local file", closeErr)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		_ = os.Remove(destPath)
		return analysis.NewFailure(analysis.FailTooLarge, analysis.StageDownloading,
			fmt.Sprintf("video exceeds %d byte ceiling", s.maxBytes))
	}
	if written == 0 {
		_ = os.Remove(destPath)
		return analysis.NewFailure(analysis.FailNetwork, analysis.StageDownloading,
			"downloaded file is empty")
	}

	log.Debug("direct fetch wrote %s (%d bytes)", destPath, written)
	return nil
}

func isVideoContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.HasPrefix(ct, "video/") ||
		strings.HasPrefix(ct, "application/octet-stream") ||
		strings.HasPrefix(ct, "binary/octet-stream")
}

func isTimeout(err error) bool {
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}
