package download

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/pkg/log"
)

// ExtractorStrategy shells out to yt-dlp to resolve a hosting-site URL
// into a local media file.
type ExtractorStrategy struct {
	binary  string
	timeout time.Duration
}

func NewExtractorStrategy(timeout time.Duration) *ExtractorStrategy {
	return &ExtractorStrategy{
		binary:  "yt-dlp",
		timeout: timeout,
	}
}

func (s *ExtractorStrategy) Name() analysis.Strategy {
	return analysis.StrategyExtractor
}

// Available reports whether the extractor binary can be found. Used at
// startup so a missing binary surfaces early, not per clip.
func (s *ExtractorStrategy) Available() bool {
	_, err := exec.LookPath(s.binary)
	return err == nil
}

// CanExtract asks yt-dlp to simulate extraction without downloading.
// Implements validate.CapabilityProber.
func (s *ExtractorStrategy) CanExtract(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binary, "--simulate", "--quiet", "--no-warnings", rawURL)
	return cmd.Run() == nil
}

func (s *ExtractorStrategy) Fetch(ctx context.Context, rawURL, destPath string) error {
	if _, err := exec.LookPath(s.binary); err != nil {
		return analysis.WrapFailure(analysis.FailUnsupported, analysis.StageDownloading,
			"platform extractor binary not installed", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// yt-dlp refuses to overwrite; download to a staging name and rename.
	staging := destPath + ".downloading"
	cmd := exec.CommandContext(ctx, s.binary,
		"-f", "best[ext=mp4]/best",
		"-o", staging,
		"--no-playlist",
		"--no-warnings",
		"--quiet",
		rawURL,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(staging)
		if ctx.Err() == context.DeadlineExceeded {
			return analysis.WrapFailure(analysis.FailTimeout, analysis.StageDownloading,
				"platform extraction timed out", err)
		}
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = "platform extraction failed"
		}
		return analysis.WrapFailure(analysis.FailUnsupported, analysis.StageDownloading,
			firstLine(reason), err)
	}

	if err := os.Rename(staging, destPath); err != nil {
		return analysis.WrapFailure(analysis.FailNetwork, analysis.StageDownloading,
			"cannot finalize extracted file", err)
	}

	info, err := os.Stat(destPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(destPath)
		return analysis.NewFailure(analysis.FailNetwork, analysis.StageDownloading,
			"extractor produced no file")
	}

	log.Debug("extractor fetched %s (%d bytes)", destPath, info.Size())
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
