// Package media wraps the ffmpeg and ffprobe binaries for the probe,
// frame and audio operations the pipeline needs. All commands run
// under the caller's context.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/pkg/file"
	"github.com/patchlib/clipsight/pkg/log"
)

const (
	ffmpegBin  = "ffmpeg"
	ffprobeBin = "ffprobe"
)

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration reads the container duration in seconds.
func ProbeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, ffprobeBin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, analysis.WrapFailure(analysis.FailFrameExtraction, analysis.StageSampling,
			"ffprobe failed", err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, analysis.WrapFailure(analysis.FailFrameExtraction, analysis.StageSampling,
			"cannot parse ffprobe output", err)
	}
	dur, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || dur <= 0 {
		return 0, analysis.NewFailure(analysis.FailFrameExtraction, analysis.StageSampling,
			"video has no readable duration")
	}
	return dur, nil
}

// ExtractFrame grabs a single JPEG at the given offset.
func ExtractFrame(ctx context.Context, videoPath string, offset float64, outPath string) error {
	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-ss", fmt.Sprintf("%.3f", offset),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return analysis.WrapFailure(analysis.FailFrameExtraction, analysis.StageSampling,
			fmt.Sprintf("frame at %.1fs: %s", offset, firstLine(stderr.String())), err)
	}
	return nil
}

// ExtractAudio writes a 16kHz mono PCM wav, the format the
// transcription endpoint handles best.
func ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	outPath := file.ReplaceExt(videoPath, ".wav")
	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", analysis.WrapFailure(analysis.FailNetwork, analysis.StageTranscribing,
			"audio extraction failed: "+firstLine(stderr.String()), err)
	}
	log.Debug("extracted audio track to %s", outPath)
	return outPath, nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
