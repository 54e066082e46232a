package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/pkg/log"
)

// Sampler picks representative frames at a fixed interval, capped at a
// maximum count spread evenly across the clip.
type Sampler struct {
	interval float64
	maxCount int
}

func NewSampler(intervalSeconds float64, maxFrames int) *Sampler {
	return &Sampler{interval: intervalSeconds, maxCount: maxFrames}
}

// sampleOffsets returns the timestamps to capture: 0, interval,
// 2*interval and so on, stopping at the end of the clip or at the
// frame cap, whichever comes first. Clips shorter than one interval
// still get at least one frame.
func sampleOffsets(duration, interval float64, maxCount int) []float64 {
	if duration <= 0 || maxCount <= 0 {
		return nil
	}
	if duration <= interval {
		offsets := []float64{0, duration / 2, duration * 0.95}
		return dedupeOffsets(offsets, maxCount)
	}

	count := int(duration/interval) + 1
	if count > maxCount {
		count = maxCount
	}
	offsets := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		offsets = append(offsets, interval*float64(i))
	}
	return dedupeOffsets(offsets, maxCount)
}

func dedupeOffsets(offsets []float64, maxCount int) []float64 {
	out := offsets[:0]
	var last float64 = -1
	for _, off := range offsets {
		if off-last < 0.25 {
			continue
		}
		out = append(out, off)
		last = off
	}
	if len(out) > maxCount {
		out = out[:maxCount]
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	return out
}

// Sample probes the clip and captures frames into workDir. Individual
// frame failures are skipped; only an empty result is an error.
func (s *Sampler) Sample(ctx context.Context, videoPath, workDir string) (analysis.FrameSet, float64, error) {
	duration, err := ProbeDuration(ctx, videoPath)
	if err != nil {
		return nil, 0, err
	}

	offsets := sampleOffsets(duration, s.interval, s.maxCount)
	frames := make(analysis.FrameSet, 0, len(offsets))
	for i, offset := range offsets {
		outPath := filepath.Join(workDir, fmt.Sprintf("frame-%02d.jpg", i))
		if err := ExtractFrame(ctx, videoPath, offset, outPath); err != nil {
			log.Warn("skipping frame at %.1fs: %v", offset, err)
			continue
		}
		data, err := os.ReadFile(outPath)
		if err != nil || len(data) == 0 {
			log.Warn("skipping unreadable frame at %.1fs", offset)
			continue
		}
		frames = append(frames, analysis.Frame{Timestamp: offset, JPEG: data})
	}

	if len(frames) == 0 {
		return nil, duration, analysis.NewFailure(analysis.FailFrameExtraction, analysis.StageSampling,
			"no frames could be extracted")
	}
	log.Info("sampled %d frames over %.1fs of video", len(frames), duration)
	return frames, duration, nil
}
