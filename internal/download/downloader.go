package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/internal/validate"
	"github.com/patchlib/clipsight/pkg/log"
)

// Downloader tries strategies in a fixed order for the URL's
// classification and stops at the first success. Every strategy's
// failure reason is kept so the caller sees the full story when all of
// them fail.
type Downloader struct {
	extractor Strategy
	direct    Strategy
}

func NewDownloader(extractor, direct Strategy) *Downloader {
	return &Downloader{extractor: extractor, direct: direct}
}

func (d *Downloader) strategiesFor(class validate.Classification) []Strategy {
	switch class {
	case validate.ClassDirectFile:
		return []Strategy{d.direct}
	default:
		return []Strategy{d.extractor, d.direct}
	}
}

// Fetch downloads the clip into destDir and returns the local media
// handle. The filename is fixed per attempt so a half-written staging
// file from one strategy never leaks into the next.
func (d *Downloader) Fetch(ctx context.Context, rawURL string, class validate.Classification, destDir string) (*analysis.DownloadedMedia, error) {
	var (
		reasons []string
		last    *analysis.Failure
	)

	strategies := d.strategiesFor(class)
	for _, strat := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, analysis.WrapFailure(analysis.FailCancelled, analysis.StageDownloading,
				"download cancelled", err)
		}

		destPath := filepath.Join(destDir, fmt.Sprintf("clip-%s.mp4", strat.Name()))
		err := strat.Fetch(ctx, rawURL, destPath)
		if err == nil {
			info, statErr := os.Stat(destPath)
			if statErr != nil || info.Size() == 0 {
				reasons = append(reasons, fmt.Sprintf("%s: produced no file", strat.Name()))
				continue
			}
			log.Info("downloaded %s via %s (%d bytes)", rawURL, strat.Name(), info.Size())
			return &analysis.DownloadedMedia{
				Path:     destPath,
				Size:     info.Size(),
				Strategy: strat.Name(),
			}, nil
		}

		fail := analysis.AsFailure(err, analysis.StageDownloading)
		if fail.Kind == analysis.FailCancelled || fail.Kind == analysis.FailTooLarge {
			// Not worth retrying with another strategy.
			return nil, fail
		}
		if len(strategies) == 1 {
			return nil, fail
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s", strat.Name(), fail.Reason))
		last = fail
		log.Warn("strategy %s failed for %s: %s", strat.Name(), rawURL, fail.Reason)
	}

	// The last strategy attempted is the most specific verdict on the
	// URL itself, so its kind carries over to the combined failure.
	kind := analysis.FailNetwork
	if last != nil {
		kind = last.Kind
	}
	return nil, analysis.NewFailure(kind, analysis.StageDownloading,
		"all download strategies failed: "+strings.Join(reasons, "; "))
}
