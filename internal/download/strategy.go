// Package download acquires a local copy of a clip. Strategies are an
// ordered list of named fetchers; the downloader walks them until one
// succeeds, preserving every failure reason for diagnostics. No strategy
// retries internally; retry policy, if any, belongs to higher layers.
package download

import (
	"context"
	"fmt"

	"github.com/patchlib/clipsight/internal/analysis"
)

// Strategy is one named way to fetch a clip into a local file.
type Strategy interface {
	Name() analysis.Strategy
	Fetch(ctx context.Context, rawURL, destPath string) error
}

// classifyStatus maps an HTTP status to the download failure taxonomy.
func classifyStatus(status int) *analysis.Failure {
	switch {
	case status == 404 || status == 410:
		return analysis.NewFailure(analysis.FailNotFound, analysis.StageDownloading,
			fmt.Sprintf("video not found (HTTP %d)", status))
	case status == 401 || status == 403:
		return analysis.NewFailure(analysis.FailAccessDenied, analysis.StageDownloading,
			fmt.Sprintf("video access denied (HTTP %d)", status))
	default:
		return analysis.NewFailure(analysis.FailNetwork, analysis.StageDownloading,
			fmt.Sprintf("unexpected HTTP status %d", status))
	}
}
