// Package validate classifies clip URLs before any download work
// happens. Well-known platform hosts are accepted without touching the
// network; direct file URLs get a cheap existence probe.
package validate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/pkg/file"
)

// Classification tags the download path a URL should take.
type Classification string

const (
	ClassPlatformVideo Classification = "platform-video"
	ClassDirectFile    Classification = "direct-file"
)

// Result is a successful classification with a human-readable reason.
type Result struct {
	Classification Classification
	Reason         string
}

// CapabilityProber reports whether the platform extractor can resolve a
// URL that is neither an allowlisted host nor a direct file.
type CapabilityProber interface {
	CanExtract(ctx context.Context, rawURL string) bool
}

// platformHosts mirrors the extractor's best-supported sites. Matching
// here skips the network probe entirely; the extractor re-validates on
// download anyway.
var platformHosts = []string{
	"youtube.com",
	"youtu.be",
	"twitch.tv",
	"clips.twitch.tv",
	"vimeo.com",
	"dailymotion.com",
	"facebook.com",
	"instagram.com",
	"tiktok.com",
	"twitter.com",
	"x.com",
}

var directExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".webm": {},
	".flv":  {},
	".m4v":  {},
}

type Validator struct {
	client *http.Client
	prober CapabilityProber
}

type Option func(*Validator)

// WithHTTPClient replaces the probe client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Validator) {
		v.client = client
	}
}

func New(prober CapabilityProber, opts ...Option) *Validator {
	v := &Validator{
		client: &http.Client{Timeout: 10 * time.Second},
		prober: prober,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate classifies rawURL, returning a Result or an
// *analysis.Failure. Rules apply in order: empty input, platform
// allowlist, direct file extension (with probe), extractor capability.
func (v *Validator) Validate(ctx context.Context, rawURL string) (Result, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return Result{}, analysis.NewFailure(analysis.FailInvalidInput, analysis.StageValidating,
			"video URL is empty")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Result{}, analysis.NewFailure(analysis.FailInvalidInput, analysis.StageValidating,
			fmt.Sprintf("not an absolute http(s) URL: %q", trimmed))
	}

	if host := parsed.Hostname(); isPlatformHost(host) {
		return Result{
			Classification: ClassPlatformVideo,
			Reason:         fmt.Sprintf("known video platform: %s", host),
		}, nil
	}

	if _, ok := directExtensions[file.LowerExt(parsed.Path)]; ok {
		return v.probeDirectFile(ctx, trimmed)
	}

	if v.prober != nil && v.prober.CanExtract(ctx, trimmed) {
		return Result{
			Classification: ClassPlatformVideo,
			Reason:         "resolvable by platform extractor",
		}, nil
	}

	return Result{}, analysis.NewFailure(analysis.FailUnsupported, analysis.StageValidating,
		"unsupported URL: not a known platform, direct video file, or extractor-resolvable page")
}

// probeDirectFile issues a HEAD request to confirm the file exists
// without transferring it.
func (v *Validator) probeDirectFile(ctx context.Context, rawURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return Result{}, analysis.WrapFailure(analysis.FailInvalidInput, analysis.StageValidating,
			"cannot build probe request", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Result{}, analysis.WrapFailure(analysis.FailTimeout, analysis.StageValidating,
				"video file unreachable: probe timed out", err)
		}
		return Result{}, analysis.WrapFailure(analysis.FailNetwork, analysis.StageValidating,
			"video file probe failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return Result{}, analysis.NewFailure(analysis.FailNotFound, analysis.StageValidating,
			fmt.Sprintf("video file not found (HTTP %d)", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{}, analysis.NewFailure(analysis.FailAccessDenied, analysis.StageValidating,
			fmt.Sprintf("video file access denied (HTTP %d)", resp.StatusCode))
	case resp.StatusCode >= 400:
		return Result{}, analysis.NewFailure(analysis.FailNetwork, analysis.StageValidating,
			fmt.Sprintf("video file not accessible (HTTP %d)", resp.StatusCode))
	}

	return Result{
		Classification: ClassDirectFile,
		Reason:         "direct video file URL",
	}, nil
}

func isPlatformHost(host string) bool {
	host = strings.ToLower(host)
	for _, known := range platformHosts {
		if host == known || strings.HasSuffix(host, "."+known) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}
