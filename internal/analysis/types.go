package analysis

import (
	"strings"
	"time"
)

// ClipReference identifies one clip to analyze. Immutable pipeline input.
type ClipReference struct {
	ID        string `json:"id,omitempty"`
	SourceURL string `json:"video_link"`
	Streamer  string `json:"streamer_name,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// Strategy names the download path that produced a local media file.
type Strategy string

const (
	StrategyExtractor Strategy = "platform-extractor"
	StrategyDirect    Strategy = "direct-fetch"
)

// DownloadedMedia is a local copy of a clip, owned by exactly one
// in-flight analysis and removed when that analysis terminates.
type DownloadedMedia struct {
	Path     string
	Size     int64
	Duration float64
	Strategy Strategy
}

// Frame is a single still sampled from the video.
type Frame struct {
	Timestamp float64
	JPEG      []byte
}

// FrameSet is an ordered sequence of sampled frames. Never empty on a
// successful sampling run.
type FrameSet []Frame

// Transcript is the best-effort audio transcript of a clip. An empty
// transcript is a valid outcome, not an error.
type Transcript struct {
	Text     string
	Language string
}

func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

func (t Transcript) Len() int {
	return len(t.Text)
}

// AnalysisRecord is the persisted output of a successful analysis.
type AnalysisRecord struct {
	SourceURL          string    `json:"video_url"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Tags               []string  `json:"tags"`
	Streamer           string    `json:"streamer"`
	Game               string    `json:"game"`
	Platform           string    `json:"platform"`
	ContentType        string    `json:"content_type"`
	TranscriptIncluded bool      `json:"transcript_included"`
	TranscriptLength   int       `json:"transcript_length"`
	FramesAnalyzed     int       `json:"frames_analyzed"`
	ProcessedAt        time.Time `json:"processed_at"`
}

// NormalizeTags lower-cases, trims and de-duplicates a tag list while
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	ret := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		ret = append(ret, tag)
	}
	return ret
}
