package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/patchlib/clipsight/pkg/log"
)

// modelOutput is the shape we ask the vision model for. Fields the
// model omits or garbles are defaulted rather than rejected.
type modelOutput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Streamer    string   `json:"streamer"`
	Game        string   `json:"game"`
	Platform    string   `json:"platform"`
	ContentType string   `json:"content_type"`
}

// ParseModelOutput turns raw model text into an AnalysisRecord. Models
// wrap JSON in markdown fences or prose more often than not, so the
// parser digs the object out before decoding. Only text with no JSON
// object at all is a hard failure.
func ParseModelOutput(raw string, ref ClipReference, frames int, transcript Transcript) (*AnalysisRecord, *Failure) {
	jsonText := extractJSON(raw)
	if jsonText == "" {
		return nil, NewFailure(FailParse, StageParsing, "model response contains no JSON object")
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(jsonText), &out); err != nil {
		return nil, WrapFailure(FailParse, StageParsing, "model JSON does not decode", err)
	}

	record := &AnalysisRecord{
		SourceURL:          ref.SourceURL,
		Title:              strings.TrimSpace(out.Title),
		Description:        strings.TrimSpace(out.Description),
		Tags:               NormalizeTags(out.Tags),
		Streamer:           defaultUnknown(out.Streamer),
		Game:               defaultUnknown(out.Game),
		Platform:           defaultUnknown(out.Platform),
		ContentType:        defaultUnknown(out.ContentType),
		TranscriptIncluded: !transcript.Empty(),
		TranscriptLength:   transcript.Len(),
		FramesAnalyzed:     frames,
		ProcessedAt:        time.Now().UTC(),
	}

	if record.Title == "" {
		record.Title = fallbackTitle(ref, record.ProcessedAt)
		log.Warn("model returned no title for %s, using fallback", ref.SourceURL)
	}
	if record.Streamer == "unknown" && ref.Streamer != "" {
		record.Streamer = ref.Streamer
	}
	if record.Platform == "unknown" && ref.Platform != "" {
		record.Platform = strings.ToLower(ref.Platform)
	}

	return record, nil
}

// extractJSON strips markdown fences and surrounding prose, returning
// the span from the first '{' to the last '}'.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func defaultUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}

func fallbackTitle(ref ClipReference, at time.Time) string {
	streamer := ref.Streamer
	if streamer == "" {
		streamer = "unknown"
	}
	platform := ref.Platform
	if platform == "" {
		platform = "clip"
	}
	return fmt.Sprintf("%s %s %s", streamer, platform, at.Format("2006-01-02 15:04"))
}
