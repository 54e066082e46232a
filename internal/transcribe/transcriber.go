// Package transcribe extracts the audio track and runs it through the
// transcription model. Transcription is best effort: a clip without
// audio, or an API hiccup, degrades to an empty transcript instead of
// failing the whole analysis.
package transcribe

import (
	"context"
	"os"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/patchlib/clipsight/internal/analysis"
	"github.com/patchlib/clipsight/internal/media"
	"github.com/patchlib/clipsight/pkg/log"
)

type SpeechAPI interface {
	Transcribe(ctx context.Context, audioPath string) (text, lang string, err error)
}

type Transcriber struct {
	api SpeechAPI
}

func NewTranscriber(api SpeechAPI) *Transcriber {
	return &Transcriber{api: api}
}

// Transcribe returns the clip's transcript, or an empty one with the
// reason logged when any step fails.
func (t *Transcriber) Transcribe(ctx context.Context, videoPath string) analysis.Transcript {
	audioPath, err := media.ExtractAudio(ctx, videoPath)
	if err != nil {
		log.Warn("transcription skipped, no audio track: %v", err)
		return analysis.Transcript{}
	}
	defer os.Remove(audioPath)

	text, lang, err := t.api.Transcribe(ctx, audioPath)
	if err != nil {
		log.Warn("transcription skipped, API failure: %v", err)
		return analysis.Transcript{}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return analysis.Transcript{}
	}

	return analysis.Transcript{
		Text:     text,
		Language: resolveLanguage(lang, text),
	}
}

// resolveLanguage prefers the API's own language field and falls back
// to detecting it from the text.
func resolveLanguage(apiLang, text string) string {
	if apiLang != "" {
		if tag, err := language.Parse(apiLang); err == nil {
			return tag.String()
		}
		return apiLang
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return ""
	}
	if tag, err := language.Parse(code); err == nil {
		return tag.String()
	}
	return code
}
