package analysis

import (
	"fmt"
	"strings"
)

// basePrompt asks for strict JSON describing the clip. The field names
// here must stay in sync with the parser's schema.
const basePrompt = `You are analyzing frames sampled from a video game streaming clip, in temporal order. Study all frames and produce a single JSON object with exactly these fields:

{
  "title": "short catchy title for the clip",
  "description": "2-3 sentence summary of what happens",
  "tags": ["lowercase", "searchable", "tags"],
  "streamer": "streamer or channel name if visible, else unknown",
  "game": "game being played if identifiable, else unknown",
  "platform": "streaming platform if identifiable, else unknown",
  "content_type": "one of: gameplay, reaction, tutorial, highlight, chat, other"
}

Focus on on-screen overlays, HUD elements, chat windows and webcam framing to identify the streamer, game and platform. Respond with the JSON object only, no commentary.`

// ComposePrompt builds the deterministic model prompt for a clip.
// Reference metadata is passed as hints the model may confirm, never
// as facts to echo back.
func ComposePrompt(ref ClipReference, frames FrameSet, transcript Transcript) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	b.WriteString(fmt.Sprintf("\n\nYou are given %d frames sampled across the clip's duration.", len(frames)))

	if ref.Streamer != "" || ref.Platform != "" {
		b.WriteString("\n\nHints from the submitting catalog (verify against the frames before trusting):")
		if ref.Streamer != "" {
			b.WriteString("\n- possible streamer: " + ref.Streamer)
		}
		if ref.Platform != "" {
			b.WriteString("\n- possible platform: " + ref.Platform)
		}
	}

	if !transcript.Empty() {
		b.WriteString("\n\nAudio Content: ")
		b.WriteString(transcript.Text)
	}

	return b.String()
}
