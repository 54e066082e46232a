package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "video/clip.wav", ReplaceExt("video/clip.mp4", ".wav"))
	assert.Equal(t, "video/clip.wav", ReplaceExt("video/clip.mp4", "wav"))
	assert.Equal(t, "clip.wav", ReplaceExt("clip", ".wav"))
	assert.Equal(t, "", ReplaceExt("", ".wav"))
}

func TestLowerExt(t *testing.T) {
	assert.Equal(t, ".mp4", LowerExt("/clips/highlight.MP4"))
	assert.Equal(t, ".webm", LowerExt("/clips/clip.webm?token=abc"))
	assert.Equal(t, ".mov", LowerExt("clip.mov#t=10"))
	assert.Equal(t, "", LowerExt("/clips/noext"))
}
