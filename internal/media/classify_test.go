package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func files(exts ...string) []DiscoveredFile {
	out := make([]DiscoveredFile, 0, len(exts))
	for _, ext := range exts {
		out = append(out, DiscoveredFile{Path: "dl_1_1." + ext, Ext: ext, Size: 1})
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		files     []DiscoveredFile
		wantKind  DecisionKind
		wantFiles []string
	}{
		{"audio mp3", ModeAudio, files("mp3"), SingleAudio, []string{"mp3"}},
		{"audio ogg", ModeAudio, files("ogg"), UnsupportedFormat, nil},
		{"audio two files", ModeAudio, files("mp3", "jpg"), AmbiguousFiles, nil},
		{"audio none", ModeAudio, nil, NoFileFound, nil},
		{"video mp4", ModeVideo, files("mp4"), SingleVideo, []string{"mp4"}},
		{"video single image", ModeVideo, files("jpg"), SinglePhoto, []string{"jpg"}},
		{"video single other", ModeVideo, files("webm"), SinglePhoto, []string{"webm"}},
		{"video images plus text", ModeVideo, files("jpg", "png", "txt"), PhotoGroup, []string{"jpg", "png"}},
		{"video all image kinds", ModeVideo, files("gif", "jpeg", "jpg", "png"), PhotoGroup, []string{"gif", "jpeg", "jpg", "png"}},
		{"video no images", ModeVideo, files("mp4", "txt"), AmbiguousFiles, nil},
		{"video none", ModeVideo, nil, NoFileFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.files, tt.mode)
			assert.Equal(t, tt.wantKind, d.Kind)

			var got []string
			for _, f := range d.Files {
				got = append(got, f.Ext)
			}
			assert.Equal(t, tt.wantFiles, got)
		})
	}
}

func TestDecisionKind_String(t *testing.T) {
	assert.Equal(t, "single_audio", SingleAudio.String())
	assert.Equal(t, "photo_group", PhotoGroup.String())
	assert.Equal(t, "too_large", TooLarge.String())
	assert.Equal(t, "unknown", DecisionKind(99).String())
}

func TestDecisionKind_Deliverable(t *testing.T) {
	assert.True(t, SingleAudio.Deliverable())
	assert.True(t, PhotoGroup.Deliverable())
	assert.False(t, TooLarge.Deliverable())
	assert.False(t, AmbiguousFiles.Deliverable())
}
