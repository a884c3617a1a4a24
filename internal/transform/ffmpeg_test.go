package transform

import (
	"strings"
	"testing"
	"time"
)

func TestBuildRenderArgsPlain(t *testing.T) {
	args := buildRenderArgs("in.mp3", "", "out.ogg", RenderOptions{})
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "-af") {
		t.Fatalf("unexpected filter arg in %q", joined)
	}
	if !strings.HasSuffix(joined, "-vn out.ogg") {
		t.Fatalf("unexpected tail in %q", joined)
	}
}

func TestBuildRenderArgsTrimmed(t *testing.T) {
	args := buildRenderArgs("in.mp3", "areverse", "out.ogg", RenderOptions{
		StartOffset: 1500 * time.Millisecond,
		Duration:    2 * time.Second,
	})
	joined := strings.Join(args, " ")
	// Trim options must precede -i so the filter chain sees only the
	// extracted segment.
	if !strings.Contains(joined, "-ss 1.500 -t 2.000 -i in.mp3") {
		t.Fatalf("input-side trim missing in %q", joined)
	}
	if !strings.Contains(joined, "-af areverse") {
		t.Fatalf("filter missing in %q", joined)
	}
}

func TestScratchPathUnique(t *testing.T) {
	f := NewFFmpeg("ffmpeg", "ffprobe", t.TempDir(), testLogger())
	a := f.ScratchPath("ogg")
	b := f.ScratchPath("ogg")
	if a == b {
		t.Fatalf("scratch paths collide: %q", a)
	}
	if !strings.HasSuffix(a, ".ogg") {
		t.Fatalf("missing extension: %q", a)
	}
}
