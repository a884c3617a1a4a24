package tts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_radio/internal/transform"
)

type fixedProbe struct {
	transform.Gateway
	duration time.Duration
}

func (f fixedProbe) ProbeDuration(context.Context, string) time.Duration {
	return f.duration
}

func TestHTTPSynthesizerWritesArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/synthesize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("RIFFfakewav"))
	}))
	defer server.Close()

	s := NewHTTPSynthesizer(server.URL, t.TempDir(), fixedProbe{duration: 2 * time.Second}, zerolog.New(io.Discard))
	path, duration, err := s.Synthesize(context.Background(), "hello listeners")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if duration != 2*time.Second {
		t.Fatalf("expected measured duration, got %s", duration)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "RIFFfakewav" {
		t.Fatalf("unexpected artifact contents %q", data)
	}
}

func TestHTTPSynthesizerServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewHTTPSynthesizer(server.URL, t.TempDir(), fixedProbe{}, zerolog.New(io.Discard))
	if _, _, err := s.Synthesize(context.Background(), "x"); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestHTTPSynthesizerUnconfigured(t *testing.T) {
	s := NewHTTPSynthesizer("", t.TempDir(), fixedProbe{}, zerolog.New(io.Discard))
	if _, _, err := s.Synthesize(context.Background(), "x"); err == nil {
		t.Fatalf("expected error when unconfigured")
	}
}

func TestTemplateTransitionLineMentionsBothTracks(t *testing.T) {
	line, err := TemplateLineWriter{}.TransitionLine(context.Background(), "Song A", "Song B")
	if err != nil {
		t.Fatalf("transition line: %v", err)
	}
	if !strings.Contains(line, "Song A") || !strings.Contains(line, "Song B") {
		t.Fatalf("line missing track names: %q", line)
	}
}

func TestTemplateCustomLineRejectsEmpty(t *testing.T) {
	if _, err := (TemplateLineWriter{}).CustomLine(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestHTTPLineWriter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"line":"Up next, something great."}`))
	}))
	defer server.Close()

	w := NewHTTPLineWriter(server.URL, zerolog.New(io.Discard))
	line, err := w.TransitionLine(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("line: %v", err)
	}
	if line != "Up next, something great." {
		t.Fatalf("unexpected line %q", line)
	}
}
