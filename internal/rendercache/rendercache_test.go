package rendercache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testCache() *Cache {
	return &Cache{
		logger:   zerolog.New(io.Discard),
		config:   DefaultConfig(),
		local:    make(map[string]string),
		disabled: true,
	}
}

func TestKeyStable(t *testing.T) {
	a := Key("media-1", "bass=3,nightcore")
	b := Key("media-1", "bass=3,nightcore")
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	if a == Key("media-1", "bass=3") {
		t.Fatalf("different signatures must not collide")
	}
	if a == Key("media-2", "bass=3,nightcore") {
		t.Fatalf("different media must not collide")
	}
}

func TestGetMissing(t *testing.T) {
	c := testCache()
	if _, ok := c.Get(context.Background(), Key("m", "")); ok {
		t.Fatalf("expected miss")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := testCache()
	path := filepath.Join(t.TempDir(), "a.ogg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	key := Key("m", "bass=3")
	c.Put(context.Background(), key, path)

	got, ok := c.Get(context.Background(), key)
	if !ok || got != path {
		t.Fatalf("expected %q, got %q ok=%v", path, got, ok)
	}
}

func TestPutFirstWins(t *testing.T) {
	c := testCache()
	dir := t.TempDir()
	first := filepath.Join(dir, "first.ogg")
	if err := os.WriteFile(first, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	key := Key("m", "")
	c.Put(context.Background(), key, first)
	c.Put(context.Background(), key, filepath.Join(dir, "second.ogg"))

	got, ok := c.Get(context.Background(), key)
	if !ok || got != first {
		t.Fatalf("expected first render to win, got %q ok=%v", got, ok)
	}
}

func TestGetEvictsVanishedFile(t *testing.T) {
	c := testCache()
	path := filepath.Join(t.TempDir(), "gone.ogg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	key := Key("m", "echo")
	c.Put(context.Background(), key, path)
	os.Remove(path)

	if _, ok := c.Get(context.Background(), key); ok {
		t.Fatalf("expected miss after file removal")
	}
	if _, exists := c.local[key]; exists {
		t.Fatalf("expected local eviction")
	}
}
