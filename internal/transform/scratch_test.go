package transform

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCleanScratchRemovesOnlyStalePrefixedFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "munin-stale.ogg")
	fresh := filepath.Join(dir, "munin-fresh.ogg")
	other := filepath.Join(dir, "keep.ogg")
	for _, path := range []string{stale, fresh, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := CleanScratch(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale file survived")
	}
	for _, path := range []string{fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("%s should survive: %v", path, err)
		}
	}
}
