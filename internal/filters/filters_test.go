package filters

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseUnknownTokensDropped(t *testing.T) {
	effects := Parse("wobble,flanger2000,bass")
	if len(effects) != 1 {
		t.Fatalf("expected 1 effect, got %d", len(effects))
	}
	if effects[0].Name != "bass" {
		t.Fatalf("expected bass, got %s", effects[0].Name)
	}
}

func TestParseOutOfRangeValueDropped(t *testing.T) {
	effects := Parse("bass=999")
	if len(effects) != 0 {
		t.Fatalf("expected out-of-range bass to be dropped, got %+v", effects)
	}
}

func TestParseDefaultsAndValues(t *testing.T) {
	effects := Parse(" Bass , speed=1.5 ")
	if len(effects) != 2 {
		t.Fatalf("expected 2 effects, got %d", len(effects))
	}
	if effects[0].Value != 5 {
		t.Fatalf("expected bass default 5, got %g", effects[0].Value)
	}
	if effects[1].Value != 1.5 {
		t.Fatalf("expected speed 1.5, got %g", effects[1].Value)
	}
}

func TestParseDeduplicates(t *testing.T) {
	effects := Parse("bass=3,bass=7")
	if len(effects) != 1 || effects[0].Value != 3 {
		t.Fatalf("expected first bass to win, got %+v", effects)
	}
}

func TestSignatureCanonical(t *testing.T) {
	a := Signature(Parse("BASS=3, nightcore"))
	b := Signature(Parse("bass=3,nightcore"))
	if a != b {
		t.Fatalf("signatures differ: %q vs %q", a, b)
	}
	if a != "bass=3,nightcore" {
		t.Fatalf("unexpected signature %q", a)
	}
	if c := Signature(Parse("nightcore,bass=3")); c != a {
		t.Fatalf("signature depends on input order: %q vs %q", c, a)
	}
}

func TestCompileEmpty(t *testing.T) {
	if out := Compile(nil); out != "" {
		t.Fatalf("expected empty compile, got %q", out)
	}
}

func TestCompileChains(t *testing.T) {
	out := Compile(Parse("bass=3,reverse"))
	if out != "bass=g=3,areverse" {
		t.Fatalf("unexpected chain %q", out)
	}
}

func TestPresetsResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	content := "presets:\n  chipmunk: \"pitch=1.8,speed=1.2\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write presets: %v", err)
	}

	presets, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("load presets: %v", err)
	}

	resolved := presets.Resolve("chipmunk,echo")
	effects := Parse(resolved)
	if len(effects) != 3 {
		t.Fatalf("expected pitch+speed+echo, got %+v", effects)
	}
}

func TestPresetsMissingFile(t *testing.T) {
	if _, err := LoadPresets("/nonexistent/presets.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestPresetsEmptyPath(t *testing.T) {
	presets, err := LoadPresets("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := presets.Resolve("bass"); got != "bass" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
