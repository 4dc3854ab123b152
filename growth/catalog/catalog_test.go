package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultKinds(t *testing.T) {
	cat := Default()
	for _, kind := range []string{"oak-sapling", "birch-sapling", "pine-sapling", "willow-sapling"} {
		def, ok := cat.Lookup(kind)
		if !ok {
			t.Fatalf("expected default catalog to know %q", kind)
		}
		if def.MaturitySeconds != 120 {
			t.Fatalf("expected 120s maturity for %q, got %v", kind, def.MaturitySeconds)
		}
	}
	if cat.Knows("tumbleweed") {
		t.Fatalf("expected unknown kind to be rejected")
	}
}

func TestMaturityDuration(t *testing.T) {
	cat := Default()
	if got := cat.MaturityDuration("oak-sapling"); got != 120*time.Second {
		t.Fatalf("expected 120s, got %v", got)
	}
	if got := cat.MaturityDuration("tumbleweed"); got != 0 {
		t.Fatalf("expected zero duration for unknown kind, got %v", got)
	}
}

func TestResultKind(t *testing.T) {
	cat := Default()
	if got := cat.ResultKind("oak-sapling"); got != "oak-tree" {
		t.Fatalf("expected oak-tree, got %q", got)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	doc := `[
		{"kind": "oak-sapling", "maturitySeconds": 30, "resultKind": "oak-tree"},
		{"kind": "cactus-seed", "maturitySeconds": 600, "resultKind": "cactus"}
	]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	cat, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := cat.MaturityDuration("oak-sapling"); got != 30*time.Second {
		t.Fatalf("expected overlay to shorten oak maturity, got %v", got)
	}
	if got := cat.ResultKind("cactus-seed"); got != "cactus" {
		t.Fatalf("expected new kind to resolve, got %q", got)
	}
	// Untouched defaults survive the overlay.
	if !cat.Knows("birch-sapling") {
		t.Fatalf("expected default kinds to survive overlay")
	}
}

func TestLoadFileRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"missing kind":       `[{"maturitySeconds": 30, "resultKind": "x"}]`,
		"missing resultKind": `[{"kind": "a", "maturitySeconds": 30}]`,
		"zero maturity":      `[{"kind": "a", "maturitySeconds": 0, "resultKind": "x"}]`,
		"negative maturity":  `[{"kind": "a", "maturitySeconds": -5, "resultKind": "x"}]`,
	}
	for name, doc := range cases {
		path := filepath.Join(t.TempDir(), "catalog.json")
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write catalog: %v", err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Fatalf("expected %s to fail validation", name)
		}
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected missing file to fail")
	}
}

func TestKindsStableOrder(t *testing.T) {
	kinds := Default().Kinds()
	if len(kinds) != 4 {
		t.Fatalf("expected 4 kinds, got %d", len(kinds))
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1] >= kinds[i] {
			t.Fatalf("kinds out of order: %v", kinds)
		}
	}
}
