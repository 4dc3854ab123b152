package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sow-and-grow/server/internal/sim"
)

func testSnapshot() sim.Snapshot {
	return sim.Snapshot{
		Entities: []sim.GrowthEntity{
			{ID: "64,64", Kind: "oak-sapling", X: 64, Y: 64, GrowthTimer: 42.5, State: "growing"},
			{ID: "128,0", Kind: "birch-sapling", X: 128, Y: 0, GrowthTimer: 0, State: "growing"},
		},
		MatureObjects: []sim.MatureObject{
			{ID: "m1", Kind: "oak-tree", X: 192, Y: 192},
		},
		Tick: 77,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	store := NewStore(path, Config{})

	if err := store.Save(context.Background(), testSnapshot(), time.Now()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	doc, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc == nil {
		t.Fatalf("expected document, got nil")
	}
	if doc.Tick != 77 {
		t.Fatalf("expected tick 77, got %d", doc.Tick)
	}
	if len(doc.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(doc.Entities))
	}
	first := doc.Entities[0]
	if first.ID != "64,64" || first.Kind != "oak-sapling" || first.GrowthTimer != 42.5 {
		t.Fatalf("entity did not round trip: %+v", first)
	}
	if first.X != 64 || first.Y != 64 {
		t.Fatalf("position did not round trip: %+v", first)
	}
	if len(doc.MatureObjects) != 1 || doc.MatureObjects[0].ID != "m1" {
		t.Fatalf("mature object did not round trip: %+v", doc.MatureObjects)
	}
	if doc.Skipped != 0 {
		t.Fatalf("expected no skips on a clean file, got %d", doc.Skipped)
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.json"), Config{})
	doc, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document for missing file")
	}
}

func TestSaveReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	store := NewStore(path, Config{})

	if err := store.Save(context.Background(), testSnapshot(), time.Now()); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	next := testSnapshot()
	next.Tick = 78
	next.Entities = next.Entities[:1]
	if err := store.Save(context.Background(), next, time.Now()); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	doc, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Tick != 78 || len(doc.Entities) != 1 {
		t.Fatalf("expected second save to replace the first, got %+v", doc)
	}

	// No temp files left behind.
	matches, err := filepath.Glob(path + ".tmp-*")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected temp files cleaned up, found %v", matches)
	}
}

func TestLoadSkipsMalformedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	raw := `{
		"version": 1,
		"savedAt": "2026-08-30T00:00:00Z",
		"tick": 5,
		"entities": [
			{"id": "64,64", "kind": "oak-sapling", "x": 64, "y": 64, "growthTimer": 10, "state": "growing"},
			{"id": "128,128", "x": "not-a-number"},
			{"id": "192,192", "x": 192, "y": 192, "growthTimer": 3, "state": "growing"}
		],
		"matureObjects": [
			{"id": "m1", "kind": "oak-tree", "x": 0, "y": 0},
			{"kind": "orphan-without-id", "x": 64, "y": 0}
		]
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	store := NewStore(path, Config{})
	doc, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	// The record with a bad x and the record missing a kind are both dropped;
	// the orphan mature record without an id is dropped too.
	if len(doc.Entities) != 1 {
		t.Fatalf("expected 1 surviving entity, got %d", len(doc.Entities))
	}
	if doc.Entities[0].ID != "64,64" {
		t.Fatalf("unexpected survivor: %+v", doc.Entities[0])
	}
	if len(doc.MatureObjects) != 1 {
		t.Fatalf("expected 1 surviving mature object, got %d", len(doc.MatureObjects))
	}
	if doc.Skipped != 3 {
		t.Fatalf("expected 3 skipped records, got %d", doc.Skipped)
	}
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "entities": []}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := NewStore(path, Config{}).Load(context.Background()); err == nil {
		t.Fatalf("expected unsupported version to fail")
	}
}

func TestLoadRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.json")
	if err := os.WriteFile(path, []byte(`{"version": 1,`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := NewStore(path, Config{}).Load(context.Background()); err == nil {
		t.Fatalf("expected corrupt document to fail")
	}
}
