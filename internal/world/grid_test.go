package world

import "testing"

func TestKeyForSnapsToCellOrigin(t *testing.T) {
	key := KeyFor(100, 100)
	if key.GX != 64 || key.GY != 64 {
		t.Fatalf("expected cell (64,64), got (%d,%d)", key.GX, key.GY)
	}
	if got := key.String(); got != "64,64" {
		t.Fatalf("expected key string %q, got %q", "64,64", got)
	}
}

func TestKeyForSameCell(t *testing.T) {
	a := KeyFor(100, 100)
	b := KeyFor(127.9, 64)
	if a != b {
		t.Fatalf("expected %v and %v to share a cell", a, b)
	}
	c := KeyFor(128, 100)
	if a == c {
		t.Fatalf("expected (128,100) to land in the next cell")
	}
}

func TestKeyForBoundaries(t *testing.T) {
	if key := KeyFor(0, 0); key.GX != 0 || key.GY != 0 {
		t.Fatalf("expected origin cell, got %v", key)
	}
	if key := KeyFor(64, 64); key.GX != 64 || key.GY != 64 {
		t.Fatalf("expected exact multiple to own its own cell, got %v", key)
	}
	if key := KeyFor(63.999, 63.999); key.GX != 0 || key.GY != 0 {
		t.Fatalf("expected just-under boundary to stay in origin cell, got %v", key)
	}
}

func TestSnap(t *testing.T) {
	x, y := Snap(100, 200)
	if x != 64 || y != 192 {
		t.Fatalf("expected snapped (64,192), got (%v,%v)", x, y)
	}
}

func TestParseKeyRoundTrip(t *testing.T) {
	key := KeyFor(500, 1000)
	parsed, err := ParseKey(key.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != key {
		t.Fatalf("expected %v, got %v", key, parsed)
	}
}

func TestParseKeyMalformed(t *testing.T) {
	if _, err := ParseKey("not-a-key"); err == nil {
		t.Fatalf("expected malformed key to fail")
	}
}
