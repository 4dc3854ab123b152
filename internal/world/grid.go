package world

import (
	"fmt"
	"math"
)

// GridUnit is the snapping size for plantable cells.
const GridUnit = 64.0

// GridKey identifies one plantable cell. Using a composite integer key instead
// of a formatted string keeps equality independent of number formatting.
type GridKey struct {
	GX int `json:"gx"`
	GY int `json:"gy"`
}

// KeyFor snaps world coordinates to the grid and returns the owning cell key.
func KeyFor(x, y float64) GridKey {
	return GridKey{
		GX: int(math.Floor(x/GridUnit)) * int(GridUnit),
		GY: int(math.Floor(y/GridUnit)) * int(GridUnit),
	}
}

// Snap returns the snapped coordinates for arbitrary world coordinates.
func Snap(x, y float64) (float64, float64) {
	key := KeyFor(x, y)
	return float64(key.GX), float64(key.GY)
}

// X returns the snapped world x coordinate of the cell.
func (k GridKey) X() float64 { return float64(k.GX) }

// Y returns the snapped world y coordinate of the cell.
func (k GridKey) Y() float64 { return float64(k.GY) }

// String renders the wire and persistence form of the key.
func (k GridKey) String() string {
	return fmt.Sprintf("%d,%d", k.GX, k.GY)
}

// ParseKey restores a key from its string form.
func ParseKey(s string) (GridKey, error) {
	var key GridKey
	if _, err := fmt.Sscanf(s, "%d,%d", &key.GX, &key.GY); err != nil {
		return GridKey{}, fmt.Errorf("malformed grid key %q: %w", s, err)
	}
	return key, nil
}
