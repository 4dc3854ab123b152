package world

import "time"

// GrowthState tracks where a planted entity is in its lifecycle.
type GrowthState string

const (
	StateGrowing     GrowthState = "growing"
	StateReady       GrowthState = "ready"
	StateTransformed GrowthState = "transformed"
)

// GrowthEntity is one planted object progressing toward maturity. Its identity
// is its grid cell, which guarantees at most one entity per cell.
type GrowthEntity struct {
	Key         GridKey     `json:"key"`
	Kind        string      `json:"kind"`
	GrowthTimer float64     `json:"growthTimer"`
	State       GrowthState `json:"state"`
}

// ID returns the wire identifier for the entity.
func (e *GrowthEntity) ID() string {
	return e.Key.String()
}

// Advance accumulates elapsed seconds while growing and reports whether the
// entity crossed its maturity threshold on this call. The transition fires at
// most once.
func (e *GrowthEntity) Advance(dt float64, maturity time.Duration) bool {
	if e == nil || e.State != StateGrowing || dt <= 0 {
		return false
	}
	e.GrowthTimer += dt
	if maturity > 0 && e.GrowthTimer >= maturity.Seconds() {
		e.State = StateReady
		return true
	}
	return false
}

// Progress reports growth completion in [0,1] for display purposes.
func (e *GrowthEntity) Progress(maturity time.Duration) float64 {
	if e == nil {
		return 0
	}
	if e.State != StateGrowing {
		return 1
	}
	seconds := maturity.Seconds()
	if seconds <= 0 {
		return 1
	}
	progress := e.GrowthTimer / seconds
	if progress > 1 {
		progress = 1
	}
	return progress
}

// MatureObject is the permanent world object a growth entity transforms into.
type MatureObject struct {
	ID   string  `json:"id"`
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}
