package sim

import "sow-and-grow/server/internal/world"

// GrowthEntity mirrors the world entity as exposed to non-simulation callers.
type GrowthEntity struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	GrowthTimer float64 `json:"growthTimer"`
	State       string  `json:"state"`
}

// MatureObject mirrors a permanent world object exposed to callers.
type MatureObject = world.MatureObject

// Snapshot captures the state exposed to non-simulation callers.
type Snapshot struct {
	Entities      []GrowthEntity `json:"entities,omitempty"`
	MatureObjects []MatureObject `json:"matureObjects,omitempty"`
	Tick          uint64         `json:"tick"`
}

// FromWorldEntity converts a world entity into its snapshot form.
func FromWorldEntity(entity world.GrowthEntity) GrowthEntity {
	return GrowthEntity{
		ID:          entity.Key.String(),
		Kind:        entity.Kind,
		X:           entity.Key.X(),
		Y:           entity.Key.Y(),
		GrowthTimer: entity.GrowthTimer,
		State:       string(entity.State),
	}
}

// SnapshotWorld projects the dynamic collections of a world state.
func SnapshotWorld(state *world.State, tick uint64) Snapshot {
	entities := state.GrowthEntities()
	snap := Snapshot{
		Entities:      make([]GrowthEntity, 0, len(entities)),
		MatureObjects: state.MatureObjects(),
		Tick:          tick,
	}
	for _, entity := range entities {
		snap.Entities = append(snap.Entities, FromWorldEntity(entity))
	}
	return snap
}
