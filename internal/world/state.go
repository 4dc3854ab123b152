package world

import (
	"errors"
	"fmt"
	"sort"

	"sow-and-grow/server/growth/catalog"
)

var (
	// ErrCellOccupied rejects a plant attempt on a cell that already holds an entity.
	ErrCellOccupied = errors.New("grid cell occupied")
	// ErrOutOfBounds rejects coordinates outside the play area.
	ErrOutOfBounds = errors.New("position outside play area")
	// ErrUnknownKind rejects a kind absent from the growth catalog.
	ErrUnknownKind = errors.New("unknown growth kind")
)

// Config bounds the play area.
type Config struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultConfig matches the prototype play field.
func DefaultConfig() Config {
	return Config{Width: 2048, Height: 2048}
}

// Contains reports whether the point lies inside the play area.
func (c Config) Contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x < c.Width && y < c.Height
}

// State holds the dynamic world collections. The server owns the canonical
// instance; client mirrors hold their own non-authoritative copy and run the
// same transitions. State is not safe for concurrent use; the owner serializes
// access.
type State struct {
	cfg     Config
	catalog *catalog.Catalog
	growth  map[GridKey]*GrowthEntity
	mature  map[string]MatureObject
}

// NewState builds an empty world governed by the given catalog.
func NewState(cfg Config, cat *catalog.Catalog) *State {
	if cat == nil {
		cat = catalog.Default()
	}
	return &State{
		cfg:     cfg,
		catalog: cat,
		growth:  make(map[GridKey]*GrowthEntity),
		mature:  make(map[string]MatureObject),
	}
}

// Catalog exposes the growth-kind table governing this world.
func (s *State) Catalog() *catalog.Catalog {
	return s.catalog
}

// Config exposes the play-area bounds.
func (s *State) Config() Config {
	return s.cfg
}

// Plant validates and inserts a new growth entity at the cell owning (x, y).
// The returned entity carries the canonical snapped position.
func (s *State) Plant(kind string, x, y float64) (*GrowthEntity, error) {
	if !s.catalog.Knows(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if !s.cfg.Contains(x, y) {
		return nil, fmt.Errorf("%w: (%.1f, %.1f)", ErrOutOfBounds, x, y)
	}
	key := KeyFor(x, y)
	if _, exists := s.growth[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrCellOccupied, key)
	}
	entity := &GrowthEntity{Key: key, Kind: kind, State: StateGrowing}
	s.growth[key] = entity
	return entity, nil
}

// Restore inserts an entity with explicit growth progress, as read from a
// persisted snapshot or a remote event. Occupied cells are left untouched.
func (s *State) Restore(kind string, x, y, growthTimer float64) (*GrowthEntity, error) {
	entity, err := s.Plant(kind, x, y)
	if err != nil {
		return nil, err
	}
	if growthTimer > 0 {
		entity.GrowthTimer = growthTimer
	}
	return entity, nil
}

// Remove deletes the entity at a cell, if any. Used by client mirrors to roll
// back an optimistic plant the server rejected.
func (s *State) Remove(key GridKey) bool {
	if _, ok := s.growth[key]; !ok {
		return false
	}
	delete(s.growth, key)
	return true
}

// Entity returns the live entity at a cell.
func (s *State) Entity(key GridKey) (*GrowthEntity, bool) {
	entity, ok := s.growth[key]
	return entity, ok
}

// AdvanceGrowth moves every growing entity forward by dt seconds and returns
// the entities that became ready on this step, in stable key order.
func (s *State) AdvanceGrowth(dt float64) []*GrowthEntity {
	if dt <= 0 {
		return nil
	}
	var ready []*GrowthEntity
	for _, entity := range s.growth {
		if entity.Advance(dt, s.catalog.MaturityDuration(entity.Kind)) {
			ready = append(ready, entity)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i].Key, ready[j].Key
		if a.GX != b.GX {
			return a.GX < b.GX
		}
		return a.GY < b.GY
	})
	return ready
}

// Transform removes a ready entity and creates its mature replacement at the
// same position. Applying the same transform twice is a no-op: once the entity
// id is gone the call reports false and changes nothing.
func (s *State) Transform(key GridKey, resultID string) (MatureObject, bool) {
	entity, ok := s.growth[key]
	if !ok {
		return MatureObject{}, false
	}
	entity.State = StateTransformed
	delete(s.growth, key)
	obj := MatureObject{
		ID:   resultID,
		Kind: s.catalog.ResultKind(entity.Kind),
		X:    key.X(),
		Y:    key.Y(),
	}
	s.mature[obj.ID] = obj
	return obj, true
}

// AddMature records a mature object directly, as applied from a remote event
// or a persisted snapshot.
func (s *State) AddMature(obj MatureObject) {
	if obj.ID == "" {
		return
	}
	s.mature[obj.ID] = obj
}

// GrowthCount reports the number of live growth entities.
func (s *State) GrowthCount() int {
	return len(s.growth)
}

// GrowthEntities copies the live entities in stable key order.
func (s *State) GrowthEntities() []GrowthEntity {
	entities := make([]GrowthEntity, 0, len(s.growth))
	for _, entity := range s.growth {
		entities = append(entities, *entity)
	}
	sort.Slice(entities, func(i, j int) bool {
		a, b := entities[i].Key, entities[j].Key
		if a.GX != b.GX {
			return a.GX < b.GX
		}
		return a.GY < b.GY
	})
	return entities
}

// MatureObjects copies the mature objects in stable id order.
func (s *State) MatureObjects() []MatureObject {
	objects := make([]MatureObject, 0, len(s.mature))
	for _, obj := range s.mature {
		objects = append(objects, obj)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].ID < objects[j].ID })
	return objects
}

// Replace swaps the dynamic collections wholesale, used when a full snapshot
// re-sync arrives.
func (s *State) Replace(entities []GrowthEntity, mature []MatureObject) {
	s.growth = make(map[GridKey]*GrowthEntity, len(entities))
	for i := range entities {
		entity := entities[i]
		if entity.State == "" {
			entity.State = StateGrowing
		}
		s.growth[entity.Key] = &entity
	}
	s.mature = make(map[string]MatureObject, len(mature))
	for _, obj := range mature {
		s.mature[obj.ID] = obj
	}
}

// Progress reports display progress for the entity at a cell.
func (s *State) Progress(key GridKey) (float64, bool) {
	entity, ok := s.growth[key]
	if !ok {
		return 0, false
	}
	return entity.Progress(s.catalog.MaturityDuration(entity.Kind)), true
}
