// Package client maintains a non-authoritative mirror of the world for a
// connected participant. Server frames are queued as they arrive and applied
// in order from Tick, so the render loop is the only place the mirrored state
// ever changes.
package client

import (
	"fmt"
	"sync"

	"sow-and-grow/server/growth/catalog"
	"sow-and-grow/server/internal/net/proto"
	"sow-and-grow/server/internal/sim"
	"sow-and-grow/server/internal/telemetry"
	"sow-and-grow/server/internal/world"
)

const (
	// defaultQueueLimit bounds the deferred event queue. Overflow drops the
	// oldest frame and schedules a full re-sync.
	defaultQueueLimit = 256
	// defaultApplyBatch caps how many queued frames one Tick may apply.
	defaultApplyBatch = 32
)

// Config tunes a Mirror.
type Config struct {
	World      world.Config
	Catalog    *catalog.Catalog
	QueueLimit int
	ApplyBatch int
	Logger     telemetry.Logger
}

// pendingPlant tracks an optimistic local plant awaiting the server verdict.
type pendingPlant struct {
	key  world.GridKey
	kind string
}

// Mirror is the client-side copy of the world. It is safe for concurrent use:
// the network reader enqueues frames while the render loop ticks.
type Mirror struct {
	mu        sync.Mutex
	state     *world.State
	queue     []proto.ServerFrame
	limit     int
	batch     int
	logger    telemetry.Logger
	connected bool
	resync    bool

	nextSeq uint64
	pending map[uint64]pendingPlant

	serverTick uint64
	lastRTT    int64
}

// NewMirror builds an empty, disconnected mirror.
func NewMirror(cfg Config) *Mirror {
	if cfg.World.Width <= 0 || cfg.World.Height <= 0 {
		cfg.World = world.DefaultConfig()
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = defaultQueueLimit
	}
	if cfg.ApplyBatch <= 0 {
		cfg.ApplyBatch = defaultApplyBatch
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	return &Mirror{
		state:   world.NewState(cfg.World, cfg.Catalog),
		limit:   cfg.QueueLimit,
		batch:   cfg.ApplyBatch,
		logger:  logger,
		pending: make(map[uint64]pendingPlant),
	}
}

// Seed replaces the mirror with the join handshake state and marks the mirror
// connected. Any queued frames and optimistic plants are discarded.
func (m *Mirror) Seed(join proto.JoinResponseV1) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceLocked(join.Entities, join.MatureObjects, join.Tick)
	m.connected = true
}

// RequestPlant applies the plant locally so the cell renders immediately, and
// returns the encoded request to send. The local copy is rolled back if the
// server rejects the sequence number.
func (m *Mirror) RequestPlant(kind string, x, y float64) ([]byte, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, 0, fmt.Errorf("mirror disconnected")
	}
	entity, err := m.state.Plant(kind, x, y)
	if err != nil {
		return nil, 0, err
	}
	m.nextSeq++
	seq := m.nextSeq
	m.pending[seq] = pendingPlant{key: entity.Key, kind: kind}
	payload, err := proto.EncodeClientMessage(proto.ClientMessage{
		Type: proto.TypePlant,
		Kind: kind,
		X:    x,
		Y:    y,
		Seq:  &seq,
	})
	if err != nil {
		m.rollbackLocked(seq)
		return nil, 0, err
	}
	return payload, seq, nil
}

// SnapshotRequest returns an encoded full-state request and clears the resync
// flag, on the assumption the caller sends it.
func (m *Mirror) SnapshotRequest() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resync = false
	return proto.EncodeClientMessage(proto.ClientMessage{Type: proto.TypeSnapshotRequest})
}

// HandleFrame decodes a server payload and queues it for the next Tick.
// Nothing in the mirrored world changes here.
func (m *Mirror) HandleFrame(payload []byte) error {
	frame, err := proto.DecodeServerFrame(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil
	}
	if len(m.queue) >= m.limit {
		m.queue = m.queue[1:]
		m.resync = true
		m.logger.Printf("event queue overflow, dropping oldest frame and scheduling re-sync")
	}
	m.queue = append(m.queue, frame)
	return nil
}

// Tick applies queued server frames in arrival order, then advances local
// growth timers for display. This is the only mutation point; callers drive it
// from the render loop.
func (m *Mirror) Tick(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return
	}
	applied := 0
	for len(m.queue) > 0 && applied < m.batch {
		frame := m.queue[0]
		m.queue = m.queue[1:]
		m.applyLocked(frame)
		applied++
	}
	m.state.AdvanceGrowth(dt)
}

func (m *Mirror) applyLocked(frame proto.ServerFrame) {
	switch frame.Type {
	case proto.TypePlantEventMsg:
		if _, err := m.state.Plant(frame.Kind, frame.X, frame.Y); err != nil {
			// Another participant won a cell we also hold, or an event
			// arrived out of order. The snapshot is the tiebreaker.
			m.resync = true
			m.logger.Printf("plant event conflict at (%.0f, %.0f): %v", frame.X, frame.Y, err)
		}
		if frame.Tick > m.serverTick {
			m.serverTick = frame.Tick
		}
	case proto.TypeTransformEventMsg:
		key, err := world.ParseKey(frame.EntityID)
		if err != nil {
			m.logger.Printf("transform event with bad entity id %q: %v", frame.EntityID, err)
			return
		}
		if _, ok := m.state.Transform(key, frame.ResultID); !ok {
			// The entity is already gone; a replayed or previously applied
			// transform lands here. Recording the mature object again is a
			// no-op when it already exists.
			m.state.AddMature(world.MatureObject{
				ID:   frame.ResultID,
				Kind: frame.ResultKind,
				X:    frame.X,
				Y:    frame.Y,
			})
		}
		if frame.Tick > m.serverTick {
			m.serverTick = frame.Tick
		}
	case proto.TypeSnapshotMsg:
		m.replaceLocked(frame.Entities, frame.Mature, frame.Tick)
	case proto.TypeCommandAckMsg:
		delete(m.pending, frame.Seq)
	case proto.TypeCommandRejectMsg:
		m.rollbackLocked(frame.Seq)
	case proto.TypeHeartbeatMsg:
		m.lastRTT = frame.RTTMillis
	default:
		m.logger.Printf("ignoring unknown server frame type %q", frame.Type)
	}
}

// replaceLocked swaps the mirrored world for snapshot contents and drops all
// optimistic bookkeeping, which the snapshot supersedes.
func (m *Mirror) replaceLocked(entities []sim.GrowthEntity, mature []sim.MatureObject, tick uint64) {
	restored := make([]world.GrowthEntity, 0, len(entities))
	for _, entity := range entities {
		key, err := world.ParseKey(entity.ID)
		if err != nil {
			key = world.KeyFor(entity.X, entity.Y)
		}
		restored = append(restored, world.GrowthEntity{
			Key:         key,
			Kind:        entity.Kind,
			GrowthTimer: entity.GrowthTimer,
			State:       world.GrowthState(entity.State),
		})
	}
	m.state.Replace(restored, mature)
	m.pending = make(map[uint64]pendingPlant)
	m.queue = m.queue[:0]
	m.resync = false
	if tick > m.serverTick {
		m.serverTick = tick
	}
}

// rollbackLocked removes the optimistic entity for a rejected sequence. The
// entity is only removed while it still matches the pending plant, so a later
// server-confirmed plant on the same cell survives.
func (m *Mirror) rollbackLocked(seq uint64) {
	plant, ok := m.pending[seq]
	if !ok {
		return
	}
	delete(m.pending, seq)
	if entity, ok := m.state.Entity(plant.key); ok && entity.Kind == plant.kind {
		m.state.Remove(plant.key)
	}
}

// Disconnect freezes the mirror: queued frames stop applying and the last
// known state keeps rendering until a fresh Seed arrives.
func (m *Mirror) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// Connected reports whether the mirror is accepting frames.
func (m *Mirror) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// NeedsResync reports whether the mirror wants a full snapshot.
func (m *Mirror) NeedsResync() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resync
}

// PendingCount reports queued frames awaiting application.
func (m *Mirror) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// ServerTick reports the newest tick observed in applied frames.
func (m *Mirror) ServerTick() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serverTick
}

// LastRTT reports the round-trip estimate from the latest heartbeat ack.
func (m *Mirror) LastRTT() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRTT
}

// Entities copies the mirrored growth entities in stable order.
func (m *Mirror) Entities() []world.GrowthEntity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GrowthEntities()
}

// MatureObjects copies the mirrored mature objects in stable order.
func (m *Mirror) MatureObjects() []world.MatureObject {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.MatureObjects()
}

// Progress reports display progress for the cell owning (x, y).
func (m *Mirror) Progress(x, y float64) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Progress(world.KeyFor(x, y))
}
