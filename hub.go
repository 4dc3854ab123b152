package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sow-and-grow/server/growth/catalog"
	"sow-and-grow/server/internal/sim"
	"sow-and-grow/server/internal/telemetry"
	"sow-and-grow/server/internal/world"
	"sow-and-grow/server/logging"
	growthlog "sow-and-grow/server/logging/growth"
	"sow-and-grow/server/logging/lifecycle"
	networklog "sow-and-grow/server/logging/network"
)

const textMessage = websocket.TextMessage

// HubConfig tunes the authoritative world owner.
type HubConfig struct {
	World            world.Config
	Catalog          *catalog.Catalog
	TickRate         int
	HeartbeatTimeout time.Duration
	RateLimitWindow  time.Duration
	RateLimitBudget  int
	CommandCapacity  int
	PerActorLimit    int
	Logger           telemetry.Logger
	Metrics          telemetry.Metrics
	Clock            logging.Clock
	Publisher        logging.Publisher
}

// DefaultHubConfig returns the production tunables.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		World:            world.DefaultConfig(),
		Catalog:          catalog.Default(),
		TickRate:         tickRate,
		HeartbeatTimeout: disconnectAfter,
		RateLimitWindow:  rateLimitWindow,
		RateLimitBudget:  rateLimitBudget,
		CommandCapacity:  commandQueueCapacity,
		PerActorLimit:    commandQueuePerActorLimit,
	}
}

// Hub is the server authority: it owns the canonical world state, services
// sessions, and is the only mutator of the world via its simulation tick.
type Hub struct {
	mu       sync.Mutex
	world    *world.State
	sessions map[string]*session
	issued   map[string]struct{}

	buffer *sim.CommandBuffer

	tick      atomic.Uint64
	cfg       HubConfig
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	clock     logging.Clock
	publisher logging.Publisher
}

// NewHub creates a hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a hub with explicit tunables.
func NewHubWithConfig(cfg HubConfig) *Hub {
	if cfg.TickRate <= 0 {
		cfg.TickRate = tickRate
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = disconnectAfter
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = rateLimitWindow
	}
	if cfg.RateLimitBudget <= 0 {
		cfg.RateLimitBudget = rateLimitBudget
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = commandQueueCapacity
	}
	if cfg.PerActorLimit <= 0 {
		cfg.PerActorLimit = commandQueuePerActorLimit
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = logging.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(nil)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	return &Hub{
		world:     world.NewState(cfg.World, cfg.Catalog),
		sessions:  make(map[string]*session),
		issued:    make(map[string]struct{}),
		buffer:    sim.NewCommandBuffer(cfg.CommandCapacity, cfg.PerActorLimit, cfg.Metrics),
		cfg:       cfg,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		publisher: cfg.Publisher,
	}
}

// Tick reports the current simulation tick.
func (h *Hub) Tick() uint64 {
	return h.tick.Load()
}

// WorldConfig exposes the play-area bounds for intake validation.
func (h *Hub) WorldConfig() world.Config {
	return h.cfg.World
}

// Join allocates a session identity and returns the current snapshot so the
// client can seed its mirror before the websocket attaches.
func (h *Hub) Join() (string, sim.Snapshot) {
	id := "session-" + uuid.New().String()
	h.mu.Lock()
	h.issued[id] = struct{}{}
	snap := sim.SnapshotWorld(h.world, h.tick.Load())
	h.mu.Unlock()
	return id, snap
}

// Subscribe attaches a connection to a session id and returns the session plus
// a snapshot for the initial full-state transfer. The id must have been issued
// by Join; an existing connection under the same id is displaced.
func (h *Hub) Subscribe(sessionID string, conn sessionConn) (*session, sim.Snapshot, bool) {
	if sessionID == "" || conn == nil {
		return nil, sim.Snapshot{}, false
	}
	now := h.clock.Now()
	sess := newSession(sessionID, conn, now)

	h.mu.Lock()
	if _, ok := h.issued[sessionID]; !ok {
		h.mu.Unlock()
		return nil, sim.Snapshot{}, false
	}
	if existing, ok := h.sessions[sessionID]; ok {
		existing.close()
	}
	h.sessions[sessionID] = sess
	snap := sim.SnapshotWorld(h.world, h.tick.Load())
	h.mu.Unlock()

	go sess.writePump(func() {
		h.Disconnect(sessionID, "write_failed")
	})

	lifecycle.SessionJoined(context.Background(), h.publisher, h.tick.Load(),
		logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		lifecycle.SessionJoinedPayload{})
	return sess, snap, true
}

// HasSession reports whether the id maps to a live session.
func (h *Hub) HasSession(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[sessionID]
	return ok
}

// Disconnect removes a session and closes its connection. In-flight commands
// from the session are dropped when the tick sees the actor is gone.
func (h *Hub) Disconnect(sessionID, reason string) {
	h.mu.Lock()
	sess, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	sess.close()
	lifecycle.SessionDisconnected(context.Background(), h.publisher, h.tick.Load(),
		logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		lifecycle.SessionDisconnectedPayload{Reason: reason})
}

// AllowInbound applies the per-session rate limit to one inbound frame.
func (h *Hub) AllowInbound(sessionID string) bool {
	h.mu.Lock()
	sess, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	now := h.clock.Now()
	allowed, count := sess.allowInbound(now, h.cfg.RateLimitWindow, h.cfg.RateLimitBudget)
	if allowed {
		return true
	}
	if h.metrics != nil {
		h.metrics.Add("hub_rate_limited_total", 1)
	}
	networklog.RateLimited(context.Background(), h.publisher, h.tick.Load(),
		logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		networklog.RateLimitedPayload{Messages: count, Budget: h.cfg.RateLimitBudget})
	return false
}

// UpdateHeartbeat records session liveness and returns the measured RTT.
func (h *Hub) UpdateHeartbeat(sessionID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	sess, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return 0, false
	}
	return sess.heartbeat(receivedAt, clientSent), true
}

// EnqueueCommand stages a command for the next tick. The buffer enforces both
// the per-actor allowance and the shared capacity.
func (h *Hub) EnqueueCommand(cmd sim.Command) (bool, string) {
	status, drops := h.buffer.Push(cmd)
	if status == sim.PushAccepted {
		return true, ""
	}
	reason := CommandRejectQueueFull
	if status == sim.PushActorSaturated {
		reason = CommandRejectQueueLimit
	}
	// Log only at power-of-two drop counts.
	if drops > 0 && drops&(drops-1) == 0 {
		h.logger.Printf("[backpressure] dropping command actor=%s type=%s count=%d",
			cmd.ActorID, cmd.Type, drops)
	}
	return false, reason
}

func (h *Hub) drainCommands() []sim.Command {
	return h.buffer.Drain()
}

// RunSimulation drives the fixed-rate tick loop until the stop channel closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(h.cfg.TickRate))
	defer ticker.Stop()

	last := h.clock.Now()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := h.clock.Now()
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = 1.0 / float64(h.cfg.TickRate)
			}
			last = now
			h.Advance(now, dt)
		}
	}
}

// outboundFrame routes one encoded payload: target delivers to one session,
// exclude skips one session during fanout, neither set means broadcast.
type outboundFrame struct {
	target  string
	exclude string
	data    []byte
}

// Advance runs a single simulation step: drain staged commands, apply them
// against the world, advance growth, transform ready entities, and deliver the
// resulting events. It is the sole mutation path for world state.
func (h *Hub) Advance(now time.Time, dt float64) {
	tick := h.tick.Add(1)
	commands := h.drainCommands()

	var frames []outboundFrame
	var timedOut []string

	h.mu.Lock()
	for id, sess := range h.sessions {
		if silent := sess.silentFor(now); silent > h.cfg.HeartbeatTimeout {
			timedOut = append(timedOut, id)
			lifecycle.SessionTimedOut(context.Background(), h.publisher, tick,
				logging.EntityRef{ID: id, Kind: logging.EntityKindSession},
				lifecycle.SessionTimedOutPayload{SilentMillis: silent.Milliseconds()})
		}
	}
	for _, id := range timedOut {
		if sess, ok := h.sessions[id]; ok {
			sess.close()
			delete(h.sessions, id)
		}
	}

	for _, cmd := range commands {
		if _, ok := h.sessions[cmd.ActorID]; !ok {
			continue
		}
		switch cmd.Type {
		case sim.CommandPlant:
			frames = append(frames, h.applyPlantLocked(tick, cmd)...)
		case sim.CommandSnapshotRequest:
			frames = append(frames, h.snapshotFrameLocked(tick, cmd.ActorID, now)...)
		}
	}

	frames = append(frames, h.advanceGrowthLocked(tick, dt)...)
	h.mu.Unlock()

	h.deliver(frames)
}

// applyPlantLocked validates one plant command against the canonical world and
// produces the broadcast plus the sender's ack or reject.
func (h *Hub) applyPlantLocked(tick uint64, cmd sim.Command) []outboundFrame {
	if cmd.Plant == nil {
		return nil
	}
	actor := logging.EntityRef{ID: cmd.ActorID, Kind: logging.EntityKindSession}
	entity, err := h.world.Plant(cmd.Plant.Kind, cmd.Plant.X, cmd.Plant.Y)
	if err != nil {
		reason := rejectReasonFor(err)
		if flaggableReject(reason) {
			if sess, ok := h.sessions[cmd.ActorID]; ok {
				sess.mu.Lock()
				sess.flagged = true
				sess.mu.Unlock()
			}
		}
		growthlog.PlantRejected(context.Background(), h.publisher, tick, actor,
			growthlog.PlantRejectedPayload{Kind: cmd.Plant.Kind, X: cmd.Plant.X, Y: cmd.Plant.Y, Reason: reason})
		if cmd.Seq == 0 {
			return nil
		}
		data, encErr := encodeCommandReject(cmd.Seq, reason, tick)
		if encErr != nil {
			h.logger.Printf("failed to encode reject for %s: %v", cmd.ActorID, encErr)
			return nil
		}
		return []outboundFrame{{target: cmd.ActorID, data: data}}
	}

	growthlog.Planted(context.Background(), h.publisher, tick,
		logging.EntityRef{ID: entity.ID(), Kind: logging.EntityKindGrowth},
		growthlog.PlantedPayload{Kind: entity.Kind, X: entity.Key.X(), Y: entity.Key.Y()})
	if h.metrics != nil {
		h.metrics.Add("hub_plants_total", 1)
	}

	var frames []outboundFrame
	event, err := encodePlantEvent(cmd.ActorID, entity, tick)
	if err != nil {
		h.logger.Printf("failed to encode plant event: %v", err)
	} else {
		frames = append(frames, outboundFrame{exclude: cmd.ActorID, data: event})
	}
	if cmd.Seq > 0 {
		if ack, err := encodeCommandAck(cmd.Seq, tick); err == nil {
			frames = append(frames, outboundFrame{target: cmd.ActorID, data: ack})
		}
	}
	return frames
}

// advanceGrowthLocked moves growth timers forward and transforms every entity
// that became ready, broadcasting the replacement to all sessions.
func (h *Hub) advanceGrowthLocked(tick uint64, dt float64) []outboundFrame {
	var frames []outboundFrame
	for _, entity := range h.world.AdvanceGrowth(dt) {
		ref := logging.EntityRef{ID: entity.ID(), Kind: logging.EntityKindGrowth}
		growthlog.Matured(context.Background(), h.publisher, tick, ref)

		resultID := uuid.New().String()
		key := entity.Key
		obj, ok := h.world.Transform(key, resultID)
		if !ok {
			continue
		}
		growthlog.Transformed(context.Background(), h.publisher, tick, ref,
			growthlog.TransformedPayload{ResultID: obj.ID, ResultKind: obj.Kind})
		if h.metrics != nil {
			h.metrics.Add("hub_transforms_total", 1)
		}

		data, err := encodeTransformEvent(key, obj, tick)
		if err != nil {
			h.logger.Printf("failed to encode transform event: %v", err)
			continue
		}
		frames = append(frames, outboundFrame{data: data})
	}
	return frames
}

// snapshotFrameLocked produces a full-state transfer for one session.
func (h *Hub) snapshotFrameLocked(tick uint64, sessionID string, now time.Time) []outboundFrame {
	snap := sim.SnapshotWorld(h.world, tick)
	data, err := encodeSnapshot(snap, now)
	if err != nil {
		h.logger.Printf("failed to encode snapshot for %s: %v", sessionID, err)
		return nil
	}
	networklog.SnapshotSent(context.Background(), h.publisher, tick,
		logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		networklog.SnapshotSentPayload{Entities: len(snap.Entities), Bytes: len(data)})
	return []outboundFrame{{target: sessionID, data: data}}
}

// deliver fans encoded frames out to their sessions. Write-side failures are
// surfaced by the session write pumps, not here.
func (h *Hub) deliver(frames []outboundFrame) {
	if len(frames) == 0 {
		return
	}
	h.mu.Lock()
	sessions := make(map[string]*session, len(h.sessions))
	for id, sess := range h.sessions {
		sessions[id] = sess
	}
	h.mu.Unlock()

	var stalled []string
	for _, frame := range frames {
		if frame.target != "" {
			if sess, ok := sessions[frame.target]; ok {
				if !sess.Send(frame.data) {
					stalled = append(stalled, frame.target)
				}
			}
			continue
		}
		for id, sess := range sessions {
			if id == frame.exclude {
				continue
			}
			if !sess.Send(frame.data) {
				stalled = append(stalled, id)
			}
		}
		if h.metrics != nil {
			h.metrics.Add("hub_broadcast_bytes_total", uint64(len(frame.data)))
		}
	}
	for _, id := range stalled {
		h.Disconnect(id, "send_buffer_full")
	}
}

// CaptureSnapshot copies the world for persistence without blocking the tick
// on disk I/O: callers serialize the returned value outside the hub lock.
func (h *Hub) CaptureSnapshot() sim.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sim.SnapshotWorld(h.world, h.tick.Load())
}

// RestoreEntity reinserts one persisted entity, re-deriving its grid key from
// the position. Used at world load before any session attaches.
func (h *Hub) RestoreEntity(kind string, x, y, growthTimer float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.world.Restore(kind, x, y, growthTimer)
	return err
}

// RestoreMature reinserts one persisted mature object.
func (h *Hub) RestoreMature(obj world.MatureObject) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.world.AddMature(obj)
}

// GrowthCount reports the live entity count.
func (h *Hub) GrowthCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.GrowthCount()
}

// diagnosticsSession exposes per-session liveness for the diagnostics endpoint.
type diagnosticsSession struct {
	Ver           int    `json:"ver"`
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
	Flagged       bool   `json:"flagged,omitempty"`
}

// DiagnosticsSnapshot exposes heartbeat data for the diagnostics endpoint.
func (h *Hub) DiagnosticsSnapshot() []diagnosticsSession {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := make([]diagnosticsSession, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sess.mu.Lock()
		sessions = append(sessions, diagnosticsSession{
			Ver:           1,
			ID:            sess.id,
			LastHeartbeat: sess.lastHeartbeat.UnixMilli(),
			RTTMillis:     sess.lastRTT.Milliseconds(),
			Flagged:       sess.flagged,
		})
		sess.mu.Unlock()
	}
	return sessions
}
