package sim

import "sync"

const (
	queueOccupancyMetricKey     = "command_queue_occupancy"
	queueOverflowMetricKey      = "command_queue_overflow_total"
	queueActorThrottleMetricKey = "command_queue_actor_throttled_total"
)

// PushStatus reports the outcome of staging a command.
type PushStatus int

const (
	// PushAccepted means the command will be seen by the next drain.
	PushAccepted PushStatus = iota
	// PushActorSaturated means the actor already holds its full per-drain
	// allowance and must wait for the next tick.
	PushActorSaturated
	// PushQueueFull means the shared ring has no room left.
	PushQueueFull
)

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// CommandBuffer stages intents between the session read loops and the
// simulation tick. A fixed ring holds the shared backlog, and a per-actor
// count caps how much of it any one session may claim before the next drain,
// so a chatty client cannot starve the others. Producers push concurrently;
// Drain expects the single tick goroutine.
type CommandBuffer struct {
	mu            sync.Mutex
	ring          []Command
	head          int
	count         int
	perActorLimit int
	staged        map[string]int
	drops         map[string]uint64
	metrics       telemetryMetrics
}

// NewCommandBuffer builds a buffer holding up to capacity commands, with at
// most perActorLimit of them from a single actor (0 disables the throttle).
func NewCommandBuffer(capacity, perActorLimit int, metrics telemetryMetrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{
		ring:          make([]Command, capacity),
		perActorLimit: perActorLimit,
		staged:        make(map[string]int),
		drops:         make(map[string]uint64),
		metrics:       metrics,
	}
}

// Capacity reports the size of the shared ring.
func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ring)
}

// Push stages a command for the next drain. On refusal it reports whether
// the actor hit its allowance or the ring itself is full, together with the
// actor's cumulative drop count so callers can thin their backpressure logs.
func (b *CommandBuffer) Push(cmd Command) (PushStatus, uint64) {
	if b == nil {
		return PushQueueFull, 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.perActorLimit > 0 && cmd.ActorID != "" && b.staged[cmd.ActorID] >= b.perActorLimit {
		if b.metrics != nil {
			b.metrics.Add(queueActorThrottleMetricKey, 1)
		}
		return PushActorSaturated, b.recordDropLocked(cmd.ActorID)
	}
	if b.count == len(b.ring) {
		if b.metrics != nil {
			b.metrics.Add(queueOverflowMetricKey, 1)
		}
		return PushQueueFull, b.recordDropLocked(cmd.ActorID)
	}
	b.ring[(b.head+b.count)%len(b.ring)] = cmd
	b.count++
	if cmd.ActorID != "" {
		b.staged[cmd.ActorID]++
	}
	b.storeOccupancyLocked()
	return PushAccepted, 0
}

// Drain returns the staged commands in arrival order, clears the ring, and
// resets every actor's allowance for the next tick.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := range commands {
		commands[i] = b.ring[(b.head+i)%len(b.ring)]
	}
	b.head = 0
	b.count = 0
	if len(b.staged) > 0 {
		b.staged = make(map[string]int)
	}
	b.storeOccupancyLocked()
	return commands
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *CommandBuffer) recordDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	b.drops[actorID]++
	return b.drops[actorID]
}

func (b *CommandBuffer) storeOccupancyLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(queueOccupancyMetricKey, uint64(b.count))
}
