package intake

import (
	"time"

	server "sow-and-grow/server"
	"sow-and-grow/server/internal/net/proto"
	"sow-and-grow/server/internal/sim"
	"sow-and-grow/server/internal/world"
)

// plausibilityMargin widens the play bounds for the intake check. Anything
// farther out than this is not a near-miss but a bogus client.
const plausibilityMargin = 4 * world.GridUnit

// CommandContext carries the hub capabilities intake needs.
type CommandContext struct {
	Enqueue    func(sim.Command) (bool, string)
	HasSession func(string) bool
	Bounds     world.Config
	Tick       func() uint64
	Now        func() time.Time
}

// StageClientCommand validates an inbound message and stages the simulation
// command it carries. It returns the staged command, whether it was accepted,
// and a reject reason when it was not.
func StageClientCommand(ctx CommandContext, sessionID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	command, ok := proto.ClientCommand(msg)
	if !ok {
		return zero, false, server.CommandRejectInvalidAction
	}

	if command.Type == sim.CommandPlant {
		if command.Plant == nil {
			return zero, false, server.CommandRejectInvalidAction
		}
		if !plausible(ctx.Bounds, command.Plant.X, command.Plant.Y) {
			return zero, false, server.CommandRejectOutOfBounds
		}
	}

	if ctx.HasSession != nil && !ctx.HasSession(sessionID) {
		return zero, false, server.CommandRejectUnknownActor
	}

	command.ActorID = sessionID
	if msg.Seq != nil {
		command.Seq = *msg.Seq
	}
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Enqueue == nil {
		return zero, false, server.CommandRejectQueueFull
	}
	if ok, reason := ctx.Enqueue(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}

func plausible(bounds world.Config, x, y float64) bool {
	if bounds.Width <= 0 || bounds.Height <= 0 {
		return true
	}
	return x > -plausibilityMargin && y > -plausibilityMargin &&
		x < bounds.Width+plausibilityMargin && y < bounds.Height+plausibilityMargin
}
