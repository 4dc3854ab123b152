package server

import (
	"errors"

	"sow-and-grow/server/internal/world"
)

// Reject reasons carried by commandReject frames.
const (
	CommandRejectUnknownActor  = "unknown_actor"
	CommandRejectInvalidAction = "invalid_action"
	CommandRejectOccupied      = "cell_occupied"
	CommandRejectOutOfBounds   = "out_of_bounds"
	CommandRejectUnknownKind   = "unknown_kind"
	CommandRejectQueueLimit    = "queue_limit"
	CommandRejectQueueFull     = "queue_full"
	CommandRejectRateLimited   = "rate_limited"
)

// rejectReasonFor maps a world validation error onto its wire reason.
func rejectReasonFor(err error) string {
	switch {
	case errors.Is(err, world.ErrCellOccupied):
		return CommandRejectOccupied
	case errors.Is(err, world.ErrOutOfBounds):
		return CommandRejectOutOfBounds
	case errors.Is(err, world.ErrUnknownKind):
		return CommandRejectUnknownKind
	default:
		return CommandRejectInvalidAction
	}
}

// flaggableReject reports whether the rejection indicates an implausible
// action worth flagging the session for.
func flaggableReject(reason string) bool {
	return reason == CommandRejectOutOfBounds || reason == CommandRejectUnknownKind
}
