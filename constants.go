package server

import "time"

const (
	writeWait         = 10 * time.Second
	tickRate          = 15 // ticks per second
	heartbeatInterval = 5 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	// Command intake limits. The global ring bounds per-tick work; the
	// per-actor limit keeps one spammy session from starving the rest.
	commandQueueCapacity      = 256
	commandQueuePerActorLimit = 8

	// Inbound rate limiting. Sessions exceeding the budget inside one window
	// have excess messages dropped and are flagged, not disconnected.
	rateLimitWindow = 5 * time.Second
	rateLimitBudget = 40

	// Outbound frames are buffered per session; a session that cannot keep up
	// is treated as a broken pipe.
	outboundBufferSize = 64
)
