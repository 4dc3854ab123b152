package lifecycle

import (
	"context"

	"sow-and-grow/server/logging"
)

const (
	// EventSessionJoined is emitted when a player session joins the world.
	EventSessionJoined logging.EventType = "lifecycle.session_joined"
	// EventSessionDisconnected is emitted when a session leaves the world.
	EventSessionDisconnected logging.EventType = "lifecycle.session_disconnected"
	// EventSessionTimedOut is emitted when the heartbeat watchdog closes a session.
	EventSessionTimedOut logging.EventType = "lifecycle.session_timed_out"
)

// SessionJoinedPayload captures join metadata for a new session.
type SessionJoinedPayload struct {
	RemoteAddr string `json:"remoteAddr,omitempty"`
	Resumed    bool   `json:"resumed,omitempty"`
}

// SessionDisconnectedPayload captures the reason a session left.
type SessionDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// SessionTimedOutPayload records how long the session had been silent.
type SessionTimedOutPayload struct {
	SilentMillis int64 `json:"silentMillis"`
}

// SessionJoined publishes a session join event.
func SessionJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionJoinedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// SessionDisconnected publishes a session disconnect event.
func SessionDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionDisconnectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// SessionTimedOut publishes a heartbeat timeout event.
func SessionTimedOut(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionTimedOutPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionTimedOut,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
