package network

import (
	"context"

	"sow-and-grow/server/logging"
)

const (
	// EventProtocolError is emitted when an inbound frame fails to decode.
	EventProtocolError logging.EventType = "network.protocol_error"
	// EventRateLimited is emitted when a session exceeds its message budget.
	EventRateLimited logging.EventType = "network.rate_limited"
	// EventSnapshotSent is emitted when a full world snapshot is delivered.
	EventSnapshotSent logging.EventType = "network.snapshot_sent"
)

// ProtocolErrorPayload carries the decode failure detail.
type ProtocolErrorPayload struct {
	Detail string `json:"detail"`
}

// RateLimitedPayload records the window accounting that tripped the limit.
type RateLimitedPayload struct {
	Messages int `json:"messages"`
	Budget   int `json:"budget"`
}

// SnapshotSentPayload records the size of the transferred snapshot.
type SnapshotSentPayload struct {
	Entities int `json:"entities"`
	Bytes    int `json:"bytes"`
}

// ProtocolError publishes a malformed-frame event.
func ProtocolError(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ProtocolErrorPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventProtocolError,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// RateLimited publishes a rate-limit flag event.
func RateLimited(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RateLimitedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRateLimited,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// SnapshotSent publishes a snapshot delivery event.
func SnapshotSent(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SnapshotSentPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSnapshotSent,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
