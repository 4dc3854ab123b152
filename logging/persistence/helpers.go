package persistence

import (
	"context"

	"sow-and-grow/server/logging"
)

const (
	// EventSnapshotSaved is emitted after a world snapshot reaches disk.
	EventSnapshotSaved logging.EventType = "persistence.snapshot_saved"
	// EventSnapshotLoaded is emitted after a world snapshot is restored.
	EventSnapshotLoaded logging.EventType = "persistence.snapshot_loaded"
	// EventRecordSkipped is emitted when a malformed record is dropped on load.
	EventRecordSkipped logging.EventType = "persistence.record_skipped"
)

// SnapshotPayload summarizes a save or load.
type SnapshotPayload struct {
	Path     string `json:"path"`
	Entities int    `json:"entities"`
	Skipped  int    `json:"skipped,omitempty"`
}

// RecordSkippedPayload identifies the record dropped during load.
type RecordSkippedPayload struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// SnapshotSaved publishes a save completion event.
func SnapshotSaved(ctx context.Context, pub logging.Publisher, tick uint64, payload SnapshotPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSnapshotSaved,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPersist,
		Payload:  payload,
	})
}

// SnapshotLoaded publishes a load completion event.
func SnapshotLoaded(ctx context.Context, pub logging.Publisher, tick uint64, payload SnapshotPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSnapshotLoaded,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPersist,
		Payload:  payload,
	})
}

// RecordSkipped publishes a malformed-record event.
func RecordSkipped(ctx context.Context, pub logging.Publisher, tick uint64, payload RecordSkippedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRecordSkipped,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryPersist,
		Payload:  payload,
	})
}
