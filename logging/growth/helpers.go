package growth

import (
	"context"

	"sow-and-grow/server/logging"
)

const (
	// EventPlanted is emitted when a growth entity is inserted into the world.
	EventPlanted logging.EventType = "growth.planted"
	// EventPlantRejected is emitted when a plant command fails validation.
	EventPlantRejected logging.EventType = "growth.plant_rejected"
	// EventMatured is emitted when an entity crosses its maturity threshold.
	EventMatured logging.EventType = "growth.matured"
	// EventTransformed is emitted when a ready entity becomes a mature object.
	EventTransformed logging.EventType = "growth.transformed"
)

// PlantedPayload records where and what was planted.
type PlantedPayload struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// PlantRejectedPayload carries the rejection reason.
type PlantRejectedPayload struct {
	Kind   string  `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Reason string  `json:"reason"`
}

// TransformedPayload links the removed entity to its mature replacement.
type TransformedPayload struct {
	ResultID   string `json:"resultId"`
	ResultKind string `json:"resultKind"`
}

// Planted publishes a successful plant event.
func Planted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlantedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlanted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGrowth,
		Payload:  payload,
	})
}

// PlantRejected publishes a rejected plant attempt.
func PlantRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlantRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlantRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGrowth,
		Payload:  payload,
	})
}

// Matured publishes a growth completion event.
func Matured(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMatured,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGrowth,
	})
}

// Transformed publishes the replacement of a ready entity by a mature object.
func Transformed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TransformedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTransformed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGrowth,
		Payload:  payload,
	})
}
