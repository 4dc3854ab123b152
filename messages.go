package server

import (
	"time"

	"sow-and-grow/server/internal/net/proto"
	"sow-and-grow/server/internal/sim"
	"sow-and-grow/server/internal/world"
)

func encodePlantEvent(actorID string, entity *world.GrowthEntity, tick uint64) ([]byte, error) {
	return proto.EncodePlantEvent(proto.PlantEventV1{
		ActorID:  actorID,
		EntityID: entity.ID(),
		Kind:     entity.Kind,
		X:        entity.Key.X(),
		Y:        entity.Key.Y(),
		Tick:     tick,
	})
}

func encodeTransformEvent(key world.GridKey, obj world.MatureObject, tick uint64) ([]byte, error) {
	return proto.EncodeTransformEvent(proto.TransformEventV1{
		EntityID:   key.String(),
		ResultID:   obj.ID,
		ResultKind: obj.Kind,
		X:          obj.X,
		Y:          obj.Y,
		Tick:       tick,
	})
}

func encodeSnapshot(snap sim.Snapshot, now time.Time) ([]byte, error) {
	return proto.EncodeSnapshot(proto.SnapshotV1{
		Entities:      snap.Entities,
		MatureObjects: snap.MatureObjects,
		Tick:          snap.Tick,
		ServerTime:    now.UnixMilli(),
	})
}

// EncodeSnapshotFrame renders a full-state snapshot for the initial transfer
// performed by the websocket handler.
func EncodeSnapshotFrame(snap sim.Snapshot, now time.Time) ([]byte, error) {
	return encodeSnapshot(snap, now)
}

func encodeCommandAck(seq, tick uint64) ([]byte, error) {
	return proto.EncodeCommandAck(proto.CommandAck{Seq: seq, Tick: tick})
}

func encodeCommandReject(seq uint64, reason string, tick uint64) ([]byte, error) {
	return proto.EncodeCommandReject(proto.CommandReject{Seq: seq, Reason: reason, Tick: tick})
}
