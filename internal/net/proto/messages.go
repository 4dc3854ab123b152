package proto

import (
	"encoding/json"
	"fmt"

	"sow-and-grow/server/internal/sim"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	// Type identifiers for outbound websocket payloads.
	typeCommandAck     = "commandAck"
	typeCommandReject  = "commandReject"
	typeHeartbeat      = "heartbeat"
	typeSnapshot       = "snapshot"
	typePlantEvent     = "plantEvent"
	typeTransformEvent = "transformEvent"
)

// Client message type identifiers.
const (
	TypePlant           = "plant"
	TypeHeartbeat       = "heartbeat"
	TypeSnapshotRequest = "snapshotRequest"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeSnapshotMsg       = typeSnapshot
	TypePlantEventMsg     = typePlantEvent
	TypeTransformEventMsg = typeTransformEvent
	TypeCommandAckMsg     = typeCommandAck
	TypeCommandRejectMsg  = typeCommandReject
	TypeHeartbeatMsg      = typeHeartbeat
)

// ClientMessage captures an inbound websocket message from a client.
type ClientMessage struct {
	Ver    int     `json:"ver,omitempty"`
	Type   string  `json:"type"`
	Kind   string  `json:"kind,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	SentAt int64   `json:"sentAt,omitempty"`
	Seq    *uint64 `json:"seq,omitempty"`
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// EncodeClientMessage renders an outbound client request.
func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	msg.Ver = Version
	return json.Marshal(msg)
}

// ServerFrame is the decoded form of any server-to-client payload. Clients
// switch on Type; fields the type does not use stay zero.
type ServerFrame struct {
	Ver        int                `json:"ver"`
	Type       string             `json:"type"`
	Seq        uint64             `json:"seq,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Retry      bool               `json:"retry,omitempty"`
	AckTick    uint64             `json:"tick,omitempty"`
	Tick       uint64             `json:"t,omitempty"`
	ActorID    string             `json:"actorId,omitempty"`
	EntityID   string             `json:"entityId,omitempty"`
	ResultID   string             `json:"resultId,omitempty"`
	ResultKind string             `json:"resultKind,omitempty"`
	Kind       string             `json:"kind,omitempty"`
	X          float64            `json:"x,omitempty"`
	Y          float64            `json:"y,omitempty"`
	Entities   []sim.GrowthEntity `json:"entities,omitempty"`
	Mature     []sim.MatureObject `json:"matureObjects,omitempty"`
	ServerTime int64              `json:"serverTime,omitempty"`
	ClientTime int64              `json:"clientTime,omitempty"`
	RTTMillis  int64              `json:"rtt,omitempty"`
}

// DecodeServerFrame converts a raw server payload into its structured form.
func DecodeServerFrame(payload []byte) (ServerFrame, error) {
	var frame ServerFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return frame, err
	}
	if frame.Ver != Version {
		return frame, fmt.Errorf("unsupported server protocol version %d", frame.Ver)
	}
	if frame.Type == "" {
		return frame, fmt.Errorf("server frame missing type")
	}
	return frame, nil
}

// ClientCommand converts a structured message into the simulation command it
// carries. Origin metadata is populated by the hub when the command is
// accepted for processing.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypePlant:
		if msg.Kind == "" {
			return sim.Command{}, false
		}
		return sim.Command{
			Type: sim.CommandPlant,
			Plant: &sim.PlantCommand{
				Kind: msg.Kind,
				X:    msg.X,
				Y:    msg.Y,
			},
		}, true
	case TypeSnapshotRequest:
		return sim.Command{Type: sim.CommandSnapshotRequest}, true
	default:
		return sim.Command{}, false
	}
}

// CommandAck describes an acknowledgement of a processed command.
type CommandAck struct {
	Seq  uint64
	Tick uint64
}

// EncodeCommandAck renders a command acknowledgement response.
func EncodeCommandAck(msg CommandAck) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
		Tick uint64 `json:"tick,omitempty"`
	}{
		Ver:  Version,
		Type: typeCommandAck,
		Seq:  msg.Seq,
	}
	if msg.Tick > 0 {
		frame.Tick = msg.Tick
	}
	return json.Marshal(frame)
}

// CommandReject notifies the client that a command was refused.
type CommandReject struct {
	Seq    uint64
	Reason string
	Retry  bool
	Tick   uint64
}

// EncodeCommandReject renders a command rejection response.
func EncodeCommandReject(msg CommandReject) ([]byte, error) {
	frame := struct {
		Ver    int    `json:"ver"`
		Type   string `json:"type"`
		Seq    uint64 `json:"seq"`
		Reason string `json:"reason"`
		Retry  bool   `json:"retry,omitempty"`
		Tick   uint64 `json:"tick,omitempty"`
	}{
		Ver:    Version,
		Type:   typeCommandReject,
		Seq:    msg.Seq,
		Reason: msg.Reason,
	}
	if msg.Retry {
		frame.Retry = true
	}
	if msg.Tick > 0 {
		frame.Tick = msg.Tick
	}
	return json.Marshal(frame)
}

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	ServerTime int64
	ClientTime int64
	RTTMillis  int64
}

// EncodeHeartbeat renders a heartbeat acknowledgement payload.
func EncodeHeartbeat(msg Heartbeat) ([]byte, error) {
	frame := struct {
		Ver        int    `json:"ver"`
		Type       string `json:"type"`
		ServerTime int64  `json:"serverTime"`
		ClientTime int64  `json:"clientTime"`
		RTTMillis  int64  `json:"rtt"`
	}{
		Ver:        Version,
		Type:       typeHeartbeat,
		ServerTime: msg.ServerTime,
		ClientTime: msg.ClientTime,
		RTTMillis:  msg.RTTMillis,
	}
	return json.Marshal(frame)
}

// PlantEventV1 broadcasts a validated plant with its canonical snapped position.
type PlantEventV1 struct {
	Ver      int     `json:"ver"`
	Type     string  `json:"type"`
	ActorID  string  `json:"actorId"`
	EntityID string  `json:"entityId"`
	Kind     string  `json:"kind"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Tick     uint64  `json:"t"`
}

// EncodePlantEvent renders a plant broadcast payload.
func EncodePlantEvent(msg PlantEventV1) ([]byte, error) {
	msg.Ver = Version
	if msg.Type == "" {
		msg.Type = typePlantEvent
	}
	return json.Marshal(msg)
}

// TransformEventV1 broadcasts the replacement of a ready entity. Carrying both
// the source entity id and the result id makes replays detectable.
type TransformEventV1 struct {
	Ver        int     `json:"ver"`
	Type       string  `json:"type"`
	EntityID   string  `json:"entityId"`
	ResultID   string  `json:"resultId"`
	ResultKind string  `json:"resultKind"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Tick       uint64  `json:"t"`
}

// EncodeTransformEvent renders a transform broadcast payload.
func EncodeTransformEvent(msg TransformEventV1) ([]byte, error) {
	msg.Ver = Version
	if msg.Type == "" {
		msg.Type = typeTransformEvent
	}
	return json.Marshal(msg)
}

// SnapshotV1 captures the full-state transfer used for joins and re-syncs.
type SnapshotV1 struct {
	Ver           int                `json:"ver"`
	Type          string             `json:"type"`
	Entities      []sim.GrowthEntity `json:"entities"`
	MatureObjects []sim.MatureObject `json:"matureObjects"`
	Tick          uint64             `json:"t"`
	ServerTime    int64              `json:"serverTime"`
}

// ProtoSnapshot tags the struct as a websocket snapshot payload.
func (SnapshotV1) ProtoSnapshot() {}

// EncodeSnapshot renders a full-state snapshot payload.
func EncodeSnapshot(msg SnapshotV1) ([]byte, error) {
	msg.Ver = Version
	if msg.Type == "" {
		msg.Type = typeSnapshot
	}
	return json.Marshal(msg)
}

// JoinResponseV1 captures the join handshake payload.
type JoinResponseV1 struct {
	Ver           int                `json:"ver"`
	ID            string             `json:"id"`
	Entities      []sim.GrowthEntity `json:"entities"`
	MatureObjects []sim.MatureObject `json:"matureObjects"`
	Tick          uint64             `json:"t"`
}

// ProtoJoinResponse tags the struct as a websocket join response payload.
func (JoinResponseV1) ProtoJoinResponse() {}

// EncodeJoinResponse renders a join response payload.
func EncodeJoinResponse(msg JoinResponseV1) ([]byte, error) {
	msg.Ver = Version
	return json.Marshal(msg)
}
