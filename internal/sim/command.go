package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandPlant           CommandType = "Plant"
	CommandSnapshotRequest CommandType = "SnapshotRequest"
)

// PlantCommand carries a plant intent at raw (unsnapped) world coordinates.
type PlantCommand struct {
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Command represents an intent captured for processing on the next tick.
// Heartbeats never pass through here: they are acknowledged inline on the
// session read loop so liveness is not gated on the tick rate.
type Command struct {
	OriginTick uint64        `json:"originTick"`
	ActorID    string        `json:"actorId"`
	Type       CommandType   `json:"type"`
	Seq        uint64        `json:"seq,omitempty"`
	IssuedAt   time.Time     `json:"issuedAt"`
	Plant      *PlantCommand `json:"plant,omitempty"`
}
