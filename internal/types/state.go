package types

// SessionState is the lifecycle state of a vehicle session.
type SessionState string

const (
	StateUninitialized SessionState = "uninitialized"
	StateInitializing  SessionState = "initializing"
	StateRunning       SessionState = "running"
	StateStopping      SessionState = "stopping"
	StateStopped       SessionState = "stopped"
)

type AutoParkPhase string

const (
	AutoParkIdle     AutoParkPhase = "idle"
	AutoParkRunning  AutoParkPhase = "running"
	AutoParkComplete AutoParkPhase = "complete"
)

// AutoPark is the progress of an automatic parking manoeuvre.
// Percent is only meaningful while Running; Complete always reports 100.
type AutoPark struct {
	Phase   AutoParkPhase `json:"phase"`
	Percent uint8         `json:"percent"`
}

// VehicleState is the last known state of the remote vehicle.
type VehicleState struct {
	Direction     Direction `json:"direction"`
	SpeedPercent  uint8     `json:"speed_percent"`
	AebEnabled    bool      `json:"aeb_enabled"`
	AutoPark      AutoPark  `json:"autopark"`
	AutoParkArmed bool      `json:"autopark_armed"`
	ProximityCm   uint16    `json:"proximity_cm"`
	LastUpdateSeq uint64    `json:"last_update_seq"`
}

// NewVehicleState returns the state a session starts with.
func NewVehicleState() VehicleState {
	return VehicleState{
		Direction: DirectionStop,
		AutoPark:  AutoPark{Phase: AutoParkIdle},
	}
}
