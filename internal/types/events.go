package types

// StatusEvent is a single update to the vehicle state. Wire events come
// from the status decoder; local events are produced by the session after
// a command was accepted by the network.
type StatusEvent interface {
	statusEvent()
}

type AebState struct {
	Enabled bool
}

// AutoParkProgress carries a percentage in 0..100.
type AutoParkProgress struct {
	Percent uint8
}

type ProximityDistance struct {
	Centimeters uint16
}

type DriveCommanded struct {
	Direction Direction
}

type SpeedCommanded struct {
	Percent uint8
}

type AutoParkTriggered struct{}

type AutoParkCancelled struct{}

func (AebState) statusEvent()          {}
func (AutoParkProgress) statusEvent()  {}
func (ProximityDistance) statusEvent() {}
func (DriveCommanded) statusEvent()    {}
func (SpeedCommanded) statusEvent()    {}
func (AutoParkTriggered) statusEvent() {}
func (AutoParkCancelled) statusEvent() {}
