// Package state holds the vehicle state reducer.
package state

import "vehicle-remote/internal/types"

// Apply returns s updated with ev. Only the fields ev carries change,
// LastUpdateSeq is incremented on every call that changes the state.
//
// AutoPark Complete is terminal: progress below 100 is ignored until a
// trigger or cancel starts a new manoeuvre.
func Apply(s types.VehicleState, ev types.StatusEvent) types.VehicleState {
	switch e := ev.(type) {
	case types.AebState:
		s.AebEnabled = e.Enabled
	case types.AutoParkProgress:
		if e.Percent < 100 && s.AutoPark.Phase == types.AutoParkComplete {
			return s
		}
		if e.Percent >= 100 {
			s.AutoPark = types.AutoPark{Phase: types.AutoParkComplete, Percent: 100}
			s.AutoParkArmed = false
		} else {
			s.AutoPark = types.AutoPark{Phase: types.AutoParkRunning, Percent: e.Percent}
		}
	case types.ProximityDistance:
		s.ProximityCm = e.Centimeters
	case types.DriveCommanded:
		s.Direction = e.Direction
	case types.SpeedCommanded:
		if e.Percent > 100 {
			e.Percent = 100
		}
		s.SpeedPercent = e.Percent
	case types.AutoParkTriggered:
		s.AutoPark = types.AutoPark{Phase: types.AutoParkRunning}
		s.AutoParkArmed = true
	case types.AutoParkCancelled:
		s.AutoPark = types.AutoPark{Phase: types.AutoParkIdle}
		s.AutoParkArmed = false
	default:
		return s
	}
	s.LastUpdateSeq++
	return s
}

// ApplyAll folds events into s in order.
func ApplyAll(s types.VehicleState, events ...types.StatusEvent) types.VehicleState {
	for _, ev := range events {
		s = Apply(s, ev)
	}
	return s
}
