package fsm

import (
	"github.com/librescoot/librefsm"
)

// NewDefinition creates the session lifecycle definition.
//
//	uninitialized -> initializing -> running -> stopping -> stopped
//
// A failed init goes straight to stopped. Stop is accepted from every
// state before stopped so a session can be torn down at any point.
func NewDefinition(actions Actions) *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateUninitialized).
		State(StateInitializing).
		State(StateRunning,
			librefsm.WithOnEnter(actions.EnterRunning),
			librefsm.WithOnExit(actions.ExitRunning),
		).
		State(StateStopping,
			librefsm.WithOnEnter(actions.EnterStopping),
		).
		State(StateStopped,
			librefsm.WithOnEnter(actions.EnterStopped),
		).

		// === Transitions ===
		Transition(StateUninitialized, EvInit, StateInitializing).
		Transition(StateUninitialized, EvStop, StateStopped).
		Transition(StateInitializing, EvInitFailed, StateStopped,
			librefsm.WithAction(actions.OnInitFailed),
		).
		Transition(StateInitializing, EvStart, StateRunning).
		Transition(StateInitializing, EvStop, StateStopping).
		Transition(StateRunning, EvStop, StateStopping).
		Transition(StateStopping, EvStopped, StateStopped).
		Initial(StateUninitialized)
}
