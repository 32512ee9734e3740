package fsm

import "github.com/librescoot/librefsm"

// Session states
const (
	StateUninitialized librefsm.StateID = "uninitialized"
	StateInitializing  librefsm.StateID = "initializing"
	StateRunning       librefsm.StateID = "running"
	StateStopping      librefsm.StateID = "stopping"
	StateStopped       librefsm.StateID = "stopped"
)

// Session events
const (
	EvInit       librefsm.EventID = "init"
	EvInitFailed librefsm.EventID = "init-failed"
	EvStart      librefsm.EventID = "start"
	EvStop       librefsm.EventID = "stop"
	EvStopped    librefsm.EventID = "stopped"
)
