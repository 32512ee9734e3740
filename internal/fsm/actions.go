package fsm

import "github.com/librescoot/librefsm"

// Actions is implemented by the session to react to lifecycle changes.
// Actions run on the machine's goroutine and must not send events
// synchronously.
type Actions interface {
	EnterRunning(c *librefsm.Context) error
	ExitRunning(c *librefsm.Context) error
	EnterStopping(c *librefsm.Context) error
	EnterStopped(c *librefsm.Context) error

	// OnInitFailed runs on the init-failed transition.
	OnInitFailed(c *librefsm.Context) error
}
