package core

import (
	"context"

	"vehicle-remote/internal/bridge"
	"vehicle-remote/internal/storage"
	"vehicle-remote/internal/types"
)

// NetworkClient is the transport to the vehicle controller.
type NetworkClient interface {
	// OnStatus registers the callback invoked, on the client's receive
	// goroutine, for every raw status frame.
	OnStatus(fn func(raw []byte))
	Init(ctx context.Context) error
	// Start blocks, delivering status frames, until ctx ends or Stop is
	// called.
	Start(ctx context.Context) error
	// Stop releases the transport. It must be safe to call more than once.
	Stop() error
	SendCommand(ctx context.Context, id uint8, payload []byte) error
}

// Panel is the operator's local hardware: an emergency-stop input and a
// session indicator.
type Panel interface {
	Initialize() error
	Cleanup()
	OnEmergencyStop(fn func())
	SetIndicator(on bool) error
}

// Journal records sessions and commands.
type Journal interface {
	RecordCommand(rec storage.CommandRecord) error
	RecordSession(rec storage.SessionRecord) error
}

// StateReader is the read side of the session handed to user interfaces.
type StateReader interface {
	Snapshot() (types.VehicleState, uint64)
	Poll() (types.VehicleState, uint64)
	Subscribe(h bridge.Handler) (unsubscribe func())
	Stats() bridge.Stats
}
