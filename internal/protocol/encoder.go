package protocol

import (
	"errors"
	"fmt"

	"vehicle-remote/internal/types"
)

var (
	ErrUnknownDirection = errors.New("unknown direction")
	ErrUnknownIntent    = errors.New("unknown intent")
)

// Intent is an operator request that can be encoded into a command.
type Intent interface {
	intent()
}

type Drive struct {
	Direction types.Direction
}

// SetSpeed carries the requested speed in percent. Values outside 0..100
// are clamped.
type SetSpeed struct {
	Percent int
}

type SetAeb struct {
	Enabled bool
}

// AutoPark starts the manoeuvre, or cancels it when Start is false.
type AutoPark struct {
	Start bool
}

// Authenticate carries a secret; only its first MaxPayload bytes are sent.
type Authenticate struct {
	Secret string
}

type Fault struct {
	EmergencyStop bool
}

func (Drive) intent()        {}
func (SetSpeed) intent()     {}
func (SetAeb) intent()       {}
func (AutoPark) intent()     {}
func (Authenticate) intent() {}
func (Fault) intent()        {}

// Encode maps an intent to its command message.
func Encode(in Intent) (CommandMessage, error) {
	switch v := in.(type) {
	case Drive:
		code, ok := DirectionCode(v.Direction)
		if !ok {
			return CommandMessage{}, fmt.Errorf("%w: %d", ErrUnknownDirection, v.Direction)
		}
		return newMessage(CmdDrive, code), nil
	case SetSpeed:
		return newMessage(CmdSetSpeed, ClampPercent(v.Percent)), nil
	case SetAeb:
		return newMessage(CmdAebToggle, boolByte(v.Enabled)), nil
	case AutoPark:
		return newMessage(CmdAutoParkTrigger, boolByte(v.Start)), nil
	case Authenticate:
		secret := []byte(v.Secret)
		if len(secret) > MaxPayload {
			secret = secret[:MaxPayload]
		}
		return newMessage(CmdAuth, secret...), nil
	case Fault:
		if v.EmergencyStop {
			return newMessage(CmdFaultControl, FaultEmergencyStop), nil
		}
		return newMessage(CmdFaultControl, FaultReset), nil
	}
	return CommandMessage{}, fmt.Errorf("%w: %T", ErrUnknownIntent, in)
}

// ClampPercent limits v to 0..100.
func ClampPercent(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return uint8(v)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
