package protocol

import "vehicle-remote/internal/types"

// CommandCode identifies a command on the control service.
type CommandCode uint8

const (
	CmdDrive           CommandCode = 0x01
	CmdSetSpeed        CommandCode = 0x02
	CmdAebToggle       CommandCode = 0x03
	CmdAutoParkTrigger CommandCode = 0x04
	CmdAuth            CommandCode = 0x05
	CmdFaultControl    CommandCode = 0xFE
)

func (c CommandCode) String() string {
	switch c {
	case CmdDrive:
		return "drive"
	case CmdSetSpeed:
		return "set-speed"
	case CmdAebToggle:
		return "aeb-toggle"
	case CmdAutoParkTrigger:
		return "autopark-trigger"
	case CmdAuth:
		return "auth"
	case CmdFaultControl:
		return "fault-control"
	}
	return "unknown"
}

// Status service tags. Tags 0x01, 0x05 and 0x06 exist on the wire
// (drive state, fault code, auth state) but carry nothing we track.
const (
	TagDriveState uint8 = 0x01
	TagAebState   uint8 = 0x02
	TagAutoPark   uint8 = 0x03
	TagProximity  uint8 = 0x04
	TagFaultCode  uint8 = 0x05
	TagAuthState  uint8 = 0x06
)

// Controller acknowledgement codes.
const (
	RespOK      uint8 = 0x00
	RespBusy    uint8 = 0x01
	RespInvalid uint8 = 0x02
	RespError   uint8 = 0xFF
)

// RespName returns a readable name for an acknowledgement code.
func RespName(code uint8) string {
	switch code {
	case RespOK:
		return "ok"
	case RespBusy:
		return "busy"
	case RespInvalid:
		return "invalid"
	case RespError:
		return "error"
	}
	return "unknown"
}

// Fault control payloads.
const (
	FaultReset         uint8 = 0x00
	FaultEmergencyStop uint8 = 0x01
)

// MaxPayload is the payload capacity of a command frame.
const MaxPayload = 7

// FrameSize is the size of a padded frame on fixed-size links.
const FrameSize = 1 + MaxPayload

// Keypad layout: 7 8 9 / 4 5 6 / 1 2 3.
var directionCodes = map[types.Direction]uint8{
	types.DirectionBackwardLeft:  0x01,
	types.DirectionBackward:      0x02,
	types.DirectionBackwardRight: 0x03,
	types.DirectionLeft:          0x04,
	types.DirectionStop:          0x05,
	types.DirectionRight:         0x06,
	types.DirectionForwardLeft:   0x07,
	types.DirectionForward:       0x08,
	types.DirectionForwardRight:  0x09,
}

// DirectionCode returns the wire code for d.
func DirectionCode(d types.Direction) (uint8, bool) {
	code, ok := directionCodes[d]
	return code, ok
}
