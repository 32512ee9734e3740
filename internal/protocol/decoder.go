package protocol

import "vehicle-remote/internal/types"

// Decode turns a raw status payload into an event. Payloads that are too
// short or carry an unhandled tag are ignored and ok is false.
func Decode(raw []byte) (ev types.StatusEvent, ok bool) {
	if len(raw) < 2 {
		return nil, false
	}
	switch raw[0] {
	case TagAebState:
		return types.AebState{Enabled: raw[1] != 0}, true
	case TagAutoPark:
		pct := raw[1]
		if pct > 100 {
			pct = 100
		}
		return types.AutoParkProgress{Percent: pct}, true
	case TagProximity:
		if len(raw) < 3 {
			return nil, false
		}
		return types.ProximityDistance{Centimeters: uint16(raw[1]) | uint16(raw[2])<<8}, true
	}
	return nil, false
}

// DecodeReason explains why Decode would ignore raw. It returns an empty
// string for payloads Decode accepts.
func DecodeReason(raw []byte) string {
	if len(raw) < 2 {
		return "short frame"
	}
	switch raw[0] {
	case TagAebState, TagAutoPark:
		return ""
	case TagProximity:
		if len(raw) < 3 {
			return "short proximity frame"
		}
		return ""
	case TagDriveState, TagFaultCode, TagAuthState:
		return "untracked tag"
	}
	return "unknown tag"
}
