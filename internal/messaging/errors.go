package messaging

import (
	"errors"
	"fmt"

	"vehicle-remote/internal/protocol"
)

var (
	ErrClosed     = errors.New("client closed")
	ErrRejected   = errors.New("command rejected")
	ErrAckTimeout = errors.New("no acknowledgement")
)

// RejectedError is returned when the controller answers a command with a
// non-OK response code.
type RejectedError struct {
	Code uint8
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("command rejected: %s (0x%02X)", protocol.RespName(e.Code), e.Code)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

func frame(id uint8, payload []byte) []byte {
	f := make([]byte, 0, 1+len(payload))
	f = append(f, id)
	return append(f, payload...)
}
