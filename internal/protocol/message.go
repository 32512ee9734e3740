package protocol

import "fmt"

// CommandMessage is an encoded command ready to be sent once.
type CommandMessage struct {
	code    CommandCode
	payload []byte
}

func newMessage(code CommandCode, payload ...byte) CommandMessage {
	p := make([]byte, len(payload))
	copy(p, payload)
	return CommandMessage{code: code, payload: p}
}

func (m CommandMessage) Code() CommandCode {
	return m.code
}

// Payload returns a copy of the payload bytes.
func (m CommandMessage) Payload() []byte {
	p := make([]byte, len(m.payload))
	copy(p, m.payload)
	return p
}

// Frame returns the code followed by the payload.
func (m CommandMessage) Frame() []byte {
	f := make([]byte, 0, 1+len(m.payload))
	f = append(f, byte(m.code))
	return append(f, m.payload...)
}

// PaddedFrame returns Frame zero-padded to FrameSize.
func (m CommandMessage) PaddedFrame() []byte {
	f := make([]byte, FrameSize)
	f[0] = byte(m.code)
	copy(f[1:], m.payload)
	return f
}

func (m CommandMessage) String() string {
	return fmt.Sprintf("%s(0x%02X) % X", m.code, uint8(m.code), m.payload)
}
