package messaging

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"vehicle-remote/internal/logger"
)

func TestParseCANLine(t *testing.T) {
	id, data, err := parseCANLine("310#0301")
	require.NoError(t, err)
	assert.Equal(t, CANStatusID, id)
	assert.Equal(t, []byte{0x03, 0x01}, data)

	id, data, err = parseCANLine("310#04.2C.01")
	require.NoError(t, err)
	assert.Equal(t, CANStatusID, id)
	assert.Equal(t, []byte{0x04, 0x2C, 0x01}, data)

	for _, bad := range []string{"3100301", "XYZ#01", "310#0", "310#000102030405060708"} {
		_, _, err := parseCANLine(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatCANLine(t *testing.T) {
	assert.Equal(t, "200#0108", formatCANLine(CANCommandID, []byte{0x01, 0x08}))
	assert.Equal(t, "200#FE01", formatCANLine(CANCommandID, []byte{0xFE, 0x01}))
}

func newPipeSerialClient(t *testing.T) (*SerialClient, net.Conn) {
	t.Helper()
	clientEnd, gatewayEnd := net.Pipe()
	t.Cleanup(func() { gatewayEnd.Close() })

	var openedMode *serial.Mode
	c := NewSerialClient(SerialOptions{
		Device: "/dev/ttyTEST",
		Open: func(path string, mode *serial.Mode) (io.ReadWriteCloser, error) {
			openedMode = mode
			return clientEnd, nil
		},
	}, logger.NewLogger(nil, logger.LogLevelError))

	require.NoError(t, c.Init(context.Background()))
	require.NotNil(t, openedMode)
	assert.Equal(t, 115200, openedMode.BaudRate)
	return c, gatewayEnd
}

func TestSerialClientReceivesStatus(t *testing.T) {
	c, gateway := newPipeSerialClient(t)

	received := make(chan []byte, 4)
	c.OnStatus(func(raw []byte) { received <- raw })

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()

	_, err := io.WriteString(gateway, "# gateway up\n123#0101\n310#0301\n")
	require.NoError(t, err)

	select {
	case raw := <-received:
		assert.Equal(t, []byte{0x03, 0x01}, raw)
	case <-time.After(2 * time.Second):
		t.Fatal("status frame not delivered")
	}

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.Len(t, received, 0)
}

func TestSerialClientSendsCommandLine(t *testing.T) {
	c, gateway := newPipeSerialClient(t)
	defer c.Stop()

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(gateway).ReadString('\n')
		lines <- line
	}()

	require.NoError(t, c.SendCommand(context.Background(), 0x01, []byte{0x08}))

	select {
	case line := <-lines:
		assert.Equal(t, "200#0108\n", line)
	case <-time.After(2 * time.Second):
		t.Fatal("command line not written")
	}
}

func TestSerialClientSendAfterStop(t *testing.T) {
	c, _ := newPipeSerialClient(t)
	require.NoError(t, c.Stop())

	err := c.SendCommand(context.Background(), 0x01, []byte{0x05})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestSerialClientInitFailure(t *testing.T) {
	c := NewSerialClient(SerialOptions{
		Device: "/dev/missing",
		Open: func(string, *serial.Mode) (io.ReadWriteCloser, error) {
			return nil, errors.New("no such device")
		},
	}, logger.NewLogger(nil, logger.LogLevelError))

	err := c.Init(context.Background())
	assert.ErrorContains(t, err, "/dev/missing")
}
