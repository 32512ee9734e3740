package messaging

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"vehicle-remote/internal/logger"
)

// PortOpener opens the gateway port. Tests substitute an in-memory pipe.
type PortOpener func(path string, mode *serial.Mode) (io.ReadWriteCloser, error)

func openSerialPort(path string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(path, mode)
}

type SerialOptions struct {
	Device   string
	BaudRate int
	Open     PortOpener
}

// CAN identifiers used by the controller.
const (
	CANCommandID uint32 = 0x200
	CANStatusID  uint32 = 0x310
)

// SerialClient talks to a CAN gateway that exchanges one frame per line in
// the compact candump form "310#0301". Lines starting with '#' are gateway
// diagnostics. Frames with other identifiers are ignored.
type SerialClient struct {
	opts     SerialOptions
	logger   *logger.Logger
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	port     io.ReadWriteCloser
	onStatus func([]byte)

	writeMu sync.Mutex
}

func NewSerialClient(opts SerialOptions, l *logger.Logger) *SerialClient {
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.Open == nil {
		opts.Open = openSerialPort
	}
	return &SerialClient{
		opts:   opts,
		logger: l,
		done:   make(chan struct{}),
	}
}

func (c *SerialClient) OnStatus(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
}

func (c *SerialClient) mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: c.opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

func (c *SerialClient) Init(ctx context.Context) error {
	c.logger.Infof("Opening serial gateway %s at %d baud", c.opts.Device, c.opts.BaudRate)
	port, err := c.opts.Open(c.opts.Device, c.mode())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.opts.Device, err)
	}
	c.mu.Lock()
	c.port = port
	c.mu.Unlock()
	return nil
}

// Start reads status lines until the port is closed.
func (c *SerialClient) Start(ctx context.Context) error {
	c.mu.RLock()
	port := c.port
	c.mu.RUnlock()
	if port == nil {
		return fmt.Errorf("serial gateway not initialised")
	}

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.done:
		}
	}()

	reader := bufio.NewReader(port)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			c.handleLine(line)
		}
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if err == io.EOF {
				return fmt.Errorf("serial gateway closed the connection")
			}
			return fmt.Errorf("serial read failed: %w", err)
		}
	}
}

func (c *SerialClient) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		if line != "" {
			c.logger.Debugf("Gateway: %s", strings.TrimSpace(line[1:]))
		}
		return
	}
	id, raw, err := parseCANLine(line)
	if err != nil {
		c.logger.Warnf("Discarding malformed gateway line %q: %v", line, err)
		return
	}
	if id != CANStatusID {
		return
	}

	c.mu.RLock()
	fn := c.onStatus
	c.mu.RUnlock()
	if fn != nil {
		fn(raw)
	}
}

func (c *SerialClient) SendCommand(ctx context.Context, id uint8, payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	port := c.port
	c.mu.RUnlock()
	if port == nil {
		return ErrClosed
	}

	line := formatCANLine(CANCommandID, frame(id, payload)) + "\n"

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := io.WriteString(port, line); err != nil {
		return fmt.Errorf("failed to write command 0x%02X: %w", id, err)
	}
	return nil
}

func (c *SerialClient) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		port := c.port
		c.mu.Unlock()
		if port != nil {
			err = port.Close()
		}
		c.logger.Infof("Serial gateway closed")
	})
	return err
}

func formatCANLine(id uint32, data []byte) string {
	return fmt.Sprintf("%03X#%s", id, strings.ToUpper(hex.EncodeToString(data)))
}

func parseCANLine(line string) (uint32, []byte, error) {
	idPart, dataPart, ok := strings.Cut(line, "#")
	if !ok {
		return 0, nil, fmt.Errorf("missing '#' separator")
	}
	id, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return 0, nil, fmt.Errorf("bad identifier: %w", err)
	}
	data, err := hex.DecodeString(strings.ReplaceAll(dataPart, ".", ""))
	if err != nil {
		return 0, nil, fmt.Errorf("bad data: %w", err)
	}
	if len(data) > 8 {
		return 0, nil, fmt.Errorf("frame longer than 8 bytes")
	}
	return uint32(id), data, nil
}
