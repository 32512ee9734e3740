package messaging

import (
	"context"
	"sync"
	"time"

	"vehicle-remote/internal/logger"
	"vehicle-remote/internal/protocol"
)

type SimOptions struct {
	StatusPeriod time.Duration
	// ParkStep is the AutoPark progress added per status period.
	ParkStep uint8
}

// SimClient is an in-process controller used for bench runs without a
// vehicle. It validates commands like the real control service, echoes
// the AEB state, walks AutoPark progress to completion and publishes a
// proximity reading every status period.
type SimClient struct {
	opts     SimOptions
	logger   *logger.Logger
	frames   chan []byte
	done     chan struct{}
	stopOnce sync.Once

	mu        sync.Mutex
	onStatus  func([]byte)
	ready     bool
	parking   bool
	progress  uint8
	proximity uint16
	closing   bool
}

func NewSimClient(opts SimOptions, l *logger.Logger) *SimClient {
	if opts.StatusPeriod <= 0 {
		opts.StatusPeriod = 200 * time.Millisecond
	}
	if opts.ParkStep == 0 {
		opts.ParkStep = 20
	}
	return &SimClient{
		opts:      opts,
		logger:    l,
		frames:    make(chan []byte, 64),
		done:      make(chan struct{}),
		proximity: 250,
	}
}

func (s *SimClient) OnStatus(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

func (s *SimClient) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.logger.Infof("Simulated controller ready (status period %s)", s.opts.StatusPeriod)
	return nil
}

func (s *SimClient) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.StatusPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case f := <-s.frames:
			s.deliver(f)
		case <-ticker.C:
			for _, f := range s.tick() {
				s.deliver(f)
			}
		}
	}
}

func (s *SimClient) tick() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out [][]byte
	if s.parking {
		next := int(s.progress) + int(s.opts.ParkStep)
		if next >= 100 {
			next = 100
			s.parking = false
		}
		s.progress = uint8(next)
		out = append(out, []byte{protocol.TagAutoPark, s.progress})
	}

	// Sweep between 20 cm and 300 cm.
	s.proximity -= 10
	if s.proximity < 20 {
		s.proximity = 300
	}
	out = append(out, []byte{protocol.TagProximity, byte(s.proximity), byte(s.proximity >> 8)})
	return out
}

func (s *SimClient) deliver(raw []byte) {
	s.mu.Lock()
	fn := s.onStatus
	s.mu.Unlock()
	if fn != nil {
		fn(raw)
	}
}

func (s *SimClient) SendCommand(ctx context.Context, id uint8, payload []byte) error {
	s.mu.Lock()
	if !s.ready || s.closing {
		s.mu.Unlock()
		return ErrClosed
	}
	reply, err := s.handleLocked(protocol.CommandCode(id), payload)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}

	select {
	case s.frames <- reply:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SimClient) handleLocked(code protocol.CommandCode, payload []byte) ([]byte, error) {
	s.logger.Debugf("Simulated CAN TX 0x%03X: %s % X", CANCommandID, code, payload)

	switch code {
	case protocol.CmdDrive:
		if len(payload) != 1 || payload[0] < 0x01 || payload[0] > 0x09 {
			return nil, &RejectedError{Code: protocol.RespInvalid}
		}
	case protocol.CmdSetSpeed:
		if len(payload) != 1 || payload[0] > 100 {
			return nil, &RejectedError{Code: protocol.RespInvalid}
		}
	case protocol.CmdAebToggle:
		if len(payload) != 1 {
			return nil, &RejectedError{Code: protocol.RespInvalid}
		}
		return []byte{protocol.TagAebState, payload[0]}, nil
	case protocol.CmdAutoParkTrigger:
		if len(payload) != 1 {
			return nil, &RejectedError{Code: protocol.RespInvalid}
		}
		if payload[0] == 1 {
			if s.parking {
				return nil, &RejectedError{Code: protocol.RespBusy}
			}
			s.parking = true
			s.progress = 0
			return []byte{protocol.TagAutoPark, 0}, nil
		}
		s.parking = false
	case protocol.CmdAuth:
	case protocol.CmdFaultControl:
		if len(payload) == 1 && payload[0] == protocol.FaultEmergencyStop {
			s.parking = false
		}
	default:
		return nil, &RejectedError{Code: protocol.RespInvalid}
	}
	return nil, nil
}

func (s *SimClient) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}
