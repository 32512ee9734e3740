package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/librescoot/librefsm"

	"vehicle-remote/internal/bridge"
	"vehicle-remote/internal/fsm"
	"vehicle-remote/internal/logger"
	"vehicle-remote/internal/storage"
	"vehicle-remote/internal/types"
)

const (
	DefaultSendTimeout = 2 * time.Second
	DefaultStopTimeout = 5 * time.Second
)

type Options struct {
	Client    NetworkClient
	Transport string
	Mode      bridge.Mode
	Panel     Panel
	Journal   Journal

	SendTimeout time.Duration
	StopTimeout time.Duration
}

// Session owns the network client and the vehicle state for one
// connection to the vehicle.
type Session struct {
	id        string
	transport string
	client    NetworkClient
	bridge    *bridge.Bridge
	panel     Panel
	journal   Journal
	logger    *logger.Logger

	sendTimeout time.Duration
	stopTimeout time.Duration

	machine       *librefsm.Machine
	machineCancel context.CancelFunc

	mu      sync.RWMutex
	state   types.SessionState
	started time.Time

	// lifecycleMu serialises Init, Start and Stop.
	lifecycleMu sync.Mutex
	released    bool
	panelReady  bool
	runCancel   context.CancelFunc
	runDone     chan struct{}
	runErr      error
}

func NewSession(opts Options, l *logger.Logger) (*Session, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("session needs a network client")
	}
	if opts.Mode == "" {
		opts.Mode = bridge.ModePush
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	id := uuid.NewString()
	s := &Session{
		id:          id,
		transport:   opts.Transport,
		client:      opts.Client,
		bridge:      bridge.New(opts.Mode, l.WithTag("bridge")),
		panel:       opts.Panel,
		journal:     opts.Journal,
		logger:      l.WithTag("session"),
		sendTimeout: opts.SendTimeout,
		stopTimeout: opts.StopTimeout,
		state:       types.StateUninitialized,
		runDone:     make(chan struct{}),
	}

	if err := s.initFSM(); err != nil {
		return nil, fmt.Errorf("failed to build session state machine: %w", err)
	}
	s.logger.Infof("Created session %s (%s transport, %s mode)", id, opts.Transport, opts.Mode)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() types.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Bridge exposes the vehicle state to user interfaces.
func (s *Session) Bridge() StateReader {
	return s.bridge
}

// Done is closed when the receive loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.runDone
}

// Err returns the error the receive loop exited with, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runErr
}

// Init brings up the panel and the network client. On failure the session
// is stopped and an *InitError is returned.
func (s *Session) Init(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if st := s.State(); st != types.StateUninitialized {
		return &InitError{Err: fmt.Errorf("session is %s", st)}
	}
	if err := s.sendEvent(fsm.EvInit); err != nil {
		return &InitError{Err: err}
	}

	if s.panel != nil {
		if err := s.panel.Initialize(); err != nil {
			return s.failInit(fmt.Errorf("failed to initialize panel: %w", err))
		}
		s.panelReady = true
		s.panel.OnEmergencyStop(s.handleEmergencyStop)
	}

	s.client.OnStatus(s.bridge.HandleStatus)
	if err := s.client.Init(ctx); err != nil {
		return s.failInit(fmt.Errorf("failed to initialize network client: %w", err))
	}

	s.logger.Infof("Session %s initialized", s.id)
	return nil
}

func (s *Session) failInit(err error) error {
	s.logger.Errorf("%v", err)
	s.bridge.Close()
	s.releaseClient()
	s.cleanupPanel()
	close(s.runDone)
	if ferr := s.sendEvent(fsm.EvInitFailed); ferr != nil {
		s.logger.Errorf("Failed to record init failure: %v", ferr)
	}
	s.stopMachine()
	return &InitError{Err: err}
}

// Start runs the client's receive loop in the background and returns
// immediately.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if st := s.State(); st != types.StateInitializing {
		return fmt.Errorf("%w: cannot start from %s", ErrNotInitialized, st)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel

	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	go func() {
		defer close(s.runDone)
		if err := s.client.Start(runCtx); err != nil {
			s.logger.Errorf("Receive loop exited: %v", err)
			s.mu.Lock()
			s.runErr = err
			s.mu.Unlock()
		}
	}()

	if err := s.sendEvent(fsm.EvStart); err != nil {
		cancel()
		return err
	}
	s.recordSession()
	return nil
}

// Stop tears the session down: bridge intake first, then the client.
// Calling Stop again, or on a session whose client was already released,
// does nothing.
func (s *Session) Stop() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	switch s.State() {
	case types.StateStopped:
		return nil
	case types.StateUninitialized:
		s.bridge.Close()
		s.released = true
		close(s.runDone)
		err := s.sendEvent(fsm.EvStop)
		s.stopMachine()
		return err
	}

	if err := s.sendEvent(fsm.EvStop); err != nil {
		return err
	}

	s.bridge.Close()
	stopErr := s.releaseClient()

	if s.runCancel != nil {
		s.runCancel()
		select {
		case <-s.runDone:
		case <-time.After(s.stopTimeout):
			s.logger.Warnf("Timeout waiting for receive loop to exit")
		}
	} else {
		close(s.runDone)
	}

	s.cleanupPanel()

	if err := s.sendEvent(fsm.EvStopped); err != nil {
		s.logger.Errorf("Failed to complete stop: %v", err)
	}
	s.recordSession()
	s.stopMachine()

	if stopErr != nil {
		return fmt.Errorf("failed to stop network client: %w", stopErr)
	}
	return nil
}

func (s *Session) releaseClient() error {
	if s.released {
		return nil
	}
	s.released = true
	return s.client.Stop()
}

func (s *Session) cleanupPanel() {
	if s.panel != nil && s.panelReady {
		s.panel.Cleanup()
		s.panelReady = false
	}
}

func (s *Session) recordSession() {
	if s.journal == nil {
		return
	}
	s.mu.RLock()
	rec := storage.SessionRecord{
		ID:        s.id,
		Transport: s.transport,
		Started:   s.started,
		State:     string(s.state),
	}
	s.mu.RUnlock()
	if rec.State == string(types.StateStopped) {
		rec.Stopped = time.Now()
	}
	if err := s.journal.RecordSession(rec); err != nil {
		s.logger.Warnf("Failed to journal session: %v", err)
	}
}

// Info summarises the session for status surfaces.
type Info struct {
	ID        string             `json:"id"`
	Transport string             `json:"transport"`
	State     types.SessionState `json:"state"`
	Mode      bridge.Mode        `json:"mode"`
	Started   time.Time          `json:"started,omitempty"`
	Stats     bridge.Stats       `json:"stats"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:        s.id,
		Transport: s.transport,
		State:     s.state,
		Mode:      s.bridge.Mode(),
		Started:   s.started,
		Stats:     s.bridge.Stats(),
	}
}
