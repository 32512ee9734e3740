package core

import (
	"context"

	"github.com/librescoot/librefsm"

	"vehicle-remote/internal/fsm"
	"vehicle-remote/internal/types"
)

func stateIDToSessionState(id librefsm.StateID) types.SessionState {
	switch id {
	case fsm.StateUninitialized:
		return types.StateUninitialized
	case fsm.StateInitializing:
		return types.StateInitializing
	case fsm.StateRunning:
		return types.StateRunning
	case fsm.StateStopping:
		return types.StateStopping
	case fsm.StateStopped:
		return types.StateStopped
	default:
		return types.SessionState(string(id))
	}
}

// initFSM builds and starts the lifecycle machine
func (s *Session) initFSM() error {
	machine, err := fsm.NewDefinition(s).Build()
	if err != nil {
		return err
	}
	s.machine = machine

	s.machine.OnStateChange(func(from, to librefsm.StateID) {
		s.logger.Infof("State transition: %s -> %s", stateIDToSessionState(from), stateIDToSessionState(to))
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.machineCancel = cancel
	if err := s.machine.Start(ctx); err != nil {
		cancel()
		return err
	}
	return nil
}

// sendEvent delivers ev synchronously and mirrors the resulting state.
func (s *Session) sendEvent(ev librefsm.EventID) error {
	if err := s.machine.SendSync(librefsm.Event{ID: ev}); err != nil {
		return err
	}
	st := stateIDToSessionState(s.machine.CurrentState())
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

func (s *Session) stopMachine() {
	if s.machineCancel != nil {
		s.machineCancel()
	}
}

// === State actions ===

func (s *Session) EnterRunning(c *librefsm.Context) error {
	s.logger.Infof("Session %s running", s.id)
	if s.panel != nil && s.panelReady {
		if err := s.panel.SetIndicator(true); err != nil {
			s.logger.Warnf("Failed to light session indicator: %v", err)
		}
	}
	return nil
}

func (s *Session) ExitRunning(c *librefsm.Context) error {
	if s.panel != nil && s.panelReady {
		if err := s.panel.SetIndicator(false); err != nil {
			s.logger.Warnf("Failed to clear session indicator: %v", err)
		}
	}
	return nil
}

func (s *Session) EnterStopping(c *librefsm.Context) error {
	s.logger.Infof("Stopping session %s", s.id)
	return nil
}

func (s *Session) EnterStopped(c *librefsm.Context) error {
	stats := s.bridge.Stats()
	s.logger.Infof("Session %s stopped (%d frames, %d ignored)", s.id, stats.FramesReceived, stats.FramesIgnored)
	return nil
}

func (s *Session) OnInitFailed(c *librefsm.Context) error {
	s.logger.Warnf("Session %s failed to initialize", s.id)
	return nil
}
