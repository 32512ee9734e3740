package core

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"vehicle-remote/internal/protocol"
	"vehicle-remote/internal/storage"
	"vehicle-remote/internal/types"
)

// Send encodes intent and hands it to the network client. The bridge is
// not locked while the send is in flight. On success the matching local
// event, if any, is applied to the vehicle state.
func (s *Session) Send(ctx context.Context, intent protocol.Intent) error {
	msg, err := protocol.Encode(intent)
	if err != nil {
		return &SendError{Err: err}
	}

	if st := s.State(); st != types.StateRunning {
		return &SendError{Code: msg.Code(), Err: ErrNotRunning}
	}

	id := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	started := time.Now()
	err = s.client.SendCommand(ctx, uint8(msg.Code()), msg.Payload())
	s.journalCommand(id, msg, started, err)

	if err != nil {
		s.logger.Warnf("Command %s failed: %v", msg, err)
		return &SendError{ID: id, Code: msg.Code(), Err: err}
	}
	s.logger.Debugf("Sent %s in %s", msg, time.Since(started))

	if ev := localEvent(intent); ev != nil {
		s.bridge.ApplyLocal(ev)
	}
	return nil
}

func localEvent(intent protocol.Intent) types.StatusEvent {
	switch v := intent.(type) {
	case protocol.Drive:
		return types.DriveCommanded{Direction: v.Direction}
	case protocol.SetSpeed:
		return types.SpeedCommanded{Percent: protocol.ClampPercent(v.Percent)}
	case protocol.AutoPark:
		if v.Start {
			return types.AutoParkTriggered{}
		}
		return types.AutoParkCancelled{}
	}
	return nil
}

func (s *Session) journalCommand(id string, msg protocol.CommandMessage, started time.Time, sendErr error) {
	if s.journal == nil {
		return
	}
	payload := strings.ToUpper(hex.EncodeToString(msg.Payload()))
	if msg.Code() == protocol.CmdAuth {
		payload = strings.Repeat("*", len(msg.Payload()))
	}
	rec := storage.CommandRecord{
		ID:        id,
		SessionID: s.id,
		Time:      started,
		Code:      uint8(msg.Code()),
		Name:      msg.Code().String(),
		Payload:   payload,
		Duration:  time.Since(started),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := s.journal.RecordCommand(rec); err != nil {
		s.logger.Warnf("Failed to journal command %s: %v", id, err)
	}
}

func (s *Session) Drive(ctx context.Context, dir types.Direction) error {
	return s.Send(ctx, protocol.Drive{Direction: dir})
}

func (s *Session) SetSpeed(ctx context.Context, percent int) error {
	return s.Send(ctx, protocol.SetSpeed{Percent: percent})
}

func (s *Session) SetAeb(ctx context.Context, enabled bool) error {
	return s.Send(ctx, protocol.SetAeb{Enabled: enabled})
}

func (s *Session) TriggerAutoPark(ctx context.Context) error {
	return s.Send(ctx, protocol.AutoPark{Start: true})
}

func (s *Session) CancelAutoPark(ctx context.Context) error {
	return s.Send(ctx, protocol.AutoPark{Start: false})
}

func (s *Session) Authenticate(ctx context.Context, secret string) error {
	return s.Send(ctx, protocol.Authenticate{Secret: secret})
}

func (s *Session) ResetFault(ctx context.Context) error {
	return s.Send(ctx, protocol.Fault{})
}

func (s *Session) EmergencyStop(ctx context.Context) error {
	return s.Send(ctx, protocol.Fault{EmergencyStop: true})
}

// handleEmergencyStop is the panel's e-stop callback.
func (s *Session) handleEmergencyStop() {
	s.logger.Warnf("Emergency stop pressed")
	if err := s.EmergencyStop(context.Background()); err != nil {
		s.logger.Errorf("Failed to send emergency stop: %v", err)
	}
}
