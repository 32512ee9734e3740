package api

import (
	"fmt"
	"strconv"
	"strings"

	"vehicle-remote/internal/protocol"
	"vehicle-remote/internal/types"
)

// CommandRequest is the JSON body accepted by POST /api/command.
type CommandRequest struct {
	Type      string `json:"type"`
	Direction string `json:"direction,omitempty"`
	Percent   *int   `json:"percent,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`
	Start     *bool  `json:"start,omitempty"`
	Secret    string `json:"secret,omitempty"`
	Action    string `json:"action,omitempty"`
}

// Intent validates the request and converts it to a protocol intent.
func (r CommandRequest) Intent() (protocol.Intent, error) {
	switch strings.ToLower(r.Type) {
	case "drive":
		dir, err := types.ParseDirection(r.Direction)
		if err != nil {
			return nil, err
		}
		return protocol.Drive{Direction: dir}, nil
	case "speed":
		if r.Percent == nil {
			return nil, fmt.Errorf("speed needs percent")
		}
		return protocol.SetSpeed{Percent: *r.Percent}, nil
	case "aeb":
		if r.Enabled == nil {
			return nil, fmt.Errorf("aeb needs enabled")
		}
		return protocol.SetAeb{Enabled: *r.Enabled}, nil
	case "autopark":
		start := true
		if r.Start != nil {
			start = *r.Start
		}
		return protocol.AutoPark{Start: start}, nil
	case "auth":
		if r.Secret == "" {
			return nil, fmt.Errorf("auth needs secret")
		}
		return protocol.Authenticate{Secret: r.Secret}, nil
	case "fault":
		return faultIntent(r.Action)
	}
	return nil, fmt.Errorf("unknown command type %q", r.Type)
}

func faultIntent(action string) (protocol.Intent, error) {
	switch strings.ToLower(action) {
	case "reset":
		return protocol.Fault{}, nil
	case "estop", "emergency-stop", "stop":
		return protocol.Fault{EmergencyStop: true}, nil
	}
	return nil, fmt.Errorf("unknown fault action %q", action)
}

// ParseLine parses the console form of a command, e.g. "drive forward",
// "speed 40", "aeb on", "park start", "auth 1234", "fault estop".
func ParseLine(line string) (protocol.Intent, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch strings.ToLower(fields[0]) {
	case "drive", "d":
		dir, err := types.ParseDirection(arg)
		if err != nil {
			return nil, err
		}
		return protocol.Drive{Direction: dir}, nil
	case "forward", "backward", "left", "right", "stop":
		dir, _ := types.ParseDirection(fields[0])
		return protocol.Drive{Direction: dir}, nil
	case "speed", "s":
		pct, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("speed needs a number: %w", err)
		}
		return protocol.SetSpeed{Percent: pct}, nil
	case "aeb":
		on, err := parseOnOff(arg)
		if err != nil {
			return nil, err
		}
		return protocol.SetAeb{Enabled: on}, nil
	case "park", "autopark":
		switch strings.ToLower(arg) {
		case "", "start":
			return protocol.AutoPark{Start: true}, nil
		case "cancel":
			return protocol.AutoPark{Start: false}, nil
		}
		return nil, fmt.Errorf("park takes start or cancel")
	case "auth":
		if arg == "" {
			return nil, fmt.Errorf("auth needs a secret")
		}
		return protocol.Authenticate{Secret: arg}, nil
	case "fault":
		return faultIntent(arg)
	case "estop":
		return protocol.Fault{EmergencyStop: true}, nil
	}
	return nil, fmt.Errorf("unknown command %q", fields[0])
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
