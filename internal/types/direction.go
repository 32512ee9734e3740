package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Direction is a drive direction as laid out on the operator keypad.
type Direction uint8

const (
	DirectionStop Direction = iota
	DirectionForward
	DirectionBackward
	DirectionLeft
	DirectionRight
	DirectionForwardLeft
	DirectionForwardRight
	DirectionBackwardLeft
	DirectionBackwardRight
)

var directionNames = map[Direction]string{
	DirectionStop:          "stop",
	DirectionForward:       "forward",
	DirectionBackward:      "backward",
	DirectionLeft:          "left",
	DirectionRight:         "right",
	DirectionForwardLeft:   "forward-left",
	DirectionForwardRight:  "forward-right",
	DirectionBackwardLeft:  "backward-left",
	DirectionBackwardRight: "backward-right",
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// ParseDirection accepts the names returned by String, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d, name := range directionNames {
		if name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
