package hardware

import "time"

const (
	DefaultChip     = "gpiochip0"
	DefaultDebounce = 20 * time.Millisecond

	// Consumer label shown by gpioinfo.
	Consumer = "vehicle-remote"
)

// PanelLines maps the operator panel to GPIO offsets. A negative offset
// disables the line.
type PanelLines struct {
	Chip           string
	EStop          int
	Indicator      int
	EStopActiveLow bool
	Debounce       time.Duration
}
