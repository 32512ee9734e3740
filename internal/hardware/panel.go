package hardware

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"vehicle-remote/internal/logger"
)

type outputLine interface {
	SetValue(int) error
	Close() error
}

// GPIOPanel drives the operator panel: a latching emergency-stop button
// and a lamp lit while the session runs.
type GPIOPanel struct {
	lines  PanelLines
	logger *logger.Logger

	mu        sync.RWMutex
	chip      *gpiocdev.Chip
	estop     *gpiocdev.Line
	indicator outputLine
	onEStop   func()
}

func NewGPIOPanel(lines PanelLines, l *logger.Logger) *GPIOPanel {
	if lines.Chip == "" {
		lines.Chip = DefaultChip
	}
	if lines.Debounce <= 0 {
		lines.Debounce = DefaultDebounce
	}
	return &GPIOPanel{
		lines:  lines,
		logger: l,
	}
}

func (p *GPIOPanel) OnEmergencyStop(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEStop = fn
}

func (p *GPIOPanel) Initialize() error {
	p.logger.Infof("Initializing operator panel on %s", p.lines.Chip)

	chip, err := gpiocdev.NewChip(p.lines.Chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return fmt.Errorf("failed to open GPIO chip %s: %w", p.lines.Chip, err)
	}
	p.mu.Lock()
	p.chip = chip
	p.mu.Unlock()

	if p.lines.Indicator >= 0 {
		line, err := chip.RequestLine(p.lines.Indicator, gpiocdev.AsOutput(0))
		if err != nil {
			p.Cleanup()
			return fmt.Errorf("failed to request indicator line %d: %w", p.lines.Indicator, err)
		}
		p.mu.Lock()
		p.indicator = line
		p.mu.Unlock()
		p.logger.Infof("Configured indicator: chip=%s, line=%d", p.lines.Chip, p.lines.Indicator)
	}

	if p.lines.EStop >= 0 {
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(p.lines.Debounce),
			gpiocdev.WithEventHandler(p.handleEvent),
		}
		if p.lines.EStopActiveLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(p.lines.EStop, opts...)
		if err != nil {
			p.Cleanup()
			return fmt.Errorf("failed to request e-stop line %d: %w", p.lines.EStop, err)
		}
		p.mu.Lock()
		p.estop = line
		p.mu.Unlock()
		p.logger.Infof("Configured e-stop: chip=%s, line=%d", p.lines.Chip, p.lines.EStop)
	}

	return nil
}

func (p *GPIOPanel) handleEvent(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		p.logger.Debugf("E-stop released")
		return
	}
	p.logger.Infof("E-stop pressed (line %d)", evt.Offset)

	p.mu.RLock()
	fn := p.onEStop
	p.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (p *GPIOPanel) SetIndicator(on bool) error {
	p.mu.RLock()
	line := p.indicator
	p.mu.RUnlock()

	if line == nil {
		return nil
	}
	val := 0
	if on {
		val = 1
	}
	if err := line.SetValue(val); err != nil {
		return fmt.Errorf("failed to set indicator=%v: %w", on, err)
	}
	p.logger.Debugf("Set indicator=%v", on)
	return nil
}

func (p *GPIOPanel) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Infof("Cleaning up panel resources")

	if p.estop != nil {
		p.estop.Close()
		p.estop = nil
	}
	if p.indicator != nil {
		p.indicator.SetValue(0)
		p.indicator.Close()
		p.indicator = nil
	}
	if p.chip != nil {
		p.chip.Close()
		p.chip = nil
	}
}
