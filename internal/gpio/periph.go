package gpio

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphReader reads a button through periph.io, addressing the pin by name
// (e.g. "GPIO17"). It works on any board periph.io has a driver for.
type PeriphReader struct {
	pin       gpio.PinIO
	activeLow bool
}

// NewPeriphReader initializes the periph.io host drivers and configures the
// named pin as an input.
func NewPeriphReader(name string, pull Pull, activeLow bool) (*PeriphReader, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	for _, f := range state.Failed {
		log.Debugf("periph driver %s failed: %v", f.D, f.Err)
	}

	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no gpio pin named %q", name)
	}
	return newPeriphReader(p, pull, activeLow)
}

func newPeriphReader(p gpio.PinIO, pull Pull, activeLow bool) (*PeriphReader, error) {
	if err := p.In(periphPull(pull), gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure pin %s: %w", p.Name(), err)
	}
	return &PeriphReader{pin: p, activeLow: activeLow}, nil
}

func periphPull(p Pull) gpio.Pull {
	switch p {
	case PullUp:
		return gpio.PullUp
	case PullDown:
		return gpio.PullDown
	}
	return gpio.Float
}

// Read returns true while the button is pressed.
func (r *PeriphReader) Read() (bool, error) {
	return pressed(r.pin.Read() == gpio.High, r.activeLow), nil
}

// Close returns the pin to a high-impedance input.
func (r *PeriphReader) Close() error {
	if err := r.pin.Halt(); err != nil {
		return fmt.Errorf("halt pin %s: %w", r.pin.Name(), err)
	}
	return nil
}
