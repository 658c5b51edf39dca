//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads a button from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip      *gpiocdev.Chip
	line      *gpiocdev.Line
	pin       int
	activeLow bool
}

// NewRealReader requests pin on the named chip as an input with the given bias.
// With activeLow set, a low line level reads as pressed (button to ground with pull-up).
func NewRealReader(chipName string, pin int, pull Pull, activeLow bool) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, biasOption(pull), gpiocdev.WithConsumer("button-sensor"))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request pin %d: %w", pin, err)
	}

	return &RealReader{
		chip:      chip,
		line:      line,
		pin:       pin,
		activeLow: activeLow,
	}, nil
}

func biasOption(p Pull) gpiocdev.LineReqOption {
	switch p {
	case PullUp:
		return gpiocdev.WithPullUp
	case PullDown:
		return gpiocdev.WithPullDown
	}
	return gpiocdev.WithBiasDisabled
}

// Read returns true while the button is pressed.
func (r *RealReader) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", r.pin, err)
	}
	return pressed(v != 0, r.activeLow), nil
}

// Close releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", r.pin, err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", r.pin, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
