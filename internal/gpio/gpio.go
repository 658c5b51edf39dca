// Package gpio provides button input reading with hardware abstraction.
// The real implementations use the Linux GPIO character device or periph.io.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"strings"
)

// Reader reads the logical state of a single button.
type Reader interface {
	// Read returns true while the button is pressed.
	// Active-low wiring is already accounted for.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering)
const (
	DefaultChip    = "gpiochip0"
	DefaultPin     = 17
	DefaultPinName = "GPIO17"
)

// Pull is the input bias applied to the button line.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	}
	return "none"
}

// ParsePull converts "up", "down" or "none" into a Pull.
func ParsePull(s string) (Pull, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return PullUp, nil
	case "down":
		return PullDown, nil
	case "none", "":
		return PullNone, nil
	}
	return PullNone, fmt.Errorf("unknown pull %q (want up, down or none)", s)
}

// pressed converts a raw line level into the logical pressed state.
func pressed(high, activeLow bool) bool {
	if activeLow {
		return !high
	}
	return high
}
