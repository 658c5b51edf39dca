// Package logic contains pure business logic for button gesture classification.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected as a wrapping millisecond Timestamp.
package logic

import (
	"errors"
	"time"
)

// Timestamp is a millisecond reading of a free-running clock.
// It wraps at the configured ClockWidth.
type Timestamp uint32

// Duration is a span of milliseconds.
type Duration uint32

// ClockWidth is the number of significant bits in a Timestamp.
type ClockWidth uint8

const (
	Clock16 ClockWidth = 16
	Clock32 ClockWidth = 32
)

// Default thresholds.
const (
	DefaultFirstThreshold  Duration = 800
	DefaultSecondThreshold Duration = 3000
)

// ErrInvalidConfig is wrapped by every configuration error returned from NewClassifier.
var ErrInvalidConfig = errors.New("invalid classifier config")

// Mode selects a behavioral variant. Both modes classify identically for now.
type Mode int

const (
	ModeNormal Mode = iota
	ModeExtended
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeExtended:
		return "extended"
	}
	return "unknown"
}

// State is the position of the classifier's state machine.
type State int

const (
	StateIdle State = iota
	StateWaiting
	StateHeldFirst
	StateHeldSecond
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWaiting:
		return "WAITING"
	case StateHeldFirst:
		return "HELD_FIRST"
	case StateHeldSecond:
		return "HELD_SECOND"
	}
	return "UNKNOWN"
}

// Gesture is the classification returned by a single Sample call.
type Gesture int

const (
	GestureIdle Gesture = iota
	GesturePressed
	GestureClickReleased
	GestureHeldFirst
	GestureHeldSecond
)

func (g Gesture) String() string {
	switch g {
	case GestureIdle:
		return "IDLE"
	case GesturePressed:
		return "PRESSED"
	case GestureClickReleased:
		return "CLICK_RELEASED"
	case GestureHeldFirst:
		return "HELD_FIRST"
	case GestureHeldSecond:
		return "HELD_SECOND"
	}
	return "UNKNOWN"
}

// Flag is the legacy bit encoding used by flag-style sinks.
// Every gesture gets its own bit.
type Flag uint8

const (
	FlagOff      Flag = 1 << iota // button is off
	FlagPressed                   // button is currently down
	FlagClick                     // pressed and released
	FlagHold                      // held beyond the first threshold
	FlagLongHold                  // held beyond the second threshold
)

// Flags returns the legacy flag for g.
func (g Gesture) Flags() Flag {
	switch g {
	case GesturePressed:
		return FlagPressed
	case GestureClickReleased:
		return FlagClick
	case GestureHeldFirst:
		return FlagHold
	case GestureHeldSecond:
		return FlagLongHold
	}
	return FlagOff
}

// EventType represents a state transition notification.
type EventType string

const (
	EventClick                EventType = "CLICK"
	EventHeld                 EventType = "HELD"
	EventHeldLong             EventType = "HELD_LONG"
	EventReleaseAfterHold     EventType = "RELEASE_AFTER_HOLD"
	EventReleaseAfterLongHold EventType = "RELEASE_AFTER_LONG_HOLD"
)

// Event is passed to the Handler on every state transition that notifies.
type Event struct {
	Type EventType
	// At is the sample time that produced the transition.
	At Timestamp
	// Elapsed is the press duration measured at At.
	Elapsed Duration
	// Gesture is the classification returned alongside the event.
	Gesture Gesture
}

// Flags returns the legacy flags for the event. Releases after a hold carry
// FlagOff together with the hold bit they ended, so they stay distinct from idle.
func (e Event) Flags() Flag {
	switch e.Type {
	case EventClick:
		return FlagClick
	case EventHeld:
		return FlagHold
	case EventHeldLong:
		return FlagLongHold
	case EventReleaseAfterHold:
		return FlagOff | FlagHold
	case EventReleaseAfterLongHold:
		return FlagOff | FlagLongHold
	}
	return FlagOff
}

// Handler receives notifications. It is called synchronously from Sample.
type Handler func(Event)

// Config holds classifier settings. Zero values select the defaults.
type Config struct {
	FirstThreshold  Duration
	SecondThreshold Duration
	Mode            Mode
	ClockWidth      ClockWidth
}

// DefaultConfig returns the default classifier settings.
func DefaultConfig() Config {
	return Config{
		FirstThreshold:  DefaultFirstThreshold,
		SecondThreshold: DefaultSecondThreshold,
		Mode:            ModeNormal,
		ClockWidth:      Clock32,
	}
}

// EventCounts tracks the number of each event type since construction.
type EventCounts struct {
	Click                int
	Held                 int
	HeldLong             int
	ReleaseAfterHold     int
	ReleaseAfterLongHold int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
