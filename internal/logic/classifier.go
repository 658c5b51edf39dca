package logic

import (
	"fmt"
	"time"
)

// Classifier tracks a single button and classifies its gestures.
// It is not safe for concurrent use; one goroutine owns it.
type Classifier struct {
	cfg       Config
	mask      uint32
	handler   Handler
	pressed   bool
	state     State
	pressedAt Timestamp
	gesture   Gesture
	counts    EventCounts
}

// NewClassifier creates a classifier with the given settings.
// Zero thresholds and clock width fall back to the defaults. handler may be nil.
func NewClassifier(cfg Config, handler Handler) (*Classifier, error) {
	if cfg.FirstThreshold == 0 {
		cfg.FirstThreshold = DefaultFirstThreshold
	}
	if cfg.SecondThreshold == 0 {
		cfg.SecondThreshold = DefaultSecondThreshold
	}
	if cfg.ClockWidth == 0 {
		cfg.ClockWidth = Clock32
	}

	var mask uint32
	switch cfg.ClockWidth {
	case Clock16:
		mask = 0xFFFF
	case Clock32:
		mask = 0xFFFFFFFF
	default:
		return nil, fmt.Errorf("%w: clock width %d (want 16 or 32)", ErrInvalidConfig, cfg.ClockWidth)
	}

	if cfg.Mode != ModeNormal && cfg.Mode != ModeExtended {
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, cfg.Mode)
	}
	if cfg.FirstThreshold >= cfg.SecondThreshold {
		return nil, fmt.Errorf("%w: first threshold %dms must be below second threshold %dms",
			ErrInvalidConfig, cfg.FirstThreshold, cfg.SecondThreshold)
	}
	if uint32(cfg.SecondThreshold) > mask {
		return nil, fmt.Errorf("%w: second threshold %dms exceeds %d-bit clock range",
			ErrInvalidConfig, cfg.SecondThreshold, cfg.ClockWidth)
	}

	return &Classifier{
		cfg:     cfg,
		mask:    mask,
		handler: handler,
	}, nil
}

// Sample feeds one raw reading taken at now and returns the resulting classification.
//
// Notifications are edge-triggered: repeating the same (now, pressed) pair never
// fires twice. Threshold comparisons are inclusive, so elapsed == threshold promotes.
//
// If a single sample jumps from WAITING past both thresholds (a long poll gap), the
// classifier moves straight to HELD_SECOND and fires only HELD_LONG. The HELD
// notification is elided because the first threshold was never observed on its own.
// A release seen straight from WAITING is a CLICK only when shorter than the first
// threshold; otherwise it fires the matching release-after-hold notification alone.
func (c *Classifier) Sample(now Timestamp, pressed bool) Gesture {
	c.pressed = pressed

	switch c.state {
	case StateIdle:
		if !pressed {
			c.gesture = GestureIdle
			return c.gesture
		}
		c.state = StateWaiting
		c.pressedAt = now
		c.gesture = GesturePressed
		return c.gesture

	case StateWaiting:
		elapsed := c.elapsed(now)
		if !pressed {
			// A poll gap can hide the hold; classify the release by its duration.
			c.release()
			switch {
			case elapsed >= c.cfg.SecondThreshold:
				c.gesture = GestureIdle
				c.notify(EventReleaseAfterLongHold, now, elapsed)
			case elapsed >= c.cfg.FirstThreshold:
				c.gesture = GestureIdle
				c.notify(EventReleaseAfterHold, now, elapsed)
			default:
				c.gesture = GestureClickReleased
				c.notify(EventClick, now, elapsed)
			}
			return c.gesture
		}
		switch {
		case elapsed >= c.cfg.SecondThreshold:
			c.state = StateHeldSecond
			c.gesture = GestureHeldSecond
			c.notify(EventHeldLong, now, elapsed)
		case elapsed >= c.cfg.FirstThreshold:
			c.state = StateHeldFirst
			c.gesture = GestureHeldFirst
			c.notify(EventHeld, now, elapsed)
		default:
			c.gesture = GesturePressed
		}
		return c.gesture

	case StateHeldFirst:
		elapsed := c.elapsed(now)
		if !pressed {
			c.release()
			c.gesture = GestureIdle
			c.notify(EventReleaseAfterHold, now, elapsed)
			return c.gesture
		}
		if elapsed >= c.cfg.SecondThreshold {
			c.state = StateHeldSecond
			c.gesture = GestureHeldSecond
			c.notify(EventHeldLong, now, elapsed)
			return c.gesture
		}
		c.gesture = GestureHeldFirst
		return c.gesture

	case StateHeldSecond:
		if !pressed {
			elapsed := c.elapsed(now)
			c.release()
			c.gesture = GestureIdle
			c.notify(EventReleaseAfterLongHold, now, elapsed)
			return c.gesture
		}
		c.gesture = GestureHeldSecond
		return c.gesture
	}

	// Inconsistent state degrades to idle.
	c.release()
	c.gesture = GestureIdle
	return c.gesture
}

// elapsed returns now - pressedAt in modular clock arithmetic.
func (c *Classifier) elapsed(now Timestamp) Duration {
	return Duration((uint32(now) - uint32(c.pressedAt)) & c.mask)
}

func (c *Classifier) release() {
	c.state = StateIdle
	c.pressedAt = 0
}

func (c *Classifier) notify(t EventType, now Timestamp, elapsed Duration) {
	switch t {
	case EventClick:
		c.counts.Click++
	case EventHeld:
		c.counts.Held++
	case EventHeldLong:
		c.counts.HeldLong++
	case EventReleaseAfterHold:
		c.counts.ReleaseAfterHold++
	case EventReleaseAfterLongHold:
		c.counts.ReleaseAfterLongHold++
	}

	if c.handler == nil {
		return
	}
	c.handler(Event{
		Type:    t,
		At:      now,
		Elapsed: elapsed,
		Gesture: c.gesture,
	})
}

// Reset returns the classifier to IDLE without firing any notification.
// Event counts are kept.
func (c *Classifier) Reset() {
	c.release()
	c.pressed = false
	c.gesture = GestureIdle
}

// State returns the current state machine position.
func (c *Classifier) State() State {
	return c.state
}

// Gesture returns the classification computed by the last Sample call.
func (c *Classifier) Gesture() Gesture {
	return c.gesture
}

// IsPressed returns the most recent raw sample.
func (c *Classifier) IsPressed() bool {
	return c.pressed
}

// PressedFor returns how long the current press has lasted at now.
// The second result is false when no press is being tracked.
func (c *Classifier) PressedFor(now Timestamp) (Duration, bool) {
	if c.state == StateIdle {
		return 0, false
	}
	return c.elapsed(now), true
}

// Config returns the effective settings, with defaults applied.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Counts returns the number of notifications fired since construction.
func (c *Classifier) Counts() EventCounts {
	return c.counts
}

// TimestampSince converts t into a millisecond Timestamp relative to start.
// The result wraps at 32 bits, about every 49.7 days.
func TimestampSince(start, t time.Time) Timestamp {
	return Timestamp(uint64(t.Sub(start).Milliseconds()))
}
