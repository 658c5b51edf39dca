// Package status provides a thread-safe status tracker for the button-sensor daemon.
// It is written by the poll loop and read by HTTP handlers and MQTT status events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Name              string
	Driver            string
	Pin               string
	PollMs            int64
	FirstThresholdMs  int64
	SecondThresholdMs int64
	Mode              string
	HeartbeatMs       int64
	Broker            string
	HTTPAddr          string
}

// LastEvent is the most recent button notification.
type LastEvent struct {
	Type      logic.EventType
	ElapsedMs int64
	Time      time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         logic.State
	Gesture       logic.Gesture
	Pressed       bool
	Counts        logic.EventCounts
	LastEvent     *LastEvent
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the classifier state, last gesture, raw pressed sample and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(state logic.State, gesture logic.Gesture, pressed bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Gesture = gesture
	t.snap.Pressed = pressed
	t.snap.Counts = counts
	t.mu.Unlock()
}

// RecordEvent stores the most recent notification.
func (t *Tracker) RecordEvent(e logic.Event, at time.Time) {
	t.mu.Lock()
	t.snap.LastEvent = &LastEvent{
		Type:      e.Type,
		ElapsedMs: int64(e.Elapsed),
		Time:      at,
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.LastEvent != nil {
		le := *s.LastEvent
		s.LastEvent = &le
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
