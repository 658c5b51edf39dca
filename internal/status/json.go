package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Name          string         `json:"name,omitempty"`
	State         string         `json:"state"`
	Gesture       string         `json:"gesture"`
	Pressed       bool           `json:"pressed"`
	LastEvent     *LastEventJSON `json:"last_event,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// LastEventJSON is the JSON representation of the most recent notification.
type LastEventJSON struct {
	Event     string `json:"event"`
	ElapsedMs int64  `json:"elapsed_ms"`
	Timestamp string `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Click                int `json:"click"`
	Held                 int `json:"held"`
	HeldLong             int `json:"held_long"`
	ReleaseAfterHold     int `json:"release_after_hold"`
	ReleaseAfterLongHold int `json:"release_after_long_hold"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Driver            string `json:"driver"`
	Pin               string `json:"pin"`
	PollMs            int64  `json:"poll_ms"`
	FirstThresholdMs  int64  `json:"first_threshold_ms"`
	SecondThresholdMs int64  `json:"second_threshold_ms"`
	Mode              string `json:"mode"`
	HeartbeatMs       int64  `json:"heartbeat_ms"`
	Broker            string `json:"broker"`
	HTTPAddr          string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Name:          snap.Config.Name,
		State:         snap.State.String(),
		Gesture:       snap.Gesture.String(),
		Pressed:       snap.Pressed,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Click:                snap.Counts.Click,
			Held:                 snap.Counts.Held,
			HeldLong:             snap.Counts.HeldLong,
			ReleaseAfterHold:     snap.Counts.ReleaseAfterHold,
			ReleaseAfterLongHold: snap.Counts.ReleaseAfterLongHold,
		},
		Config: ConfigJSON{
			Driver:            snap.Config.Driver,
			Pin:               snap.Config.Pin,
			PollMs:            snap.Config.PollMs,
			FirstThresholdMs:  snap.Config.FirstThresholdMs,
			SecondThresholdMs: snap.Config.SecondThresholdMs,
			Mode:              snap.Config.Mode,
			HeartbeatMs:       snap.Config.HeartbeatMs,
			Broker:            snap.Config.Broker,
			HTTPAddr:          snap.Config.HTTPAddr,
		},
	}

	if snap.LastEvent != nil {
		inner.LastEvent = &LastEventJSON{
			Event:     string(snap.LastEvent.Type),
			ElapsedMs: snap.LastEvent.ElapsedMs,
			Timestamp: snap.LastEvent.Time.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
