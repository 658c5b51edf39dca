package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{PollMs: 20, FirstThresholdMs: 800, SecondThresholdMs: 3000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 20 {
		t.Errorf("Config.PollMs: got %d, want 20", snap.Config.PollMs)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.State != logic.StateIdle {
		t.Errorf("expected IDLE initially, got %s", snap.State)
	}
	if snap.LastEvent != nil {
		t.Error("expected no last event initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(logic.StateHeldFirst, logic.GestureHeldFirst, true, logic.EventCounts{Click: 3, Held: 1})

	snap := tr.Snapshot()
	if snap.State != logic.StateHeldFirst {
		t.Errorf("State: got %s, want HELD_FIRST", snap.State)
	}
	if snap.Gesture != logic.GestureHeldFirst {
		t.Errorf("Gesture: got %s, want HELD_FIRST", snap.Gesture)
	}
	if !snap.Pressed {
		t.Error("expected Pressed=true")
	}
	if snap.Counts.Click != 3 {
		t.Errorf("Counts.Click: got %d, want 3", snap.Counts.Click)
	}
	if snap.Counts.Held != 1 {
		t.Errorf("Counts.Held: got %d, want 1", snap.Counts.Held)
	}
}

func TestRecordEvent(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tr.RecordEvent(logic.Event{Type: logic.EventClick, Elapsed: 250}, at)

	snap := tr.Snapshot()
	if snap.LastEvent == nil {
		t.Fatal("expected LastEvent")
	}
	if snap.LastEvent.Type != logic.EventClick {
		t.Errorf("LastEvent.Type: got %s, want CLICK", snap.LastEvent.Type)
	}
	if snap.LastEvent.ElapsedMs != 250 {
		t.Errorf("LastEvent.ElapsedMs: got %d, want 250", snap.LastEvent.ElapsedMs)
	}
	if !snap.LastEvent.Time.Equal(at) {
		t.Errorf("LastEvent.Time: got %v, want %v", snap.LastEvent.Time, at)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(logic.StateWaiting, logic.GesturePressed, true, logic.EventCounts{Click: 1})
	tr.RecordEvent(logic.Event{Type: logic.EventClick}, time.Now())

	snap1 := tr.Snapshot()

	tr.Update(logic.StateIdle, logic.GestureIdle, false, logic.EventCounts{Click: 2})
	tr.RecordEvent(logic.Event{Type: logic.EventHeld}, time.Now())

	// snap1 should still reflect old state
	if snap1.State != logic.StateWaiting {
		t.Error("snapshot should be a copy; State was modified")
	}
	if snap1.Counts.Click != 1 {
		t.Error("snapshot should be a copy; Counts were modified")
	}
	if snap1.LastEvent.Type != logic.EventClick {
		t.Error("snapshot should be a copy; LastEvent was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:         logic.StateHeldSecond,
		Gesture:       logic.GestureHeldSecond,
		Pressed:       true,
		Counts:        logic.EventCounts{Click: 5, Held: 2, HeldLong: 1},
		LastEvent:     &LastEvent{Type: logic.EventHeldLong, ElapsedMs: 3000, Time: start.Add(time.Minute)},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config: Config{
			Name:              "hall",
			Driver:            "gpiocdev",
			Pin:               "17",
			PollMs:            20,
			FirstThresholdMs:  800,
			SecondThresholdMs: 3000,
			Mode:              "normal",
			HeartbeatMs:       900000,
			Broker:            "tcp://localhost:1883",
			HTTPAddr:          ":80",
		},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Name != "hall" {
		t.Errorf("Name: got %q, want hall", parsed.Status.Name)
	}
	if parsed.Status.State != "HELD_SECOND" {
		t.Errorf("State: got %q, want HELD_SECOND", parsed.Status.State)
	}
	if parsed.Status.Gesture != "HELD_SECOND" {
		t.Errorf("Gesture: got %q, want HELD_SECOND", parsed.Status.Gesture)
	}
	if !parsed.Status.Pressed {
		t.Error("expected Pressed=true")
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Click != 5 || parsed.Status.Counts.Held != 2 || parsed.Status.Counts.HeldLong != 1 {
		t.Errorf("Counts: got %+v", parsed.Status.Counts)
	}
	if parsed.Status.LastEvent == nil || parsed.Status.LastEvent.Event != "HELD_LONG" {
		t.Errorf("LastEvent: got %+v", parsed.Status.LastEvent)
	}
	if parsed.Status.LastEvent.Timestamp != "2026-01-01T00:01:00Z" {
		t.Errorf("LastEvent.Timestamp: got %q", parsed.Status.LastEvent.Timestamp)
	}
	if parsed.Status.Config.FirstThresholdMs != 800 || parsed.Status.Config.SecondThresholdMs != 3000 {
		t.Errorf("Config thresholds: got %+v", parsed.Status.Config)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONInitialState(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})

	if status["state"] != "IDLE" {
		t.Errorf("state: got %v, want IDLE", status["state"])
	}
	if status["gesture"] != "IDLE" {
		t.Errorf("gesture: got %v, want IDLE", status["gesture"])
	}
	if _, exists := status["last_event"]; exists {
		t.Error("last_event should be omitted before any event")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:         logic.StateIdle,
		Counts:        logic.EventCounts{Click: 3},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{PollMs: 20, Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.Counts.Click != 3 {
		t.Errorf("Counts.Click: got %d, want 3", parsed.Status.Counts.Click)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	// Verify "reason" is not in the raw JSON output
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(logic.StateWaiting, logic.GesturePressed, i%2 == 0, logic.EventCounts{Click: i})
			tr.RecordEvent(logic.Event{Type: logic.EventClick}, time.Now())
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
